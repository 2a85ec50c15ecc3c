package graph

import (
	"errors"
	"fmt"
)

// Validate checks that the graph is a well-formed single-terminal DAG:
// every consumed label is a raw source or was produced by an earlier node,
// no label is produced or consumed twice, every source is used, and exactly
// one label is left unconsumed, named "out".
func (g Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return errors.New("graph: no nodes")
	}

	sources := make(map[string]bool, len(g.Sources))
	for i, s := range g.Sources {
		if s.Index != i {
			return fmt.Errorf("graph: source %d has index %d", i, s.Index)
		}
		sources[s.Label()] = true
	}

	produced := map[string]int{}
	consumed := map[string]int{}
	for i, n := range g.Nodes {
		if n.Op == "" {
			return fmt.Errorf("graph: node %d has no operation", i)
		}
		if len(n.Outputs) == 0 {
			return fmt.Errorf("graph: node %d (%s) has no output label", i, n.Op)
		}
		for _, in := range n.Inputs {
			if in == "" {
				return fmt.Errorf("graph: node %d (%s) has an empty input label", i, n.Op)
			}
			if _, ok := produced[in]; !ok && !sources[in] {
				return fmt.Errorf("graph: node %d (%s) consumes %q before it is produced", i, n.Op, in)
			}
			if prev, ok := consumed[in]; ok {
				return fmt.Errorf("graph: label %q consumed by nodes %d and %d", in, prev, i)
			}
			consumed[in] = i
		}
		for _, out := range n.Outputs {
			if out == "" {
				return fmt.Errorf("graph: node %d (%s) has an empty output label", i, n.Op)
			}
			if sources[out] {
				return fmt.Errorf("graph: node %d (%s) overwrites source label %q", i, n.Op, out)
			}
			if prev, ok := produced[out]; ok {
				return fmt.Errorf("graph: label %q produced by nodes %d and %d", out, prev, i)
			}
			produced[out] = i
		}
	}

	for label := range sources {
		if _, ok := consumed[label]; !ok {
			return fmt.Errorf("graph: source %q is never used", label)
		}
	}

	var terminals []string
	for _, n := range g.Nodes {
		for _, out := range n.Outputs {
			if _, ok := consumed[out]; !ok {
				terminals = append(terminals, out)
			}
		}
	}
	if len(terminals) != 1 {
		return fmt.Errorf("graph: expected a single terminal, found %v", terminals)
	}
	if terminals[0] != TerminalLabel {
		return fmt.Errorf("graph: terminal label is %q, want %q", terminals[0], TerminalLabel)
	}
	if last := g.Nodes[len(g.Nodes)-1]; last.Output() != TerminalLabel {
		return fmt.Errorf("graph: final node outputs %q, want %q", last.Output(), TerminalLabel)
	}
	return nil
}

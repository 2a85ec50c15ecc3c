package graph

import (
	"fmt"
	"strings"

	"pipcast/internal/geometry"
)

// TerminalLabel is the output label of the final node of every graph.
const TerminalLabel = "out"

// Op is a filter operation.
type Op string

const (
	OpColor             Op = "color"
	OpScale             Op = "scale"
	OpCrop              Op = "crop"
	OpFormat            Op = "format"
	OpAlphaExtract      Op = "alphaextract"
	OpAlphaMerge        Op = "alphamerge"
	OpSplit             Op = "split"
	OpColorChannelMixer Op = "colorchannelmixer"
	OpBoxBlur           Op = "boxblur"
	OpOverlay           Op = "overlay"
	OpPad               Op = "pad"
	OpNull              Op = "null"
	OpHWUpload          Op = "hwupload_cuda"
	OpHWDownload        Op = "hwdownload"
	OpScaleCUDA         Op = "scale_cuda"
)

// Transfer reports whether op only moves frames between host and device memory.
func (o Op) Transfer() bool {
	return o == OpHWUpload || o == OpHWDownload
}

// Param is one filter option. An empty Key renders a positional value.
type Param struct {
	Key   string
	Value string
}

// P builds a keyed Param.
func P(key string, value any) Param {
	return Param{Key: key, Value: fmt.Sprint(value)}
}

// Node is one filter with its input and output labels.
type Node struct {
	Op      Op
	Inputs  []string
	Outputs []string
	Params  []Param
	// Device marks nodes operating on frames in device memory.
	Device bool
}

// Output returns the first output label.
func (n Node) Output() string {
	if len(n.Outputs) == 0 {
		return ""
	}
	return n.Outputs[0]
}

// Filter renders the node's filter text without labels.
func (n Node) Filter() string {
	var b strings.Builder
	switch n.Op {
	case OpHWUpload:
		// hwupload_cuda accepts only planar host formats.
		b.WriteString("format=yuv420p,")
	}
	b.WriteString(string(n.Op))
	for i, p := range n.Params {
		if i == 0 {
			b.WriteByte('=')
		} else {
			b.WriteByte(':')
		}
		if p.Key != "" {
			b.WriteString(p.Key)
			b.WriteByte('=')
		}
		b.WriteString(p.Value)
	}
	if n.Op == OpHWDownload {
		b.WriteString(",format=yuv420p")
	}
	return b.String()
}

func (n Node) String() string {
	var b strings.Builder
	for _, in := range n.Inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(n.Filter())
	for _, out := range n.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// SourceKind is the content a raw graph input carries.
type SourceKind string

const (
	SourceScreen     SourceKind = "screen"
	SourceFace       SourceKind = "face"
	SourceBackground SourceKind = "background-image"
	SourceMask       SourceKind = "mask"
)

// Source is a raw file input to the graph.
type Source struct {
	Index int
	Kind  SourceKind
	// Still inputs are single pictures looped for the rendition length.
	Still bool
	// Mask is set for SourceMask inputs.
	Mask geometry.MaskKey
}

// Label is the raw stream label the graph consumes for this source.
func (s Source) Label() string {
	return fmt.Sprintf("%d:v", s.Index)
}

// Graph is an ordered composition graph.
type Graph struct {
	Profile geometry.Name
	Sources []Source
	Nodes   []Node
}

// Serialize renders the graph as an ffmpeg filter_complex script.
func (g Graph) Serialize() string {
	parts := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ";")
}

// Producer returns the node that outputs label.
func (g Graph) Producer(label string) (Node, bool) {
	for _, n := range g.Nodes {
		for _, out := range n.Outputs {
			if out == label {
				return n, true
			}
		}
	}
	return Node{}, false
}

// Consumer returns the node that reads label.
func (g Graph) Consumer(label string) (Node, bool) {
	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			if in == label {
				return n, true
			}
		}
	}
	return Node{}, false
}

// Source returns the first source of kind.
func (g Graph) Source(kind SourceKind) (Source, bool) {
	for _, s := range g.Sources {
		if s.Kind == kind {
			return s, true
		}
	}
	return Source{}, false
}

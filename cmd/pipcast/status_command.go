package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pipcast/internal/backend"
	"pipcast/internal/deps"
	"pipcast/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipProbe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether this host is ready to render",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				lines = append(lines, renderStatusLine(r.Name, checkKind(r.Passed, r.Optional), r.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Backend", colorize)...)
			if skipProbe {
				lines = append(lines, renderStatusLine("Policy", statusInfo, cfg.Encoding.Backend+" (probe skipped)", colorize))
			} else {
				selector, err := backend.NewSelector(cfg, logger)
				if err != nil {
					return err
				}
				sel := selector.Probe(cmd.Context())
				kind := statusOK
				if sel.Kind == backend.Software && cfg.Encoding.Backend != string(backend.PolicySoftware) {
					kind = statusWarn
				}
				lines = append(lines, renderStatusLine("Selected", kind, displayName(sel.Kind.String())+": "+sel.Reason, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Host", colorize)...)
			if host, err := deps.ProbeHost(cmd.Context()); err != nil {
				lines = append(lines, renderStatusLine("Resources", statusWarn, err.Error(), colorize))
			} else {
				lines = append(lines,
					renderStatusLine("CPUs", statusInfo, fmt.Sprintf("%d logical, load %.2f", host.LogicalCPUs, host.Load1), colorize),
					renderStatusLine("Memory", statusInfo, fmt.Sprintf("%s available of %s",
						preflight.FormatBytes(host.MemoryAvailable), preflight.FormatBytes(host.MemoryTotal)), colorize),
				)
			}
			lines = append(lines, renderStatusLine("Max concurrent", statusInfo, fmt.Sprintf("%d", cfg.Server.MaxConcurrent), colorize))

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipProbe, "skip-probe", false, "Skip the hardware encoder probe")
	return cmd
}

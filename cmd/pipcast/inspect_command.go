package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pipcast/internal/pipeline"
	"pipcast/internal/preflight"
)

type inspectRow struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration_seconds"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Audio    bool    `json:"audio"`
	Still    bool    `json:"still_image"`
	Size     int64   `json:"size_bytes"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Probe media files with ffprobe",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			svc, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}

			rows := make([]inspectRow, 0, len(args))
			for _, path := range args {
				probe, err := svc.Inspect(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", path, err)
				}
				row := inspectRow{
					Path:     path,
					Duration: probe.DurationSeconds(),
					Audio:    probe.HasAudio(),
					Still:    probe.IsStillImage(),
					Size:     probe.SizeBytes(),
				}
				row.Width, row.Height, _ = probe.VideoSize()
				rows = append(rows, row)
			}

			if jsonOut {
				return writeJSON(cmd, rows)
			}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				video := "-"
				if row.Width > 0 {
					video = fmt.Sprintf("%dx%d", row.Width, row.Height)
				}
				table = append(table, []string{
					filepath.Base(row.Path),
					fmt.Sprintf("%.2fs", row.Duration),
					video,
					yesNo(row.Audio),
					yesNo(row.Still),
					preflight.FormatBytes(uint64(max(row.Size, 0))),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Duration", "Video", "Audio", "Still", "Size"},
				table,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print probe results as JSON")
	return cmd
}

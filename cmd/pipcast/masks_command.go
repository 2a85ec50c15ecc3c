package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pipcast/internal/logging"
	"pipcast/internal/masks"
)

func newMasksCommand(ctx *commandContext) *cobra.Command {
	masksCmd := &cobra.Command{
		Use:   "masks",
		Short: "Manage rounded-corner mask assets",
	}
	masksCmd.AddCommand(newMasksGenerateCommand(ctx))
	return masksCmd
}

func newMasksGenerateCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate every mask the built-in profiles need",
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
			registry := masks.NewRegistry(cfg.Paths.MaskDir, logging.NewComponentLogger(logger, "masks"))
			assets, err := registry.EnsureAll(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, assets)
			}
			rows := make([][]string, 0, len(assets))
			for _, asset := range assets {
				rows = append(rows, []string{asset.Key.String(), asset.Path})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Masks ready in %s\n", registry.Dir())
			fmt.Fprintln(out, renderTable([]string{"Mask", "Path"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print generated assets as JSON")
	return cmd
}

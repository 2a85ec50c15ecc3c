package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pipcast/internal/api"
	"pipcast/internal/geometry"
)

func newProfilesCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "profiles",
		Short:       "List output profiles and their layer geometry",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := api.FromProfiles(geometry.All())
			if jsonOut {
				return writeJSON(cmd, profiles)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for i, p := range profiles {
				if i > 0 {
					fmt.Fprintln(out)
				}
				title := fmt.Sprintf("%s (%s, %dx%d)", displayName(p.Name), p.Label, p.Width, p.Height)
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Layer", "Z", "Size", "Position", "Radii", "Opacity", "Extras"},
					layerRows(p.Layers),
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print profiles as JSON")
	return cmd
}

func layerRows(layers []api.LayerInfo) [][]string {
	rows := make([][]string, 0, len(layers))
	for _, l := range layers {
		var extras []string
		if l.Shadow {
			extras = append(extras, "shadow")
		}
		if l.Border > 0 {
			extras = append(extras, fmt.Sprintf("border %dpx", l.Border))
		}
		if l.Host != "" {
			extras = append(extras, "inside "+l.Host)
		}
		rows = append(rows, []string{
			displayName(l.Role),
			fmt.Sprintf("%d", l.Z),
			fmt.Sprintf("%dx%d", l.Width, l.Height),
			fmt.Sprintf("%d:%d", l.X, l.Y),
			fmt.Sprintf("%d/%d", l.RadiusTop, l.RadiusBottom),
			fmt.Sprintf("%.2f", l.Opacity),
			strings.Join(extras, ", "),
		})
	}
	return rows
}

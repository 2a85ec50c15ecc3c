package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pipcast/internal/pipeline"
	"pipcast/internal/progress"
)

var errPartialRender = errors.New("some renditions failed")

type renderOptions struct {
	screen     string
	face       string
	background string
	color      string
	profiles   string
	backend    string
	jsonOut    bool
	events     bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render picture-in-picture outputs from local recordings",
		Example: "  pipcast render --screen talk.mov --face cam.mp4\n" +
			"  pipcast render --screen talk.mov --face cam.mp4 --background slide.png --profiles short",
		Args: cobra.NoArgs,
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

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, runErr := svc.Run(runCtx, opts.request(), opts.sink(cmd))
			if runErr != nil {
				return runErr
			}
			if opts.jsonOut {
				if err := writeJSON(cmd, newRenderReport(result)); err != nil {
					return err
				}
			} else {
				printRenderResult(cmd, result)
			}
			return renderOutcome(result)
		},
	}

	cmd.Flags().StringVar(&opts.screen, "screen", "", "Screen recording")
	cmd.Flags().StringVar(&opts.face, "face", "", "Face camera recording")
	cmd.Flags().StringVar(&opts.background, "background", "", "Optional background image")
	cmd.Flags().StringVar(&opts.color, "color", "", "Canvas color override (#rrggbb or name)")
	cmd.Flags().StringVar(&opts.profiles, "profiles", "", "Profiles to render: short, long, both, or a comma list")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Backend policy override: auto, hardware, software")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.events, "events", false, "Write progress events to stderr as JSON lines")
	return cmd
}

func (o renderOptions) request() pipeline.Request {
	return pipeline.Request{
		Screen:     pipeline.FilePayload(o.screen),
		Face:       pipeline.FilePayload(o.face),
		Background: pipeline.FilePayload(o.background),
		Color:      o.color,
		Profiles:   o.profiles,
		Backend:    o.backend,
	}
}

func (o renderOptions) sink(cmd *cobra.Command) progress.Sink {
	errOut := cmd.ErrOrStderr()
	if o.events {
		return newJSONLinesSink(errOut)
	}
	return newConsoleProgress(errOut, shouldColorize(errOut))
}

// renderOutcome reports failed renditions as an error once results are
// printed. A run that produced some outputs is partial.
func renderOutcome(result pipeline.Result) error {
	err := result.Err()
	if err == nil {
		return nil
	}
	if len(result.Outputs) > 0 {
		return fmt.Errorf("%w: %v", errPartialRender, err)
	}
	return err
}

type renderReport struct {
	pipeline.Result
	Paths []string `json:"paths"`
}

func newRenderReport(result pipeline.Result) renderReport {
	paths := make([]string, 0, len(result.Outputs))
	for _, out := range result.Outputs {
		paths = append(paths, out.Path)
	}
	return renderReport{Result: result, Paths: paths}
}

func printRenderResult(cmd *cobra.Command, result pipeline.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Invocation %s: %.2fs on %s\n", result.InvocationID, result.Duration, result.Backend)
	if len(result.DurationFallback) > 0 {
		fmt.Fprintf(out, "Duration fell back for: %v\n", result.DurationFallback)
	}

	rows := make([][]string, 0, len(result.Outputs)+len(result.Failures))
	for _, r := range result.Outputs {
		backend := r.Backend
		if r.FellBack {
			backend += " (fallback)"
		}
		rows = append(rows, []string{
			displayName(string(r.Profile)),
			"done",
			backend,
			fmt.Sprintf("%d", r.Attempts),
			r.Elapsed.Round(100 * time.Millisecond).String(),
			r.Path,
		})
	}
	for _, r := range result.Failures {
		rows = append(rows, []string{
			displayName(string(r.Profile)),
			"failed (" + r.Class + ")",
			r.Backend,
			fmt.Sprintf("%d", r.Attempts),
			r.Elapsed.Round(100 * time.Millisecond).String(),
			r.Error,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Profile", "State", "Backend", "Attempts", "Elapsed", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}

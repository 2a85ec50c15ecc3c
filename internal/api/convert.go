package api

import (
	"net/url"
	"os"
	"time"

	"pipcast/internal/geometry"
	"pipcast/internal/pipeline"
	"pipcast/internal/preflight"
)

// OutputsPath is the URL prefix under which produced files are served.
const OutputsPath = "/outputs/"

// FromResult converts a pipeline result into its wire format.
func FromResult(result pipeline.Result) RenderResult {
	out := RenderResult{
		InvocationID:     result.InvocationID,
		Duration:         result.Duration,
		DurationFallback: result.DurationFallback,
		Backend:          result.Backend,
		BackendReason:    result.BackendReason,
		Outputs:          make([]RenderOutput, 0, len(result.Outputs)),
	}
	for _, r := range result.Outputs {
		o := RenderOutput{
			Profile:   string(r.Profile),
			File:      r.File,
			URL:       OutputsPath + url.PathEscape(r.File),
			Backend:   r.Backend,
			FellBack:  r.FellBack,
			Attempts:  r.Attempts,
			ElapsedMS: r.Elapsed.Milliseconds(),
			Duration:  result.Duration,
		}
		if r.Path != "" {
			if info, err := os.Stat(r.Path); err == nil {
				o.SizeBytes = info.Size()
			}
		}
		out.Outputs = append(out.Outputs, o)
	}
	for _, f := range result.Failures {
		out.Failures = append(out.Failures, RenderFailure{Profile: string(f.Profile), Class: f.Class, Error: f.Error})
	}
	return out
}

// FromProfile converts a catalog profile.
func FromProfile(p geometry.Profile) ProfileInfo {
	info := ProfileInfo{
		Name:   string(p.Name),
		Label:  p.Label,
		Width:  p.CanvasWidth,
		Height: p.CanvasHeight,
		Layers: make([]LayerInfo, 0, len(p.Layers)),
	}
	for _, l := range p.Layers {
		info.Layers = append(info.Layers, LayerInfo{
			Role:         string(l.Role),
			Width:        l.Width,
			Height:       l.Height,
			X:            l.X,
			Y:            l.Y,
			RadiusTop:    l.RadiusTop,
			RadiusBottom: l.RadiusBottom,
			Opacity:      l.Opacity,
			Z:            l.Z,
			Shadow:       l.Shadow != nil,
			Border:       l.BorderWidth(),
			Host:         string(l.Host),
		})
	}
	return info
}

// FromProfiles converts the whole catalog in canonical order.
func FromProfiles(profiles []geometry.Profile) []ProfileInfo {
	out := make([]ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, FromProfile(p))
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, 0, len(results))
	for _, r := range results {
		out = append(out, CheckStatus{Name: r.Name, Passed: r.Passed, Optional: r.Optional, Detail: r.Detail})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

package backend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"pipcast/internal/config"
	"pipcast/internal/logging"
)

var commandContext = exec.CommandContext

const defaultProbeTimeout = 15 * time.Second

// Selection is the backend chosen for one invocation.
type Selection struct {
	Kind     Kind
	Params   EncoderParams
	Fallback EncoderParams
	// Reason explains the choice for logs and status output.
	Reason string
	Probed bool
}

// ParamsFor returns the encoder settings to use when running on kind.
func (s Selection) ParamsFor(kind Kind) EncoderParams {
	if kind == s.Kind {
		return s.Params
	}
	return s.Fallback
}

// Selector probes hardware capability.
type Selector struct {
	binary   string
	timeout  time.Duration
	policy   Policy
	hardware EncoderParams
	software EncoderParams
	logger   *slog.Logger
}

// NewSelector builds a selector from configuration.
func NewSelector(cfg *config.Config, logger *slog.Logger) (*Selector, error) {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	policy, err := ParsePolicy(cfg.Encoding.Backend)
	if err != nil {
		return nil, err
	}
	timeout := cfg.HardwareProbeTimeout()
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Selector{
		binary:   cfg.Engine.FFmpegBinary,
		timeout:  timeout,
		policy:   policy,
		hardware: HardwareParams(cfg.Encoding.Hardware),
		software: SoftwareParams(cfg.Encoding.Software),
		logger:   logging.NewComponentLogger(logger, "backend"),
	}, nil
}

// WithPolicy returns a copy of the selector using policy.
func (s *Selector) WithPolicy(policy Policy) *Selector {
	clone := *s
	clone.policy = policy
	return &clone
}

// Params returns the encoder settings for kind.
func (s *Selector) Params(kind Kind) EncoderParams {
	if kind == Hardware {
		return s.hardware
	}
	return s.software
}

// ProbeArgs is the argv used to test the hardware encoder: one synthetic 1x1
// frame encoded to the null muxer.
func (s *Selector) ProbeArgs() []string {
	stream := ffmpeg.Input("nullsrc=s=1x1:d=1", ffmpeg.KwArgs{"f": "lavfi"}).
		Output("-", ffmpeg.KwArgs{
			"c:v":      s.hardware.Codec,
			"frames:v": "1",
			"f":        "null",
		})
	return append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, stream.GetArgs()...)
}

// Probe resolves the backend for one invocation. It never fails: any probe
// error selects Software.
func (s *Selector) Probe(ctx context.Context) Selection {
	logger := logging.WithContext(ctx, s.logger)
	switch s.policy {
	case PolicySoftware:
		return s.softwareSelection("software forced by policy", false)
	case PolicyHardware:
		return s.hardwareSelection("hardware forced by policy", false)
	}

	start := time.Now()
	err := s.runProbe(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "hardware encoder unavailable; using software", "backend_probe_failed",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(start)),
			logging.Impact("renditions encode on the CPU and take longer"),
			logging.Hint("check the GPU driver and that ffmpeg was built with "+s.hardware.Codec),
		)
		return s.softwareSelection(fmt.Sprintf("hardware probe failed: %v", err), true)
	}
	logger.Info("hardware encoder available",
		logging.String("codec", s.hardware.Codec),
		logging.Duration("elapsed", time.Since(start)),
	)
	return s.hardwareSelection("hardware probe succeeded", true)
}

func (s *Selector) runProbe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := commandContext(ctx, s.binary, s.ProbeArgs()...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("probe timed out after %s: %w", s.timeout, ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, lastLine(detail))
	}
	return nil
}

func (s *Selector) hardwareSelection(reason string, probed bool) Selection {
	return Selection{Kind: Hardware, Params: s.hardware, Fallback: s.software, Reason: reason, Probed: probed}
}

func (s *Selector) softwareSelection(reason string, probed bool) Selection {
	return Selection{Kind: Software, Params: s.software, Fallback: s.software, Reason: reason, Probed: probed}
}

func lastLine(text string) string {
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return text
}

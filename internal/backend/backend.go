package backend

import (
	"fmt"
	"strconv"
	"strings"

	"pipcast/internal/config"
)

// Kind is the execution strategy for a composition graph.
type Kind int

const (
	Software Kind = iota
	Hardware
)

func (k Kind) String() string {
	if k == Hardware {
		return "hardware"
	}
	return "software"
}

// ParseKind converts a label into a Kind.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "hardware", "gpu", "nvenc":
		return Hardware, nil
	case "software", "cpu", "":
		return Software, nil
	default:
		return Software, fmt.Errorf("unknown backend %q", value)
	}
}

// Policy controls how the selector decides.
type Policy string

const (
	PolicyAuto     Policy = "auto"
	PolicyHardware Policy = "hardware"
	PolicySoftware Policy = "software"
)

// ParsePolicy validates a policy label. Empty means auto.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyAuto:
		return PolicyAuto, nil
	case PolicyHardware, "gpu":
		return PolicyHardware, nil
	case PolicySoftware, "cpu":
		return PolicySoftware, nil
	default:
		return PolicyAuto, fmt.Errorf("unknown backend policy %q", value)
	}
}

// EncoderParams are the video encoder settings for one backend.
type EncoderParams struct {
	Codec         string
	RateControl   string
	Preset        string
	TargetBitrate string
	MaxBitrate    string
	BufferSize    string
	// Quality is cq for hardware rate control and crf for software.
	Quality int
	Profile string
	Level   string
	GPU     int
	Threads int
	Kind    Kind
}

// Args renders the video encoder portion of an ffmpeg argv.
func (p EncoderParams) Args() []string {
	args := []string{"-c:v", p.Codec}
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.Kind == Hardware {
		if p.RateControl != "" {
			args = append(args, "-rc", p.RateControl)
		}
		args = append(args, "-cq", strconv.Itoa(p.Quality))
		if p.TargetBitrate != "" {
			args = append(args, "-b:v", p.TargetBitrate)
		}
		if p.MaxBitrate != "" {
			args = append(args, "-maxrate", p.MaxBitrate)
		}
		if p.BufferSize != "" {
			args = append(args, "-bufsize", p.BufferSize)
		}
		if p.Profile != "" {
			args = append(args, "-profile:v", p.Profile)
		}
		if p.Level != "" {
			args = append(args, "-level", p.Level)
		}
		return append(args, "-gpu", strconv.Itoa(p.GPU))
	}
	args = append(args, "-crf", strconv.Itoa(p.Quality))
	return append(args, "-threads", strconv.Itoa(p.Threads))
}

// HardwareParams builds the hardware encoder settings from configuration.
func HardwareParams(enc config.HardwareEncoder) EncoderParams {
	return EncoderParams{
		Kind:          Hardware,
		Codec:         enc.Codec,
		Preset:        enc.Preset,
		RateControl:   enc.RateControl,
		Quality:       enc.CQ,
		TargetBitrate: enc.TargetBitrate,
		MaxBitrate:    enc.MaxBitrate,
		BufferSize:    enc.BufferSize,
		Profile:       enc.Profile,
		Level:         enc.Level,
		GPU:           enc.GPU,
	}
}

// SoftwareParams builds the software encoder settings from configuration.
func SoftwareParams(enc config.SoftwareEncoder) EncoderParams {
	return EncoderParams{
		Kind:    Software,
		Codec:   enc.Codec,
		Preset:  enc.Preset,
		Quality: enc.CRF,
		Threads: enc.Threads,
	}
}

// DefaultParams returns the built-in encoder settings for kind.
func DefaultParams(kind Kind) EncoderParams {
	enc := config.Default().Encoding
	if kind == Hardware {
		return HardwareParams(enc.Hardware)
	}
	return SoftwareParams(enc.Software)
}

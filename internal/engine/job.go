package engine

import (
	"errors"
	"strconv"
	"strings"

	"pipcast/internal/backend"
)

// Default audio settings.
const (
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "192k"
	DefaultAudioMap     = "1:a?"
)

// Input is one file handed to the engine in graph source order.
type Input struct {
	Path string
	// Loop repeats a still picture for the length of the rendition.
	Loop bool
}

// Job is a single engine invocation.
type Job struct {
	Inputs       []Input
	FilterGraph  string
	Encoder      backend.EncoderParams
	AudioMap     string
	AudioCodec   string
	AudioBitrate string
	// Duration in seconds bounds the output and scales progress.
	Duration float64
	Output   string
}

// Validate checks that the job carries everything the engine needs.
func (j Job) Validate() error {
	switch {
	case len(j.Inputs) == 0:
		return errors.New("engine job: no inputs")
	case strings.TrimSpace(j.FilterGraph) == "":
		return errors.New("engine job: empty filter graph")
	case j.Duration <= 0:
		return errors.New("engine job: duration must be positive")
	case strings.TrimSpace(j.Output) == "":
		return errors.New("engine job: output path required")
	case j.Encoder.Codec == "":
		return errors.New("engine job: encoder codec required")
	}
	for i, in := range j.Inputs {
		if strings.TrimSpace(in.Path) == "" {
			return errors.New("engine job: input " + strconv.Itoa(i) + " has no path")
		}
	}
	return nil
}

// Args renders the ffmpeg argument vector for the job.
func (j Job) Args() []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	for _, in := range j.Inputs {
		if in.Loop {
			args = append(args, "-loop", "1")
		}
		args = append(args, "-i", in.Path)
	}
	args = append(args, "-filter_complex", j.FilterGraph, "-map", "[out]")

	audioMap := j.AudioMap
	if audioMap == "" {
		audioMap = DefaultAudioMap
	}
	audioCodec := j.AudioCodec
	if audioCodec == "" {
		audioCodec = DefaultAudioCodec
	}
	audioBitrate := j.AudioBitrate
	if audioBitrate == "" {
		audioBitrate = DefaultAudioBitrate
	}
	args = append(args, "-map", audioMap)
	args = append(args, j.Encoder.Args()...)
	args = append(args,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-t", strconv.FormatFloat(j.Duration, 'f', -1, 64),
		"-progress", "pipe:1",
		"-nostats",
		"-y", j.Output,
	)
	return args
}

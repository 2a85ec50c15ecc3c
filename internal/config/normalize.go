package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeEncoding()
	c.normalizeRender()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
		def   string
	}{
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.mask_dir", &c.Paths.MaskDir, defaultMaskDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.FFmpegBinary = strings.TrimSpace(c.Engine.FFmpegBinary)
	if c.Engine.FFmpegBinary == "" {
		c.Engine.FFmpegBinary = defaultFFmpegBinary
	}
	c.Engine.FFprobeBinary = strings.TrimSpace(c.Engine.FFprobeBinary)
	if c.Engine.FFprobeBinary == "" {
		c.Engine.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Engine.StderrTailLines <= 0 {
		c.Engine.StderrTailLines = defaultStderrTailLines
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Backend = strings.ToLower(strings.TrimSpace(c.Encoding.Backend))
	if c.Encoding.Backend == "" {
		c.Encoding.Backend = defaultBackend
	}
	if strings.TrimSpace(c.Encoding.AudioCodec) == "" {
		c.Encoding.AudioCodec = defaultAudioCodec
	}
	if strings.TrimSpace(c.Encoding.AudioBitrate) == "" {
		c.Encoding.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeRender() {
	c.Render.BackgroundColor = strings.TrimSpace(c.Render.BackgroundColor)
	if c.Render.BackgroundColor == "" {
		c.Render.BackgroundColor = defaultBackgroundColor
	}
	profiles := make([]string, 0, len(c.Render.Profiles))
	for _, p := range c.Render.Profiles {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			profiles = append(profiles, p)
		}
	}
	c.Render.Profiles = profiles
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

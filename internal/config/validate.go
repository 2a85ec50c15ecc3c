package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var colorPattern = regexp.MustCompile(`^(#[0-9A-Fa-f]{6}|#[0-9A-Fa-f]{8}|[A-Za-z]+)$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEngine() error {
	if c.Engine.ProbeTimeoutSeconds <= 0 {
		return errors.New("engine.probe_timeout_seconds must be positive")
	}
	if c.Engine.HardwareProbeSeconds <= 0 {
		return errors.New("engine.hardware_probe_seconds must be positive")
	}
	if c.Engine.InvocationTimeoutMinutes <= 0 {
		return errors.New("engine.invocation_timeout_minutes must be positive")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	switch c.Encoding.Backend {
	case "auto", "hardware", "software":
	default:
		return fmt.Errorf("encoding.backend: unsupported value %q (want auto, hardware, or software)", c.Encoding.Backend)
	}
	if c.Encoding.Hardware.Codec == "" {
		return errors.New("encoding.hardware.codec must be set")
	}
	if c.Encoding.Software.Codec == "" {
		return errors.New("encoding.software.codec must be set")
	}
	if c.Encoding.Software.CRF < 0 || c.Encoding.Software.CRF > 51 {
		return errors.New("encoding.software.crf must be between 0 and 51")
	}
	if c.Encoding.Hardware.CQ < 0 || c.Encoding.Hardware.CQ > 51 {
		return errors.New("encoding.hardware.cq must be between 0 and 51")
	}
	if c.Encoding.Software.Threads < 0 {
		return errors.New("encoding.software.threads must not be negative")
	}
	return nil
}

func (c *Config) validateRender() error {
	if !colorPattern.MatchString(c.Render.BackgroundColor) {
		return fmt.Errorf("render.background_color: invalid color %q", c.Render.BackgroundColor)
	}
	if len(c.Render.Profiles) == 0 {
		return errors.New("render.profiles must name at least one profile")
	}
	for _, p := range c.Render.Profiles {
		switch p {
		case "short_form", "long_form":
		default:
			return fmt.Errorf("render.profiles: unknown profile %q", p)
		}
	}
	if c.Render.FallbackDurationSeconds <= 0 {
		return errors.New("render.fallback_duration_seconds must be positive")
	}
	if c.Render.MaxDurationSeconds <= 0 || c.Render.MaxDurationSeconds > defaultMaxDuration {
		return fmt.Errorf("render.max_duration_seconds must be in (0, %d], got %v", defaultMaxDuration, c.Render.MaxDurationSeconds)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		return errors.New("server.max_concurrent must be positive")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return errors.New("server.rate_limit_per_minute must not be negative")
	}
	if c.Server.WorkspaceMaxAgeHours < 0 {
		return errors.New("server.workspace_max_age_hours must not be negative")
	}
	if c.Server.OutputRetentionDays < 0 {
		return errors.New("server.output_retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: %q must be an http(s) URL", topic)
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

// ValidColor reports whether value is a color the canvas accepts: a named
// color or #RRGGBB / #RRGGBBAA.
func ValidColor(value string) bool {
	return colorPattern.MatchString(value)
}

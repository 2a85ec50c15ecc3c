package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	MaskDir   string `toml:"mask_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Engine contains the external media engine settings.
type Engine struct {
	FFmpegBinary             string `toml:"ffmpeg_binary"`
	FFprobeBinary            string `toml:"ffprobe_binary"`
	ProbeTimeoutSeconds      int    `toml:"probe_timeout_seconds"`
	HardwareProbeSeconds     int    `toml:"hardware_probe_seconds"`
	InvocationTimeoutMinutes int    `toml:"invocation_timeout_minutes"`
	StderrTailLines          int    `toml:"stderr_tail_lines"`
}

// HardwareEncoder holds NVENC rate-control parameters.
type HardwareEncoder struct {
	Codec         string `toml:"codec"`
	Preset        string `toml:"preset"`
	RateControl   string `toml:"rate_control"`
	CQ            int    `toml:"cq"`
	TargetBitrate string `toml:"target_bitrate"`
	MaxBitrate    string `toml:"max_bitrate"`
	BufferSize    string `toml:"buffer_size"`
	Profile       string `toml:"profile"`
	Level         string `toml:"level"`
	GPU           int    `toml:"gpu"`
}

// SoftwareEncoder holds libx264 parameters.
type SoftwareEncoder struct {
	Codec   string `toml:"codec"`
	Preset  string `toml:"preset"`
	CRF     int    `toml:"crf"`
	Threads int    `toml:"threads"`
}

// Encoding selects the backend policy and encoder parameters.
type Encoding struct {
	// Backend is one of auto, hardware, software. auto probes per invocation.
	Backend      string          `toml:"backend"`
	Hardware     HardwareEncoder `toml:"hardware"`
	Software     SoftwareEncoder `toml:"software"`
	AudioCodec   string          `toml:"audio_codec"`
	AudioBitrate string          `toml:"audio_bitrate"`
}

// Render contains composition defaults applied when a request omits them.
type Render struct {
	BackgroundColor         string   `toml:"background_color"`
	Profiles                []string `toml:"profiles"`
	FallbackDurationSeconds float64  `toml:"fallback_duration_seconds"`
	MaxDurationSeconds      float64  `toml:"max_duration_seconds"`
}

// Server contains daemon HTTP limits.
type Server struct {
	MaxUploadMiB         int64  `toml:"max_upload_mib"`
	RateLimitPerMinute   int    `toml:"rate_limit_per_minute"`
	MaxConcurrent        int    `toml:"max_concurrent"`
	WorkspaceMaxAgeHours int    `toml:"workspace_max_age_hours"`
	OutputRetentionDays  int    `toml:"output_retention_days"`
	JobHistory           int    `toml:"job_history"`
	// APIToken, when set, is required as a bearer token on every /api route.
	APIToken             string `toml:"api_token"`
}

// Notifications configures job completion alerts.
type Notifications struct {
	// NtfyTopic is the full ntfy topic URL. Empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// NotifySuccess also announces jobs that completed without failures.
	NotifySuccess bool `toml:"notify_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for pipcast.
//
// Configuration sections by subsystem:
//   - Paths: working, output, mask cache, and log directories plus the API bind address
//   - Engine: ffmpeg/ffprobe binaries and timeouts
//   - Encoding: backend policy and encoder parameters
//   - Render: composition defaults
//   - Server: daemon limits
//   - Notifications: ntfy alerts for finished jobs
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Encoding      Encoding      `toml:"encoding"`
	Render        Render        `toml:"render"`
	Server        Server        `toml:"server"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}
	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pipcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.MaskDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InvocationTimeout bounds a whole pipeline invocation.
func (c *Config) InvocationTimeout() time.Duration {
	return time.Duration(c.Engine.InvocationTimeoutMinutes) * time.Minute
}

// ProbeTimeout bounds a single ffprobe call.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Engine.ProbeTimeoutSeconds) * time.Second
}

// HardwareProbeTimeout bounds the hardware capability probe.
func (c *Config) HardwareProbeTimeout() time.Duration {
	return time.Duration(c.Engine.HardwareProbeSeconds) * time.Second
}

// MaxUploadBytes is the request body ceiling for render uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMiB << 20
}

// NotificationTimeout bounds one ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// WorkspaceMaxAge is the age after which abandoned workspaces are swept.
func (c *Config) WorkspaceMaxAge() time.Duration {
	return time.Duration(c.Server.WorkspaceMaxAgeHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

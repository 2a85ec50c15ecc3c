package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads a .env file next to the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", candidate, err)
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

// applyEnv overlays PIPCAST_* environment variables onto decoded values.
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	setInt := func(key string, dst *int) {
		if value, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				*dst = n
			}
		}
	}

	setString("PIPCAST_WORK_DIR", &c.Paths.WorkDir)
	setString("PIPCAST_OUTPUT_DIR", &c.Paths.OutputDir)
	setString("PIPCAST_MASK_DIR", &c.Paths.MaskDir)
	setString("PIPCAST_LOG_DIR", &c.Paths.LogDir)
	setString("PIPCAST_API_BIND", &c.Paths.APIBind)
	setString("PIPCAST_FFMPEG", &c.Engine.FFmpegBinary)
	setString("PIPCAST_FFPROBE", &c.Engine.FFprobeBinary)
	setString("PIPCAST_BACKEND", &c.Encoding.Backend)
	setString("PIPCAST_BACKGROUND_COLOR", &c.Render.BackgroundColor)
	setString("PIPCAST_API_TOKEN", &c.Server.APIToken)
	setString("PIPCAST_NTFY_TOPIC", &c.Notifications.NtfyTopic)
	setString("PIPCAST_LOG_LEVEL", &c.Logging.Level)
	setString("PIPCAST_LOG_FORMAT", &c.Logging.Format)
	setInt("PIPCAST_MAX_CONCURRENT", &c.Server.MaxConcurrent)
	setInt("PIPCAST_INVOCATION_TIMEOUT_MINUTES", &c.Engine.InvocationTimeoutMinutes)
}

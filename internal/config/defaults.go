package config

const (
	defaultConfigPath               = "~/.config/pipcast/config.toml"
	defaultWorkDir                  = "~/.local/share/pipcast/work"
	defaultOutputDir                = "~/.local/share/pipcast/outputs"
	defaultMaskDir                  = "~/.cache/pipcast/masks"
	defaultLogDir                   = "~/.local/share/pipcast/logs"
	defaultAPIBind                  = "127.0.0.1:7490"
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
	defaultProbeTimeoutSeconds      = 30
	defaultHardwareProbeSeconds     = 15
	defaultInvocationTimeoutMinutes = 45
	defaultStderrTailLines          = 40
	defaultBackend                  = "auto"
	defaultAudioCodec               = "aac"
	defaultAudioBitrate             = "192k"
	defaultBackgroundColor          = "#000000"
	defaultFallbackDuration         = 60
	defaultMaxDuration              = 3600
	defaultMaxUploadMiB             = 2048
	defaultRateLimitPerMinute       = 30
	defaultMaxConcurrent            = 2
	defaultWorkspaceMaxAgeHours     = 24
	defaultOutputRetentionDays      = 7
	defaultJobHistory               = 100
	defaultNotifyTimeoutSeconds     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			MaskDir:   defaultMaskDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Engine: Engine{
			FFmpegBinary:             defaultFFmpegBinary,
			FFprobeBinary:            defaultFFprobeBinary,
			ProbeTimeoutSeconds:      defaultProbeTimeoutSeconds,
			HardwareProbeSeconds:     defaultHardwareProbeSeconds,
			InvocationTimeoutMinutes: defaultInvocationTimeoutMinutes,
			StderrTailLines:          defaultStderrTailLines,
		},
		Encoding: Encoding{
			Backend: defaultBackend,
			Hardware: HardwareEncoder{
				Codec:         "h264_nvenc",
				Preset:        "p4",
				RateControl:   "vbr",
				CQ:            23,
				TargetBitrate: "8M",
				MaxBitrate:    "10M",
				BufferSize:    "16M",
				Profile:       "high",
				Level:         "4.1",
				GPU:           0,
			},
			Software: SoftwareEncoder{
				Codec:   "libx264",
				Preset:  "ultrafast",
				CRF:     23,
				Threads: 0,
			},
			AudioCodec:   defaultAudioCodec,
			AudioBitrate: defaultAudioBitrate,
		},
		Render: Render{
			BackgroundColor:         defaultBackgroundColor,
			Profiles:                []string{"short_form", "long_form"},
			FallbackDurationSeconds: defaultFallbackDuration,
			MaxDurationSeconds:      defaultMaxDuration,
		},
		Server: Server{
			MaxUploadMiB:         defaultMaxUploadMiB,
			RateLimitPerMinute:   defaultRateLimitPerMinute,
			MaxConcurrent:        defaultMaxConcurrent,
			WorkspaceMaxAgeHours: defaultWorkspaceMaxAgeHours,
			OutputRetentionDays:  defaultOutputRetentionDays,
			JobHistory:           defaultJobHistory,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

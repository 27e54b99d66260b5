package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all focusd environment variables.
const EnvPrefix = "FOCUSD_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	CoachBaseURL string `yaml:"coach_base_url"`
	DBPath       string `yaml:"db_path"`
	AudioDir     string `yaml:"audio_dir"`

	ScreenInterval string `yaml:"screen_interval"`
	CameraInterval string `yaml:"camera_interval"`
	CooldownWindow string `yaml:"cooldown_window"`

	SampleRate        int     `yaml:"sample_rate"`
	SpeechThreshold   float64 `yaml:"speech_threshold"`
	ProbeInterval     string  `yaml:"probe_interval"`
	SilenceStop       string  `yaml:"silence_stop"`
	MinRecording      string  `yaml:"min_recording"`
	MaxRecording      string  `yaml:"max_recording"`
	MinRecordingBytes int     `yaml:"min_recording_bytes"`
	ToggleDebounce    string  `yaml:"toggle_debounce"`

	RevealInterval string `yaml:"reveal_interval"`
	ClearGrace     string `yaml:"clear_grace"`
	ResumeDelay    string `yaml:"resume_delay"`

	// CaptureAutostart lists the capture kinds ("screen", "camera") started
	// at boot without an explicit API call.
	CaptureAutostart []string `yaml:"capture_autostart"`

	RetentionDays         int    `yaml:"retention_days"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secret, env var only, never serialized to YAML.
	CoachAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            "127.0.0.1:8080",
		CoachBaseURL:          "http://127.0.0.1:5000",
		DBPath:                "data/focusd.db",
		AudioDir:              "data/clips",
		ScreenInterval:        "2s",
		CameraInterval:        "2s",
		CooldownWindow:        "60s",
		SampleRate:            16000,
		SpeechThreshold:       0.01,
		ProbeInterval:         "150ms",
		SilenceStop:           "1200ms",
		MinRecording:          "500ms",
		MaxRecording:          "30s",
		MinRecordingBytes:     2000,
		ToggleDebounce:        "300ms",
		RevealInterval:        "30ms",
		ClearGrace:            "2s",
		ResumeDelay:           "500ms",
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	cfg.CoachAPIKey = os.Getenv(EnvPrefix + "COACH_API_KEY")

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func (c *Config) ParsedScreenInterval() time.Duration {
	return durationOr(c.ScreenInterval, 2*time.Second)
}

func (c *Config) ParsedCameraInterval() time.Duration {
	return durationOr(c.CameraInterval, 2*time.Second)
}

func (c *Config) ParsedCooldownWindow() time.Duration {
	return durationOr(c.CooldownWindow, 60*time.Second)
}

func (c *Config) ParsedProbeInterval() time.Duration {
	return durationOr(c.ProbeInterval, 150*time.Millisecond)
}

func (c *Config) ParsedSilenceStop() time.Duration {
	return durationOr(c.SilenceStop, 1200*time.Millisecond)
}

func (c *Config) ParsedMinRecording() time.Duration {
	return durationOr(c.MinRecording, 500*time.Millisecond)
}

func (c *Config) ParsedMaxRecording() time.Duration {
	return durationOr(c.MaxRecording, 30*time.Second)
}

func (c *Config) ParsedToggleDebounce() time.Duration {
	return durationOr(c.ToggleDebounce, 300*time.Millisecond)
}

func (c *Config) ParsedRevealInterval() time.Duration {
	return durationOr(c.RevealInterval, 30*time.Millisecond)
}

func (c *Config) ParsedClearGrace() time.Duration {
	return durationOr(c.ClearGrace, 2*time.Second)
}

func (c *Config) ParsedResumeDelay() time.Duration {
	return durationOr(c.ResumeDelay, 500*time.Millisecond)
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	stringOverrides := map[string]*string{
		"LISTEN_ADDR":             &cfg.ListenAddr,
		"COACH_URL":               &cfg.CoachBaseURL,
		"DB_PATH":                 &cfg.DBPath,
		"AUDIO_DIR":               &cfg.AudioDir,
		"SCREEN_INTERVAL":         &cfg.ScreenInterval,
		"CAMERA_INTERVAL":         &cfg.CameraInterval,
		"COOLDOWN_WINDOW":         &cfg.CooldownWindow,
		"PROBE_INTERVAL":          &cfg.ProbeInterval,
		"SILENCE_STOP":            &cfg.SilenceStop,
		"MIN_RECORDING":           &cfg.MinRecording,
		"MAX_RECORDING":           &cfg.MaxRecording,
		"TOGGLE_DEBOUNCE":         &cfg.ToggleDebounce,
		"REVEAL_INTERVAL":         &cfg.RevealInterval,
		"CLEAR_GRACE":             &cfg.ClearGrace,
		"RESUME_DELAY":            &cfg.ResumeDelay,
		"GDRIVE_FOLDER_ID":        &cfg.GDriveFolderID,
		"GOOGLE_CREDENTIALS_FILE": &cfg.GoogleCredentialsFile,
	}
	for key, dst := range stringOverrides {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.SampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIN_RECORDING_BYTES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.MinRecordingBytes = n
		}
	}
	if v := os.Getenv(EnvPrefix + "RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.RetentionDays = n
		}
	}
	if v := os.Getenv(EnvPrefix + "SPEECH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			cfg.SpeechThreshold = f
		}
	}
	if v := os.Getenv(EnvPrefix + "CAPTURE_AUTOSTART"); v != "" {
		cfg.CaptureAutostart = splitList(v)
	}
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.CoachAPIKey == "" {
		warnings = append(warnings, "Coach API key not configured. Set "+EnvPrefix+"COACH_API_KEY if the coach service requires one.")
	}
	if cfg.CoachBaseURL == "" {
		warnings = append(warnings, "Coach base URL is empty, using default http://127.0.0.1:5000.")
		cfg.CoachBaseURL = "http://127.0.0.1:5000"
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold >= 1 {
		warnings = append(warnings, fmt.Sprintf("Speech threshold %g outside (0, 1), using default 0.01.", cfg.SpeechThreshold))
		cfg.SpeechThreshold = 0.01
	}

	durations := map[string]string{
		"screen_interval": cfg.ScreenInterval,
		"camera_interval": cfg.CameraInterval,
		"cooldown_window": cfg.CooldownWindow,
		"probe_interval":  cfg.ProbeInterval,
		"silence_stop":    cfg.SilenceStop,
		"min_recording":   cfg.MinRecording,
		"max_recording":   cfg.MaxRecording,
		"toggle_debounce": cfg.ToggleDebounce,
		"reveal_interval": cfg.RevealInterval,
		"clear_grace":     cfg.ClearGrace,
		"resume_delay":    cfg.ResumeDelay,
	}
	for name, raw := range durations {
		if _, err := time.ParseDuration(raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, using the built-in default.", name, raw))
		}
	}

	for _, kind := range cfg.CaptureAutostart {
		if kind != "screen" && kind != "camera" {
			warnings = append(warnings, fmt.Sprintf("Unknown capture_autostart kind %q, ignoring.", kind))
		}
	}

	return warnings
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "COACH_URL", "DB_PATH", "AUDIO_DIR",
		"SCREEN_INTERVAL", "CAMERA_INTERVAL", "COOLDOWN_WINDOW",
		"PROBE_INTERVAL", "SILENCE_STOP", "MIN_RECORDING", "MAX_RECORDING",
		"MIN_RECORDING_BYTES", "TOGGLE_DEBOUNCE", "REVEAL_INTERVAL",
		"CLEAR_GRACE", "RESUME_DELAY", "SAMPLE_RATE", "SPEECH_THRESHOLD",
		"CAPTURE_AUTOSTART", "RETENTION_DAYS",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE", "COACH_API_KEY",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("expected default listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.CoachBaseURL != "http://127.0.0.1:5000" {
		t.Fatalf("expected default coach_base_url, got %q", cfg.CoachBaseURL)
	}
	if cfg.DBPath != "data/focusd.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.SampleRate != 16000 {
		t.Fatalf("expected default sample_rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.SpeechThreshold != 0.01 {
		t.Fatalf("expected default speech_threshold 0.01, got %g", cfg.SpeechThreshold)
	}
	if cfg.MinRecordingBytes != 2000 {
		t.Fatalf("expected default min_recording_bytes 2000, got %d", cfg.MinRecordingBytes)
	}

	if got := cfg.ParsedScreenInterval(); got != 2*time.Second {
		t.Fatalf("expected 2s screen interval, got %s", got)
	}
	if got := cfg.ParsedCooldownWindow(); got != 60*time.Second {
		t.Fatalf("expected 60s cooldown window, got %s", got)
	}
	if got := cfg.ParsedProbeInterval(); got != 150*time.Millisecond {
		t.Fatalf("expected 150ms probe interval, got %s", got)
	}
	if got := cfg.ParsedSilenceStop(); got != 1200*time.Millisecond {
		t.Fatalf("expected 1200ms silence stop, got %s", got)
	}
	if got := cfg.ParsedRevealInterval(); got != 30*time.Millisecond {
		t.Fatalf("expected 30ms reveal interval, got %s", got)
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
listen_addr: 0.0.0.0:9090
coach_base_url: http://coach.internal:5000
db_path: /custom/db.sqlite
audio_dir: /custom/clips
screen_interval: 5s
cooldown_window: 90s
speech_threshold: 0.02
max_recording: 45s
capture_autostart: [screen]
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:9090" {
		t.Fatalf("expected yaml listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.CoachBaseURL != "http://coach.internal:5000" {
		t.Fatalf("expected yaml coach_base_url, got %q", cfg.CoachBaseURL)
	}
	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if got := cfg.ParsedScreenInterval(); got != 5*time.Second {
		t.Fatalf("expected yaml screen interval 5s, got %s", got)
	}
	if got := cfg.ParsedCameraInterval(); got != 2*time.Second {
		t.Fatalf("expected default camera interval 2s, got %s", got)
	}
	if got := cfg.ParsedCooldownWindow(); got != 90*time.Second {
		t.Fatalf("expected yaml cooldown window 90s, got %s", got)
	}
	if cfg.SpeechThreshold != 0.02 {
		t.Fatalf("expected yaml speech_threshold, got %g", cfg.SpeechThreshold)
	}
	if got := cfg.ParsedMaxRecording(); got != 45*time.Second {
		t.Fatalf("expected yaml max recording 45s, got %s", got)
	}
	if !reflect.DeepEqual(cfg.CaptureAutostart, []string{"screen"}) {
		t.Fatalf("expected yaml capture_autostart, got %v", cfg.CaptureAutostart)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /from/yaml
screen_interval: 4s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"SCREEN_INTERVAL", "7s")
	t.Setenv(EnvPrefix+"SPEECH_THRESHOLD", "0.05")
	t.Setenv(EnvPrefix+"CAPTURE_AUTOSTART", "screen, camera")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env db_path, got %q", cfg.DBPath)
	}
	if got := cfg.ParsedScreenInterval(); got != 7*time.Second {
		t.Fatalf("expected env screen interval 7s, got %s", got)
	}
	if cfg.SpeechThreshold != 0.05 {
		t.Fatalf("expected env speech_threshold 0.05, got %g", cfg.SpeechThreshold)
	}
	if !reflect.DeepEqual(cfg.CaptureAutostart, []string{"screen", "camera"}) {
		t.Fatalf("expected env capture_autostart, got %v", cfg.CaptureAutostart)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"COACH_API_KEY", "secret-key")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("coach_api_key: from-yaml\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CoachAPIKey != "secret-key" {
		t.Fatalf("expected secret from env, got %q", cfg.CoachAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"SILENCE_STOP", "not-a-duration")
	t.Setenv(EnvPrefix+"CAPTURE_AUTOSTART", "screen,keyboard")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var sawAPIKey, sawDuration, sawKind bool
	for _, w := range warnings {
		if strings.Contains(w, "COACH_API_KEY") {
			sawAPIKey = true
		}
		if strings.Contains(w, "silence_stop") {
			sawDuration = true
		}
		if strings.Contains(w, "keyboard") {
			sawKind = true
		}
	}
	if !sawAPIKey {
		t.Errorf("expected missing API key warning, got %v", warnings)
	}
	if !sawDuration {
		t.Errorf("expected invalid duration warning, got %v", warnings)
	}
	if !sawKind {
		t.Errorf("expected unknown autostart kind warning, got %v", warnings)
	}

	if got := cfg.ParsedSilenceStop(); got != 1200*time.Millisecond {
		t.Fatalf("expected fallback silence stop, got %s", got)
	}
}

func TestThresholdOutOfRangeFallsBack(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("speech_threshold: 3.5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, warnings, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SpeechThreshold != 0.01 {
		t.Fatalf("expected fallback threshold 0.01, got %g", cfg.SpeechThreshold)
	}

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "threshold") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected threshold warning, got %v", warnings)
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed for missing file: %v", err)
	}
	if cfg.DBPath != "data/focusd.db" {
		t.Fatalf("expected defaults for missing file, got %q", cfg.DBPath)
	}
}

func TestMalformedYAMLFails(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("db_path: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := Load(configPath); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}

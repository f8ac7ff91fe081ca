package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.APIBase != "http://localhost:8080/api" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval())
	}
	if cfg.TypingDebounce() != 2*time.Second {
		t.Errorf("TypingDebounce = %v, want 2s", cfg.TypingDebounce())
	}
	if !cfg.SoundEnabled {
		t.Error("SoundEnabled should default to true")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SUPTUI_API_BASE", "https://support.example.com/api")
	t.Setenv("SUPTUI_DATA_DIR", "/tmp/suptui-test")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.APIBase != "https://support.example.com/api" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.DataDirectory != "/tmp/suptui-test" {
		t.Errorf("DataDirectory = %q", cfg.DataDirectory)
	}
}

func TestEnvVarDetection(t *testing.T) {
	t.Setenv("SUPTUI_API_BASE", "http://localhost:9000/api")
	t.Setenv("SUPTUI_DATA_DIR", "")

	if !HasAnyEnvVar() {
		t.Error("HasAnyEnvVar should be true with SUPTUI_API_BASE set")
	}
	if HasAllEnvVars() {
		t.Error("HasAllEnvVars should be false without SUPTUI_DATA_DIR")
	}
	if got := GetMissingEnvVar(); got != "SUPTUI_DATA_DIR" {
		t.Errorf("GetMissingEnvVar = %q", got)
	}
}

func TestUserConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	want := &UserConfig{
		API: APIConfig{BaseURL: "http://localhost:9999/api"},
		Widget: WidgetConfig{
			PollIntervalSecs:   5,
			TypingDebounceSecs: 3,
			SoundEnabled:       false,
		},
	}
	if err := SaveUserConfig(want, dir); err != nil {
		t.Fatalf("SaveUserConfig: %v", err)
	}

	got, err := LoadUserConfig(dir)
	if err != nil {
		t.Fatalf("LoadUserConfig: %v", err)
	}
	if got.API.BaseURL != want.API.BaseURL {
		t.Errorf("BaseURL = %q, want %q", got.API.BaseURL, want.API.BaseURL)
	}
	if got.Widget.PollIntervalSecs != 5 || got.Widget.TypingDebounceSecs != 3 {
		t.Errorf("widget intervals = %+v", got.Widget)
	}
	if got.Widget.SoundEnabled {
		t.Error("SoundEnabled should round-trip as false")
	}
}

func TestLoadUserConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadUserConfig(dir)
	if err != nil {
		t.Fatalf("LoadUserConfig: %v", err)
	}
	if cfg.API.BaseURL == "" {
		t.Error("default user config should carry an API base URL")
	}
	if !FileExists(dir + "/config.toml") {
		t.Error("LoadUserConfig should create a default config.toml")
	}
}

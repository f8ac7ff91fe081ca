package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type APIConfig struct {
	BaseURL string `toml:"base_url"`
}

type WidgetConfig struct {
	PollIntervalSecs   int  `toml:"poll_interval_secs"`
	TypingDebounceSecs int  `toml:"typing_debounce_secs"`
	SoundEnabled       bool `toml:"sound_enabled"`
}

type UserConfig struct {
	API    APIConfig    `toml:"api"`
	Widget WidgetConfig `toml:"widget"`
}

type Config struct {
	DataDirectory      string
	APIBase            string
	PollIntervalSecs   int
	TypingDebounceSecs int
	SoundEnabled       bool
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

func (c *Config) TypingDebounce() time.Duration {
	return time.Duration(c.TypingDebounceSecs) * time.Second
}

func (c *Config) applyEnvOverrides() {
	if base := os.Getenv("SUPTUI_API_BASE"); base != "" {
		c.APIBase = base
	}
	if dataDir := os.Getenv("SUPTUI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("SUPTUI_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log in the data directory when
// SUPTUI_DEBUG is set. A TUI cannot log to stdout, so all diagnostics
// (including transport failures during polling) go here.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (SUPTUI_DEBUG=%s) ===", os.Getenv("SUPTUI_DEBUG"))
}

func HasAllEnvVars() bool {
	return os.Getenv("SUPTUI_API_BASE") != "" &&
		os.Getenv("SUPTUI_DATA_DIR") != ""
}

func HasAnyEnvVar() bool {
	return os.Getenv("SUPTUI_API_BASE") != "" ||
		os.Getenv("SUPTUI_DATA_DIR") != ""
}

func GetMissingEnvVar() string {
	if os.Getenv("SUPTUI_API_BASE") == "" {
		return "SUPTUI_API_BASE"
	}
	if os.Getenv("SUPTUI_DATA_DIR") == "" {
		return "SUPTUI_DATA_DIR"
	}
	return ""
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	if HasAllEnvVars() {
		cfg.applyEnvOverrides()
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory

		userCfg, err := LoadUserConfig(cfg.DataDir())
		if err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
		cfg.APIBase = userCfg.API.BaseURL
		if userCfg.Widget.PollIntervalSecs > 0 {
			cfg.PollIntervalSecs = userCfg.Widget.PollIntervalSecs
		}
		if userCfg.Widget.TypingDebounceSecs > 0 {
			cfg.TypingDebounceSecs = userCfg.Widget.TypingDebounceSecs
		}
		cfg.SoundEnabled = userCfg.Widget.SoundEnabled
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		DataDirectory:      "~/.local/share/suptui",
		APIBase:            "http://localhost:8080/api",
		PollIntervalSecs:   2,
		TypingDebounceSecs: 2,
		SoundEnabled:       true,
	}
}

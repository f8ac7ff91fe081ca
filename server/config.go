// Package server implements the chat API the widget polls: session
// allocation, message history, visitor messages, operator replies and
// typing flags, backed by SQLite.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TypingTTL is how long a typing flag stays truthy after its last
// refresh. The widget republishes while the visitor keeps typing.
const TypingTTL = 5 * time.Second

// Config holds all server configuration, read from the environment.
type Config struct {
	Port          string
	DBPath        string
	OperatorKeys  []string
	InactiveDays  int
	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/support.db"),
		OperatorKeys:  splitKeys(getEnv("OPERATOR_API_KEYS", "")),
		InactiveDays:  getEnvInt("CHAT_INACTIVE_DAYS", 3),
		SweepInterval: time.Hour,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.InactiveDays <= 0 {
		return fmt.Errorf("CHAT_INACTIVE_DAYS must be > 0")
	}
	return nil
}

// MaxIdle is how long a chat may go without activity before the sweeper
// deactivates it.
func (c *Config) MaxIdle() time.Duration {
	return time.Duration(c.InactiveDays) * 24 * time.Hour
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration, shared by the chat client
// and the supportd service.
type Config struct {
	// Client side.
	APIBaseURL     string
	RequestTimeout time.Duration
	HealthTimeout  time.Duration
	Transcript     TranscriptConfig

	// supportd side.
	Port        string
	DBPath      string
	FrontendURL string
}

// TranscriptConfig controls NDJSON transcript logging in the client.
type TranscriptConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		APIBaseURL:     getEnv("CHAT_API_URL", "http://127.0.0.1:5000"),
		RequestTimeout: getEnvDuration("CHAT_REQUEST_TIMEOUT", 30*time.Second),
		HealthTimeout:  getEnvDuration("CHAT_HEALTH_TIMEOUT", 5*time.Second),
		Transcript: TranscriptConfig{
			Enabled:       getEnvBool("TRANSCRIPT_ENABLED", false),
			Dir:           getEnv("TRANSCRIPT_DIR", "./data/transcripts"),
			GlobalEnabled: getEnvBool("TRANSCRIPT_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("TRANSCRIPT_GLOBAL_PATH", "./data/transcripts/all.ndjson"),
			QueueSize:     queueSize,
		},
		Port:        getEnv("PORT", "5000"),
		DBPath:      getEnv("DB_PATH", "./data/support.db"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("CHAT_API_URL cannot be empty")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("CHAT_API_URL must start with http:// or https://")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("CHAT_REQUEST_TIMEOUT must be > 0")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty")
	}
	if c.Transcript.GlobalEnabled && c.Transcript.GlobalPath == "" {
		return fmt.Errorf("TRANSCRIPT_GLOBAL_PATH cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

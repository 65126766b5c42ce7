// Package config provides client configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

// Config holds all client configuration.
type Config struct {
	// ServerURL is the game server origin, e.g. http://localhost:3001.
	ServerURL string `yaml:"server_url"`
	// APIBaseURL defaults to ServerURL.
	APIBaseURL string   `yaml:"api_base_url"`
	WSPath     string   `yaml:"ws_path"`
	PollPath   string   `yaml:"poll_path"`
	Transports []string `yaml:"transports"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`

	ListenAddr       string `yaml:"listen_addr"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	LeaderboardLimit int    `yaml:"leaderboard_limit"`
}

func Default() *Config {
	return &Config{
		ServerURL:        "http://localhost:3001",
		WSPath:           "/ws",
		PollPath:         "/poll",
		Transports:       []string{TransportWebSocket, TransportPolling},
		DialTimeout:      10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PollTimeout:      25 * time.Second,
		ListenAddr:       "127.0.0.1:8080",
		LogLevel:         "info",
		LogFormat:        "json",
		LeaderboardLimit: 20,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = cfg.ServerURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerURL = getEnv("SERVER_URL", c.ServerURL)
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.WSPath = getEnv("WS_PATH", c.WSPath)
	c.PollPath = getEnv("POLL_PATH", c.PollPath)
	c.Transports = getEnvList("TRANSPORTS", c.Transports)
	c.DialTimeout = getEnvDuration("DIAL_TIMEOUT", c.DialTimeout)
	c.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", c.WriteTimeout)
	c.PollTimeout = getEnvDuration("POLL_TIMEOUT", c.PollTimeout)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LeaderboardLimit = getEnvInt("LEADERBOARD_LIMIT", c.LeaderboardLimit)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("SERVER_URL cannot be empty")
	}
	if len(c.Transports) == 0 {
		return errors.New("TRANSPORTS cannot be empty")
	}
	for _, t := range c.Transports {
		switch t {
		case TransportWebSocket, TransportPolling:
		default:
			return fmt.Errorf("unknown transport %q", t)
		}
	}
	if c.DialTimeout <= 0 || c.WriteTimeout <= 0 || c.PollTimeout <= 0 {
		return errors.New("timeouts must be > 0")
	}
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR cannot be empty")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.LeaderboardLimit <= 0 {
		return errors.New("LEADERBOARD_LIMIT must be > 0")
	}
	return nil
}

// WebSocketURL is the ws:// or wss:// address of the event socket.
func (c *Config) WebSocketURL() string {
	base := strings.TrimRight(c.ServerURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + c.WSPath
}

func (c *Config) PollURL() string {
	return strings.TrimRight(c.ServerURL, "/") + c.PollPath
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

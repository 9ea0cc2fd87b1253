package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roomchat/internal/relay"
)

// Config holds the server settings.  Values come from an optional YAML file,
// then environment variables, then command-line flags.
type Config struct {
	// Addr is the TCP line-protocol listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// DequeueTimeout bounds each wait of a receiver's delivery loop.
	DequeueTimeout time.Duration `yaml:"dequeue_timeout"`
	// WriteTimeout bounds each send to a client.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	WebSocket struct {
		// Addr enables the WebSocket listener when non-empty.
		Addr           string   `yaml:"addr"`
		Path           string   `yaml:"path"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"websocket"`

	NATS struct {
		// URL enables cross-instance relaying when non-empty.
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() Config {
	var cfg Config
	cfg.Sanitize()
	return cfg
}

// Sanitize fills unset or invalid fields with defaults.
func (c *Config) Sanitize() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = "/ws"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = relay.DefaultSubject
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		c.Log.Level = "info"
	}
	switch strings.ToLower(c.Log.Format) {
	case "json":
		c.Log.Format = "json"
	default:
		c.Log.Format = "text"
	}
}

// LoadConfig reads a YAML config file.  Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ApplyEnv overrides cfg from CHAT_* environment variables.  Unparseable
// values are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CHAT_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("CHAT_DEQUEUE_TIMEOUT"); v != "" {
		c.DequeueTimeout = parseDuration(v, c.DequeueTimeout)
	}
	if v := os.Getenv("CHAT_WRITE_TIMEOUT"); v != "" {
		c.WriteTimeout = parseDuration(v, c.WriteTimeout)
	}
	if v := os.Getenv("CHAT_WS_ADDR"); v != "" {
		c.WebSocket.Addr = v
	}
	if v := os.Getenv("CHAT_WS_PATH"); v != "" {
		c.WebSocket.Path = v
	}
	if v := os.Getenv("CHAT_WS_ALLOWED_ORIGINS"); v != "" {
		c.WebSocket.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHAT_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("CHAT_NATS_SUBJECT"); v != "" {
		c.NATS.Subject = v
	}
	if v := os.Getenv("CHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHAT_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	c.Sanitize()
}

// SetPort points Addr at port on all interfaces.
func (c *Config) SetPort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	c.Addr = ":" + strconv.Itoa(n)
	return nil
}

// parseDuration accepts Go durations ("750ms") or whole seconds ("2").
func parseDuration(v string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func parseList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

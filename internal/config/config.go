package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clubportal/internal/faultinject"
	"clubportal/internal/passcode"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Join    JoinConfig    `yaml:"join"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
	FakeAPI FakeAPIConfig `yaml:"fakeapi"`

	// CreateClubURL is where the "create a new club" prompt links to.
	CreateClubURL string `yaml:"create_club_url"`

	// Faults are injected into outbound club API calls. Leave empty in
	// production.
	Faults []faultinject.Fault `yaml:"faults"`
}

// ServerConfig contains portal HTTP server settings
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// APIConfig points at the remote club API
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// The circuit opens after BreakerFailures consecutive transport errors
	// or 5xx responses. Zero disables the breaker.
	BreakerFailures        uint32 `yaml:"breaker_failures"`
	BreakerCooldownSeconds int    `yaml:"breaker_cooldown_seconds"`
}

// JoinConfig tunes the join workflow
type JoinConfig struct {
	PasscodeLength    int `yaml:"passcode_length"`
	TimeoutSeconds    int `yaml:"timeout_seconds"`
	AttemptsPerMinute int `yaml:"attempts_per_minute"`
}

// SessionConfig contains browser session and request protection settings
type SessionConfig struct {
	CSRFKey           string   `yaml:"csrf_key"` // 32 bytes, hex encoded
	SecureCookies     bool     `yaml:"secure_cookies"`
	TTLMinutes        int      `yaml:"ttl_minutes"`
	TrustedOrigins    []string `yaml:"trusted_origins"`
	RequestsPerSecond float64  `yaml:"requests_per_second"` // per client IP
	Burst             int      `yaml:"burst"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// TracingConfig controls the OTLP trace exporter
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // host:port of the OTLP/HTTP collector
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// FakeAPIConfig configures the development stand-in for the club API
type FakeAPIConfig struct {
	Port     int    `yaml:"port"`
	SeedFile string `yaml:"seed_file"`
}

// Load reads configuration from a YAML file. An empty path skips the file
// and starts from defaults.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Server
	if val := os.Getenv("PORTAL_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("PORTAL_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Club API
	if val := os.Getenv("CLUB_API_URL"); val != "" {
		c.API.BaseURL = val
	}

	// Join
	if val := os.Getenv("PASSCODE_LENGTH"); val != "" {
		fmt.Sscanf(val, "%d", &c.Join.PasscodeLength)
	}

	// Session
	if val := os.Getenv("CSRF_KEY"); val != "" {
		c.Session.CSRFKey = val
	}
	if val := os.Getenv("SECURE_COOKIES"); val != "" {
		c.Session.SecureCookies = val == "true" || val == "1"
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Tracing
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
		c.Tracing.Enabled = true
	}
	if val := os.Getenv("OTEL_SERVICE_NAME"); val != "" {
		c.Tracing.ServiceName = val
	}

	if val := os.Getenv("CREATE_CLUB_URL"); val != "" {
		c.CreateClubURL = val
	}

	// Fake API
	if val := os.Getenv("FAKEAPI_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.FakeAPI.Port)
	}
	if val := os.Getenv("FAKEAPI_SEED"); val != "" {
		c.FakeAPI.SeedFile = val
	}
}

// Validate fills defaults and checks that the configuration is usable
func (c *Config) Validate() error {
	// Server
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}

	// Club API
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000"
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid club API base URL: %q", c.API.BaseURL)
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 30
	}
	if c.API.BreakerCooldownSeconds <= 0 {
		c.API.BreakerCooldownSeconds = 30
	}

	// Join
	if c.Join.PasscodeLength == 0 {
		c.Join.PasscodeLength = passcode.DefaultLength
	}
	if err := passcode.ValidateLength(c.Join.PasscodeLength); err != nil {
		return err
	}
	if c.Join.TimeoutSeconds <= 0 {
		c.Join.TimeoutSeconds = 15
	}
	if c.Join.AttemptsPerMinute == 0 {
		c.Join.AttemptsPerMinute = 5
	}
	if c.Join.AttemptsPerMinute < 0 {
		return fmt.Errorf("join attempts per minute must not be negative")
	}

	// Session
	if c.Session.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	}
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 30
	}
	if c.Session.RequestsPerSecond == 0 {
		c.Session.RequestsPerSecond = 20
	}
	if c.Session.Burst <= 0 {
		c.Session.Burst = 40
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}

	// Tracing
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "clubportal"
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	// Fake API
	if c.FakeAPI.Port == 0 {
		c.FakeAPI.Port = 8000
	}

	for _, f := range c.Faults {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// CSRFKeyBytes decodes the hex CSRF key. gorilla/csrf needs 32 bytes.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.Session.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("csrf key must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("csrf key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// GetServerAddress returns the portal listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.API.BreakerCooldownSeconds) * time.Second
}

func (c *Config) JoinTimeout() time.Duration {
	return time.Duration(c.Join.TimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

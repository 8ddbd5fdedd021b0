// Package config provides environment-based configuration for the match
// engine, with an optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the match engine.
type Config struct {
	// Database configuration
	DatabaseDSN string

	// Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Server configuration
	APIHost string
	APIPort int

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// CORS origins allowed to call the API (dashboard hosts)
	AllowedOrigins []string

	// Engine configuration
	Engine EngineConfig

	// Notify configuration
	Notify NotifyConfig
}

// EngineConfig holds tuning for the background evaluation loops.
type EngineConfig struct {
	// ResponseTTL is how long an unanswered invitation lives before the
	// sweeper expires it.
	ResponseTTL time.Duration
	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval time.Duration
	// EvaluateInterval is how often pending invitations are re-evaluated.
	EvaluateInterval time.Duration
	// ForwardInterval is how often the reassignment queue is drained.
	ForwardInterval time.Duration
	// DispatchMaxAttempts bounds notification delivery attempts per channel.
	DispatchMaxAttempts int
	// DispatchBackoff is the initial delay between delivery attempts.
	DispatchBackoff time.Duration
}

// NotifyConfig holds endpoints of external delivery collaborators.
type NotifyConfig struct {
	// MailerEndpoint receives email notification payloads.
	MailerEndpoint string
	// SourcingEndpoint receives forwarded reassignment requests.
	SourcingEndpoint string
}

// Load reads configuration from environment variables, then applies the YAML
// overlay named by MATCH_ENGINE_CONFIG when set.
func Load() (*Config, error) {
	cfg := fromEnv()

	if path := os.Getenv("MATCH_ENGINE_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/matchengine?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 8080),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  []string{getEnv("ALLOWED_ORIGIN", "*")},
		Engine: EngineConfig{
			ResponseTTL:         getDurationEnv("RESPONSE_TTL", 72*time.Hour),
			SweepInterval:       getDurationEnv("SWEEP_INTERVAL", time.Minute),
			EvaluateInterval:    getDurationEnv("EVALUATE_INTERVAL", time.Minute),
			ForwardInterval:     getDurationEnv("FORWARD_INTERVAL", 15*time.Second),
			DispatchMaxAttempts: getIntEnv("DISPATCH_MAX_ATTEMPTS", 3),
			DispatchBackoff:     getDurationEnv("DISPATCH_BACKOFF", 2*time.Second),
		},
		Notify: NotifyConfig{
			MailerEndpoint:   getEnv("MAILER_ENDPOINT", ""),
			SourcingEndpoint: getEnv("SOURCING_ENDPOINT", ""),
		},
	}
}

// duration wraps time.Duration so YAML overlays can use "30s" style strings.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

// overlay mirrors Config for the YAML file. Zero values leave the
// environment-derived value in place, so the file only needs the keys it
// changes.
type overlay struct {
	DatabaseDSN     string   `yaml:"database_dsn"`
	JWTSecret       string   `yaml:"jwt_secret"`
	JWTExpiry       duration `yaml:"jwt_expiry"`
	APIHost         string   `yaml:"api_host"`
	APIPort         int      `yaml:"api_port"`
	ShutdownTimeout duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string `yaml:"allowed_origins"`

	Engine struct {
		ResponseTTL         duration `yaml:"response_ttl"`
		SweepInterval       duration `yaml:"sweep_interval"`
		EvaluateInterval    duration `yaml:"evaluate_interval"`
		ForwardInterval     duration `yaml:"forward_interval"`
		DispatchMaxAttempts int      `yaml:"dispatch_max_attempts"`
		DispatchBackoff     duration `yaml:"dispatch_backoff"`
	} `yaml:"engine"`

	Notify struct {
		MailerEndpoint   string `yaml:"mailer_endpoint"`
		SourcingEndpoint string `yaml:"sourcing_endpoint"`
	} `yaml:"notify"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if o.DatabaseDSN != "" {
		c.DatabaseDSN = o.DatabaseDSN
	}
	if o.JWTSecret != "" {
		c.JWTSecret = o.JWTSecret
	}
	if o.JWTExpiry != 0 {
		c.JWTExpiry = time.Duration(o.JWTExpiry)
	}
	if o.APIHost != "" {
		c.APIHost = o.APIHost
	}
	if o.APIPort != 0 {
		c.APIPort = o.APIPort
	}
	if o.ShutdownTimeout != 0 {
		c.ShutdownTimeout = time.Duration(o.ShutdownTimeout)
	}
	if len(o.AllowedOrigins) > 0 {
		c.AllowedOrigins = o.AllowedOrigins
	}
	if o.Engine.ResponseTTL != 0 {
		c.Engine.ResponseTTL = time.Duration(o.Engine.ResponseTTL)
	}
	if o.Engine.SweepInterval != 0 {
		c.Engine.SweepInterval = time.Duration(o.Engine.SweepInterval)
	}
	if o.Engine.EvaluateInterval != 0 {
		c.Engine.EvaluateInterval = time.Duration(o.Engine.EvaluateInterval)
	}
	if o.Engine.ForwardInterval != 0 {
		c.Engine.ForwardInterval = time.Duration(o.Engine.ForwardInterval)
	}
	if o.Engine.DispatchMaxAttempts != 0 {
		c.Engine.DispatchMaxAttempts = o.Engine.DispatchMaxAttempts
	}
	if o.Engine.DispatchBackoff != 0 {
		c.Engine.DispatchBackoff = time.Duration(o.Engine.DispatchBackoff)
	}
	if o.Notify.MailerEndpoint != "" {
		c.Notify.MailerEndpoint = o.Notify.MailerEndpoint
	}
	if o.Notify.SourcingEndpoint != "" {
		c.Notify.SourcingEndpoint = o.Notify.SourcingEndpoint
	}

	return nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Engine.ResponseTTL <= 0 {
		return fmt.Errorf("response TTL must be positive, got %v", c.Engine.ResponseTTL)
	}
	if c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", c.Engine.SweepInterval)
	}
	if c.Engine.EvaluateInterval <= 0 {
		return fmt.Errorf("evaluate interval must be positive, got %v", c.Engine.EvaluateInterval)
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	cfg := fromEnv()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-secret-key-min-32-chars"
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

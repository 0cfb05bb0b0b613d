package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML file layered under the environment.
const ConfigFileEnv = "CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string `yaml:"server_address" env:"SERVER_ADDRESS"`
	Environment     string `yaml:"environment" env:"ENVIRONMENT"`
	InitialLocation string `yaml:"initial_location" env:"INITIAL_LOCATION"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda" env:"IS_LAMBDA"`

	// Logging
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	Supabase  Supabase  `yaml:"supabase"`
	Transport Transport `yaml:"transport"`
	AWS       AWS       `yaml:"aws"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Routes    Routes    `yaml:"routes"`

	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// Feature flags
	EnableMetrics bool `yaml:"enable_metrics" env:"ENABLE_METRICS"`
	EnableTracing bool `yaml:"enable_tracing" env:"ENABLE_TRACING"`
	PublishEvents bool `yaml:"publish_events" env:"PUBLISH_EVENTS"`
}

// Supabase locates the project the client talks to.
type Supabase struct {
	URL         string `yaml:"url" env:"SUPABASE_URL"`
	AnonKey     string `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	GraphQLPath string `yaml:"graphql_path" env:"SUPABASE_GRAPHQL_PATH"`
	ClientInfo  string `yaml:"client_info" env:"SUPABASE_CLIENT_INFO"`
}

// Transport tunes the HTTP link and its circuit breaker.
type Transport struct {
	Timeout          time.Duration `yaml:"timeout" env:"GRAPHQL_TIMEOUT"`
	BreakerRequests  uint32        `yaml:"breaker_max_requests" env:"BREAKER_MAX_REQUESTS"`
	BreakerInterval  time.Duration `yaml:"breaker_interval" env:"BREAKER_INTERVAL"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout" env:"BREAKER_TIMEOUT"`
	BreakerThreshold float64       `yaml:"breaker_failure_threshold" env:"BREAKER_FAILURE_THRESHOLD"`
}

// AWS holds the AWS resources the service publishes to.
type AWS struct {
	Region         string `yaml:"region" env:"AWS_REGION"`
	EventBusName   string `yaml:"event_bus_name" env:"EVENT_BUS_NAME"`
	RateLimitTable string `yaml:"rate_limit_table" env:"RATE_LIMIT_TABLE"`
}

// RateLimit bounds the public read API per client address.
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
}

// Routes is the route policy the auth reconciler applies.
type Routes struct {
	PrivatePrefixes []string `yaml:"private_prefixes" env:"PRIVATE_PATH_PREFIXES" envSeparator:","`
	AuthPrefixes    []string `yaml:"auth_prefixes" env:"AUTH_PATH_PREFIXES" envSeparator:","`
	HomePath        string   `yaml:"home_path" env:"HOME_PATH"`
	PublicRoot      string   `yaml:"public_root" env:"PUBLIC_ROOT"`
}

// Defaults returns the configuration used before any file or environment
// overlay.
func Defaults() *Config {
	return &Config{
		ServerAddress:   ":8080",
		Environment:     "development",
		InitialLocation: "/",
		LogLevel:        "info",
		Supabase: Supabase{
			GraphQLPath: "/graphql/v1",
			ClientInfo:  "blogify-go/1.0.0",
		},
		Transport: Transport{
			Timeout:          30 * time.Second,
			BreakerRequests:  5,
			BreakerInterval:  30 * time.Second,
			BreakerTimeout:   60 * time.Second,
			BreakerThreshold: 0.8,
		},
		AWS: AWS{
			Region: "us-west-2",
		},
		RateLimit: RateLimit{
			RequestsPerMinute: 120,
		},
		Routes: Routes{
			PrivatePrefixes: []string{"/home", "/update-password"},
			AuthPrefixes:    []string{"/auth"},
			HomePath:        "/home",
			PublicRoot:      "/",
		},
		AllowedOrigins: []string{"http://localhost:3000"},
		EnableMetrics:  true,
		PublishEvents:  true,
	}
}

// LoadConfig layers defaults, the YAML file named by CONFIG_FILE (when
// set) and the environment, then validates the result.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	var errs []error

	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	} else if u, err := url.Parse(c.Supabase.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SUPABASE_URL must be an absolute URL, got %q", c.Supabase.URL))
	}
	if c.Supabase.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}
	if !strings.HasPrefix(c.Supabase.GraphQLPath, "/") {
		errs = append(errs, fmt.Errorf("graphql path must start with '/', got %q", c.Supabase.GraphQLPath))
	}
	if c.Transport.BreakerThreshold <= 0 || c.Transport.BreakerThreshold > 1 {
		errs = append(errs, fmt.Errorf("breaker failure threshold must be in (0, 1], got %v", c.Transport.BreakerThreshold))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("rate limit must be positive, got %d", c.RateLimit.RequestsPerMinute))
	}
	if c.IsProduction() && c.PublishEvents && c.AWS.EventBusName == "" {
		errs = append(errs, errors.New("EVENT_BUS_NAME is required in production when events are published"))
	}

	return errors.Join(errs...)
}

// GraphQLEndpoint returns the absolute GraphQL URL.
func (c *Config) GraphQLEndpoint() string {
	return strings.TrimRight(c.Supabase.URL, "/") + c.Supabase.GraphQLPath
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "local"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

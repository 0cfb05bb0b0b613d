package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Post constraints
	MinTitleLength int
	MaxTitleLength int
	MinBodyLength  int
	MaxBodyLength  int

	// Feed
	PostsPerPage int

	// Optimistic placeholders
	ProvisionalIDPrefix  string
	AnonymousDisplayName string

	// Revalidation windows for the server execution path, in seconds
	DefaultRevalidate  int
	PostRevalidate     int
	PostListRevalidate int

	// Session
	SessionRefreshMargin time.Duration

	// Feature flags
	RefetchAfterCreate bool
	PublishPostEvents  bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MinTitleLength: 3,
		MaxTitleLength: 200,
		MinBodyLength:  10,
		MaxBodyLength:  50000,

		PostsPerPage: 5,

		ProvisionalIDPrefix:  "temp",
		AnonymousDisplayName: "You",

		DefaultRevalidate:  600,
		PostRevalidate:     60,
		PostListRevalidate: 3600,

		SessionRefreshMargin: 60 * time.Second,

		RefetchAfterCreate: true,
		PublishPostEvents:  true,
	}
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Short windows so edits show up while iterating locally
	config.DefaultRevalidate = 5
	config.PostRevalidate = 5
	config.PostListRevalidate = 5
	config.PublishPostEvents = false

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development", "local":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MinTitleLength < 0 || c.MaxTitleLength < c.MinTitleLength {
		return fmt.Errorf("invalid title bounds: %d..%d", c.MinTitleLength, c.MaxTitleLength)
	}
	if c.MinBodyLength < 0 || c.MaxBodyLength < c.MinBodyLength {
		return fmt.Errorf("invalid body bounds: %d..%d", c.MinBodyLength, c.MaxBodyLength)
	}
	if c.PostsPerPage <= 0 {
		return fmt.Errorf("posts per page must be positive, got %d", c.PostsPerPage)
	}
	if c.ProvisionalIDPrefix == "" {
		return fmt.Errorf("provisional id prefix is required")
	}
	return nil
}

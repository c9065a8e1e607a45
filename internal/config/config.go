package config

import (
	"fmt"
	"time"
)

const (
	// DefaultListenAddr is the relay's HTTP address when none is configured.
	DefaultListenAddr       = ":3000"
	DefaultVoiceID          = "Joanna"
	DefaultLogLevel         = "info"
	DefaultCORSAllowOrigins = "*"

	// DefaultProviderMaxAttempts disables SDK retries: a failed provider call
	// fails the request.
	DefaultProviderMaxAttempts = 1
)

// Config captures bootstrap configuration extracted from environment variables,
// a .env file or the injected JSON payload (`RELAY_CONFIG`). It is read once at
// startup and never mutated afterwards.
type Config struct {
	ListenAddr       string
	HealthListenAddr string // empty disables the gRPC health endpoint
	LogLevel         string
	CORSAllowOrigins string
	DefaultVoiceID   string

	// ProviderTimeout bounds a single provider call. Zero leaves calls unbounded.
	ProviderTimeout time.Duration
	// ProviderMaxAttempts caps SDK attempts per provider call, including the first.
	ProviderMaxAttempts int

	// UseStubProvider swaps AWS Polly for the deterministic stub.
	UseStubProvider bool

	// AWS Polly
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string
}

// Validate applies defaults and raises an error when required fields are missing.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.CORSAllowOrigins == "" {
		c.CORSAllowOrigins = DefaultCORSAllowOrigins
	}
	if c.DefaultVoiceID == "" {
		c.DefaultVoiceID = DefaultVoiceID
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("config: provider_timeout must not be negative, got %s", c.ProviderTimeout)
	}
	if c.ProviderMaxAttempts < 0 {
		return fmt.Errorf("config: provider_max_attempts must not be negative, got %d", c.ProviderMaxAttempts)
	}
	if c.ProviderMaxAttempts == 0 {
		c.ProviderMaxAttempts = DefaultProviderMaxAttempts
	}

	if c.UseStubProvider {
		return nil
	}
	if c.Region == "" {
		return fmt.Errorf("config: region is required (set AWS_REGION)")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("config: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	if c.SessionToken != "" && c.AccessKeyID == "" {
		return fmt.Errorf("config: AWS_SESSION_TOKEN requires static access keys")
	}
	return nil
}

// StaticCredentials reports whether explicit keys were configured. When false
// the AWS SDK default credential chain is used.
func (c Config) StaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

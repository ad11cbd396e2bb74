package config

import (
	"fmt"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 9000
	DefaultConnectRetries  = 3
	DefaultRetryInterval   = Duration(time.Second)
	DefaultUpstreamTimeout = Duration(30 * time.Second)
	DefaultURLExpiry       = Duration(time.Hour)
	DefaultMaxFileSizeMB   = 50
	DefaultSessionPrefix   = "session:"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Audit     AuditConfig     `yaml:"audit"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// ServerConfig contains the inbound listener configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns the host:port listen address.
func (c ServerConfig) Address() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// UpstreamConfig contains the AIML backend configuration.
type UpstreamConfig struct {
	// BaseURL is the single upstream base URL for all resource families.
	BaseURL string `yaml:"baseUrl"`

	// Timeout is the per-request timeout for non-streaming calls.
	Timeout Duration `yaml:"timeout"`

	// ConnectRetries is the number of attempts for connection-establishment
	// failures.
	ConnectRetries int `yaml:"connectRetries"`

	// RetryInterval is the fixed sleep between connect attempts.
	RetryInterval Duration `yaml:"retryInterval"`
}

// GetEffectiveTimeout returns the effective upstream timeout.
func (c *UpstreamConfig) GetEffectiveTimeout() time.Duration {
	if c == nil || c.Timeout <= 0 {
		return DefaultUpstreamTimeout.Duration()
	}
	return c.Timeout.Duration()
}

// GetEffectiveConnectRetries returns the effective connect attempt count.
func (c *UpstreamConfig) GetEffectiveConnectRetries() int {
	if c == nil || c.ConnectRetries <= 0 {
		return DefaultConnectRetries
	}
	return c.ConnectRetries
}

// GetEffectiveRetryInterval returns the effective sleep between attempts.
func (c *UpstreamConfig) GetEffectiveRetryInterval() time.Duration {
	if c == nil || c.RetryInterval <= 0 {
		return DefaultRetryInterval.Duration()
	}
	return c.RetryInterval.Duration()
}

// AuthConfig contains the identity provider configuration.
type AuthConfig struct {
	// JWKSUrl is the identity provider's published key set endpoint.
	JWKSUrl string `yaml:"jwksUrl"`

	// Issuer is the expected issuer claim.
	Issuer string `yaml:"issuer"`
}

// SessionConfig contains the session store (Redis) configuration.
type SessionConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// GetEffectiveKeyPrefix returns the effective session key prefix.
func (c *SessionConfig) GetEffectiveKeyPrefix() string {
	if c == nil || c.KeyPrefix == "" {
		return DefaultSessionPrefix
	}
	return c.KeyPrefix
}

// StorageConfig contains the object storage configuration.
type StorageConfig struct {
	Region        string   `yaml:"region"`
	Bucket        string   `yaml:"bucket"`
	URLExpiry     Duration `yaml:"urlExpiry"`
	MaxFileSizeMB int      `yaml:"maxFileSizeMb"`

	// AccessKeyID and SecretAccessKey override the default AWS
	// credential chain when both are set. Useful for S3-compatible
	// stores that do not speak the instance metadata service.
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string `yaml:"endpoint"`
}

// GetEffectiveURLExpiry returns the effective presigned URL expiry.
func (c *StorageConfig) GetEffectiveURLExpiry() time.Duration {
	if c == nil || c.URLExpiry <= 0 {
		return DefaultURLExpiry.Duration()
	}
	return c.URLExpiry.Duration()
}

// GetEffectiveMaxFileSizeMB returns the effective maximum upload size in MB.
func (c *StorageConfig) GetEffectiveMaxFileSizeMB() int {
	if c == nil || c.MaxFileSizeMB <= 0 {
		return DefaultMaxFileSizeMB
	}
	return c.MaxFileSizeMB
}

// AuditConfig contains the audit sink configuration.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

// GetEffectiveOutput returns the audit output destination, defaulting
// to stderr.
func (c *AuditConfig) GetEffectiveOutput() string {
	if c == nil || c.Output == "" {
		return "stderr"
	}
	return c.Output
}

// RateLimitConfig contains inbound rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return NewConfigError("upstream.baseUrl", "is required")
	}
	if _, err := url.ParseRequestURI(c.Upstream.BaseURL); err != nil {
		return NewConfigErrorWithCause("upstream.baseUrl", "is not a valid URL", err)
	}
	if c.Auth.JWKSUrl == "" {
		return NewConfigError("auth.jwksUrl", "is required")
	}
	if c.Auth.Issuer == "" {
		return NewConfigError("auth.issuer", "is required")
	}
	if c.Session.Addr == "" {
		return NewConfigError("session.addr", "is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "must be between 0 and 65535")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return NewConfigError("rateLimit.rps", "must be positive when rate limiting is enabled")
	}
	return nil
}

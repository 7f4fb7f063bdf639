package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Config holds client configuration values.
type Config struct {
	ServerURL            string        `mapstructure:"server_url" yaml:"server_url"`
	Username             string        `mapstructure:"username" yaml:"username"`
	Channel              string        `mapstructure:"channel" yaml:"channel"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	Backoff              string        `mapstructure:"backoff" yaml:"backoff"`
	MaxReconnectDelay    time.Duration `mapstructure:"max_reconnect_delay" yaml:"max_reconnect_delay"`
	DialTimeout          time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	DedupCapacity        int           `mapstructure:"dedup_capacity" yaml:"dedup_capacity"`
	LogLevel             string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat            string        `mapstructure:"log_format" yaml:"log_format"`
	StatusAddr           string        `mapstructure:"status_addr" yaml:"status_addr"`
	SendRateLimit        int           `mapstructure:"send_rate_limit" yaml:"send_rate_limit"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:            "ws://localhost:8080/ws",
		Channel:              "general",
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		Backoff:              BackoffFixed,
		MaxReconnectDelay:    30 * time.Second,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
		DedupCapacity:        10000,
		LogLevel:             "info",
		LogFormat:            "console",
		SendRateLimit:        60,
		ShutdownTimeout:      5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.Channel != "" {
		c.Channel = other.Channel
	}
	if other.ReconnectDelay != 0 {
		c.ReconnectDelay = other.ReconnectDelay
	}
	if other.MaxReconnectAttempts != 0 {
		c.MaxReconnectAttempts = other.MaxReconnectAttempts
	}
	if other.Backoff != "" {
		c.Backoff = other.Backoff
	}
	if other.MaxReconnectDelay != 0 {
		c.MaxReconnectDelay = other.MaxReconnectDelay
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.DedupCapacity != 0 {
		c.DedupCapacity = other.DedupCapacity
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.StatusAddr != "" {
		c.StatusAddr = other.StatusAddr
	}
	if other.SendRateLimit != 0 {
		c.SendRateLimit = other.SendRateLimit
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url: scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server_url: missing host")
	}
	if c.ReconnectDelay < 0 || c.MaxReconnectDelay < 0 {
		return errors.New("reconnect delays must not be negative")
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New("max_reconnect_attempts must not be negative")
	}
	switch c.Backoff {
	case BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("backoff: unknown strategy %q", c.Backoff)
	}
	if c.DedupCapacity <= 0 {
		return errors.New("dedup_capacity must be positive")
	}
	return nil
}

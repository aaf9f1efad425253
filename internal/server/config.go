package server

import (
	"errors"
	"fmt"

	"github.com/etpamelo/gallerybox/internal/server/generation"
	"github.com/etpamelo/gallerybox/internal/server/store"
	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr         = "127.0.0.1:8080"
	DefaultMaxBodyBytes = 64 << 20
	DefaultGenerateRate = "30-M"
)

type Config struct {
	HTTP         HTTPConfig        `mapstructure:"http"`
	Admin        AdminConfig       `mapstructure:"admin"`
	Store        store.Config      `mapstructure:"store"`
	ManifestPath string            `mapstructure:"manifest_path"`
	Generation   generation.Config `mapstructure:"generation"`
	LogFile      string            `mapstructure:"log_file"`
}

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	CertFile     string   `mapstructure:"cert_file"`
	KeyFile      string   `mapstructure:"key_file"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
	GenerateRate string   `mapstructure:"generate_rate"`
}

type AdminConfig struct {
	Secret string `mapstructure:"secret"`
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if c.ManifestPath != "" {
		if _, err := store.CleanPath(c.ManifestPath); err != nil {
			return fmt.Errorf("manifest_path: %w", err)
		}
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config: %w", err)
	}
	return nil
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("max_body_bytes must not be negative")
	}
	if c.GenerateRate != "" {
		if _, err := limiter.NewRateFromFormatted(c.GenerateRate); err != nil {
			return fmt.Errorf("generate_rate: %w", err)
		}
	}
	return nil
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

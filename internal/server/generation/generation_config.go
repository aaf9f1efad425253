package generation

import (
	"fmt"
	"time"

	"github.com/etpamelo/gallerybox/internal/utils"
)

const (
	DefaultModel         = "seedream-4.0"
	DefaultSize          = "1024x1024"
	DefaultQuality       = "standard"
	DefaultMaxImageBytes = 25 << 20 // base64 characters
	DefaultTimeout       = 120 * time.Second
)

type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	DefaultSize    string        `mapstructure:"default_size"`
	DefaultQuality string        `mapstructure:"default_quality"`
	MaxImageBytes  int64         `mapstructure:"max_image_bytes"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// IsConfigured reports whether the upstream endpoint and key are both set.
// An unconfigured proxy still starts and answers every request with an error.
func (c *Config) IsConfigured() bool {
	return c.APIURL != "" && c.APIKey != ""
}

func (c *Config) Validate() error {
	if c.APIURL != "" && !utils.IsValidURL(c.APIURL) {
		return fmt.Errorf("invalid generation api_url %q", c.APIURL)
	}
	if c.MaxImageBytes < 0 {
		return fmt.Errorf("max_image_bytes must not be negative")
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Model == "" {
		out.Model = DefaultModel
	}
	if out.DefaultSize == "" {
		out.DefaultSize = DefaultSize
	}
	if out.DefaultQuality == "" {
		out.DefaultQuality = DefaultQuality
	}
	if out.MaxImageBytes == 0 {
		out.MaxImageBytes = DefaultMaxImageBytes
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	return out
}

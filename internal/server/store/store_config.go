package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/etpamelo/gallerybox/internal/utils"
)

const (
	BackendGitHub = "github"
	BackendS3     = "s3"
	BackendMemory = "memory"

	DefaultGitHubAPIURL = "https://api.github.com"
	DefaultBranch       = "main"
	DefaultTimeout      = 30 * time.Second
)

type Config struct {
	Backend string       `mapstructure:"backend"`
	GitHub  GitHubConfig `mapstructure:"github"`
	S3      S3Config     `mapstructure:"s3"`
}

type GitHubConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	Token   string        `mapstructure:"token"`
	Repo    string        `mapstructure:"repo"`
	Branch  string        `mapstructure:"branch"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type S3Config struct {
	BucketName string `mapstructure:"bucket_name"`
	Prefix     string `mapstructure:"prefix"`
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGitHub, "":
		return c.GitHub.Validate()
	case BackendS3:
		return c.S3.Validate()
	case BackendMemory:
		return nil
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

func (c *GitHubConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("github token required")
	}
	if c.Repo == "" {
		return fmt.Errorf("github repo required")
	}
	if owner, name, ok := strings.Cut(c.Repo, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("github repo must be in owner/name form, got %q", c.Repo)
	}
	if c.APIURL != "" && !utils.IsValidURL(c.APIURL) {
		return fmt.Errorf("invalid github api_url %q", c.APIURL)
	}
	return nil
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	return nil
}

// New builds the backend selected by cfg.Backend
func New(cfg *Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendS3:
		return NewS3StoreWithConfig(&cfg.S3)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return NewGitHubStore(&cfg.GitHub), nil
	}
}

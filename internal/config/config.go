package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/badgehook/internal/badge"
)

// Config represents the complete badgehook configuration.
type Config struct {
	Files    []string       `yaml:"files"`
	Sites    []SiteConfig   `yaml:"sites"`
	Identity IdentityConfig `yaml:"identity"`
}

// SiteConfig declares one badge-hosting site family as data: a host marker,
// the site's keyword for "branch", and the separator before the branch token.
type SiteConfig struct {
	Host string `yaml:"host"`
	Key  string `yaml:"key"`
	Sep  string `yaml:"sep"`
}

// IdentityConfig is the scripted identity stamped on automated commits.
type IdentityConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Default returns the configuration used when no config file exists:
// common README names, the built-in badge site table, and the badgehook
// service identity.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields.
func (c *Config) expandEnv() {
	for i := range c.Files {
		c.Files[i] = os.ExpandEnv(c.Files[i])
	}
	c.Identity.Name = os.ExpandEnv(c.Identity.Name)
	c.Identity.Email = os.ExpandEnv(c.Identity.Email)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if len(c.Files) == 0 {
		c.Files = []string{"README.md", "README.markdown", "README.rst"}
	}
	if len(c.Sites) == 0 {
		for _, s := range badge.DefaultSites() {
			c.Sites = append(c.Sites, SiteConfig{Host: s.Host, Key: s.Key, Sep: s.Sep})
		}
	}
	if c.Identity.Name == "" {
		c.Identity.Name = "badgehook"
	}
	if c.Identity.Email == "" {
		c.Identity.Email = "badgehook@invalid"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for _, f := range c.Files {
		if f == "" {
			return fmt.Errorf("files entries must not be empty")
		}
		if filepath.IsAbs(f) {
			return fmt.Errorf("files entries must be relative to the repository root: %s", f)
		}
		clean := filepath.ToSlash(filepath.Clean(f))
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("files entries must not escape the repository root: %s", f)
		}
	}

	for _, s := range c.Sites {
		if err := s.Site().Validate(); err != nil {
			return err
		}
	}

	if c.Identity.Name == "" || c.Identity.Email == "" {
		return fmt.Errorf("identity.name and identity.email are required")
	}

	return nil
}

// Site converts the YAML form into the rewriter's site type.
func (s SiteConfig) Site() badge.Site {
	return badge.Site{Host: s.Host, Key: s.Key, Sep: s.Sep}
}

// BadgeSites returns the full site table for the rewriter.
func (c *Config) BadgeSites() []badge.Site {
	sites := make([]badge.Site, 0, len(c.Sites))
	for _, s := range c.Sites {
		sites = append(sites, s.Site())
	}
	return sites
}

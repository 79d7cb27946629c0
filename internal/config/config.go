// Package config loads the bookshelf YAML configuration file and applies
// environment fallbacks and defaults for the store and gateway services.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/bookshelf/internal/gateway"
	"github.com/wondertwin-ai/bookshelf/pkg/server"
)

// Default ports.
const (
	DefaultStorePort   = 8080
	DefaultGatewayPort = 8081
)

// DefaultUpstreamURL points the gateway at a store on the default port.
var DefaultUpstreamURL = fmt.Sprintf("http://localhost:%d/books", DefaultStorePort)

// Environment variables consulted when neither a flag nor the file sets a value.
const (
	EnvPort        = "PORT"
	EnvUpstreamURL = "BOOKSHELF_UPSTREAM_URL"
)

// Store configures the resource store service.
type Store struct {
	server.Config `yaml:",inline"`
	SeedFile      string `yaml:"seed_file"`
}

// Gateway configures the forwarding gateway service.
type Gateway struct {
	server.Config   `yaml:",inline"`
	UpstreamURL     string        `yaml:"upstream_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// Config is the contents of a bookshelf config file.
type Config struct {
	Store   Store   `yaml:"store"`
	Gateway Gateway `yaml:"gateway"`
}

// Load reads the config at path. An empty path yields an empty config.
// Defaults are not applied; call ApplyDefaults once flags have been merged.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields from the environment, then from the
// built-in defaults.
func (c *Config) ApplyDefaults() {
	c.Store.Name = "store"
	c.Gateway.Name = "gateway"

	if c.Store.Port == 0 {
		c.Store.Port = envPort(DefaultStorePort)
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = envPort(DefaultGatewayPort)
	}
	if c.Gateway.UpstreamURL == "" {
		c.Gateway.UpstreamURL = os.Getenv(EnvUpstreamURL)
	}
	if c.Gateway.UpstreamURL == "" {
		c.Gateway.UpstreamURL = DefaultUpstreamURL
	}
	if c.Gateway.UpstreamTimeout == 0 {
		c.Gateway.UpstreamTimeout = gateway.DefaultTimeout
	}
}

func envPort(def int) int {
	if v := os.Getenv(EnvPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			return p
		}
	}
	return def
}

// Validate reports every problem in the store section.
func (s Store) Validate() error {
	err := s.Config.Validate()
	if s.SeedFile != "" {
		if _, statErr := os.Stat(s.SeedFile); statErr != nil {
			err = multierr.Append(err, fmt.Errorf("seed_file: %w", statErr))
		}
	}
	return err
}

// Validate reports every problem in the gateway section.
func (g Gateway) Validate() error {
	err := g.Config.Validate()
	if g.UpstreamURL == "" {
		err = multierr.Append(err, errors.New("upstream_url is required"))
	} else if u, parseErr := url.Parse(g.UpstreamURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("upstream_url %q is not an absolute URL", g.UpstreamURL))
	}
	if g.UpstreamTimeout < 0 {
		err = multierr.Append(err, errors.New("upstream_timeout must not be negative"))
	}
	if g.FailRate != 0 {
		err = multierr.Append(err, errors.New("fail_rate is not supported by the gateway"))
	}
	return err
}

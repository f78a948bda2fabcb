package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"swap-sentry/internal/platform"
)

// DefaultPath is where the CLI looks for its configuration
const DefaultPath = "/etc/swap-sentry/config.yaml"

// DefaultDatabasePath is the teardown history written by swap-sentry and read by swap-sentry-query
const DefaultDatabasePath = "/var/lib/swap-sentry/history.db"

type ToolsCfg struct {
	Swapoff    string `yaml:"swapoff" json:"swapoff"`
	Cryptsetup string `yaml:"cryptsetup" json:"cryptsetup"` // Linux dm-crypt
	Mdadm      string `yaml:"mdadm" json:"mdadm"`           // Linux md mirrors
	Geli       string `yaml:"geli" json:"geli"`             // FreeBSD encryption
	Gmirror    string `yaml:"gmirror" json:"gmirror"`       // FreeBSD mirrors
	Sysctl     string `yaml:"sysctl" json:"sysctl"`         // FreeBSD GEOM mesh
}

// RootsCfg lets tests and containers point the inventory at alternate trees
type RootsCfg struct {
	Dev  string `yaml:"dev" json:"dev"`
	Sys  string `yaml:"sys" json:"sys"`
	Proc string `yaml:"proc" json:"proc"`
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type MetricsCfg struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"` // node_exporter textfile collector target, empty disables
}

type Config struct {
	Platform              string     `yaml:"platform" json:"platform"` // linux, freebsd or auto
	ExtraSwapTypes        []string   `yaml:"extra_swap_types" json:"extra_swap_types"`
	ProtectedDevices      []string   `yaml:"protected_devices" json:"protected_devices"`
	Tools                 ToolsCfg   `yaml:"tools" json:"tools"`
	Roots                 RootsCfg   `yaml:"roots" json:"roots"`
	Logging               LoggingCfg `yaml:"logging" json:"logging"`
	Metrics               MetricsCfg `yaml:"metrics" json:"metrics"`
	DatabasePath          string     `yaml:"database_path" json:"database_path"` // SQLite teardown history
	DisableHistory        bool       `yaml:"disable_history" json:"disable_history"`
	CommandTimeoutSeconds int        `yaml:"command_timeout_seconds" json:"command_timeout_seconds"`

	platform platform.Platform
}

var (
	errInvalidPath     = errors.New("path must be absolute")
	errNegativeTimeout = errors.New("command_timeout_seconds cannot be negative")
	errEmptySwapType   = errors.New("extra_swap_types entries cannot be empty")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Default()
	}
	return cfg, err
}

// Default returns a validated configuration with every default applied
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	p, err := platform.Parse(c.Platform)
	if err != nil {
		return err
	}
	c.platform = p
	c.Platform = p.String()

	if c.CommandTimeoutSeconds < 0 {
		return errNegativeTimeout
	}
	if c.CommandTimeoutSeconds == 0 {
		c.CommandTimeoutSeconds = 60
	}

	for i, t := range c.ExtraSwapTypes {
		t = strings.TrimSpace(t)
		if t == "" {
			return errEmptySwapType
		}
		c.ExtraSwapTypes[i] = t
	}

	// Tool defaults are bare names resolved through PATH
	if c.Tools.Swapoff == "" {
		c.Tools.Swapoff = "swapoff"
	}
	if c.Tools.Cryptsetup == "" {
		c.Tools.Cryptsetup = "cryptsetup"
	}
	if c.Tools.Mdadm == "" {
		c.Tools.Mdadm = "mdadm"
	}
	if c.Tools.Geli == "" {
		c.Tools.Geli = "geli"
	}
	if c.Tools.Gmirror == "" {
		c.Tools.Gmirror = "gmirror"
	}
	if c.Tools.Sysctl == "" {
		c.Tools.Sysctl = "sysctl"
	}

	if c.Roots.Dev == "" {
		c.Roots.Dev = "/dev"
	}
	if c.Roots.Sys == "" {
		c.Roots.Sys = "/sys"
	}
	if c.Roots.Proc == "" {
		c.Roots.Proc = "/proc"
	}
	for _, root := range []*string{&c.Roots.Dev, &c.Roots.Sys, &c.Roots.Proc} {
		cp, err := cleanAbsolute(*root)
		if err != nil {
			return err
		}
		*root = cp
	}

	if c.Logging.Dir == "" {
		c.Logging.Dir = "/var/log/swap-sentry"
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}

	if c.Metrics.TextfilePath != "" {
		cp, err := cleanAbsolute(c.Metrics.TextfilePath)
		if err != nil {
			return fmt.Errorf("metrics.textfile_path: %w", err)
		}
		c.Metrics.TextfilePath = cp
	}

	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	cp, err := cleanAbsolute(c.DatabasePath)
	if err != nil {
		return fmt.Errorf("database_path: %w", err)
	}
	c.DatabasePath = cp

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

// PlatformFamily returns the platform resolved during validation
func (c *Config) PlatformFamily() platform.Platform {
	return c.platform
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

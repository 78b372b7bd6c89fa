// Package config holds the per-invocation configuration: where build
// output goes, where the shim source tree lives, and which VM instance
// hosts the build on macOS. Values come from hard defaults, then an
// optional YAML file, then command-line flags, in that order. The
// resulting Config is passed explicitly to every operation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// DefaultConfigPath is the config file probed when --config is not given.
const DefaultConfigPath = ".config/shimforge.yml"

// DefaultUpstream is the canonical shim repository. A source tree whose
// origin differs is treated as foreign and never touched.
const DefaultUpstream = "https://github.com/rhboot/shim.git"

// DefaultInstance is the Multipass instance used on macOS hosts.
const DefaultInstance = "shimforge"

// Config is the resolved configuration for one invocation.
type Config struct {
	// OutputRoot is the directory holding build output and, on macOS,
	// the directory shared into the VM.
	OutputRoot string `yaml:"output_root"`

	// SourceRoot is the shim source tree. Defaults to OutputRoot/shim so
	// that the tree is visible on both sides of the VM mount.
	SourceRoot string `yaml:"source_root"`

	// Instance is the Multipass VM instance name.
	Instance string `yaml:"instance"`

	// Upstream is the expected origin URL of the source tree.
	Upstream string `yaml:"upstream"`

	// Echo enables command tracing.
	Echo bool `yaml:"echo"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Instance: DefaultInstance,
		Upstream: DefaultUpstream,
	}
}

// Load reads a config file into cfg, overriding only the fields the file
// sets.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file: %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config file: %s", path)
	}
	return nil
}

// Resolve builds the final configuration: defaults, then the config file
// (explicit path, or the default path if it exists), then finalization.
// Flag overrides are applied by the caller between Load and Finalize via
// the returned value.
func Resolve(configFile string) (*Config, error) {
	cfg := Default()
	switch {
	case configFile != "":
		if err := Load(configFile, cfg); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			if err := Load(DefaultConfigPath, cfg); err != nil {
				return nil, err
			}
		}
	}
	return cfg, nil
}

// Finalize fills derived defaults and normalizes paths to absolute form.
func (c *Config) Finalize() error {
	if c.OutputRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to determine home directory")
		}
		c.OutputRoot = filepath.Join(home, "shimforge")
	}
	abs, err := filepath.Abs(c.OutputRoot)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve output root %s", c.OutputRoot)
	}
	c.OutputRoot = abs

	if c.SourceRoot == "" {
		c.SourceRoot = filepath.Join(c.OutputRoot, "shim")
	}
	abs, err = filepath.Abs(c.SourceRoot)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve source root %s", c.SourceRoot)
	}
	c.SourceRoot = abs

	if c.Instance == "" {
		return fmt.Errorf("instance name must not be empty")
	}
	if c.Upstream == "" {
		return fmt.Errorf("upstream URL must not be empty")
	}
	return nil
}

// InstallRoot is the staging directory the install operation recreates.
func (c *Config) InstallRoot() string {
	return filepath.Join(c.OutputRoot, "install")
}

// LockPath is the advisory lock file guarding mutating operations.
func (c *Config) LockPath() string {
	return filepath.Join(c.OutputRoot, ".shimforge.lock")
}

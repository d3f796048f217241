// Package config loads the Hichers CLI configuration file stored at
// ~/.hichers/config.yaml and the server settings taken from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is the directory under the user's home for CLI state.
const DefaultConfigDir = ".hichers"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// DefaultSessionFile is the session file name within the config directory.
const DefaultSessionFile = "session.json"

const (
	defaultAPIURL        = "https://api.hichers.com/api"
	defaultTimezone      = "Europe/London"
	defaultTimeout       = 15 * time.Second
	defaultSchemeTimeout = 45 * time.Second
)

// Duration is a time.Duration written as a string such as "15s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", node.Value)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the contents of ~/.hichers/config.yaml.
type Config struct {
	APIURL        string   `yaml:"api_url"`
	Timezone      string   `yaml:"timezone"`
	Timeout       Duration `yaml:"timeout"`
	SchemeTimeout Duration `yaml:"scheme_timeout"`
	SessionFile   string   `yaml:"session_file,omitempty"`
}

// configDir returns the path to the config directory.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// Load reads the config from ~/.hichers/config.yaml.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path, filling unset fields with defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.applyEnv()
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, cfg.applyEnv()
}

// Save writes the config to ~/.hichers/config.yaml.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the config to path.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SessionPath returns the session file, defaulting to ~/.hichers/session.json.
func (c *Config) SessionPath() (string, error) {
	if c.SessionFile != "" {
		return c.SessionFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultSessionFile), nil
}

// Keys lists the settable YAML keys in display order.
var Keys = []string{"api_url", "timezone", "timeout", "scheme_timeout", "session_file"}

// Get returns one field by its YAML key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "timezone":
		return c.Timezone, nil
	case "timeout":
		return c.Timeout.Std().String(), nil
	case "scheme_timeout":
		return c.SchemeTimeout.Std().String(), nil
	case "session_file":
		return c.SessionFile, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// Set updates one field by its YAML key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api_url":
		c.APIURL = strings.TrimRight(value, "/")
	case "timezone":
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("unknown timezone %q", value)
		}
		c.Timezone = value
	case "timeout", "scheme_timeout":
		var d Duration
		if err := d.UnmarshalYAML(&yaml.Node{Value: value}); err != nil {
			return err
		}
		if key == "timeout" {
			c.Timeout = d
		} else {
			c.SchemeTimeout = d
		}
	case "session_file":
		c.SessionFile = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// applyEnv lets HICHERS_API_URL and HICHERS_TZ override the file.
func (c *Config) applyEnv() error {
	if v := os.Getenv("HICHERS_API_URL"); v != "" {
		c.APIURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("HICHERS_TZ"); v != "" {
		c.Timezone = v
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := defaultConfig()
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.SchemeTimeout == 0 {
		c.SchemeTimeout = d.SchemeTimeout
	}
}

func defaultConfig() *Config {
	return &Config{
		APIURL:        defaultAPIURL,
		Timezone:      defaultTimezone,
		Timeout:       Duration(defaultTimeout),
		SchemeTimeout: Duration(defaultSchemeTimeout),
	}
}

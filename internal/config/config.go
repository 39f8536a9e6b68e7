// Package config reads and writes the soilnet client configuration at
// ~/.config/soilnet/config.yaml. Writes are atomic and serialized with an
// OS file lock so concurrent CLI invocations do not clobber each other.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcus/soilnet/internal/countries"
	"github.com/marcus/soilnet/internal/retry"
)

const (
	fileName = "config.yaml"
	lockName = "config.yaml.lock"

	// DefaultServerURL is used when neither the environment nor the file
	// names a server.
	DefaultServerURL = "http://localhost:8080"
)

// Credentials is the API key saved by login and signup.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	UserID    string `yaml:"user_id"`
	Email     string `yaml:"email"`
	Role      string `yaml:"role"`
	ExpiresAt string `yaml:"expires_at,omitempty"`
}

// SignupConfig tunes the registration sequence.
type SignupConfig struct {
	TriggerWait time.Duration `yaml:"trigger_wait,omitempty"`
	Poll        retry.Policy  `yaml:"poll,omitempty"`
}

// Config is the client configuration file.
type Config struct {
	ServerURL      string       `yaml:"server_url,omitempty"`
	DefaultCountry string       `yaml:"default_country,omitempty"` // ISO alpha-2
	Signup         SignupConfig `yaml:"signup,omitempty"`
	Auth           *Credentials `yaml:"auth,omitempty"`
}

// DefaultDir returns the config directory. SOILNET_CONFIG_DIR overrides
// ~/.config/soilnet.
func DefaultDir() (string, error) {
	if v := os.Getenv("SOILNET_CONFIG_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "soilnet"), nil
}

// Load reads the config in dir. A missing file yields an empty config with
// defaults applied.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", fileName, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Signup.Poll.MaxAttempts == 0 {
		c.Signup.Poll = retry.DefaultPolicy
	}
	if c.DefaultCountry == "" {
		c.DefaultCountry = countries.Default.ISOCode
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if err := c.Signup.Poll.Validate(); err != nil {
		return fmt.Errorf("signup.poll: %w", err)
	}
	if c.Signup.TriggerWait < 0 {
		return fmt.Errorf("signup.trigger_wait must not be negative")
	}
	if _, ok := countries.ByISO(c.DefaultCountry); !ok {
		return fmt.Errorf("default_country %q is not a known ISO code", c.DefaultCountry)
	}
	return nil
}

// TriggerWait returns the configured wait, or the signup default.
func (c *Config) TriggerWait(def time.Duration) time.Duration {
	if c.Signup.TriggerWait > 0 {
		return c.Signup.TriggerWait
	}
	return def
}

// Server returns the server URL. Priority: SOILNET_URL env > file > default.
func (c *Config) Server() string {
	if v := os.Getenv("SOILNET_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	if c.ServerURL != "" {
		return strings.TrimRight(c.ServerURL, "/")
	}
	return DefaultServerURL
}

// Country returns the default country record.
func (c *Config) Country() countries.Record {
	if r, ok := countries.ByISO(c.DefaultCountry); ok {
		return r
	}
	return countries.Default
}

// Save writes cfg to dir atomically (temp file + rename). The file holds
// the API key, so it is private to the user.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.yaml.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, fileName))
}

// Update loads the config, applies fn and saves the result while holding
// the config lock.
func Update(dir string, fn func(*Config) error) error {
	return withLock(dir, func() error {
		cfg, err := Load(dir)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return Save(dir, cfg)
	})
}

// SetAuth stores credentials.
func SetAuth(dir string, creds Credentials) error {
	return Update(dir, func(c *Config) error {
		c.Auth = &creds
		return nil
	})
}

// ClearAuth removes stored credentials.
func ClearAuth(dir string) error {
	return Update(dir, func(c *Config) error {
		c.Auth = nil
		return nil
	})
}

// Set assigns a config key from its string form.
func Set(dir, key, value string) error {
	return Update(dir, func(c *Config) error {
		switch key {
		case "server_url":
			c.ServerURL = value
		case "default_country":
			c.DefaultCountry = strings.ToUpper(value)
		case "signup.trigger_wait":
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("signup.trigger_wait: %w", err)
			}
			c.Signup.TriggerWait = d
		case "signup.poll.max_attempts":
			var n int
			if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
				return fmt.Errorf("signup.poll.max_attempts: %w", err)
			}
			c.Signup.Poll.MaxAttempts = n
		case "signup.poll.delay":
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("signup.poll.delay: %w", err)
			}
			c.Signup.Poll.Delay = d
		default:
			return fmt.Errorf("unknown config key %q", key)
		}
		return nil
	})
}

// Keys lists the keys accepted by Set and Get.
var Keys = []string{
	"server_url",
	"default_country",
	"signup.trigger_wait",
	"signup.poll.max_attempts",
	"signup.poll.delay",
}

// Get returns the effective value of a config key in its string form.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "server_url":
		return c.Server(), nil
	case "default_country":
		return c.Country().ISOCode, nil
	case "signup.trigger_wait":
		return c.TriggerWait(0).String(), nil
	case "signup.poll.max_attempts":
		return fmt.Sprint(c.Signup.Poll.MaxAttempts), nil
	case "signup.poll.delay":
		return c.Signup.Poll.Delay.String(), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// withLock serializes access to the config file across processes.
func withLock(dir string, fn func() error) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, lockName), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	defer unlockFile(f)
	return fn()
}

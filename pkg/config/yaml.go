package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sdejongh/contentsync/internal/platform"
)

// EnvPrefix prefixes environment overrides, e.g. CONTENTSYNC_SYNC_POLICY
const EnvPrefix = "CONTENTSYNC"

// Load reads configuration from path, falling back to defaults for unset
// keys, then applies environment overrides. An empty path uses the default
// location, which may be absent.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := platform.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v, err := newViper(Default())
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if explicit || !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", statErr)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// newViper seeds a viper instance with defaults so every key is known to
// AutomaticEnv
func newViper(defaults *Config) (*viper.Viper, error) {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider conventions for secrets
	if err := v.BindEnv("store_a.token", EnvPrefix+"_STORE_A_TOKEN", "AIRTABLE_TOKEN"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("store_b.api_key", EnvPrefix+"_STORE_B_API_KEY", "GOOGLE_SHEETS_API_KEY"); err != nil {
		return nil, err
	}
	return v, nil
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// The file may hold credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal encodes cfg as YAML
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	dir := filepath.Join(configDir, "factstream")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config at path, or at GetConfigPath when path is empty.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s (run factstream config init)", ErrConfigNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	log.Printf("Config: loading configuration from %s", path)
	config := DefaultConfig()
	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Printf("Config: ignoring unknown keys: %v", undecoded)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}

	log.Printf("Config: configuration loaded successfully")
	return config, nil
}

// LoadOrDefault is Load, falling back to DefaultConfig when no file exists
func LoadOrDefault(path string) (*Config, error) {
	config, err := Load(path)
	if errors.Is(err, ErrConfigNotFound) {
		log.Printf("Config: %v, using defaults", err)
		return DefaultConfig(), nil
	}
	return config, err
}

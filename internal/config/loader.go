package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Dir is the name of the directory holding forge configuration and state.
const Dir = ".forge"

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*ForgeConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// DefaultPaths returns the conventional global (~/.forge/config.json) and
// project (.forge/config.json) config paths.
func DefaultPaths() (globalPath, projectPath string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, Dir, "config.json"), filepath.Join(Dir, "config.json"), nil
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*ForgeConfig, error) {
	globalPath, projectPath, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into base.
// Scalars override when set; tables are merged key by key.
func mergeConfigFile(base *ForgeConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded ForgeConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	merge(base, &loaded)
	return nil
}

func merge(base, loaded *ForgeConfig) {
	if loaded.Jobs > 0 {
		base.Jobs = loaded.Jobs
	}
	if loaded.LogLevel != "" {
		base.LogLevel = loaded.LogLevel
	}
	if loaded.LogFormat != "" {
		base.LogFormat = loaded.LogFormat
	}
	if loaded.HistoryPath != "" {
		base.HistoryPath = loaded.HistoryPath
	}
	if loaded.Default != "" {
		base.Default = loaded.Default
	}

	for key, value := range loaded.Context {
		base.Context[key] = value
	}
	for key, deps := range loaded.Depends {
		base.Depends[key] = deps
	}
	for key, actions := range loaded.Builds {
		base.Builds[key] = actions
	}

	if loaded.Retry.MaxRetries > 0 {
		base.Retry.MaxRetries = loaded.Retry.MaxRetries
	}
	if loaded.Retry.InitialInterval > 0 {
		base.Retry.InitialInterval = loaded.Retry.InitialInterval
	}
	if loaded.Retry.MaxInterval > 0 {
		base.Retry.MaxInterval = loaded.Retry.MaxInterval
	}
	if loaded.Breaker.Threshold > 0 {
		base.Breaker.Threshold = loaded.Breaker.Threshold
	}
	if loaded.Breaker.Timeout > 0 {
		base.Breaker.Timeout = loaded.Breaker.Timeout
	}
}

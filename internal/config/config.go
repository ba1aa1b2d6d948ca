// Package config handles global configuration for the ferry CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/ferry/config.yml.
type GlobalConfig struct {
	MachinesPath  string  `yaml:"machines_path,omitempty"`
	JournalPath   string  `yaml:"journal_path,omitempty"`
	MaxConcurrent int     `yaml:"max_concurrent,omitempty"`
	DialRate      float64 `yaml:"dial_rate,omitempty"` // connection attempts per second
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "ferry"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// MachinesFile is the default fleet definition file name.
	MachinesFile = "machines.yml"
	// JournalFile is the journal database file name.
	JournalFile = "journal.db"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// configDir returns the ferry directory under XDG_CONFIG_HOME,
// defaulting to ~/.config/ferry.
func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir)
}

// stateDir returns the ferry directory under XDG_STATE_HOME, defaulting
// to ~/.local/state/ferry.
func stateDir() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, GlobalConfigDir)
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	cfg.MachinesPath = ExpandTilde(cfg.MachinesPath)
	cfg.JournalPath = ExpandTilde(cfg.JournalPath)

	globalConfigCache = &cfg
	return &cfg, nil
}

// Save writes the global configuration file, creating its directory.
func (c *GlobalConfig) Save() error {
	path := GlobalConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding global config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing global config: %w", err)
	}

	globalConfigCache = nil
	return nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// MachinesPath returns the fleet definition path: FERRY_MACHINES, then
// the global config, then ~/.config/ferry/machines.yml.
func MachinesPath() string {
	if p := os.Getenv("FERRY_MACHINES"); p != "" {
		return ExpandTilde(p)
	}
	cfg, err := LoadGlobalConfig()
	if err == nil && cfg.MachinesPath != "" {
		return cfg.MachinesPath
	}
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, MachinesFile)
}

// JournalPath returns the journal database path: FERRY_JOURNAL, then the
// global config, then ~/.local/state/ferry/journal.db.
func JournalPath() string {
	if p := os.Getenv("FERRY_JOURNAL"); p != "" {
		return ExpandTilde(p)
	}
	cfg, err := LoadGlobalConfig()
	if err == nil && cfg.JournalPath != "" {
		return cfg.JournalPath
	}
	dir := stateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, JournalFile)
}

// ExpandTilde expands a leading ~/ to the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// HelpfulConfigMessage explains how to set up machines.yml.
func HelpfulConfigMessage() string {
	return `No machines.yml found.

Create ` + filepath.Join(configDir(), MachinesFile) + ` with your fleet, e.g.:

  machines:
    - name: gateway
    - pattern: node{01..08}
  ssh:
    proxy_jump: jump.cluster.edu

or point FERRY_MACHINES at an existing file.`
}

package config

import (
	"os"
	"path/filepath"
)

const appName = "chatscan"

// ConfigDir is $XDG_CONFIG_HOME/chatscan (default ~/.config/chatscan).
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".config", appName)
}

// DataDir is $XDG_DATA_HOME/chatscan (default ~/.local/share/chatscan).
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".local", "share", appName)
}

// DefaultPath is the config file read when no --config is given.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

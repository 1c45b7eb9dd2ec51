package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/rescale/twinpane/internal/constants"
)

// ConfigDirectory returns the per-user directory holding twinpane.conf,
// profiles.ini and the log file.
//
// Locations:
//   - Windows: %APPDATA%\twinpane
//   - Unix: ~/.config/twinpane
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), constants.AppName)
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, constants.AppName)
	}

	// Unix: Use XDG config directory
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(homeDir, ".config", constants.AppName)
	}
	return filepath.Join(configDir, constants.AppName)
}

// EnsureConfigDirectory creates the config directory if it doesn't exist.
// Uses 0700 since profiles.ini may hold secrets.
func EnsureConfigDirectory() error {
	return os.MkdirAll(ConfigDirectory(), 0700)
}

// DefaultConfigPath returns the default path of twinpane.conf.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), constants.ConfigFileName)
}

// DefaultProfilesPath returns the default path of the profile store.
func DefaultProfilesPath() string {
	return filepath.Join(ConfigDirectory(), constants.ProfilesFileName)
}

// DefaultLogPath returns where the rotating log file goes when log_file is
// set to "default".
func DefaultLogPath() string {
	return filepath.Join(ConfigDirectory(), "logs", constants.LogFileName)
}

// DefaultStartDir is the local pane's starting directory: the user's home,
// falling back to the working directory.
func DefaultStartDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

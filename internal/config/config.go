// Package config provides configuration management for twinpane.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/logging"
)

// AppConfig is the application configuration.
//
// Config file location: see DefaultConfigPath.
//
// INI format:
//
//	[browser]
//	show_hidden = false
//	hidden_prefix = .
//	remote_root = .
//	start_dir = /home/me
//
//	[transfer]
//	chunk_size = 32768
//
//	[ssh]
//	port = 22
//	known_hosts = /home/me/.ssh/known_hosts
//	insecure_ignore_host_key = false
//	timeout_seconds = 30
//
//	[logging]
//	log_file =
//	level = info
//
//	[profiles]
//	profiles_file = /home/me/.config/twinpane/profiles.ini
type AppConfig struct {
	Browser  BrowserConfig
	Transfer TransferConfig
	SSH      SSHConfig
	Logging  LoggingConfig
	Profiles ProfilesConfig
}

// BrowserConfig controls how panes list directories.
type BrowserConfig struct {
	// ShowHidden starts both panes with hidden entries visible.
	ShowHidden bool `ini:"show_hidden"`

	// HiddenPrefix marks an entry as hidden. Default: "."
	HiddenPrefix string `ini:"hidden_prefix"`

	// RemoteRoot is the remote pane's directory right after connect.
	// Default: "." (the login directory)
	RemoteRoot string `ini:"remote_root"`

	// StartDir is the local pane's starting directory. Default: home directory.
	StartDir string `ini:"start_dir"`
}

// TransferConfig tunes the transfer engine.
type TransferConfig struct {
	// ChunkSize is the streaming step in bytes.
	// Minimum: 4 KiB, Maximum: 4 MiB, Default: 32 KiB
	ChunkSize int `ini:"chunk_size"`
}

// SSHConfig controls the SSH transport.
type SSHConfig struct {
	// Port is used when neither a profile nor a flag names one. Default: 22
	Port int `ini:"port"`

	// KnownHosts is the known_hosts file used to verify host keys.
	// Default: ~/.ssh/known_hosts
	KnownHosts string `ini:"known_hosts"`

	// InsecureIgnoreHostKey disables host key verification.
	InsecureIgnoreHostKey bool `ini:"insecure_ignore_host_key"`

	// TimeoutSeconds bounds dial plus handshake. Minimum: 1, Maximum: 600, Default: 30
	TimeoutSeconds int `ini:"timeout_seconds"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// LogFile enables rotating file output. Empty disables it;
	// "default" uses DefaultLogPath().
	LogFile string `ini:"log_file"`

	// Level is one of debug, info, warn, error. Default: info
	Level string `ini:"level"`
}

// ProfilesConfig locates the connection profile store.
type ProfilesConfig struct {
	// ProfilesFile is the INI file holding saved connections.
	ProfilesFile string `ini:"profiles_file"`
}

// AppConfig validation errors
var (
	ErrInvalidChunkSize    = fmt.Errorf("chunk_size must be between %d and %d", constants.MinChunkSize, constants.MaxChunkSize)
	ErrInvalidPort         = errors.New("port must be between 1 and 65535")
	ErrInvalidTimeout      = errors.New("timeout_seconds must be between 1 and 600")
	ErrInvalidLogLevel     = errors.New("level must be one of debug, info, warn, error")
	ErrEmptyHiddenPrefix   = errors.New("hidden_prefix cannot be empty")
	ErrMissingProfilesFile = errors.New("profiles_file is required")
)

// DefaultKnownHostsPath returns ~/.ssh/known_hosts, or "" when home is unknown.
func DefaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// NewAppConfig creates a new AppConfig with default values.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Browser: BrowserConfig{
			ShowHidden:   false,
			HiddenPrefix: constants.HiddenPrefix,
			RemoteRoot:   constants.RemoteRoot,
			StartDir:     DefaultStartDir(),
		},
		Transfer: TransferConfig{
			ChunkSize: constants.ChunkSize,
		},
		SSH: SSHConfig{
			Port:           constants.DefaultSSHPort,
			KnownHosts:     DefaultKnownHostsPath(),
			TimeoutSeconds: int(constants.DialTimeout / time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Profiles: ProfilesConfig{
			ProfilesFile: DefaultProfilesPath(),
		},
	}
}

// LoadAppConfig loads configuration from path.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadAppConfig(path string) (*AppConfig, error) {
	cfg := NewAppConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}

	browser := iniFile.Section("browser")
	cfg.Browser.ShowHidden = browser.Key("show_hidden").MustBool(false)
	cfg.Browser.HiddenPrefix = browser.Key("hidden_prefix").MustString(constants.HiddenPrefix)
	cfg.Browser.RemoteRoot = browser.Key("remote_root").MustString(constants.RemoteRoot)
	cfg.Browser.StartDir = browser.Key("start_dir").MustString(cfg.Browser.StartDir)

	cfg.Transfer.ChunkSize = iniFile.Section("transfer").Key("chunk_size").MustInt(constants.ChunkSize)

	ssh := iniFile.Section("ssh")
	cfg.SSH.Port = ssh.Key("port").MustInt(constants.DefaultSSHPort)
	cfg.SSH.KnownHosts = ssh.Key("known_hosts").MustString(cfg.SSH.KnownHosts)
	cfg.SSH.InsecureIgnoreHostKey = ssh.Key("insecure_ignore_host_key").MustBool(false)
	cfg.SSH.TimeoutSeconds = ssh.Key("timeout_seconds").MustInt(cfg.SSH.TimeoutSeconds)

	logSection := iniFile.Section("logging")
	cfg.Logging.LogFile = logSection.Key("log_file").String()
	cfg.Logging.Level = logSection.Key("level").MustString("info")

	cfg.Profiles.ProfilesFile = iniFile.Section("profiles").Key("profiles_file").MustString(cfg.Profiles.ProfilesFile)

	return cfg, nil
}

// SaveAppConfig saves configuration to path.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SaveAppConfig(cfg *AppConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	browser, err := iniFile.NewSection("browser")
	if err != nil {
		return fmt.Errorf("failed to create browser section: %w", err)
	}
	browser.Key("show_hidden").SetValue(fmt.Sprintf("%t", cfg.Browser.ShowHidden))
	browser.Key("hidden_prefix").SetValue(cfg.Browser.HiddenPrefix)
	browser.Key("remote_root").SetValue(cfg.Browser.RemoteRoot)
	browser.Key("start_dir").SetValue(cfg.Browser.StartDir)

	transfer, err := iniFile.NewSection("transfer")
	if err != nil {
		return fmt.Errorf("failed to create transfer section: %w", err)
	}
	transfer.Key("chunk_size").SetValue(fmt.Sprintf("%d", cfg.Transfer.ChunkSize))

	ssh, err := iniFile.NewSection("ssh")
	if err != nil {
		return fmt.Errorf("failed to create ssh section: %w", err)
	}
	ssh.Key("port").SetValue(fmt.Sprintf("%d", cfg.SSH.Port))
	ssh.Key("known_hosts").SetValue(cfg.SSH.KnownHosts)
	ssh.Key("insecure_ignore_host_key").SetValue(fmt.Sprintf("%t", cfg.SSH.InsecureIgnoreHostKey))
	ssh.Key("timeout_seconds").SetValue(fmt.Sprintf("%d", cfg.SSH.TimeoutSeconds))

	logSection, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logSection.Key("log_file").SetValue(cfg.Logging.LogFile)
	logSection.Key("level").SetValue(cfg.Logging.Level)

	profiles, err := iniFile.NewSection("profiles")
	if err != nil {
		return fmt.Errorf("failed to create profiles section: %w", err)
	}
	profiles.Key("profiles_file").SetValue(cfg.Profiles.ProfilesFile)

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
// Returns nil if valid, or an error describing what's wrong.
func (cfg *AppConfig) Validate() error {
	if cfg.Browser.HiddenPrefix == "" {
		return ErrEmptyHiddenPrefix
	}
	if cfg.Transfer.ChunkSize < constants.MinChunkSize || cfg.Transfer.ChunkSize > constants.MaxChunkSize {
		return ErrInvalidChunkSize
	}
	if cfg.SSH.Port < 1 || cfg.SSH.Port > 65535 {
		return ErrInvalidPort
	}
	if cfg.SSH.TimeoutSeconds < 1 || cfg.SSH.TimeoutSeconds > 600 {
		return ErrInvalidTimeout
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return ErrInvalidLogLevel
	}
	if strings.TrimSpace(cfg.Profiles.ProfilesFile) == "" {
		return ErrMissingProfilesFile
	}
	return nil
}

// Timeout returns the SSH timeout as a duration.
func (cfg *AppConfig) Timeout() time.Duration {
	return time.Duration(cfg.SSH.TimeoutSeconds) * time.Second
}

// LogFilePath resolves the log_file setting; "" means file logging is off.
func (cfg *AppConfig) LogFilePath() string {
	switch strings.TrimSpace(cfg.Logging.LogFile) {
	case "":
		return ""
	case "default":
		return DefaultLogPath()
	default:
		return cfg.Logging.LogFile
	}
}

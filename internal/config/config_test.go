package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rescale/twinpane/internal/constants"
)

func TestLoadAppConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadAppConfig(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("LoadAppConfig() error = %v", err)
	}
	if cfg.Transfer.ChunkSize != constants.ChunkSize {
		t.Errorf("ChunkSize = %d", cfg.Transfer.ChunkSize)
	}
	if cfg.Browser.RemoteRoot != "." || cfg.Browser.HiddenPrefix != "." {
		t.Errorf("browser defaults = %+v", cfg.Browser)
	}
	if cfg.SSH.Port != 22 || cfg.SSH.TimeoutSeconds != 30 {
		t.Errorf("ssh defaults = %+v", cfg.SSH)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadAppConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twinpane.conf")
	content := "[browser]\nshow_hidden = true\n\n[ssh]\nport = 2222\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Browser.ShowHidden || cfg.SSH.Port != 2222 {
		t.Errorf("explicit values not loaded: %+v %+v", cfg.Browser, cfg.SSH)
	}
	if cfg.Transfer.ChunkSize != constants.ChunkSize || cfg.Logging.Level != "info" {
		t.Errorf("missing keys should keep defaults: %+v %+v", cfg.Transfer, cfg.Logging)
	}
}

func TestLoadAppConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twinpane.conf")
	if err := os.WriteFile(path, []byte("[browser\nshow_hidden"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAppConfig(path); err == nil {
		t.Error("malformed file should fail to load")
	}
}

func TestSaveAndLoadAppConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "twinpane.conf")

	cfg := NewAppConfig()
	cfg.Browser.ShowHidden = true
	cfg.Browser.StartDir = "/data"
	cfg.Transfer.ChunkSize = 64 * 1024
	cfg.SSH.KnownHosts = "/etc/ssh/known"
	cfg.SSH.InsecureIgnoreHostKey = true
	cfg.Logging.LogFile = "default"
	cfg.Logging.Level = "debug"
	cfg.Profiles.ProfilesFile = "/p.ini"

	if err := SaveAppConfig(cfg, path); err != nil {
		t.Fatalf("SaveAppConfig() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
		}
	}

	got, err := LoadAppConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *cfg {
		t.Errorf("loaded = %+v\nwant %+v", got, cfg)
	}
	if got.LogFilePath() != DefaultLogPath() {
		t.Errorf("LogFilePath() = %s", got.LogFilePath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   error
	}{
		{"valid", func(*AppConfig) {}, nil},
		{"chunk too small", func(c *AppConfig) { c.Transfer.ChunkSize = 100 }, ErrInvalidChunkSize},
		{"chunk too large", func(c *AppConfig) { c.Transfer.ChunkSize = constants.MaxChunkSize + 1 }, ErrInvalidChunkSize},
		{"port zero", func(c *AppConfig) { c.SSH.Port = 0 }, ErrInvalidPort},
		{"port too large", func(c *AppConfig) { c.SSH.Port = 70000 }, ErrInvalidPort},
		{"timeout", func(c *AppConfig) { c.SSH.TimeoutSeconds = 0 }, ErrInvalidTimeout},
		{"log level", func(c *AppConfig) { c.Logging.Level = "loud" }, ErrInvalidLogLevel},
		{"hidden prefix", func(c *AppConfig) { c.Browser.HiddenPrefix = "" }, ErrEmptyHiddenPrefix},
		{"profiles file", func(c *AppConfig) { c.Profiles.ProfilesFile = " " }, ErrMissingProfilesFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewAppConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLogFilePath(t *testing.T) {
	cfg := NewAppConfig()
	if cfg.LogFilePath() != "" {
		t.Errorf("file logging should be off by default")
	}
	cfg.Logging.LogFile = "/var/log/tp.log"
	if cfg.LogFilePath() != "/var/log/tp.log" {
		t.Errorf("LogFilePath() = %s", cfg.LogFilePath())
	}
}

func TestPaths(t *testing.T) {
	dir := ConfigDirectory()
	if filepath.Base(dir) != constants.AppName {
		t.Errorf("ConfigDirectory() = %s", dir)
	}
	if filepath.Dir(DefaultConfigPath()) != dir || filepath.Dir(DefaultProfilesPath()) != dir {
		t.Error("config and profiles should live in the config directory")
	}
}

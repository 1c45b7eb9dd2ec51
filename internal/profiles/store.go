// Package profiles persists named connection profiles in an INI file.
//
// INI format, one section per profile:
//
//	[work]
//	host = sftp.example.com
//	port = 22
//	username = me
//	password = secret
package profiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"gopkg.in/ini.v1"

	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/storage"
)

var (
	// ErrNotFound is returned when no profile has the requested name.
	ErrNotFound = errors.New("profile not found")

	// ErrInvalidName is returned for names that cannot be an INI section.
	ErrInvalidName = errors.New("invalid profile name")
)

// Profile is one saved connection.
type Profile struct {
	Name     string
	Host     string
	Port     int
	Username string
	Secret   string
}

// Endpoint converts the profile for storage.Remote.Connect.
func (p Profile) Endpoint() storage.Endpoint {
	return storage.Endpoint{Host: p.Host, Port: p.Port, User: p.Username, Secret: p.Secret}
}

// String renders the profile without its secret.
func (p Profile) String() string {
	return fmt.Sprintf("%s: %s@%s:%d", p.Name, p.Username, p.Host, p.Port)
}

// Store is the profile file loaded in memory. Changes reach disk on Save.
type Store struct {
	path string

	mu       sync.RWMutex
	profiles map[string]Profile
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, profiles: make(map[string]Profile)}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles from %s: %w", path, err)
	}

	for _, section := range iniFile.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		s.profiles[name] = Profile{
			Name:     name,
			Host:     section.Key("host").String(),
			Port:     section.Key("port").MustInt(constants.DefaultSSHPort),
			Username: section.Key("username").String(),
			Secret:   section.Key("password").String(),
		}
	}

	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Names returns the profile names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named profile.
func (s *Store) Get(name string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Put adds or replaces a profile. A zero port is stored as the default port.
func (s *Store) Put(p Profile) error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("profile %s: host is required", p.Name)
	}
	if p.Port == 0 {
		p.Port = constants.DefaultSSHPort
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Name] = p
	return nil
}

// Delete removes a profile.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.profiles, name)
	return nil
}

// Save writes the store to its file with owner-only permissions.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create profiles directory: %w", err)
	}

	iniFile := ini.Empty()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := s.profiles[name]
		section, err := iniFile.NewSection(name)
		if err != nil {
			return fmt.Errorf("failed to create profile section %s: %w", name, err)
		}
		section.Key("host").SetValue(p.Host)
		section.Key("port").SetValue(fmt.Sprintf("%d", p.Port))
		section.Key("username").SetValue(p.Username)
		section.Key("password").SetValue(p.Secret)
	}

	tmpPath := s.path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set profiles permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" || name != strings.TrimSpace(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if name == ini.DefaultSection {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "[]\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrenalink/adrenalink/internal/cli/client"
)

const (
	configDirName  = "adrenalink"
	configFileName = "config.json"
)

// RoleHintKey is the fixed key the last known role is stored under
const RoleHintKey = "userRole"

// UserConfig represents the user's local state stored in ~/.config/adrenalink/config.json.
// Nothing in here is authoritative; the backend session is.
type UserConfig struct {
	RoleHint string       `json:"userRole,omitempty"`
	User     *client.User `json:"user,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom reads the user configuration from path
func LoadFrom(configPath string) (*UserConfig, error) {
	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(configPath, cfg)
}

// SaveTo writes the user configuration to path
func SaveTo(configPath string, cfg *UserConfig) error {
	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// Store is the client-durable storage for the role hint and the last user
// record. It satisfies session.HintStore and app.UserStore.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a Store backed by the file at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore returns a Store backed by ~/.config/adrenalink/config.json
func DefaultStore() (*Store, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return NewStore(path), nil
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// LoadRole returns the stored role hint, or "" when there is none
func (s *Store) LoadRole() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := LoadFrom(s.path)
	if err != nil {
		return "", err
	}
	return cfg.RoleHint, nil
}

// SaveRole stores the role hint
func (s *Store) SaveRole(role string) error {
	return s.update(func(cfg *UserConfig) {
		cfg.RoleHint = role
	})
}

// ClearRole removes the role hint
func (s *Store) ClearRole() error {
	return s.update(func(cfg *UserConfig) {
		cfg.RoleHint = ""
	})
}

// LoadUser returns the last user record, or nil
func (s *Store) LoadUser() (*client.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := LoadFrom(s.path)
	if err != nil {
		return nil, err
	}
	return cfg.User, nil
}

// SaveUser stores the user record returned by login or signup
func (s *Store) SaveUser(user client.User) error {
	return s.update(func(cfg *UserConfig) {
		cfg.User = &user
	})
}

// ClearUser removes the stored user record
func (s *Store) ClearUser() error {
	return s.update(func(cfg *UserConfig) {
		cfg.User = nil
	})
}

func (s *Store) update(mutate func(*UserConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := LoadFrom(s.path)
	if err != nil {
		// A corrupt file is replaced rather than blocking every write
		cfg = &UserConfig{}
	}
	mutate(cfg)
	return SaveTo(s.path, cfg)
}

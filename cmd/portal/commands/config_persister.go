package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// ConfigPersister reads and writes the CLI config file and implements
// portal.SessionPersister so that renewed tokens are stored.
type ConfigPersister struct {
	fs    afero.Fs
	path  string
	mutex sync.Mutex
	now   func() time.Time
}

// NewConfigPersister creates a persister for the config file at path.
func NewConfigPersister(fs afero.Fs, path string) *ConfigPersister {
	return &ConfigPersister{
		fs:   fs,
		path: path,
		now:  time.Now,
	}
}

func defaultStore() (*ConfigPersister, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	return NewConfigPersister(afero.NewOsFs(), path), nil
}

// Path returns the config file path.
func (p *ConfigPersister) Path() string {
	return p.path
}

// Load reads the config file. A missing file is an empty configuration.
func (p *ConfigPersister) Load() (*Config, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.load()
}

// Save writes config, creating the config directory when needed.
func (p *ConfigPersister) Save(config *Config) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.save(config)
}

// Update loads the configuration, applies change and saves the result.
// Nothing is written when change fails.
func (p *ConfigPersister) Update(change func(config *Config) error) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config, err := p.load()
	if err != nil {
		return err
	}

	err = change(config)
	if err != nil {
		return err
	}

	return p.save(config)
}

// SaveSession implements portal.SessionPersister. The password is not
// stored.
func (p *ConfigPersister) SaveSession(portalURL string, state portal.SessionState) error {
	return p.Update(func(config *Config) error {
		portalConfig := config.Portal(portalURL)
		portalConfig.Username = state.Username
		portalConfig.Token = state.Token
		portalConfig.Expiration = state.Expiration
		portalConfig.ExpiresAt = nil

		if !state.ExpiresAt.IsZero() {
			expiresAt := state.ExpiresAt
			portalConfig.ExpiresAt = &expiresAt
		}

		now := p.now()
		portalConfig.LastLogin = &now

		return nil
	})
}

// ClearSession forgets the token of portalURL and keeps the username.
func (p *ConfigPersister) ClearSession(portalURL string) error {
	return p.Update(func(config *Config) error {
		portalConfig := config.Lookup(portalURL)
		if portalConfig == nil {
			return fmt.Errorf("%w: %s", ErrPortalNotConfigured, portalURL)
		}

		portalConfig.Token = ""
		portalConfig.ExpiresAt = nil

		return nil
	})
}

func (p *ConfigPersister) load() (*Config, error) {
	config := &Config{Portals: make(map[string]*PortalConfig)}

	data, err := afero.ReadFile(p.fs, p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", p.path, err)
	}

	if config.Portals == nil {
		config.Portals = make(map[string]*PortalConfig)
	}

	return config, nil
}

func (p *ConfigPersister) save(config *Config) error {
	err := p.fs.MkdirAll(filepath.Dir(p.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = afero.WriteFile(p.fs, p.path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

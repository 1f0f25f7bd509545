package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type ManifestEntry struct {
	Timestamp int64            `json:"timestamp"`
	Version   int              `json:"version"`
	Config    *Config          `json:"config"`
	Sessions  map[string]int64 `json:"sessions,omitempty"` // Map of session file names to generation numbers
}

type Manifest struct {
	BasePath   string
	Entries    []ManifestEntry
	Current    *ManifestEntry
	LastUpdate time.Time
	mu         sync.RWMutex
}

// NewManifest creates a new manifest for the given base path
func NewManifest(basePath string, config *Config) (*Manifest, error) {
	if config == nil {
		config = NewDefaultConfig(basePath)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	entry := ManifestEntry{
		Timestamp: time.Now().Unix(),
		Version:   CurrentManifestVersion,
		Config:    config,
	}

	m := &Manifest{
		BasePath:   basePath,
		Entries:    []ManifestEntry{entry},
		Current:    &entry,
		LastUpdate: time.Now(),
	}

	return m, nil
}

// LoadManifest loads an existing manifest from the base directory
func LoadManifest(basePath string) (*Manifest, error) {
	manifestPath := filepath.Join(basePath, DefaultManifestFileName)
	file, err := os.Open(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries in manifest", ErrInvalidManifest)
	}

	current := &entries[len(entries)-1]
	if err := current.Config.Validate(); err != nil {
		return nil, err
	}

	m := &Manifest{
		BasePath:   basePath,
		Entries:    entries,
		Current:    current,
		LastUpdate: time.Now(),
	}

	return m, nil
}

// Save persists the manifest to disk
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Current.Config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(m.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	manifestPath := filepath.Join(m.BasePath, DefaultManifestFileName)
	tempPath := manifestPath + ".tmp"

	data, err := json.MarshalIndent(m.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tempPath, manifestPath); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	m.LastUpdate = time.Now()
	return nil
}

// UpdateConfig creates a new configuration entry
func (m *Manifest) UpdateConfig(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Create a copy of the current config
	currentJSON, err := json.Marshal(m.Current.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal current config: %w", err)
	}

	var newConfig Config
	if err := json.Unmarshal(currentJSON, &newConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply the update function
	fn(&newConfig)

	// Validate the new config
	if err := newConfig.Validate(); err != nil {
		return err
	}

	// Create a new entry
	entry := ManifestEntry{
		Timestamp: time.Now().Unix(),
		Version:   CurrentManifestVersion,
		Config:    &newConfig,
	}

	m.Entries = append(m.Entries, entry)
	m.Current = &m.Entries[len(m.Entries)-1]

	return nil
}

// AddSession registers a session file in the manifest
func (m *Manifest) AddSession(name string, generation int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Current.Sessions == nil {
		m.Current.Sessions = make(map[string]int64)
	}

	m.Current.Sessions[name] = generation
	return nil
}

// RemoveSession removes a session file from the manifest
func (m *Manifest) RemoveSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Current.Sessions == nil {
		return nil
	}

	delete(m.Current.Sessions, name)
	return nil
}

// GetConfig returns the current configuration
func (m *Manifest) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Current.Config
}

// GetSessions returns all session files registered in the manifest
func (m *Manifest) GetSessions() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Current.Sessions == nil {
		return make(map[string]int64)
	}

	// Return a copy to prevent concurrent map access
	sessions := make(map[string]int64, len(m.Current.Sessions))
	for k, v := range m.Current.Sessions {
		sessions[k] = v
	}

	return sessions
}

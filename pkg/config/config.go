package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	DefaultManifestFileName = "MANIFEST"
	CurrentManifestVersion  = 1
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrManifestNotFound = errors.New("manifest not found")
	ErrInvalidManifest  = errors.New("invalid manifest")
)

type SyncMode int

const (
	SyncNone SyncMode = iota
	SyncOnClose
	SyncImmediate
)

// Compression codec names accepted by the session store.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionZstd   = "zstd"
)

type Config struct {
	Version int `json:"version"`

	// Session store configuration
	SessionDir         string   `json:"session_dir"`
	SessionCompression string   `json:"session_compression"`
	SessionSyncMode    SyncMode `json:"session_sync_mode"`
	SessionMaxAge      int64    `json:"session_max_age"` // seconds before a session is purgeable

	// Serialization configuration
	SerializeMaxDepth  int `json:"serialize_max_depth"`
	SerializePrecision int `json:"serialize_precision"`
	Precision          int `json:"precision"` // float digits for display formatting

	// Output buffering configuration
	OutputChunkSize int `json:"output_chunk_size"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Telemetry configuration
	TelemetryEnabled bool `json:"telemetry_enabled"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig(basePath string) *Config {
	sessionDir := filepath.Join(basePath, "sessions")

	return &Config{
		Version: CurrentManifestVersion,

		// Session store defaults
		SessionDir:         sessionDir,
		SessionCompression: CompressionSnappy,
		SessionSyncMode:    SyncOnClose,
		SessionMaxAge:      1440, // 24 minutes, matching the classic gc_maxlifetime

		// Serialization defaults
		SerializeMaxDepth:  4096,
		SerializePrecision: -1, // shortest round-trip form
		Precision:          14,

		// Output buffering defaults
		OutputChunkSize: 4096,

		// Logging defaults
		LogLevel: "info",

		// Telemetry is opt-in
		TelemetryEnabled: false,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if c.SessionDir == "" {
		return fmt.Errorf("%w: session directory not specified", ErrInvalidConfig)
	}

	switch c.SessionCompression {
	case CompressionNone, CompressionSnappy, CompressionZstd:
	default:
		return fmt.Errorf("%w: unknown session compression %q", ErrInvalidConfig, c.SessionCompression)
	}

	if c.SessionSyncMode < SyncNone || c.SessionSyncMode > SyncImmediate {
		return fmt.Errorf("%w: invalid session sync mode %d", ErrInvalidConfig, c.SessionSyncMode)
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("%w: session max age must be positive", ErrInvalidConfig)
	}

	if c.SerializeMaxDepth <= 0 {
		return fmt.Errorf("%w: serialize max depth must be positive", ErrInvalidConfig)
	}

	if c.Precision <= 0 {
		return fmt.Errorf("%w: precision must be positive", ErrInvalidConfig)
	}

	// -1 selects the shortest round-trip float form
	if c.SerializePrecision == 0 || c.SerializePrecision < -1 {
		return fmt.Errorf("%w: serialize precision must be positive or -1", ErrInvalidConfig)
	}

	if c.OutputChunkSize <= 0 {
		return fmt.Errorf("%w: output chunk size must be positive", ErrInvalidConfig)
	}

	return nil
}

// ApplyEnvOverrides applies EPHP_* environment variables on top of the
// current values. Unset variables leave the configuration untouched.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("EPHP_SESSION_DIR"); v != "" {
		c.SessionDir = v
	}
	if v := os.Getenv("EPHP_SESSION_COMPRESSION"); v != "" {
		c.SessionCompression = v
	}
	if v := os.Getenv("EPHP_SESSION_MAX_AGE"); v != "" {
		if age, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SessionMaxAge = age
		}
	}
	if v := os.Getenv("EPHP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("EPHP_TELEMETRY"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.TelemetryEnabled = enabled
		}
	}
}

// LoadConfigFromManifest loads just the configuration portion from the manifest file
func LoadConfigFromManifest(basePath string) (*Config, error) {
	manifestPath := filepath.Join(basePath, DefaultManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveManifest saves the configuration to the manifest file
func (c *Config) SaveManifest(basePath string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	manifestPath := filepath.Join(basePath, DefaultManifestFileName)
	tempPath := manifestPath + ".tmp"

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tempPath, manifestPath); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	return nil
}

// Update applies the given function to modify the configuration
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

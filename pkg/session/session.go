// Package session persists runtime state between requests. Each session is
// a single file holding a checksummed, optionally compressed envelope
// around a serialized value tree, registered in the manifest so restarts
// can rebuild the registry by scanning the directory.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielribes/ephp/pkg/common/log"
	"github.com/danielribes/ephp/pkg/config"
	"github.com/danielribes/ephp/pkg/serialize"
	"github.com/danielribes/ephp/pkg/stats"
	"github.com/danielribes/ephp/pkg/telemetry"
	"github.com/danielribes/ephp/pkg/value"
)

var (
	// ErrSessionNotFound indicates a session id with no stored payload.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCorruptSession indicates a stored payload that fails validation.
	ErrCorruptSession = errors.New("corrupt session payload")

	// ErrInvalidSessionID indicates an id unfit for use in a file name.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrStoreClosed indicates use after Close.
	ErrStoreClosed = errors.New("session store is closed")
)

// FilePrefix is prepended to the session id to form the file name.
const FilePrefix = "sess_"

// Store manages session files under the configured directory.
type Store struct {
	cfg        *config.Config
	manifest   *config.Manifest
	compressor *CompressionManager
	codec      CodecID
	serializer *serialize.Codec

	logger    log.Logger
	collector stats.Collector
	tel       telemetry.Telemetry

	mu     sync.RWMutex
	closed bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(logger log.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCollector sets the statistics collector used by the store.
func WithCollector(collector stats.Collector) StoreOption {
	return func(s *Store) {
		s.collector = collector
	}
}

// WithTelemetry sets the telemetry sink used by the store.
func WithTelemetry(tel telemetry.Telemetry) StoreOption {
	return func(s *Store) {
		s.tel = tel
	}
}

// NewStore opens a session store over the manifest's configuration,
// creating the session directory if needed.
func NewStore(manifest *config.Manifest, opts ...StoreOption) (*Store, error) {
	cfg := manifest.GetConfig()
	codec, err := CodecFromName(cfg.SessionCompression)
	if err != nil {
		return nil, err
	}

	compressor, err := NewCompressionManager()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.SessionDir, 0755); err != nil {
		compressor.Close()
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	s := &Store{
		cfg:        cfg,
		manifest:   manifest,
		compressor: compressor,
		codec:      codec,
		serializer: &serialize.Codec{
			MaxDepth:  cfg.SerializeMaxDepth,
			Precision: cfg.SerializePrecision,
		},
		logger:    log.GetDefaultLogger(),
		collector: stats.NewCollector(),
		tel:       telemetry.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateID reports whether id is usable as a session id. Only letters,
// digits, hyphens and commas are allowed, matching what the classic id
// generator emits and keeping path separators out of file names.
func ValidateID(id string) error {
	if id == "" || len(id) > 256 {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == ',':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
		}
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.cfg.SessionDir, FilePrefix+id)
}

// Write serializes root and stores it under id, replacing any previous
// payload atomically.
func (s *Store) Write(ctx context.Context, id string, root value.Value) error {
	start := time.Now()
	ctx, span := s.tel.StartSpan(ctx, "session.write",
		attribute.String(telemetry.AttrSessionID, id),
		attribute.String(telemetry.AttrCodec, s.codec.String()))
	defer span.End()

	if err := ValidateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	encoded, err := s.serializer.Encode(root)
	if err != nil {
		s.collector.TrackError("serialize")
		return fmt.Errorf("failed to serialize session %q: %w", id, err)
	}

	payload, err := s.compressor.Compress([]byte(encoded), s.codec)
	if err != nil {
		s.collector.TrackError("compress")
		return fmt.Errorf("failed to compress session %q: %w", id, err)
	}

	data := EncodeEnvelope(s.codec, payload)
	if err := s.writeFile(s.path(id), data); err != nil {
		s.collector.TrackError("session_write")
		return err
	}

	if err := s.manifest.AddSession(id, start.UnixNano()); err != nil {
		s.logger.Warn("failed to register session %q in manifest: %v", id, err)
	}

	s.collector.TrackSessionWrite()
	s.collector.TrackBytes(true, uint64(len(data)))
	telemetry.RecordDuration(ctx, s.tel, telemetry.OpTypeSessionWrite, start,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSession))
	s.logger.Debug("wrote session %q (%d bytes, codec %s)", id, len(data), s.codec)
	return nil
}

// writeFile lands data under path with a tmp file and a rename, honoring
// the configured sync mode.
func (s *Store) writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if s.cfg.SessionSyncMode == config.SyncImmediate {
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to sync session file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename session file: %w", err)
	}
	return nil
}

// Read loads the payload stored under id and rebuilds the value tree.
func (s *Store) Read(ctx context.Context, id string) (value.Value, error) {
	start := time.Now()
	ctx, span := s.tel.StartSpan(ctx, "session.read",
		attribute.String(telemetry.AttrSessionID, id))
	defer span.End()

	if err := ValidateID(id); err != nil {
		return value.Null, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return value.Null, ErrStoreClosed
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return value.Null, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
		}
		return value.Null, fmt.Errorf("failed to read session %q: %w", id, err)
	}

	codec, payload, err := DecodeEnvelope(data)
	if err != nil {
		s.collector.TrackError("session_corrupt")
		return value.Null, err
	}

	raw, err := s.compressor.Decompress(payload, codec)
	if err != nil {
		s.collector.TrackError("session_corrupt")
		return value.Null, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}

	root, err := s.serializer.Decode(string(raw))
	if err != nil {
		s.collector.TrackError("session_corrupt")
		return value.Null, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}

	s.collector.TrackBytes(false, uint64(len(data)))
	telemetry.RecordDuration(ctx, s.tel, telemetry.OpTypeSessionRead, start,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSession))
	return root, nil
}

// Destroy removes the session file and its manifest entry. Destroying an
// unknown id is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	_, span := s.tel.StartSpan(ctx, "session.destroy",
		attribute.String(telemetry.AttrSessionID, id))
	defer span.End()

	if err := ValidateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.destroyLocked(id)
}

func (s *Store) destroyLocked(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session %q: %w", id, err)
	}
	if err := s.manifest.RemoveSession(id); err != nil {
		s.logger.Warn("failed to drop session %q from manifest: %v", id, err)
	}
	return nil
}

// Purge destroys every session whose last write is older than the
// configured maximum age, returning how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	_, span := s.tel.StartSpan(ctx, "session.purge")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-time.Duration(s.cfg.SessionMaxAge) * time.Second)
	purged := 0
	for id, generation := range s.manifest.GetSessions() {
		if time.Unix(0, generation).After(cutoff) {
			continue
		}
		if err := s.destroyLocked(id); err != nil {
			return purged, err
		}
		s.collector.TrackSessionPurge()
		purged++
	}
	if purged > 0 {
		s.logger.Info("purged %d expired sessions", purged)
	}
	return purged, nil
}

// RestoreSummary reports what a directory scan found.
type RestoreSummary struct {
	FilesScanned int
	Restored     int
	Corrupted    int
	Duration     time.Duration
}

// Restore scans the session directory, validates each file's envelope and
// rebuilds the manifest registry. Files that fail validation are counted
// and left in place.
func (s *Store) Restore(ctx context.Context) (*RestoreSummary, error) {
	_, span := s.tel.StartSpan(ctx, "session.restore")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	start := s.collector.StartRestore()
	pattern := filepath.Join(s.cfg.SessionDir, FilePrefix+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session directory: %w", err)
	}
	sort.Strings(matches)

	summary := &RestoreSummary{}
	for _, path := range matches {
		if strings.HasSuffix(path, ".tmp") {
			// leftover from an interrupted write
			os.Remove(path)
			continue
		}
		summary.FilesScanned++

		id := strings.TrimPrefix(filepath.Base(path), FilePrefix)
		if err := ValidateID(id); err != nil {
			summary.Corrupted++
			s.logger.Warn("skipping session file with invalid id: %s", path)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			summary.Corrupted++
			s.logger.Warn("failed to read session file %s: %v", path, err)
			continue
		}
		if _, _, err := DecodeEnvelope(data); err != nil {
			summary.Corrupted++
			s.logger.Warn("skipping corrupted session %q: %v", id, err)
			continue
		}

		generation := time.Now().UnixNano()
		if info, err := os.Stat(path); err == nil {
			generation = info.ModTime().UnixNano()
		}
		if err := s.manifest.AddSession(id, generation); err != nil {
			s.logger.Warn("failed to register restored session %q: %v", id, err)
			continue
		}
		summary.Restored++
	}

	summary.Duration = time.Since(start)
	s.collector.FinishRestore(start,
		uint64(summary.FilesScanned), uint64(summary.Restored), uint64(summary.Corrupted))
	s.logger.Info("session restore: %d scanned, %d restored, %d corrupted in %v",
		summary.FilesScanned, summary.Restored, summary.Corrupted, summary.Duration)
	return summary, nil
}

// List returns the known session ids in lexical order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.manifest.GetSessions()
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether id is registered.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.manifest.GetSessions()[id]
	return ok
}

// Close releases the compressor and, when the sync mode defers syncing to
// close, flushes the session directory.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.cfg.SessionSyncMode == config.SyncOnClose {
		if dir, err := os.Open(s.cfg.SessionDir); err == nil {
			dir.Sync()
			dir.Close()
		}
	}
	return s.compressor.Close()
}

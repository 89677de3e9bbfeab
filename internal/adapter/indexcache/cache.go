// Package indexcache persists the built index as a single compressed JSON
// artifact on local storage, replaced atomically on rebuild.
package indexcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

// formatVersion guards against reading artifacts written by an incompatible
// build. Bump when the envelope or FileRecord layout changes.
const formatVersion = 1

// envelope is the self-describing on-disk form of the index.
type envelope struct {
	FormatVersion int           `json:"format_version"`
	Index         *domain.Index `json:"index"`
}

// Store owns the on-disk cache slot for the index. At most one writer runs
// at a time; readers never observe a partially written artifact because the
// slot is only ever replaced by rename.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a cache store writing to path.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the artifact location.
func (s *Store) Path() string { return s.path }

// Exists reports whether a cached index artifact is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and validates the cached index.
func (s *Store) Load() (*domain.Index, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("indexcache: open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("indexcache: decompress %s: %w", s.path, err)
	}
	defer func() { _ = gz.Close() }()

	var env envelope
	if err := json.NewDecoder(gz).Decode(&env); err != nil {
		return nil, fmt.Errorf("indexcache: decode %s: %w", s.path, err)
	}
	if env.FormatVersion != formatVersion {
		return nil, fmt.Errorf("indexcache: %s has format version %d, want %d",
			s.path, env.FormatVersion, formatVersion)
	}
	if env.Index == nil {
		return nil, fmt.Errorf("indexcache: %s contains no index", s.path)
	}

	s.logger.Info("index loaded from cache",
		zap.String("path", s.path),
		zap.Int("records", len(env.Index.Records)),
		zap.Time("built_at", env.Index.BuiltAt))
	return env.Index, nil
}

// Write persists the index atomically: the artifact is written to a
// temporary file in the same directory and then renamed over the slot, so a
// crash mid-write leaves any previous cache intact.
func (s *Store) Write(ix *domain.Index) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("indexcache: create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("indexcache: create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	gz := gzip.NewWriter(tmp)
	enc := json.NewEncoder(gz)
	if err := enc.Encode(envelope{FormatVersion: formatVersion, Index: ix}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("indexcache: encode index: %w", err)
	}
	if err := gz.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("indexcache: flush compressor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("indexcache: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("indexcache: commit cache artifact: %w", err)
	}

	s.logger.Info("index cache written",
		zap.String("path", s.path), zap.Int("records", len(ix.Records)))
	return nil
}

// Package usecase wires the adapters into the two application services: index
// building and normalized field queries.
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Englacial/ismip-indexing/internal/adapter/objstore"
	"github.com/Englacial/ismip-indexing/internal/domain"
	"github.com/Englacial/ismip-indexing/internal/naming"
)

// ObjectScanner enumerates the dataset in the object store.
type ObjectScanner interface {
	Scan(ctx context.Context, root string) (*objstore.ScanResult, error)
}

// IndexStore persists built indexes between runs.
type IndexStore interface {
	Exists() bool
	Load() (*domain.Index, error)
	Write(*domain.Index) error
}

// IndexService builds the file index and answers lookups against it.
type IndexService struct {
	scanner ObjectScanner
	store   IndexStore
	vocab   *domain.Vocabulary
	root    string
	logger  *zap.Logger

	mu      sync.RWMutex
	current *domain.Index
	byKey   map[domain.RecordKey]domain.FileRecord
}

// NewIndexService creates the index service. root is the prefix under which
// the dataset's projection partitions live ("" for the bucket root).
func NewIndexService(scanner ObjectScanner, store IndexStore, vocab *domain.Vocabulary, root string, logger *zap.Logger) *IndexService {
	return &IndexService{
		scanner: scanner,
		store:   store,
		vocab:   vocab,
		root:    root,
		logger:  logger,
	}
}

// Build returns the index, reusing the cached artifact when one exists.
// With force set the object store is always rescanned and the artifact
// rewritten; without it a valid cache satisfies the call with no object
// store traffic at all.
func (s *IndexService) Build(ctx context.Context, force bool) (*domain.Index, error) {
	if !force && s.store.Exists() {
		ix, err := s.store.Load()
		if err == nil {
			s.logger.Info("index loaded from cache",
				zap.Int("records", len(ix.Records)),
				zap.Time("built_at", ix.BuiltAt))
			s.install(ix)
			return ix, nil
		}
		// An unreadable artifact falls through to a rebuild rather than
		// failing the call.
		s.logger.Warn("cached index unreadable, rebuilding", zap.Error(err))
	}

	res, err := s.scanner.Scan(ctx, s.root)
	if err != nil {
		return nil, fmt.Errorf("usecase: scanning object store: %w", err)
	}

	records := make([]domain.FileRecord, 0, len(res.Objects))
	for _, obj := range res.Objects {
		rec := naming.Extract(obj.Key, s.vocab)
		rec.URI = obj.URI
		rec.SizeBytes = obj.Size
		records = append(records, rec)
	}
	domain.SortRecords(records)
	s.demoteDuplicates(records)

	ix := &domain.Index{
		BuiltAt:      time.Now().UTC(),
		SourceDigest: fmt.Sprintf("objects:%d", len(res.Objects)),
		Records:      records,
	}

	if err := s.store.Write(ix); err != nil {
		return nil, fmt.Errorf("usecase: persisting index: %w", err)
	}
	s.install(ix)

	s.logger.Info("index built",
		zap.Int("records", len(records)),
		zap.Int("available", len(ix.Available())),
		zap.Int("scan_warnings", len(res.Warnings)))
	return ix, nil
}

// demoteDuplicates enforces one available record per key. Records are sorted
// by URI, so the first occurrence of a key stays available; later ones are
// marked unavailable with an audit reason rather than dropped, keeping every
// discovered object reportable.
func (s *IndexService) demoteDuplicates(records []domain.FileRecord) {
	kept := make(map[domain.RecordKey]string)
	for i := range records {
		if !records[i].Available {
			continue
		}
		key := records[i].Key()
		if prev, dup := kept[key]; dup {
			records[i].Available = false
			records[i].Reason = domain.ReasonDuplicateKey
			s.logger.Warn("duplicate record key",
				zap.String("key", key.String()),
				zap.String("kept", prev),
				zap.String("demoted", records[i].URI))
			continue
		}
		kept[key] = records[i].URI
	}
}

// install publishes a freshly built or loaded index for lookups.
func (s *IndexService) install(ix *domain.Index) {
	byKey := make(map[domain.RecordKey]domain.FileRecord, len(ix.Records))
	for _, rec := range ix.Records {
		if !rec.Available {
			continue
		}
		key := rec.Key()
		if prev, dup := byKey[key]; dup {
			// Records are sorted by URI; the first occurrence wins.
			s.logger.Warn("duplicate record key",
				zap.String("key", key.String()),
				zap.String("kept", prev.URI),
				zap.String("ignored", rec.URI))
			continue
		}
		byKey[key] = rec
	}

	s.mu.Lock()
	s.current = ix
	s.byKey = byKey
	s.mu.Unlock()
}

// Index returns the current index, building it on first use.
func (s *IndexService) Index(ctx context.Context) (*domain.Index, error) {
	s.mu.RLock()
	ix := s.current
	s.mu.RUnlock()
	if ix != nil {
		return ix, nil
	}
	return s.Build(ctx, false)
}

// Lookup resolves a record key to its indexed file. Keys that were never
// indexed, and keys whose record is present but unavailable, both return
// ErrNotIndexed.
func (s *IndexService) Lookup(ctx context.Context, key domain.RecordKey) (domain.FileRecord, error) {
	if _, err := s.Index(ctx); err != nil {
		return domain.FileRecord{}, err
	}

	s.mu.RLock()
	rec, ok := s.byKey[key]
	s.mu.RUnlock()
	if !ok {
		return domain.FileRecord{}, fmt.Errorf("usecase: %s: %w", key, domain.ErrNotIndexed)
	}
	return rec, nil
}

// Find returns the available records matching the non-empty fields of want.
// An empty field matches anything, so a caller can ask for e.g. all lithk
// records of one model across experiments.
func (s *IndexService) Find(ctx context.Context, want domain.RecordKey) ([]domain.FileRecord, error) {
	ix, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.FileRecord
	for _, rec := range ix.Available() {
		if matches(rec, want) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Combinations lists the distinct available record keys in index order.
func (s *IndexService) Combinations(ctx context.Context) ([]domain.RecordKey, error) {
	ix, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.RecordKey]bool)
	var out []domain.RecordKey
	for _, rec := range ix.Available() {
		key := rec.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out, nil
}

func matches(rec domain.FileRecord, want domain.RecordKey) bool {
	if want.IceSheet != "" && rec.IceSheet != want.IceSheet {
		return false
	}
	if want.Institution != "" && rec.Institution != want.Institution {
		return false
	}
	if want.Model != "" && rec.Model != want.Model {
		return false
	}
	if want.Experiment != "" && rec.Experiment != want.Experiment {
		return false
	}
	if want.Variable != "" && rec.Variable != want.Variable {
		return false
	}
	return true
}

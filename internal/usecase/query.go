package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Englacial/ismip-indexing/internal/adapter/fieldcache"
	"github.com/Englacial/ismip-indexing/internal/adapter/ncread"
	"github.com/Englacial/ismip-indexing/internal/adapter/regrid"
	"github.com/Englacial/ismip-indexing/internal/domain"
)

// FieldReader loads variable slabs from fetched NetCDF files.
type FieldReader interface {
	NumTimeSteps(path, variable string) (int, error)
	ReadField(path, variable string, timeIndex int) (*ncread.Field, error)
}

// ObjectFetcher streams a single object out of the store.
type ObjectFetcher interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// FieldRequest names one slab of model output and how to resample it.
// Institution may be left empty when the model name is unambiguous.
type FieldRequest struct {
	IceSheet    string
	Institution string
	Model       string
	Experiment  string
	Variable    string

	TimeIndex int

	// Method selects the resampling ("nearest" or "weighted", default
	// nearest); ResolutionKM must be one of the standard resolutions for
	// the ice sheet, 0 meaning the coarsest.
	Method       string
	ResolutionKM float64
}

// NormalizedField is a model output slab resampled onto the shared grid.
type NormalizedField struct {
	Key       domain.RecordKey
	TimeIndex int
	Method    regrid.Method
	Grid      domain.AnalysisGrid
	Values    [][]float64
	Missing   [][]bool
	FromCache bool
}

// QueryService serves normalized fields from indexed model output.
type QueryService struct {
	index    *IndexService
	fetcher  ObjectFetcher
	reader   FieldReader
	registry *regrid.Registry
	cache    *fieldcache.Cache
	logger   *zap.Logger
}

// NewQueryService wires the query path. cache may be nil to disable field
// caching.
func NewQueryService(index *IndexService, fetcher ObjectFetcher, reader FieldReader, registry *regrid.Registry, cache *fieldcache.Cache, logger *zap.Logger) *QueryService {
	return &QueryService{
		index:    index,
		fetcher:  fetcher,
		reader:   reader,
		registry: registry,
		cache:    cache,
		logger:   logger,
	}
}

// FetchNormalized resolves the request against the index, fetches the source
// file, reads the requested time slab, and resamples it onto the standard
// analysis grid for the ice sheet.
func (s *QueryService) FetchNormalized(ctx context.Context, req FieldRequest) (*NormalizedField, error) {
	method, err := regrid.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	resKM := req.ResolutionKM
	if resKM == 0 {
		std := domain.StandardResolutionsKM[req.IceSheet]
		if len(std) == 0 {
			return nil, fmt.Errorf("usecase: unknown ice sheet %q", req.IceSheet)
		}
		resKM = std[0]
	}
	target, err := domain.StandardAnalysisGrid(req.IceSheet, resKM)
	if err != nil {
		return nil, fmt.Errorf("usecase: %w", err)
	}

	rec, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	key := rec.Key()

	cacheKey := fieldcache.Key(key, req.TimeIndex, string(method), int(resKM))
	if s.cache != nil {
		if entry, ok := s.cache.Get(cacheKey); ok {
			return &NormalizedField{
				Key: key, TimeIndex: req.TimeIndex, Method: method,
				Grid: target, Values: entry.Values, Missing: entry.Missing,
				FromCache: true,
			}, nil
		}
	}

	grid, err := s.registry.GridFor(key.IceSheet, key.Model)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := s.download(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	field, err := s.reader.ReadField(path, key.Variable, req.TimeIndex)
	if err != nil {
		return nil, fmt.Errorf("usecase: reading %s: %w: %v", rec.URI, domain.ErrSourceUnreadable, err)
	}

	values, missing, err := regrid.Normalize(field.Values, grid, target, method)
	if err != nil {
		return nil, fmt.Errorf("usecase: normalizing %s: %w", key, err)
	}

	if s.cache != nil {
		s.cache.Put(cacheKey, values, missing)
	}
	s.logger.Debug("field normalized",
		zap.String("key", key.String()),
		zap.Int("time_index", req.TimeIndex),
		zap.String("method", string(method)),
		zap.Float64("resolution_km", resKM))

	return &NormalizedField{
		Key: key, TimeIndex: req.TimeIndex, Method: method,
		Grid: target, Values: values, Missing: missing,
	}, nil
}

// TimeSteps reports how many time slabs the record's file holds.
func (s *QueryService) TimeSteps(ctx context.Context, key domain.RecordKey) (int, error) {
	rec, err := s.index.Lookup(ctx, key)
	if err != nil {
		return 0, err
	}
	path, cleanup, err := s.download(ctx, rec)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	n, err := s.reader.NumTimeSteps(path, key.Variable)
	if err != nil {
		return 0, fmt.Errorf("usecase: reading %s: %w: %v", rec.URI, domain.ErrSourceUnreadable, err)
	}
	return n, nil
}

// resolve maps the request onto exactly one available record.
func (s *QueryService) resolve(ctx context.Context, req FieldRequest) (domain.FileRecord, error) {
	want := domain.RecordKey{
		IceSheet:    req.IceSheet,
		Institution: req.Institution,
		Model:       req.Model,
		Experiment:  req.Experiment,
		Variable:    req.Variable,
	}
	if want.Institution != "" {
		return s.index.Lookup(ctx, want)
	}

	recs, err := s.index.Find(ctx, want)
	if err != nil {
		return domain.FileRecord{}, err
	}
	switch len(recs) {
	case 0:
		return domain.FileRecord{}, fmt.Errorf("usecase: %s: %w", want, domain.ErrNotIndexed)
	case 1:
		return recs[0], nil
	default:
		return domain.FileRecord{}, fmt.Errorf("usecase: %s matches %d records, name the institution", want, len(recs))
	}
}

// download copies the record's object to a temporary local file, since the
// NetCDF library reads from paths, not streams.
func (s *QueryService) download(ctx context.Context, rec domain.FileRecord) (string, func(), error) {
	body, err := s.fetcher.Fetch(ctx, objectKey(rec.URI))
	if err != nil {
		return "", nil, fmt.Errorf("usecase: fetching %s: %w: %v", rec.URI, domain.ErrSourceUnreadable, err)
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp("", "ismip-field-*.nc")
	if err != nil {
		return "", nil, fmt.Errorf("usecase: staging %s: %w", rec.URI, err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("usecase: staging %s: %w: %v", rec.URI, domain.ErrSourceUnreadable, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("usecase: staging %s: %w", rec.URI, err)
	}
	return tmp.Name(), cleanup, nil
}

// objectKey strips the scheme and bucket from a canonical URI, leaving the
// in-bucket key the fetcher expects.
func objectKey(uri string) string {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		if i := strings.Index(uri, "://"); i >= 0 {
			rest = uri[i+3:]
		} else {
			return uri
		}
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i+1:]
	}
	return rest
}

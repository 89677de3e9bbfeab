package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Englacial/ismip-indexing/internal/adapter/fieldcache"
	"github.com/Englacial/ismip-indexing/internal/adapter/ncread"
	"github.com/Englacial/ismip-indexing/internal/adapter/objstore"
	"github.com/Englacial/ismip-indexing/internal/adapter/regrid"
	"github.com/Englacial/ismip-indexing/internal/domain"
)

// fakeFetcher serves object bodies from memory and counts fetches.
type fakeFetcher struct {
	fetches int
	err     error
	keys    []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	f.fetches++
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader([]byte("netcdf bytes"))), nil
}

// fakeReader hands back a prepared field regardless of path.
type fakeReader struct {
	field *ncread.Field
	steps int
	err   error
}

func (f *fakeReader) NumTimeSteps(path, variable string) (int, error) {
	return f.steps, f.err
}

func (f *fakeReader) ReadField(path, variable string, timeIndex int) (*ncread.Field, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.field, nil
}

// constantField fills the model grid with a single value.
func constantField(grid *domain.GridDefinition, v float64) *ncread.Field {
	ny, nx := grid.Dims()
	values := make([][]float64, ny)
	for j := range values {
		values[j] = make([]float64, nx)
		for i := range values[j] {
			values[j][i] = v
		}
	}
	return &ncread.Field{Values: values, NY: ny, NX: nx}
}

type queryFixture struct {
	svc     *QueryService
	fetcher *fakeFetcher
	reader  *fakeReader
}

func newQueryFixture(t *testing.T, cache *fieldcache.Cache) *queryFixture {
	t.Helper()

	scanner := &fakeScanner{objects: []objstore.Object{
		obj("Projection-AIS/AWI/PISM1/exp05/lithk_AIS_AWI_PISM1_exp05.nc", 100),
	}}
	index := newTestService(scanner, &memStore{})

	reg := regrid.NewRegistry()
	grid, err := regrid.UniformGrid("PISM1", "AIS", 32)
	require.NoError(t, err)
	require.NoError(t, reg.Register("AIS", grid))

	fetcher := &fakeFetcher{}
	reader := &fakeReader{field: constantField(grid, 7), steps: 3}
	return &queryFixture{
		svc:     NewQueryService(index, fetcher, reader, reg, cache, zap.NewNop()),
		fetcher: fetcher,
		reader:  reader,
	}
}

func lithkRequest() FieldRequest {
	return FieldRequest{
		IceSheet: "AIS", Institution: "AWI", Model: "PISM1",
		Experiment: "exp05", Variable: "lithk",
		ResolutionKM: 32,
	}
}

func TestFetchNormalized(t *testing.T) {
	fx := newQueryFixture(t, nil)

	out, err := fx.svc.FetchNormalized(context.Background(), lithkRequest())
	require.NoError(t, err)

	assert.Equal(t, regrid.MethodNearest, out.Method)
	assert.Equal(t, "AIS", out.Grid.IceSheet)
	require.Len(t, out.Values, out.Grid.NY)
	require.Len(t, out.Values[0], out.Grid.NX)

	// The model grid spans the whole domain, so every target cell resolves.
	assert.Equal(t, 7.0, out.Values[0][0])
	assert.Equal(t, 7.0, out.Values[out.Grid.NY-1][out.Grid.NX-1])
	assert.False(t, out.Missing[0][0])

	// The fetcher received the in-bucket key, not the canonical URI.
	require.Len(t, fx.fetcher.keys, 1)
	assert.Equal(t, "Projection-AIS/AWI/PISM1/exp05/lithk_AIS_AWI_PISM1_exp05.nc", fx.fetcher.keys[0])
}

func TestFetchNormalized_CacheAvoidsRefetch(t *testing.T) {
	fx := newQueryFixture(t, fieldcache.New(8))
	ctx := context.Background()

	first, err := fx.svc.FetchNormalized(ctx, lithkRequest())
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	require.Equal(t, 1, fx.fetcher.fetches)

	second, err := fx.svc.FetchNormalized(ctx, lithkRequest())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, fx.fetcher.fetches, "cached field must not refetch the object")
	assert.Equal(t, first.Values, second.Values)

	// A different time index is a different cache entry.
	req := lithkRequest()
	req.TimeIndex = 1
	_, err = fx.svc.FetchNormalized(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.fetcher.fetches)
}

func TestFetchNormalized_InstitutionInferred(t *testing.T) {
	fx := newQueryFixture(t, nil)

	req := lithkRequest()
	req.Institution = ""
	out, err := fx.svc.FetchNormalized(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "AWI", out.Key.Institution)
}

func TestFetchNormalized_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not indexed", func(t *testing.T) {
		fx := newQueryFixture(t, nil)
		req := lithkRequest()
		req.Experiment = "exp99"
		_, err := fx.svc.FetchNormalized(ctx, req)
		assert.ErrorIs(t, err, domain.ErrNotIndexed)
	})

	t.Run("unknown model grid", func(t *testing.T) {
		scanner := &fakeScanner{objects: []objstore.Object{
			obj("Projection-AIS/VUW/PISM/exp05/lithk_AIS_VUW_PISM_exp05.nc", 1),
		}}
		index := newTestService(scanner, &memStore{})
		svc := NewQueryService(index, &fakeFetcher{}, &fakeReader{}, regrid.NewRegistry(), nil, zap.NewNop())

		_, err := svc.FetchNormalized(ctx, FieldRequest{
			IceSheet: "AIS", Institution: "VUW", Model: "PISM",
			Experiment: "exp05", Variable: "lithk", ResolutionKM: 32,
		})
		assert.ErrorIs(t, err, domain.ErrUnknownModelGrid)
	})

	t.Run("unreadable source", func(t *testing.T) {
		fx := newQueryFixture(t, nil)
		fx.fetcher.err = errors.New("object gone")
		_, err := fx.svc.FetchNormalized(ctx, lithkRequest())
		assert.ErrorIs(t, err, domain.ErrSourceUnreadable)
	})

	t.Run("bad method", func(t *testing.T) {
		fx := newQueryFixture(t, nil)
		req := lithkRequest()
		req.Method = "bilinear"
		_, err := fx.svc.FetchNormalized(ctx, req)
		assert.Error(t, err)
	})

	t.Run("nonstandard resolution", func(t *testing.T) {
		fx := newQueryFixture(t, nil)
		req := lithkRequest()
		req.ResolutionKM = 7
		_, err := fx.svc.FetchNormalized(ctx, req)
		assert.Error(t, err)
	})
}

func TestTimeSteps(t *testing.T) {
	fx := newQueryFixture(t, nil)

	n, err := fx.svc.TimeSteps(context.Background(), domain.RecordKey{
		IceSheet: "AIS", Institution: "AWI", Model: "PISM1",
		Experiment: "exp05", Variable: "lithk",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

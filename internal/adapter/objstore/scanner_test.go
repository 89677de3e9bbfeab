package objstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLister serves canned pages and can be told to fail specific prefixes.
type fakeLister struct {
	mu         sync.Mutex
	partitions []string
	pages      map[string][][]Object // prefix -> pages
	failures   map[string]int        // prefix -> remaining failures before success
	calls      int
}

func (f *fakeLister) ListPartitions(_ context.Context, _ string) ([]string, error) {
	return f.partitions, nil
}

func (f *fakeLister) ListPage(_ context.Context, prefix, token string) ([]Object, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if n := f.failures[prefix]; n > 0 {
		f.failures[prefix] = n - 1
		return nil, "", errors.New("transient listing error")
	}

	pages := f.pages[prefix]
	page := 0
	if token != "" {
		fmt.Sscanf(token, "page-%d", &page)
	}
	if page >= len(pages) {
		return nil, "", nil
	}
	next := ""
	if page+1 < len(pages) {
		next = fmt.Sprintf("page-%d", page+1)
	}
	return pages[page], next, nil
}

func obj(key string) Object {
	return Object{Key: key, URI: "gs://ismip6/" + key, Size: 1024}
}

func newTestScanner(l Lister, opts ...ScannerOption) *Scanner {
	opts = append([]ScannerOption{WithRetry(2, time.Millisecond)}, opts...)
	return NewScanner(l, zap.NewNop(), opts...)
}

func TestScanner_EnumeratesAllPartitions(t *testing.T) {
	lister := &fakeLister{
		partitions: []string{"Projection-AIS/", "Projection-GIS/", "docs/"},
		pages: map[string][][]Object{
			"Projection-AIS/": {
				{obj("Projection-AIS/AWI/PISM1/exp05/lithk_AIS_AWI_PISM1_exp05.nc")},
				{obj("Projection-AIS/AWI/PISM1/exp05/orog_AIS_AWI_PISM1_exp05.nc")},
			},
			"Projection-GIS/": {
				{obj("Projection-GIS/NCAR/CISM/exp05/lithk_GIS_NCAR_CISM_exp05.nc")},
			},
		},
	}

	res, err := newTestScanner(lister).Scan(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, res.Objects, 3)
	assert.Empty(t, res.Warnings)
	// Key order is deterministic.
	assert.True(t, res.Objects[0].Key < res.Objects[1].Key)
	assert.True(t, res.Objects[1].Key < res.Objects[2].Key)
	// The docs/ prefix is not a projection partition and is never paged.
	assert.NotContains(t, lister.pages, "docs/")
}

func TestScanner_DeduplicatesByURI(t *testing.T) {
	dup := obj("Projection-AIS/AWI/PISM1/exp05/lithk_AIS_AWI_PISM1_exp05.nc")
	lister := &fakeLister{
		partitions: []string{"Projection-AIS/"},
		pages: map[string][][]Object{
			// The same object appears on two pages, as overlapping listings can produce.
			"Projection-AIS/": {{dup}, {dup}},
		},
	}

	res, err := newTestScanner(lister).Scan(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, res.Objects, 1)
}

func TestScanner_RetriesTransientFailures(t *testing.T) {
	lister := &fakeLister{
		partitions: []string{"Projection-AIS/"},
		pages: map[string][][]Object{
			"Projection-AIS/": {{obj("Projection-AIS/AWI/PISM1/exp05/lithk.nc")}},
		},
		// Two failures, then success: inside the retry budget.
		failures: map[string]int{"Projection-AIS/": 2},
	}

	res, err := newTestScanner(lister).Scan(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, res.Objects, 1)
	assert.Empty(t, res.Warnings)
}

func TestScanner_SkipsStalledPartitionWithWarning(t *testing.T) {
	lister := &fakeLister{
		partitions: []string{"Projection-AIS/", "Projection-GIS/"},
		pages: map[string][][]Object{
			"Projection-GIS/": {{obj("Projection-GIS/NCAR/CISM/exp05/lithk.nc")}},
		},
		// More failures than the retry budget: the partition is skipped.
		failures: map[string]int{"Projection-AIS/": 100},
	}

	res, err := newTestScanner(lister).Scan(context.Background(), "")
	require.NoError(t, err)

	// The healthy partition still contributed.
	assert.Len(t, res.Objects, 1)
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.Contains(res.Warnings[0], "Projection-AIS/"))
}

func TestScanner_CancellationAbortsScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &fakeLister{
		partitions: []string{"Projection-AIS/"},
		failures:   map[string]int{"Projection-AIS/": 100},
	}

	_, err := newTestScanner(lister).Scan(ctx, "")
	assert.Error(t, err)
}

func TestScanner_BoundedConcurrency(t *testing.T) {
	// Many partitions, concurrency 2: the fake counts overlapping calls.
	var mu sync.Mutex
	active, peak := 0, 0

	lister := &trackingLister{
		onPage: func() {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		},
	}

	_, err := newTestScanner(lister, WithConcurrency(2)).Scan(context.Background(), "")
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

type trackingLister struct {
	onPage func()
}

func (l *trackingLister) ListPartitions(context.Context, string) ([]string, error) {
	prefixes := make([]string, 8)
	for i := range prefixes {
		prefixes[i] = fmt.Sprintf("Projection-AIS/part%d/", i)
	}
	return prefixes, nil
}

func (l *trackingLister) ListPage(_ context.Context, prefix, _ string) ([]Object, string, error) {
	l.onPage()
	return []Object{{Key: prefix + "lithk.nc", URI: "gs://ismip6/" + prefix + "lithk.nc"}}, "", nil
}

package fieldcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

func testField(v float64) ([][]float64, [][]bool) {
	return [][]float64{{v}}, [][]bool{{false}}
}

func TestCache_GetPut(t *testing.T) {
	c := New(4)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	values, mask := testField(42)
	c.Put("a", values, mask)

	entry, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42.0, entry.Values[0][0])
	assert.False(t, entry.Missing[0][0])

	hits, misses, _ := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)

	va, ma := testField(1)
	vb, mb := testField(2)
	vc, mc := testField(3)

	c.Put("a", va, ma)
	c.Put("b", vb, mb)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", vc, mc)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	_, _, evictions := c.Stats()
	assert.Equal(t, int64(1), evictions)
	assert.Equal(t, 2, c.Len())
}

func TestCache_PutUpdatesExisting(t *testing.T) {
	c := New(2)

	v1, m1 := testField(1)
	c.Put("a", v1, m1)

	v2, m2 := testField(9)
	c.Put("a", v2, m2)

	entry, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 9.0, entry.Values[0][0])
	assert.Equal(t, 1, c.Len())
}

func TestCache_MinimumCapacity(t *testing.T) {
	c := New(0)
	v, m := testField(1)
	c.Put("a", v, m)
	assert.Equal(t, 1, c.Len())
}

func TestKey(t *testing.T) {
	rk := domain.RecordKey{
		IceSheet:    "AIS",
		Institution: "AWI",
		Model:       "PISM1",
		Experiment:  "exp05",
		Variable:    "lithk",
	}
	got := Key(rk, 3, "nearest", 8)
	assert.Equal(t, fmt.Sprintf("%s@3/nearest/8km", rk.String()), got)
	assert.NotEqual(t, got, Key(rk, 3, "weighted", 8))
	assert.NotEqual(t, got, Key(rk, 4, "nearest", 8))
}

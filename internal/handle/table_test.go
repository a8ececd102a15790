package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct{ name string }

func TestLocalExports_NeverReusesHandles(t *testing.T) {
	tbl := NewLocalExports()
	h1 := tbl.Export(&fakeObject{"a"}, 1)
	tbl.Decref(h1, 1)
	h2 := tbl.Export(&fakeObject{"b"}, 1)
	assert.NotEqual(t, h1, h2)
}

func TestLocalExports_IdempotentForIdentityEqualObject(t *testing.T) {
	tbl := NewLocalExports()
	obj := &fakeObject{"a"}

	h1 := tbl.Export(obj, 1)
	h2 := tbl.Export(obj, 1)

	assert.Equal(t, h1, h2)
	assert.Equal(t, int64(2), tbl.RefCount(h1))
}

func TestLocalExports_DistinctObjectsGetDistinctHandles(t *testing.T) {
	tbl := NewLocalExports()
	h1 := tbl.Export(&fakeObject{"a"}, 1)
	h2 := tbl.Export(&fakeObject{"b"}, 1)
	assert.NotEqual(t, h1, h2)
}

func TestLocalExports_DecrefFreesAtZero(t *testing.T) {
	tbl := NewLocalExports()
	h := tbl.Export(&fakeObject{"a"}, 1)

	tbl.Decref(h, 1)

	_, _, ok := tbl.Lookup(h)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}

func TestLocalExports_DecrefNeverGoesNegative(t *testing.T) {
	tbl := NewLocalExports()
	h := tbl.Export(&fakeObject{"a"}, 1)

	tbl.Decref(h, 5) // over-decref: more than the refcount held

	assert.LessOrEqual(t, tbl.RefCount(h), int64(0))
	_, _, ok := tbl.Lookup(h)
	assert.False(t, ok)
}

func TestLocalExports_RaceBetweenReexportAndRelease(t *testing.T) {
	// A decref carrying the original count must
	// not undo a re-incref that happened after it was issued.
	tbl := NewLocalExports()
	obj := &fakeObject{"a"}

	h := tbl.Export(obj, 1) // refcount 1
	tbl.Incref(h, 1)        // refcount 2, simulating a re-export in flight
	tbl.Decref(h, 1)        // the original release, count=1

	_, _, ok := tbl.Lookup(h)
	require.True(t, ok, "handle must survive: net refcount is still positive")
	assert.Equal(t, int64(1), tbl.RefCount(h))
}

func TestLocalExports_ReleaseAllEmptiesTable(t *testing.T) {
	tbl := NewLocalExports()
	tbl.Export(&fakeObject{"a"}, 1)
	tbl.Export(&fakeObject{"b"}, 1)

	tbl.ReleaseAll()

	assert.Equal(t, 0, tbl.Len())
}

func TestLocalExports_UncomparableObjectsAlwaysGetFreshHandles(t *testing.T) {
	tbl := NewLocalExports()
	slice := []int{1, 2, 3}

	h1 := tbl.Export(slice, 1)
	h2 := tbl.Export(slice, 1)

	assert.NotEqual(t, h1, h2, "slices have no stable identity, so no dedup is possible")
}

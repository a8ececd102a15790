package handle

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShim struct{ typeID uint64 }

func TestRemoteImports_FetchesOnceThenCaches(t *testing.T) {
	cache := NewRemoteImports[fakeShim]()
	calls := 0
	fetch := func() *fakeShim {
		calls++
		return &fakeShim{typeID: 7}
	}

	first := cache.ImportOrFetch(1, fetch)
	second := cache.ImportOrFetch(1, fetch)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRemoteImports_DistinctHandlesDoNotShare(t *testing.T) {
	cache := NewRemoteImports[fakeShim]()
	a := cache.ImportOrFetch(1, func() *fakeShim { return &fakeShim{typeID: 1} })
	b := cache.ImportOrFetch(2, func() *fakeShim { return &fakeShim{typeID: 2} })
	assert.NotSame(t, a, b)
}

func TestRemoteImports_ForgetDropsEntry(t *testing.T) {
	cache := NewRemoteImports[fakeShim]()
	cache.ImportOrFetch(1, func() *fakeShim { return &fakeShim{} })
	require.NotNil(t, cache.Peek(1))

	cache.Forget(1)

	assert.Nil(t, cache.Peek(1))
}

func TestRemoteImports_RefetchesAfterCollection(t *testing.T) {
	cache := NewRemoteImports[fakeShim]()
	calls := 0
	fetch := func() *fakeShim {
		calls++
		return &fakeShim{typeID: uint64(calls)}
	}

	shim := cache.ImportOrFetch(1, fetch)
	_ = shim
	shim = nil

	// Force a collection cycle; the weak pointer should no longer
	// resolve once nothing else holds the shim alive.
	runtime.GC()
	runtime.GC()

	_ = cache.ImportOrFetch(1, fetch)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestRemoteImports_ReleaseAllClearsCache(t *testing.T) {
	cache := NewRemoteImports[fakeShim]()
	cache.ImportOrFetch(1, func() *fakeShim { return &fakeShim{} })

	cache.ReleaseAll()

	assert.Equal(t, 0, cache.Len())
}

package typedesc

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *stubProvider) DescribeClass(name string) (*TypeDescriptor, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if name == "broken" {
		return nil, fmt.Errorf("boom")
	}
	return &TypeDescriptor{Name: name}, nil
}

func TestRegistry_GetOrDescribe_CallsProviderOnceThenCaches(t *testing.T) {
	p := &stubProvider{}
	r := NewRegistry(p)

	d1, err := r.GetOrDescribe("com.example.Widget")
	require.NoError(t, err)
	d2, err := r.GetOrDescribe("com.example.Widget")
	require.NoError(t, err)

	assert.Same(t, d1, d2)
	assert.Equal(t, 1, p.calls)
	assert.NotZero(t, d1.ID)
}

func TestRegistry_GetOrDescribe_AssignsStableIDsAcrossClasses(t *testing.T) {
	r := NewRegistry(&stubProvider{})

	a, err := r.GetOrDescribe("A")
	require.NoError(t, err)
	b, err := r.GetOrDescribe("B")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestRegistry_GetOrDescribe_PropagatesProviderError(t *testing.T) {
	r := NewRegistry(&stubProvider{})
	_, err := r.GetOrDescribe("broken")
	assert.Error(t, err)
}

func TestRegistry_Publish_InstallsPeerDescriptor(t *testing.T) {
	r := NewRegistry(nil)

	r.Publish(42, &TypeDescriptor{Name: "com.example.Remote"})

	d := r.ByID(42)
	require.NotNil(t, d)
	assert.Equal(t, uint64(42), d.ID)
	assert.Same(t, d, r.ByName("com.example.Remote"))
}

func TestRegistry_ByID_UnknownReturnsNil(t *testing.T) {
	r := NewRegistry(nil)
	assert.Nil(t, r.ByID(999))
}

func TestRegistry_ConcurrentGetOrDescribeIsSafe(t *testing.T) {
	r := NewRegistry(&stubProvider{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.GetOrDescribe("com.example.Shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
}

func TestTypeDescriptor_AncestorDistanceAndSubtype(t *testing.T) {
	d := &TypeDescriptor{ID: 3, Ancestors: []uint64{2, 1}}

	assert.Equal(t, 1, d.AncestorDistance(2))
	assert.Equal(t, 2, d.AncestorDistance(1))
	assert.Equal(t, -1, d.AncestorDistance(99))

	assert.True(t, d.IsSubtypeOrEqual(3))
	assert.True(t, d.IsSubtypeOrEqual(1))
	assert.False(t, d.IsSubtypeOrEqual(99))
}

func TestTypeDescriptor_MethodsNamed(t *testing.T) {
	d := &TypeDescriptor{Methods: []MethodDescriptor{
		{Name: "f", Params: []uint64{1}},
		{Name: "f", Params: []uint64{1, 2}},
		{Name: "g"},
	}}

	assert.Len(t, d.MethodsNamed("f"), 2)
	assert.Len(t, d.MethodsNamed("g"), 1)
	assert.Empty(t, d.MethodsNamed("missing"))
}

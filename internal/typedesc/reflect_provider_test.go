package typedesc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Point struct {
	X int32
	Y int32
}

func (p *Point) DistanceTo(other *Point) float64 { return 0 }
func (p *Point) Translate(dx, dy int32)          {}

func newGoRegistry() (*Registry, *GoReflectionProvider) {
	r := NewRegistry(nil)
	p := NewGoReflectionProvider(r)
	r.SetProvider(p)
	return r, p
}

func TestGoReflectionProvider_DescribesFields(t *testing.T) {
	r, p := newGoRegistry()
	p.Register("test.Point", (*Point)(nil))

	desc, err := r.GetOrDescribe("test.Point")
	require.NoError(t, err)

	names := make([]string, 0, len(desc.Fields))
	for _, f := range desc.Fields {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"X", "Y"}, names)
}

func TestGoReflectionProvider_DescribesMethods(t *testing.T) {
	r, p := newGoRegistry()
	p.Register("test.Point", (*Point)(nil))

	desc, err := r.GetOrDescribe("test.Point")
	require.NoError(t, err)

	translate := desc.MethodsNamed("Translate")
	require.Len(t, translate, 1)
	assert.Len(t, translate[0].Params, 2)

	distance := desc.MethodsNamed("DistanceTo")
	require.Len(t, distance, 1)
	assert.Len(t, distance[0].Params, 1)
}

func TestGoReflectionProvider_UnregisteredClassErrors(t *testing.T) {
	r, _ := newGoRegistry()

	_, err := r.GetOrDescribe("never.Registered")
	assert.Error(t, err)
}

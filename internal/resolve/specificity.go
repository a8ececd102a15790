package resolve

import "github.com/deshaw/pjrmi-go/internal/typedesc"

// moreSpecificOrEqual implements the specificity partial order:
// M1 ≺ M2 iff for every parameter position, M1's declared type is a
// subtype-or-equal of M2's declared type, and strictly stricter (not
// equal) in at least one position. It operates purely on the static
// declared signatures, with no argument input.
func moreSpecificOrEqual(registry *typedesc.Registry, m1, m2 typedesc.MethodDescriptor) (lessOrEqual bool, strictlyLess bool) {
	if len(m1.Params) != len(m2.Params) {
		return false, false
	}

	lessOrEqual = true
	for i := range m1.Params {
		p1, p2 := m1.Params[i], m2.Params[i]
		if p1 == p2 {
			continue
		}
		d1 := registry.ByID(p1)
		if d1 == nil || !d1.IsSubtypeOrEqual(p2) {
			lessOrEqual = false
			break
		}
		strictlyLess = true
	}
	return lessOrEqual, strictlyLess && lessOrEqual
}

// specificityOrder precomputes, for a fixed overload set, which
// candidates are strictly more specific than which others. It is built
// once per overload set (conceptually, at descriptor construction) and
// restricted to the surviving candidate indices at call time.
type specificityOrder struct {
	// moreSpecificThan[i] is the set of indices j such that candidate i
	// is strictly more specific than candidate j.
	moreSpecificThan [][]int
}

func buildSpecificityOrder(registry *typedesc.Registry, candidates []typedesc.MethodDescriptor) *specificityOrder {
	n := len(candidates)
	order := &specificityOrder{moreSpecificThan: make([][]int, n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if _, strict := moreSpecificOrEqual(registry, candidates[i], candidates[j]); strict {
				order.moreSpecificThan[i] = append(order.moreSpecificThan[i], j)
			}
		}
	}
	return order
}

// minimalIndices returns the indices within `survivors` (a subset of the
// original candidate indices) that are minimal under the specificity
// order: no other surviving candidate is strictly more specific than
// them.
func (o *specificityOrder) minimalIndices(survivors []int) []int {
	survivorSet := make(map[int]bool, len(survivors))
	for _, s := range survivors {
		survivorSet[s] = true
	}

	isBeaten := make(map[int]bool, len(survivors))
	for _, s := range survivors {
		for _, beaten := range o.moreSpecificThan[s] {
			if survivorSet[beaten] {
				isBeaten[beaten] = true
			}
		}
	}

	var minimal []int
	for _, s := range survivors {
		if !isBeaten[s] {
			minimal = append(minimal, s)
		}
	}
	return minimal
}

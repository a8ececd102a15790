package resolve

import (
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/typedesc"
)

// Resolve implements method overload resolution end to end: candidate filtering,
// per-argument ranking, specificity restriction, and unique-minimal
// selection. candidates is every member named `member` visible on the
// receiver (methods and, for a call on a class object, static methods;
// inherited members are expected to already be flattened into the
// TypeDescriptor by the type registry). The same algorithm resolves
// constructors when candidates holds TypeDescriptor.Constructors and
// member is the class name.
func Resolve(registry *typedesc.Registry, receiver string, member string, candidates []typedesc.MethodDescriptor, args []Arg) (*typedesc.MethodDescriptor, error) {
	arityMatched := filterByArity(candidates, len(args))
	if len(arityMatched) == 0 {
		return nil, pjerrors.NoSuchMethod(receiver, member)
	}

	var survivors []scored
	for i, c := range arityMatched {
		ranks, ok := rankAllArgs(registry, c, args)
		if !ok {
			continue
		}
		survivors = append(survivors, scored{idx: i, ranks: ranks})
	}

	if len(survivors) == 0 {
		return nil, pjerrors.New(pjerrors.CodeTypeMismatch,
			"no overload of %q on %s accepts the supplied argument types", member, receiver)
	}

	// Candidates reachable only via a container conversion are a last
	// resort: if any candidate matches without resorting to one, the
	// container-converted candidates are dropped from consideration
	// entirely rather than competing on specificity.
	if strict := withoutContainerConversion(survivors); len(strict) > 0 {
		survivors = strict
	}

	// Among candidates reached without a container conversion, a lower
	// total rank (closer numeric fit, shorter subtype distance) always
	// dominates a higher one before specificity is even consulted: a
	// narrower overload that fits the actual arguments exactly beats a
	// wider one, even though neither declared signature is a structural
	// subtype of the other.
	survivors = minimalRankSum(survivors)

	if len(survivors) == 1 {
		return &arityMatched[survivors[0].idx], nil
	}

	order := buildSpecificityOrder(registry, arityMatched)

	survivorIdx := make([]int, len(survivors))
	for i, s := range survivors {
		survivorIdx[i] = s.idx
	}

	minimal := order.minimalIndices(survivorIdx)

	if len(minimal) == 1 {
		return &arityMatched[minimal[0]], nil
	}

	signatures := make([]string, 0, len(minimal))
	for _, idx := range minimal {
		signatures = append(signatures, signatureString(arityMatched[idx]))
	}
	return nil, pjerrors.AmbiguousCall(member, signatures)
}

// scored pairs a surviving candidate's index into arityMatched with its
// per-argument compatibility ranks.
type scored struct {
	idx   int
	ranks []int
}

// withoutContainerConversion returns the subset of survivors that reached
// compatibility without relying on a container conversion in any
// argument position.
func withoutContainerConversion(survivors []scored) []scored {
	var out []scored
	for _, s := range survivors {
		strict := true
		for _, rank := range s.ranks {
			if rank >= collectionConversionPenalty {
				strict = false
				break
			}
		}
		if strict {
			out = append(out, s)
		}
	}
	return out
}

// minimalRankSum keeps only the survivors whose total per-argument rank
// equals the lowest total rank present in the set.
func minimalRankSum(survivors []scored) []scored {
	if len(survivors) <= 1 {
		return survivors
	}

	best := sumRanks(survivors[0].ranks)
	for _, s := range survivors[1:] {
		if sum := sumRanks(s.ranks); sum < best {
			best = sum
		}
	}

	var out []scored
	for _, s := range survivors {
		if sumRanks(s.ranks) == best {
			out = append(out, s)
		}
	}
	return out
}

func sumRanks(ranks []int) int {
	total := 0
	for _, r := range ranks {
		total += r
	}
	return total
}

// filterByArity returns every candidate whose arity matches argc,
// honoring a trailing variadic parameter as "argc or more".
func filterByArity(candidates []typedesc.MethodDescriptor, argc int) []typedesc.MethodDescriptor {
	var out []typedesc.MethodDescriptor
	for _, c := range candidates {
		if c.Variadic {
			if argc >= len(c.Params)-1 {
				out = append(out, c)
			}
			continue
		}
		if len(c.Params) == argc {
			out = append(out, c)
		}
	}
	return out
}

// rankAllArgs ranks every argument position of candidate c against
// args, returning (nil, false) the moment any position is incompatible.
func rankAllArgs(registry *typedesc.Registry, c typedesc.MethodDescriptor, args []Arg) ([]int, bool) {
	ranks := make([]int, len(args))
	for i, arg := range args {
		paramTypeID := paramTypeAt(c, i)
		r := rankArg(registry, arg, paramTypeID)
		if !r.ok {
			return nil, false
		}
		ranks[i] = r.rank
	}
	return ranks, true
}

// paramTypeAt returns c's declared parameter type id at position i,
// repeating the variadic element type for positions beyond the fixed
// parameter list.
func paramTypeAt(c typedesc.MethodDescriptor, i int) uint64 {
	if i < len(c.Params) {
		return c.Params[i]
	}
	if c.Variadic && len(c.Params) > 0 {
		return c.Params[len(c.Params)-1]
	}
	return 0
}

func signatureString(m typedesc.MethodDescriptor) string {
	s := m.Name + "("
	for i, p := range m.Params {
		if i > 0 {
			s += ", "
		}
		s += typeIDString(p)
	}
	return s + ")"
}

func typeIDString(id uint64) string {
	return "#" + itoa(id)
}

func itoa(id uint64) string {
	if id == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}

package bounds

import (
	"fmt"
	"math"

	"kelly-curve-lab/internal/domain"
)

// Default bound lists.
var (
	DefaultLower = []string{"zero", "parity", "monotonicity", "calendar"}
	DefaultUpper = []string{"intrinsic_cap", "monotonicity", "convexity", "calendar"}
)

var registry = map[Kind]map[string]ArbitrageBound{
	KindLower: {
		"zero":         Zero{},
		"parity":       Parity{},
		"monotonicity": Monotonicity{Side: KindLower},
		"calendar":     Calendar{Side: KindLower},
	},
	KindUpper: {
		"intrinsic_cap": IntrinsicCap{},
		"monotonicity":  Monotonicity{Side: KindUpper},
		"convexity":     Convexity{},
		"calendar":      Calendar{Side: KindUpper},
	},
}

// Names returns the registered bound names for a side.
func Names(kind Kind) []string {
	out := make([]string, 0, len(registry[kind]))
	for name := range registry[kind] {
		out = append(out, name)
	}
	return out
}

// BoundaryConstraintSet is the ordered lower and upper bounds applied to one
// curve request. The zero value has no bounds.
type BoundaryConstraintSet struct {
	Lower []ArbitrageBound
	Upper []ArbitrageBound
}

// Build resolves bound names into a BoundaryConstraintSet.
func Build(lower, upper []string) (BoundaryConstraintSet, error) {
	var set BoundaryConstraintSet
	for _, name := range lower {
		b, ok := registry[KindLower][name]
		if !ok {
			return BoundaryConstraintSet{}, fmt.Errorf("%w: lower %q", ErrUnknownBound, name)
		}
		set.Lower = append(set.Lower, b)
	}
	for _, name := range upper {
		b, ok := registry[KindUpper][name]
		if !ok {
			return BoundaryConstraintSet{}, fmt.Errorf("%w: upper %q", ErrUnknownBound, name)
		}
		set.Upper = append(set.Upper, b)
	}
	return set, nil
}

// Interval returns [max of lower bounds, min of upper bounds]. Sides without
// an applicable bound are -Inf and +Inf.
func (s BoundaryConstraintSet) Interval(ctx domain.BoundContext) (lo, hi float64, err error) {
	lo, hi = math.Inf(-1), math.Inf(1)
	for _, b := range s.Lower {
		if v, ok := b.Bound(ctx); ok {
			lo = math.Max(lo, v)
		}
	}
	for _, b := range s.Upper {
		if v, ok := b.Bound(ctx); ok {
			hi = math.Min(hi, v)
		}
	}
	if lo > hi {
		return lo, hi, fmt.Errorf("%w: lower %g > upper %g", ErrNoFeasibleBound, lo, hi)
	}
	return lo, hi, nil
}

package recipe

import (
	"math"
	"regexp"
	"strconv"
)

// Unbounded is the upper bound used for open ranges at serialization
// boundaries (wire and tag forms).
const Unbounded = math.MaxInt32

var (
	atLeastToken = regexp.MustCompile(`^(\d+)\+$`)
	boundedToken = regexp.MustCompile(`^(\d+) to (\d+)$`)
	singleToken  = regexp.MustCompile(`^(\d+)$`)
)

// OverrideRange is an inclusive interval of forge tiers. An open range has
// no upper bound ("N+"). The zero value is the single tier 0.
//
// OverrideRange is comparable and usable as a map key.
type OverrideRange struct {
	lower int
	upper int
	open  bool
}

// AtLeast returns the open range [n, ∞).
func AtLeast(n int) OverrideRange {
	return OverrideRange{lower: n, open: true}
}

// Bounded returns [lower, upper]. An upper bound of Unbounded yields the
// open range, so both spellings compare equal after a round trip.
func Bounded(lower, upper int) (OverrideRange, error) {
	if lower < 0 || upper < 0 {
		return OverrideRange{}, formatErr("range", "override range bounds must be non-negative: %d to %d", lower, upper)
	}
	if lower > upper {
		return OverrideRange{}, formatErr("range", "override range lower bound %d exceeds upper bound %d", lower, upper)
	}
	if upper >= Unbounded {
		return AtLeast(lower), nil
	}
	return OverrideRange{lower: lower, upper: upper}, nil
}

// Single returns [n, n].
func Single(n int) OverrideRange {
	return OverrideRange{lower: n, upper: n}
}

// ParseRange parses an override range token: "N+", "A to B" or "N".
// "A to B" with A greater than B is rejected rather than taken literally,
// so every OverrideRange keeps lower <= upper.
func ParseRange(token string) (OverrideRange, error) {
	invalid := func() (OverrideRange, error) {
		return OverrideRange{}, formatErr(token, "invalid override range token: %s", token)
	}
	atoi := func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		if err != nil || n > Unbounded {
			return 0, false
		}
		return n, true
	}

	if m := atLeastToken.FindStringSubmatch(token); m != nil {
		n, ok := atoi(m[1])
		if !ok {
			return invalid()
		}
		return AtLeast(n), nil
	}
	if m := boundedToken.FindStringSubmatch(token); m != nil {
		lo, ok1 := atoi(m[1])
		hi, ok2 := atoi(m[2])
		if !ok1 || !ok2 {
			return invalid()
		}
		r, err := Bounded(lo, hi)
		if err != nil {
			return OverrideRange{}, formatErr(token, "invalid override range token: %s: %v", token, err)
		}
		return r, nil
	}
	if m := singleToken.FindStringSubmatch(token); m != nil {
		n, ok := atoi(m[1])
		if !ok {
			return invalid()
		}
		return Bounded(n, n)
	}
	return invalid()
}

func (r OverrideRange) Lower() int { return r.lower }

// Upper returns the inclusive upper bound, Unbounded for open ranges.
func (r OverrideRange) Upper() int {
	if r.open {
		return Unbounded
	}
	return r.upper
}

func (r OverrideRange) Open() bool { return r.open }

func (r OverrideRange) Contains(tier int) bool {
	return tier >= r.lower && (r.open || tier <= r.upper)
}

// Compare orders ranges by lower bound, then upper bound.
func (r OverrideRange) Compare(o OverrideRange) int {
	switch {
	case r.lower < o.lower:
		return -1
	case r.lower > o.lower:
		return 1
	}
	ru, ou := r.Upper(), o.Upper()
	switch {
	case ru < ou:
		return -1
	case ru > ou:
		return 1
	}
	return 0
}

// String renders the canonical token accepted by ParseRange.
func (r OverrideRange) String() string {
	switch {
	case r.open:
		return strconv.Itoa(r.lower) + "+"
	case r.lower == r.upper:
		return strconv.Itoa(r.lower)
	default:
		return strconv.Itoa(r.lower) + " to " + strconv.Itoa(r.upper)
	}
}

// OverrideEntry maps a tier range to the output that replaces the base
// output inside it.
type OverrideEntry struct {
	Range  OverrideRange
	Output ItemStack
}

package camera

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AspectRatio is an immutable x:y ratio kept in lowest terms.
// The zero value means "no ratio selected".
type AspectRatio struct {
	x, y int
}

// ErrInvalidRatio is returned for malformed or non-positive ratios.
var ErrInvalidRatio = errors.New("invalid aspect ratio")

// DefaultAspectRatio is used when no ratio is configured.
var DefaultAspectRatio = MustOf(4, 3)

// Of returns the reduced ratio x:y. Both terms must be positive.
func Of(x, y int) (AspectRatio, error) {
	if x <= 0 || y <= 0 {
		return AspectRatio{}, fmt.Errorf("%w: %d:%d", ErrInvalidRatio, x, y)
	}
	g := gcd(x, y)
	return AspectRatio{x: x / g, y: y / g}, nil
}

// MustOf is like Of but panics on invalid input.
func MustOf(x, y int) AspectRatio {
	r, err := Of(x, y)
	if err != nil {
		panic(err)
	}
	return r
}

// RatioOf returns the aspect ratio of a size.
func RatioOf(s Size) (AspectRatio, error) {
	return Of(s.Width, s.Height)
}

// ParseAspectRatio parses "x:y".
func ParseAspectRatio(s string) (AspectRatio, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return AspectRatio{}, fmt.Errorf("%w: malformed %q", ErrInvalidRatio, s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("%w: malformed %q", ErrInvalidRatio, s)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("%w: malformed %q", ErrInvalidRatio, s)
	}
	return Of(x, y)
}

// X returns the first term.
func (r AspectRatio) X() int { return r.x }

// Y returns the second term.
func (r AspectRatio) Y() int { return r.y }

// IsZero reports whether no ratio is set.
func (r AspectRatio) IsZero() bool { return r.x == 0 && r.y == 0 }

// Inverse swaps the terms.
func (r AspectRatio) Inverse() AspectRatio { return AspectRatio{x: r.y, y: r.x} }

// Float returns x/y.
func (r AspectRatio) Float() float64 {
	if r.y == 0 {
		return 0
	}
	return float64(r.x) / float64(r.y)
}

// Matches reports whether a size has exactly this ratio.
func (r AspectRatio) Matches(s Size) bool {
	if r.IsZero() || s.Width <= 0 || s.Height <= 0 {
		return false
	}
	g := gcd(s.Width, s.Height)
	return r.x == s.Width/g && r.y == s.Height/g
}

// Less orders ratios by their float value.
func (r AspectRatio) Less(o AspectRatio) bool {
	// cross-multiplication avoids float rounding
	return r.x*o.y < o.x*r.y
}

func (r AspectRatio) String() string {
	if r.IsZero() {
		return ""
	}
	return strconv.Itoa(r.x) + ":" + strconv.Itoa(r.y)
}

// MarshalText implements encoding.TextMarshaler.
func (r AspectRatio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the zero ratio.
func (r *AspectRatio) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*r = AspectRatio{}
		return nil
	}
	parsed, err := ParseAspectRatio(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// RatioSet is a set of aspect ratios.
type RatioSet map[AspectRatio]struct{}

// NewRatioSet builds a set from the given ratios.
func NewRatioSet(ratios ...AspectRatio) RatioSet {
	s := make(RatioSet, len(ratios))
	for _, r := range ratios {
		s[r] = struct{}{}
	}
	return s
}

// Contains reports membership.
func (s RatioSet) Contains(r AspectRatio) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the members ordered from narrowest to widest.
func (s RatioSet) Sorted() []AspectRatio {
	out := make([]AspectRatio, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Strings returns the sorted members formatted as "x:y".
func (s RatioSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = r.String()
	}
	return out
}

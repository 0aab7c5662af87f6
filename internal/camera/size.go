package camera

import (
	"fmt"
	"sort"
)

// Size is a width x height pair in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Area returns width*height.
func (s Size) Area() int { return s.Width * s.Height }

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// SizeMap groups sizes by aspect ratio. Backends build one per physical camera
// from the device's advertised preview and picture sizes.
type SizeMap struct {
	byRatio map[AspectRatio][]Size
}

// NewSizeMap returns an empty map.
func NewSizeMap() *SizeMap {
	return &SizeMap{byRatio: make(map[AspectRatio][]Size)}
}

// Add inserts a size under its ratio. Duplicates and empty sizes are ignored.
func (m *SizeMap) Add(s Size) bool {
	r, err := RatioOf(s)
	if err != nil {
		return false
	}
	for _, existing := range m.byRatio[r] {
		if existing == s {
			return false
		}
	}
	sizes := append(m.byRatio[r], s)
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Area() < sizes[j].Area() })
	m.byRatio[r] = sizes
	return true
}

// Remove drops a ratio and all of its sizes.
func (m *SizeMap) Remove(r AspectRatio) {
	delete(m.byRatio, r)
}

// Ratios returns every ratio that has at least one size.
func (m *SizeMap) Ratios() RatioSet {
	s := make(RatioSet, len(m.byRatio))
	for r := range m.byRatio {
		s[r] = struct{}{}
	}
	return s
}

// Sizes returns the sizes for a ratio, smallest first.
func (m *SizeMap) Sizes(r AspectRatio) []Size {
	return m.byRatio[r]
}

// Largest returns the biggest size for a ratio.
func (m *SizeMap) Largest(r AspectRatio) (Size, bool) {
	sizes := m.byRatio[r]
	if len(sizes) == 0 {
		return Size{}, false
	}
	return sizes[len(sizes)-1], true
}

// Clear removes everything.
func (m *SizeMap) Clear() {
	m.byRatio = make(map[AspectRatio][]Size)
}

// Len returns the number of ratios.
func (m *SizeMap) Len() int { return len(m.byRatio) }

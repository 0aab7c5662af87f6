package camera

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestAspectRatio_ParseFormatRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parse(format(r)) == r", prop.ForAll(
		func(x, y int) bool {
			r := MustOf(x, y)
			parsed, err := ParseAspectRatio(r.String())
			return err == nil && parsed == r
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, 10000),
	))

	properties.Property("ratios are kept in lowest terms", prop.ForAll(
		func(x, y, k int) bool {
			r := MustOf(x*k, y*k)
			return gcd(r.X(), r.Y()) == 1 && r == MustOf(x, y)
		},
		gen.IntRange(1, 1000),
		gen.IntRange(1, 1000),
		gen.IntRange(1, 50),
	))

	properties.Property("inverse is an involution", prop.ForAll(
		func(x, y int) bool {
			r := MustOf(x, y)
			return r.Inverse().Inverse() == r && r.Inverse().X() == r.Y()
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, 10000),
	))

	properties.TestingRun(t)
}

func TestPreviewSize_CoversView(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("preview covers the view in both dimensions", prop.ForAll(
		func(w, h int, landscape bool) bool {
			display := Orientation0
			if landscape {
				display = Orientation90
			}
			s := PreviewSize(w, h, MustOf(4, 3), display)
			return s.Width >= w && s.Height >= h
		},
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

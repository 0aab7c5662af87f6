package camera

// MeasureMode mirrors how a host layout pass constrains one dimension.
type MeasureMode int

const (
	MeasureUnspecified MeasureMode = iota
	MeasureExactly
	MeasureAtMost
)

// MeasureSpec is one dimension's layout constraint.
type MeasureSpec struct {
	Mode MeasureMode
	Size int
}

// Exactly returns an exact constraint.
func Exactly(size int) MeasureSpec { return MeasureSpec{Mode: MeasureExactly, Size: size} }

// AtMost returns an upper-bound constraint.
func AtMost(size int) MeasureSpec { return MeasureSpec{Mode: MeasureAtMost, Size: size} }

// AdjustBounds derives the free dimension from the fixed one so that the view
// keeps the camera's aspect ratio. When both or neither dimension is exact the
// specs are returned unchanged.
func AdjustBounds(width, height MeasureSpec, ratio AspectRatio) (MeasureSpec, MeasureSpec) {
	if ratio.IsZero() {
		return width, height
	}
	switch {
	case width.Mode == MeasureExactly && height.Mode != MeasureExactly:
		h := int(float64(width.Size) * ratio.Float())
		if height.Mode == MeasureAtMost && height.Size < h {
			h = height.Size
		}
		return width, Exactly(h)
	case width.Mode != MeasureExactly && height.Mode == MeasureExactly:
		w := int(float64(height.Size) * ratio.Float())
		if width.Mode == MeasureAtMost && width.Size < w {
			w = width.Size
		}
		return Exactly(w), height
	}
	return width, height
}

// PreviewSize returns the size the preview surface must be measured at so it
// covers a view of width x height without distortion. Camera ratios are
// landscape; in a portrait display (0 or 180 degrees) the ratio is inverted.
func PreviewSize(width, height int, ratio AspectRatio, display Orientation) Size {
	if ratio.IsZero() {
		return Size{Width: width, Height: height}
	}
	if !display.Landscape() {
		ratio = ratio.Inverse()
	}
	if height < width*ratio.Y()/ratio.X() {
		return Size{Width: width, Height: width * ratio.Y() / ratio.X()}
	}
	return Size{Width: height * ratio.X() / ratio.Y(), Height: height}
}

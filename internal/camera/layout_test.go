package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustBounds(t *testing.T) {
	r := MustOf(4, 3)

	tests := []struct {
		name          string
		width, height MeasureSpec
		wantW, wantH  MeasureSpec
	}{
		{
			name:   "exact width derives height",
			width:  Exactly(300),
			height: MeasureSpec{},
			wantW:  Exactly(300),
			wantH:  Exactly(400),
		},
		{
			name:   "derived height capped by at-most",
			width:  Exactly(300),
			height: AtMost(350),
			wantW:  Exactly(300),
			wantH:  Exactly(350),
		},
		{
			name:   "exact height derives width",
			width:  AtMost(1000),
			height: Exactly(300),
			wantW:  Exactly(400),
			wantH:  Exactly(300),
		},
		{
			name:   "both exact unchanged",
			width:  Exactly(100),
			height: Exactly(100),
			wantW:  Exactly(100),
			wantH:  Exactly(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := AdjustBounds(tt.width, tt.height, r)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestPreviewSize(t *testing.T) {
	// portrait display: 4:3 becomes 3:4
	assert.Equal(t, Size{Width: 300, Height: 400}, PreviewSize(300, 300, MustOf(4, 3), Orientation0))
	// landscape display keeps 4:3
	assert.Equal(t, Size{Width: 400, Height: 300}, PreviewSize(300, 300, MustOf(4, 3), Orientation90))
	assert.Equal(t, Size{Width: 640, Height: 480}, PreviewSize(640, 480, MustOf(4, 3), Orientation270))
	assert.Equal(t, Size{Width: 10, Height: 20}, PreviewSize(10, 20, AspectRatio{}, Orientation0))
}

func TestErrorUnwrap(t *testing.T) {
	cause := ErrInvalidRatio
	err := NewError(ErrorKindStart, cause)
	assert.Equal(t, cause.Error(), err.Error())
	assert.ErrorIs(t, err, ErrInvalidRatio)
	assert.Equal(t, "start", err.Kind.String())
}

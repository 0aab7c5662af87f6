package preview

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/camkit/internal/camera"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestCover(t *testing.T) {
	tests := []struct {
		name     string
		src, dst camera.Size
		want     camera.Size
	}{
		{"landscape into portrait", camera.Size{Width: 640, Height: 480}, camera.Size{Width: 480, Height: 640}, camera.Size{Width: 854, Height: 640}},
		{"same ratio", camera.Size{Width: 640, Height: 480}, camera.Size{Width: 320, Height: 240}, camera.Size{Width: 320, Height: 240}},
		{"wide view", camera.Size{Width: 4, Height: 3}, camera.Size{Width: 1600, Height: 900}, camera.Size{Width: 1600, Height: 1200}},
		{"empty source", camera.Size{}, camera.Size{Width: 10, Height: 20}, camera.Size{Width: 10, Height: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cover(tt.src, tt.dst)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Width, tt.dst.Width)
			assert.GreaterOrEqual(t, got.Height, tt.dst.Height)
		})
	}
}

func TestBuffer_RenderAndSnapshot(t *testing.T) {
	b := NewBuffer(KindTexture)
	assert.False(t, b.HasFrame())
	_, ok := b.Snapshot(4, 4)
	assert.False(t, ok)

	red := color.RGBA{R: 200, A: 255}
	b.Render(solid(64, 48, red))
	b.Render(nil)
	assert.True(t, b.HasFrame())
	assert.Equal(t, uint64(1), b.Frames())

	snap, ok := b.Snapshot(48, 64)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 48, 64), snap.Rect)
	assert.Equal(t, red, snap.RGBAAt(10, 10))

	_, ok = b.Snapshot(0, 10)
	assert.False(t, ok)

	frame, ok := b.Frame()
	require.True(t, ok)
	frame.Pix[0] = 0
	again, _ := b.Frame()
	assert.Equal(t, uint8(200), again.Pix[0])

	b.Reset()
	assert.False(t, b.HasFrame())
	_, ok = b.Frame()
	assert.False(t, ok)
}

func TestBuffer_SurfaceCannotSnapshot(t *testing.T) {
	b := NewBuffer(KindSurface)
	b.Render(solid(8, 8, color.RGBA{G: 255, A: 255}))
	assert.True(t, b.HasFrame())
	_, ok := b.Snapshot(8, 8)
	assert.False(t, ok)
}

func TestBufferProvider(t *testing.T) {
	var p Provider = BufferProvider{}
	assert.Equal(t, KindTexture, p.NewSurface(false).Kind())
	assert.Equal(t, KindSurface, p.NewSurface(true).Kind())

	calls := 0
	p = ProviderFunc(func(fallback bool) Surface {
		calls++
		return NewBuffer(KindSurface)
	})
	assert.Equal(t, KindSurface, p.NewSurface(false).Kind())
	assert.Equal(t, 1, calls)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "texture", KindTexture.String())
	assert.Equal(t, "surface", KindSurface.String())
}

package testutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFrame(t *testing.T) {
	img := Frame(t, 320, 240)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	// text is drawn in the foreground colour somewhere in the middle band
	found := false
	for x := 0; x < 320 && !found; x++ {
		for y := 100; y < 140; y++ {
			if img.RGBAAt(x, y) == (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
				found = true
				break
			}
		}
	}
	assert.True(t, found)
}

func TestCompareImages(t *testing.T) {
	a := Frame(t, 64, 48)
	b := Frame(t, 64, 48)
	assert.True(t, CompareImages(a, b, 0))

	decoded := DecodeJPEG(t, JPEG(t, a))
	assert.True(t, CompareImages(a, decoded, 0.05))
	assert.False(t, CompareImages(a, Frame(t, 32, 48), 1))
}

func TestQRFrame(t *testing.T) {
	img := QRFrame(t, "hello", 200, 200)
	require.NotNil(t, img)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(0, 0))
}

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(root+"/go.mod"))
}

package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FrameConfig describes a synthetic preview frame.
type FrameConfig struct {
	Width      int
	Height     int
	Text       string
	Background color.Color
	Foreground color.Color
	// QR, when set, is encoded as a QR code centred in the frame.
	QR string
}

// DefaultFrameConfig returns a 640x480 labelled frame.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Width:      640,
		Height:     480,
		Text:       "camkit",
		Background: color.RGBA{R: 40, G: 90, B: 160, A: 255},
		Foreground: color.White,
	}
}

// GenerateFrame renders a frame from config.
func GenerateFrame(config FrameConfig) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, config.Width, config.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: config.Background}, image.Point{}, draw.Src)

	if config.QR != "" {
		side := min(config.Width, config.Height) * 3 / 4
		qr, err := qrcode.NewQRCodeWriter().Encode(config.QR, gozxing.BarcodeFormat_QR_CODE, side, side, nil)
		if err != nil {
			return nil, err
		}
		at := image.Pt((config.Width-side)/2, (config.Height-side)/2)
		draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(side, side))}, qr, image.Point{}, draw.Src)
		return img, nil
	}

	if config.Text != "" {
		face := basicfont.Face7x13
		drawer := &font.Drawer{Dst: img, Src: &image.Uniform{C: config.Foreground}, Face: face}
		w := font.MeasureString(face, config.Text).Ceil()
		h := face.Metrics().Height.Ceil()
		drawer.Dot = fixed.P((config.Width-w)/2, (config.Height+h)/2)
		drawer.DrawString(config.Text)
	}
	return img, nil
}

// Frame renders a default labelled frame of the given size.
func Frame(t *testing.T, width, height int) *image.RGBA {
	t.Helper()

	cfg := DefaultFrameConfig()
	cfg.Width, cfg.Height = width, height
	img, err := GenerateFrame(cfg)
	require.NoError(t, err)
	return img
}

// QRFrame renders a frame carrying a QR code with the given contents.
func QRFrame(t *testing.T, contents string, width, height int) *image.RGBA {
	t.Helper()

	cfg := DefaultFrameConfig()
	cfg.Width, cfg.Height = width, height
	cfg.Background = color.White
	cfg.QR = contents
	img, err := GenerateFrame(cfg)
	require.NoError(t, err)
	return img
}

// JPEG encodes img at quality 90.
func JPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)))
	return buf.Bytes()
}

// DecodeJPEG decodes data and fails the test on error.
func DecodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err, "Failed to decode image")
	return img
}

// CompareImages reports whether two images of equal bounds differ on average
// by no more than tolerance (0..1).
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	if bounds1.Dx() != img2.Bounds().Dx() || bounds1.Dy() != img2.Bounds().Dy() {
		return false
	}
	off := img2.Bounds().Min.Sub(bounds1.Min)

	var totalDiff, pixelCount float64
	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x+off.X, y+off.Y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)
			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (totalDiff/pixelCount)/maxDiff <= tolerance
}

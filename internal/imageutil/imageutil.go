// Package imageutil implements the image transforms applied to captured
// pictures: orientation correction, aspect-preserving resize and encoding.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/camkit/internal/camera"
)

// DefaultJPEGQuality matches the quality used for every encoded capture.
const DefaultJPEGQuality = 90

// Error is returned by every transform.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("image transform error in %s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transformer converts capture payloads. Implementations are pure.
type Transformer interface {
	// Rotate applies the orientation recorded in the image metadata to the
	// pixels and re-encodes.
	Rotate(data []byte) ([]byte, error)
	// Resize scales data to fit width x height, keeping its aspect ratio.
	Resize(data []byte, width, height int) ([]byte, error)
	// Encode turns a decoded image into bytes.
	Encode(img image.Image) ([]byte, error)
}

// JPEG is the default Transformer.
type JPEG struct {
	Quality int
}

// NewJPEG returns a JPEG transformer. Out-of-range qualities use the default.
func NewJPEG(quality int) *JPEG {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &JPEG{Quality: quality}
}

// Rotate implements Transformer.
func (j *JPEG) Rotate(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, &Error{Operation: "rotate", Err: err}
	}
	out, err := j.Encode(img)
	if err != nil {
		return nil, &Error{Operation: "rotate", Err: err}
	}
	return out, nil
}

// Resize implements Transformer.
func (j *JPEG) Resize(data []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, &Error{Operation: "resize", Err: fmt.Errorf("invalid target size %dx%d", width, height)}
	}
	img, err := Decode(data)
	if err != nil {
		return nil, &Error{Operation: "resize", Err: err}
	}
	b := img.Bounds()
	fit := FitSize(camera.Size{Width: b.Dx(), Height: b.Dy()}, camera.Size{Width: width, Height: height})
	if fit.Width != b.Dx() || fit.Height != b.Dy() {
		img = imaging.Resize(img, fit.Width, fit.Height, imaging.Lanczos)
	}
	out, err := j.Encode(img)
	if err != nil {
		return nil, &Error{Operation: "resize", Err: err}
	}
	return out, nil
}

// Encode implements Transformer.
func (j *JPEG) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &Error{Operation: "encode", Err: errors.New("input image is nil")}
	}
	q := j.Quality
	if q == 0 {
		q = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, &Error{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// Decode decodes JPEG, PNG or BMP data, applying any EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// DecodeSize returns the pixel size of encoded data without decoding pixels.
func DecodeSize(data []byte) (camera.Size, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return camera.Size{}, &Error{Operation: "decode", Err: err}
	}
	return camera.Size{Width: cfg.Width, Height: cfg.Height}, nil
}

// FitSize scales src by min(dst.W/src.W, dst.H/src.H). The result may be
// larger than src.
func FitSize(src, dst camera.Size) camera.Size {
	if src.Empty() || dst.Empty() {
		return src
	}
	scale := math.Min(float64(dst.Width)/float64(src.Width), float64(dst.Height)/float64(src.Height))
	w := int(math.Round(float64(src.Width) * scale))
	h := int(math.Round(float64(src.Height) * scale))
	return camera.Size{Width: max(w, 1), Height: max(h, 1)}
}

// IsBlank reports whether every pixel of img is zero, i.e. it equals a freshly
// allocated image of the same size and model.
func IsBlank(img image.Image) bool {
	if img == nil {
		return true
	}
	switch m := img.(type) {
	case *image.RGBA:
		return zeroPix(m.Pix, m.Stride, m.Rect.Dx()*4, m.Rect.Dy())
	case *image.NRGBA:
		return zeroPix(m.Pix, m.Stride, m.Rect.Dx()*4, m.Rect.Dy())
	case *image.Gray:
		return zeroPix(m.Pix, m.Stride, m.Rect.Dx(), m.Rect.Dy())
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r|g|bl|a != 0 {
				return false
			}
		}
	}
	return true
}

func zeroPix(pix []byte, stride, rowBytes, rows int) bool {
	for y := 0; y < rows; y++ {
		for _, v := range pix[y*stride : y*stride+rowBytes] {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

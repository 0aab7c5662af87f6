// Package barcode decodes barcodes from preview frames for the
// barcode-augmented camera backends.
package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrNotFound is returned when a frame holds no decodable symbol.
var ErrNotFound = errors.New("barcode: no symbol found")

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatPDF417
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatQR:         "qr",
	FormatDataMatrix: "datamatrix",
	FormatAztec:      "aztec",
	FormatPDF417:     "pdf417",
	FormatCode128:    "code128",
	FormatCode39:     "code39",
	FormatEAN8:       "ean8",
	FormatEAN13:      "ean13",
	FormatUPCA:       "upca",
	FormatUPCE:       "upce",
	FormatITF:        "itf",
	FormatCodabar:    "codabar",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ParseFormat parses a symbology name such as "qr" or "ean13".
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch name {
	case "qrcode":
		return FormatQR, nil
	case "i25":
		return FormatITF, nil
	}
	for f, n := range formatNames {
		if n == name && f != FormatUnknown {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown barcode format: %s", s)
}

// ParseFormats parses a list of symbology names.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Options controls decoding.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means all.
	Formats []Format
	// TryHarder enables a slower, more exhaustive search.
	TryHarder bool
}

// Point is an integer point in frame coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Result is one decoded symbol.
type Result struct {
	Format   Format          `json:"format"`
	Contents string          `json:"contents"`
	Points   []Point         `json:"points,omitempty"`
	BBox     image.Rectangle `json:"-"`
}

// Decoder finds barcodes in an image.
type Decoder interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, img image.Image, opts Options) ([]Result, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	return f(ctx, img, opts)
}

func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(pts[0].X, pts[0].Y, pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
	}
	return r
}

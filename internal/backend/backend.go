// Package backend adapts the platform camera API generations to one camera
// contract. A backend is a single Adapter value tagged with its Variant (tier
// and mode); the tier only changes how the device is opened and which sizes
// and flash rules apply.
package backend

import (
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/camkit/internal/barcode"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/eventloop"
	"github.com/MeKo-Tech/camkit/internal/preview"
)

// Mode selects plain or barcode-augmented behaviour.
type Mode int

const (
	ModePlain Mode = iota
	ModeBarcode
)

func (m Mode) String() string {
	if m == ModeBarcode {
		return "barcode"
	}
	return "none"
}

// ParseMode parses a recognition type: "none" (or "plain") and "barcode".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "plain":
		return ModePlain, nil
	case "barcode":
		return ModeBarcode, nil
	default:
		return ModePlain, fmt.Errorf("invalid recognition type: %s (must be one of: none, barcode)", s)
	}
}

// Variant tags a backend with the tier and mode it was built for.
type Variant struct {
	Tier device.Tier
	Mode Mode
}

func (v Variant) String() string {
	return v.Tier.String() + "/" + v.Mode.String()
}

// Callback receives backend events. Backends call it on the control thread.
type Callback interface {
	OnOpened()
	OnClosed()
	OnPictureTaken(result camera.CaptureResult)
	OnError(err error)
}

// Backend is the camera contract every variant implements.
type Backend interface {
	Variant() Variant

	// Start opens the device and starts the preview. It reports false with a
	// nil error when the device cannot be opened under this API generation.
	Start() (bool, error)
	Stop()
	StopPreview()
	IsOpened() bool

	SetFacing(f camera.Facing)
	Facing() camera.Facing
	SetFlash(f camera.Flash)
	Flash() camera.Flash
	SetAutoFocus(on bool)
	AutoFocus() bool

	SupportedAspectRatios() camera.RatioSet
	// SetAspectRatio reports whether the ratio changed in a way that affects
	// layout.
	SetAspectRatio(r camera.AspectRatio) bool
	AspectRatio() camera.AspectRatio

	SetDisplayOrientation(o camera.Orientation)
	DisplayOrientation() camera.Orientation

	// TakePicture starts an asynchronous hardware capture. The result arrives
	// through Callback.OnPictureTaken or Callback.OnError.
	TakePicture()
	// PreviewSnapshot samples the current preview frame without a hardware
	// capture.
	PreviewSnapshot(width, height int) (image.Image, bool)

	Surface() preview.Surface
	// Barcode returns the barcode controls, or nil for plain variants.
	Barcode() BarcodeControl
}

// BarcodeControl is implemented by barcode-augmented backends.
type BarcodeControl interface {
	EnableBarcodeDetection(enabled bool)
	BarcodeDetectionEnabled() bool
	AddBarcodeListener(fn func(barcode.Result))
}

// Deps are the collaborators shared by every backend a factory builds.
type Deps struct {
	Platform       device.Platform
	Poster         eventloop.Poster
	Decoder        barcode.Decoder
	BarcodeOptions barcode.Options
	CaptureTimeout time.Duration
	Logger         *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Poster == nil {
		d.Poster = eventloop.Inline{}
	}
	if d.Decoder == nil {
		d.Decoder = barcode.NewZXing()
	}
	if d.CaptureTimeout <= 0 {
		d.CaptureTimeout = 10 * time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

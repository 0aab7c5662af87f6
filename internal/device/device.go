// Package device describes the platform camera API that backends drive: the
// capability tier query, camera enumeration and the open camera handle.
package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/camkit/internal/camera"
)

var (
	// ErrLegacyOnly is returned by Platform.OpenSession when the hardware only
	// exposes the legacy API. Backends treat it as an expected start failure.
	ErrLegacyOnly = errors.New("device: camera only supports the legacy API")
	// ErrUnavailable means the camera exists but cannot be opened right now.
	ErrUnavailable = errors.New("device: camera unavailable")
	// ErrNoCamera means no camera matches the requested facing.
	ErrNoCamera = errors.New("device: no camera found")
	// ErrClosed is returned by operations on a closed camera.
	ErrClosed = errors.New("device: camera closed")
)

// Tier is the ordered capability level of the platform camera API.
type Tier int

const (
	TierLegacy Tier = iota
	TierIntermediate
	TierModern
)

func (t Tier) String() string {
	switch t {
	case TierLegacy:
		return "legacy"
	case TierIntermediate:
		return "intermediate"
	case TierModern:
		return "modern"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier parses a tier name. "auto" is not a tier and is rejected here.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy":
		return TierLegacy, nil
	case "intermediate":
		return TierIntermediate, nil
	case "modern":
		return TierModern, nil
	default:
		return TierLegacy, fmt.Errorf("invalid tier: %s (must be one of: legacy, intermediate, modern)", s)
	}
}

// Info describes one physical camera.
type Info struct {
	ID     string        `json:"id" yaml:"id"`
	Facing camera.Facing `json:"facing" yaml:"facing"`
	// SensorOrientation is the clockwise rotation of the sensor relative to the
	// device's natural orientation.
	SensorOrientation camera.Orientation `json:"sensor_orientation" yaml:"sensor_orientation"`
	FlashModes        []camera.Flash     `json:"flash_modes" yaml:"flash_modes"`
	AutoFocus         bool               `json:"auto_focus" yaml:"auto_focus"`
}

// SupportsFlash reports whether f is one of the camera's flash modes.
func (i Info) SupportsFlash(f camera.Flash) bool {
	for _, m := range i.FlashModes {
		if m == f {
			return true
		}
	}
	return false
}

// Params is the full parameter set applied by Camera.Configure.
type Params struct {
	PreviewSize camera.Size
	PictureSize camera.Size
	Flash       camera.Flash
	AutoFocus   bool
	// Rotation is the clockwise rotation applied to preview frames and captures
	// so that they appear upright on the display.
	Rotation camera.Orientation
}

// FrameSink receives preview frames. It is called from the device's own
// goroutine and must not retain frame after returning.
type FrameSink func(frame image.Image)

// Camera is an opened camera handle.
type Camera interface {
	Info() Info
	PreviewSizes() []camera.Size
	PictureSizes() []camera.Size
	// HighResolutionSizes lists picture sizes only reachable through the
	// modern API. Other tiers ignore them.
	HighResolutionSizes() []camera.Size
	Configure(p Params) error
	StartPreview(sink FrameSink) error
	StopPreview()
	// Capture blocks until a still JPEG is available.
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// Platform is the host camera API.
type Platform interface {
	// Tier reports the capability tier of the platform API.
	Tier() Tier
	Cameras() []Info
	// OpenLegacy opens a camera through the legacy API.
	OpenLegacy(id string) (Camera, error)
	// OpenSession opens a camera through the session-based API used by the
	// intermediate and modern tiers. It fails with ErrLegacyOnly when the
	// hardware only implements the legacy layer.
	OpenSession(id string) (Camera, error)
}

// FindFacing returns the first camera facing f.
func FindFacing(p Platform, f camera.Facing) (Info, error) {
	for _, info := range p.Cameras() {
		if info.Facing == f {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("%w: facing %s", ErrNoCamera, f)
}

// Expected reports whether err is a start failure that should trigger a
// backend fallback instead of being surfaced.
func Expected(err error) bool {
	return errors.Is(err, ErrLegacyOnly) || errors.Is(err, ErrUnavailable)
}

package backend

import (
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
)

// MaxPreviewSize caps preview sizes on the session-based tiers.
var MaxPreviewSize = camera.Size{Width: 1920, Height: 1080}

// profile holds everything that differs between tiers.
type profile struct {
	open func(p device.Platform, id string) (device.Camera, error)
	// maxPreview is zero when preview sizes are not capped.
	maxPreview camera.Size
	// highResolution adds the device's high resolution picture sizes.
	highResolution bool
	// flashToOff drops to FlashOff when neither the requested nor the current
	// flash mode is supported. Session tiers keep the current mode instead.
	flashToOff bool
}

func openLegacy(p device.Platform, id string) (device.Camera, error)  { return p.OpenLegacy(id) }
func openSession(p device.Platform, id string) (device.Camera, error) { return p.OpenSession(id) }

func profileFor(t device.Tier) profile {
	switch t {
	case device.TierIntermediate:
		return profile{open: openSession, maxPreview: MaxPreviewSize}
	case device.TierModern:
		return profile{open: openSession, maxPreview: MaxPreviewSize, highResolution: true}
	default:
		return profile{open: openLegacy, flashToOff: true}
	}
}

func (p profile) fitsPreview(s camera.Size) bool {
	if p.maxPreview.Empty() {
		return true
	}
	long, short := max(s.Width, s.Height), min(s.Width, s.Height)
	return long <= p.maxPreview.Width && short <= p.maxPreview.Height
}

// captureRotation is the clockwise rotation that makes sensor output upright
// for the given display orientation.
func captureRotation(info device.Info, display camera.Orientation) camera.Orientation {
	if info.Facing == camera.FacingFront {
		return camera.Orientation((int(info.SensorOrientation) + int(display)) % 360)
	}
	return camera.Orientation((int(info.SensorOrientation) - int(display) + 360) % 360)
}

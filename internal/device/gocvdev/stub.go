//go:build !gocv

package gocvdev

import (
	"errors"

	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
)

// Available reports whether this build links the OpenCV driver.
const Available = false

// ErrNotBuilt is returned by New when the binary was built without the gocv tag.
var ErrNotBuilt = errors.New("gocvdev: built without OpenCV support; rebuild with -tags=gocv")

// New always fails in builds without the gocv tag.
func New(int, camera.Facing) (device.Platform, error) { return nil, ErrNotBuilt }

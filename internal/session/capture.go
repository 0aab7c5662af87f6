package session

import (
	"time"

	"github.com/MeKo-Tech/camkit/internal/callback"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/imageutil"
)

const (
	pathSnapshot = "snapshot"
	pathHardware = "hardware"
)

// captureState is the per-session capture bookkeeping. It is reset by every
// Start.
type captureState struct {
	// forceHardware is the sticky flag: once a blank preview was seen, the
	// snapshot check is skipped until the next session.
	forceHardware bool
	save          bool
	path          string
	started       time.Time
}

func (s *captureState) reset(save bool) {
	*s = captureState{save: save}
}

func (s *captureState) begin(path string) {
	s.path = path
	s.started = time.Now()
}

// snapshotSize is the size preview snapshots are sampled at.
func (c *Controller) snapshotSize() camera.Size {
	if !c.opts.ViewSize.Empty() {
		return c.opts.ViewSize
	}
	return c.opts.PictureSize
}

// TakePicture captures a still picture. A non-blank preview frame is
// delivered directly; otherwise the backend performs a hardware capture whose
// result arrives later on the control thread.
func (c *Controller) TakePicture() error {
	switch c.state {
	case camera.StateOpened:
	case camera.StateCapturing:
		return ErrCaptureInProgress
	default:
		return ErrNotOpened
	}
	c.state = camera.StateCapturing

	if !c.capture.forceHardware {
		size := c.snapshotSize()
		if img, ok := c.active.PreviewSnapshot(size.Width, size.Height); ok {
			if !imageutil.IsBlank(img) {
				c.capture.begin(pathSnapshot)
				c.log.Debug("capturing from preview", "size", size.String())
				c.deliver(camera.ImageResult(img, camera.SourceSnapshot))
				return nil
			}
			c.log.Debug("preview is blank, using hardware capture from now on")
			c.capture.forceHardware = true
		}
	}

	c.capture.begin(pathHardware)
	c.log.Debug("capturing from hardware", "sticky", c.capture.forceHardware)
	c.active.TakePicture()
	return nil
}

// deliver hands a capture result to the multiplexer and returns the session
// to OPENED.
func (c *Controller) deliver(result camera.CaptureResult) {
	if c.state != camera.StateCapturing {
		c.log.Debug("dropping capture result outside a capture", "state", c.state.String())
		return
	}
	c.state = camera.StateOpened
	path, started := c.capture.path, c.capture.started

	err := c.deps.Mux.Deliver(result, callback.Delivery{
		ViewSize:    c.opts.ViewSize,
		PictureSize: c.opts.PictureSize,
		Save:        c.capture.save,
	})
	if err != nil {
		c.deps.Metrics.capture(path, "error", started)
		c.log.Warn("failed to deliver picture", "path", path, "error", err)
		c.deps.Mux.OnError(camera.NewError(camera.ErrorKindCapture, err))
		return
	}
	c.deps.Metrics.capture(path, "ok", started)
}

// captureFailed returns a capturing session to OPENED after a backend error.
func (c *Controller) captureFailed() {
	if c.state != camera.StateCapturing {
		return
	}
	c.state = camera.StateOpened
	c.deps.Metrics.capture(c.capture.path, "error", c.capture.started)
}

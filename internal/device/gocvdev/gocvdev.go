//go:build gocv

// Package gocvdev drives a local webcam through OpenCV. It is only built with
// the gocv tag since it needs the OpenCV shared libraries.
package gocvdev

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
)

// Available reports whether this build links the OpenCV driver.
const Available = true

// Platform exposes one webcam. OpenCV has a single capture API, so it reports
// the legacy tier and OpenSession always fails over to it.
type Platform struct {
	deviceID int
	facing   camera.Facing
}

// New returns a platform for the webcam at the given index.
func New(deviceID int, facing camera.Facing) (device.Platform, error) {
	return &Platform{deviceID: deviceID, facing: facing}, nil
}

// Tier implements device.Platform.
func (p *Platform) Tier() device.Tier { return device.TierLegacy }

// Cameras implements device.Platform.
func (p *Platform) Cameras() []device.Info {
	return []device.Info{{
		ID:         strconv.Itoa(p.deviceID),
		Facing:     p.facing,
		FlashModes: []camera.Flash{camera.FlashOff},
	}}
}

// OpenSession implements device.Platform.
func (p *Platform) OpenSession(id string) (device.Camera, error) {
	return nil, fmt.Errorf("open %s: %w", id, device.ErrLegacyOnly)
}

// OpenLegacy implements device.Platform.
func (p *Platform) OpenLegacy(id string) (device.Camera, error) {
	idx, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", device.ErrNoCamera, id)
	}
	vc, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return nil, fmt.Errorf("open video capture %d: %w", idx, device.ErrUnavailable)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("video capture %d not opened: %w", idx, device.ErrUnavailable)
	}
	return &Camera{info: p.Cameras()[0], vc: vc}, nil
}

// Camera wraps a gocv.VideoCapture.
type Camera struct {
	info device.Info

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	params device.Params
	stop   chan struct{}
	loop   sync.WaitGroup
	last   []byte
}

func (c *Camera) Info() device.Info { return c.info }

func (c *Camera) PreviewSizes() []camera.Size {
	return []camera.Size{{Width: 640, Height: 480}, {Width: 1280, Height: 720}, {Width: 1920, Height: 1080}}
}

func (c *Camera) PictureSizes() []camera.Size { return c.PreviewSizes() }

func (c *Camera) HighResolutionSizes() []camera.Size { return nil }

func (c *Camera) Configure(p device.Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return device.ErrClosed
	}
	c.params = p
	if !p.PreviewSize.Empty() {
		c.vc.Set(gocv.VideoCaptureFrameWidth, float64(p.PreviewSize.Width))
		c.vc.Set(gocv.VideoCaptureFrameHeight, float64(p.PreviewSize.Height))
	}
	c.vc.Set(gocv.VideoCaptureAutoFocus, boolProp(p.AutoFocus))
	return nil
}

func boolProp(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (c *Camera) StartPreview(sink device.FrameSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return device.ErrClosed
	}
	if c.stop != nil {
		return nil
	}
	c.stop = make(chan struct{})
	c.loop.Add(1)
	go c.run(sink, c.stop)
	return nil
}

func (c *Camera) run(sink device.FrameSink, stop <-chan struct{}) {
	defer c.loop.Done()
	mat := gocv.NewMat()
	defer func() { _ = mat.Close() }()
	for {
		select {
		case <-stop:
			return
		default:
		}
		c.mu.Lock()
		ok := c.vc != nil && c.vc.Read(&mat)
		rotation := c.params.Rotation
		c.mu.Unlock()
		if !ok || mat.Empty() {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		rotate(&mat, rotation)
		img, err := mat.ToImage()
		if err != nil {
			continue
		}
		if buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat); err == nil {
			c.mu.Lock()
			c.last = append(c.last[:0], buf.GetBytes()...)
			c.mu.Unlock()
			buf.Close()
		}
		sink(img)
	}
}

func rotate(mat *gocv.Mat, o camera.Orientation) {
	var code gocv.RotateFlag
	switch o {
	case camera.Orientation90:
		code = gocv.Rotate90Clockwise
	case camera.Orientation180:
		code = gocv.Rotate180Clockwise
	case camera.Orientation270:
		code = gocv.Rotate90CounterClockwise
	default:
		return
	}
	dst := gocv.NewMat()
	gocv.Rotate(*mat, &dst, code)
	mat.Close()
	*mat = dst
}

func (c *Camera) StopPreview() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		c.loop.Wait()
	}
}

// Capture grabs a fresh frame, or returns the last preview frame when the
// preview loop owns the device.
func (c *Camera) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil, device.ErrClosed
	}
	if c.stop != nil && len(c.last) > 0 {
		return append([]byte(nil), c.last...), nil
	}
	mat := gocv.NewMat()
	defer func() { _ = mat.Close() }()
	if !c.vc.Read(&mat) || mat.Empty() {
		return nil, fmt.Errorf("read frame from device %s: %w", c.info.ID, device.ErrUnavailable)
	}
	rotate(&mat, c.params.Rotation)
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

func (c *Camera) Close() error {
	c.StopPreview()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}

// Package simulated is an in-process camera platform that renders synthetic
// frames. It backs the tests and the CLI when no real webcam driver is built in.
package simulated

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
)

// Options tunes the simulated hardware.
type Options struct {
	Tier device.Tier
	// FailModern makes OpenSession fail with device.ErrLegacyOnly.
	FailModern bool
	// FailLegacy makes OpenLegacy fail with device.ErrUnavailable.
	FailLegacy bool
	// BlankFrames is the number of all-zero frames emitted after each
	// StartPreview before real content appears.
	BlankFrames int
	// FrameInterval drives a frame loop. Zero means one frame on StartPreview
	// and further frames only through Camera.Emit.
	FrameInterval time.Duration
	// Barcode, when set, is rendered into every frame as a QR code.
	Barcode string
	// CaptureDelay is how long Capture blocks.
	CaptureDelay time.Duration
	// CaptureErr, when set, is returned by every Capture.
	CaptureErr  error
	JPEGQuality int
}

// DefaultOptions returns a modern-tier platform with a 30 fps frame loop.
func DefaultOptions() Options {
	return Options{
		Tier:          device.TierModern,
		FrameInterval: 33 * time.Millisecond,
		JPEGQuality:   90,
	}
}

var (
	previewSizes = []camera.Size{
		{Width: 640, Height: 480}, {Width: 1280, Height: 960}, {Width: 1600, Height: 1200},
		{Width: 1280, Height: 720}, {Width: 1920, Height: 1080}, {Width: 2560, Height: 1440},
		{Width: 720, Height: 720},
	}
	pictureSizes = []camera.Size{
		{Width: 1280, Height: 960}, {Width: 2592, Height: 1944},
		{Width: 1920, Height: 1080}, {Width: 3840, Height: 2160},
	}
	highResolutionSizes = []camera.Size{{Width: 4032, Height: 3024}}
)

// Platform implements device.Platform.
type Platform struct {
	opts    Options
	cameras []device.Info

	mu     sync.Mutex
	opened []*Camera
}

// New returns a platform with one back and one front camera.
func New(opts Options) *Platform {
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = 90
	}
	return &Platform{
		opts: opts,
		cameras: []device.Info{
			{
				ID:                "0",
				Facing:            camera.FacingBack,
				SensorOrientation: camera.Orientation90,
				FlashModes:        []camera.Flash{camera.FlashOff, camera.FlashOn, camera.FlashTorch, camera.FlashAuto, camera.FlashRedEye},
				AutoFocus:         true,
			},
			{
				ID:                "1",
				Facing:            camera.FacingFront,
				SensorOrientation: camera.Orientation270,
				FlashModes:        []camera.Flash{camera.FlashOff},
			},
		},
	}
}

// Tier implements device.Platform.
func (p *Platform) Tier() device.Tier { return p.opts.Tier }

// Cameras implements device.Platform.
func (p *Platform) Cameras() []device.Info {
	out := make([]device.Info, len(p.cameras))
	copy(out, p.cameras)
	return out
}

// OpenLegacy implements device.Platform.
func (p *Platform) OpenLegacy(id string) (device.Camera, error) {
	if p.opts.FailLegacy {
		return nil, fmt.Errorf("open %s: %w", id, device.ErrUnavailable)
	}
	return p.open(id)
}

// OpenSession implements device.Platform.
func (p *Platform) OpenSession(id string) (device.Camera, error) {
	if p.opts.FailModern || p.opts.Tier == device.TierLegacy {
		return nil, fmt.Errorf("open %s: %w", id, device.ErrLegacyOnly)
	}
	return p.open(id)
}

func (p *Platform) open(id string) (*Camera, error) {
	for _, info := range p.cameras {
		if info.ID != id {
			continue
		}
		c := &Camera{platform: p, info: info}
		p.mu.Lock()
		p.opened = append(p.opened, c)
		p.mu.Unlock()
		return c, nil
	}
	return nil, fmt.Errorf("open %s: %w", id, device.ErrNoCamera)
}

// Opened returns every camera handle opened so far, oldest first.
func (p *Platform) Opened() []*Camera {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Camera, len(p.opened))
	copy(out, p.opened)
	return out
}

// Last returns the most recently opened camera, or nil.
func (p *Platform) Last() *Camera {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.opened) == 0 {
		return nil
	}
	return p.opened[len(p.opened)-1]
}

// Camera implements device.Camera.
type Camera struct {
	platform *Platform
	info     device.Info

	mu       sync.Mutex
	params   device.Params
	sink     device.FrameSink
	frames   int
	captures int
	closed   bool
	stop     chan struct{}
	loop     sync.WaitGroup
}

// Info implements device.Camera.
func (c *Camera) Info() device.Info { return c.info }

// PreviewSizes implements device.Camera.
func (c *Camera) PreviewSizes() []camera.Size { return append([]camera.Size(nil), previewSizes...) }

// PictureSizes implements device.Camera.
func (c *Camera) PictureSizes() []camera.Size { return append([]camera.Size(nil), pictureSizes...) }

// HighResolutionSizes implements device.Camera.
func (c *Camera) HighResolutionSizes() []camera.Size {
	return append([]camera.Size(nil), highResolutionSizes...)
}

// Configure implements device.Camera.
func (c *Camera) Configure(p device.Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return device.ErrClosed
	}
	if p.Flash != camera.FlashOff && !c.info.SupportsFlash(p.Flash) {
		return fmt.Errorf("flash mode %s not supported by camera %s", p.Flash, c.info.ID)
	}
	c.params = p
	return nil
}

// Params returns the last applied parameters.
func (c *Camera) Params() device.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// StartPreview implements device.Camera.
func (c *Camera) StartPreview(sink device.FrameSink) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return device.ErrClosed
	}
	if c.sink != nil {
		c.mu.Unlock()
		return nil
	}
	c.sink = sink
	c.frames = 0
	interval := c.platform.opts.FrameInterval
	if interval > 0 {
		c.stop = make(chan struct{})
		c.loop.Add(1)
		go c.run(interval, c.stop)
	}
	c.mu.Unlock()

	if interval <= 0 {
		c.Emit()
	}
	return nil
}

func (c *Camera) run(interval time.Duration, stop <-chan struct{}) {
	defer c.loop.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Emit()
		}
	}
}

// Emit renders one preview frame and hands it to the sink. It reports false
// when the preview is not running.
func (c *Camera) Emit() bool {
	c.mu.Lock()
	sink := c.sink
	if sink == nil {
		c.mu.Unlock()
		return false
	}
	n := c.frames
	c.frames++
	size := c.params.PreviewSize
	c.mu.Unlock()

	if size.Empty() {
		size = camera.Size{Width: 640, Height: 480}
	}
	if n < c.platform.opts.BlankFrames {
		sink(image.NewRGBA(image.Rect(0, 0, size.Width, size.Height)))
		return true
	}
	sink(c.render(size, n))
	return true
}

// StopPreview implements device.Camera.
func (c *Camera) StopPreview() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.sink = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		c.loop.Wait()
	}
}

// Capture implements device.Camera.
func (c *Camera) Capture(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, device.ErrClosed
	}
	c.captures++
	params := c.params
	n := c.frames
	c.mu.Unlock()

	if d := c.platform.opts.CaptureDelay; d > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	if err := c.platform.opts.CaptureErr; err != nil {
		return nil, err
	}

	size := params.PictureSize
	if size.Empty() {
		size = camera.Size{Width: 1280, Height: 960}
	}
	var img image.Image = c.render(size, n)
	switch params.Rotation {
	case camera.Orientation90:
		img = imaging.Rotate270(img)
	case camera.Orientation180:
		img = imaging.Rotate180(img)
	case camera.Orientation270:
		img = imaging.Rotate90(img)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.platform.opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	return buf.Bytes(), nil
}

// Captures returns how many hardware captures were requested.
func (c *Camera) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// Closed reports whether Close was called.
func (c *Camera) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close implements device.Camera.
func (c *Camera) Close() error {
	c.StopPreview()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// render draws a gradient with a caption and, optionally, a QR code.
func (c *Camera) render(size camera.Size, n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	shift := uint8(n % 64)
	for y := 0; y < size.Height; y++ {
		row := img.Pix[y*img.Stride:]
		g := uint8(64 + 127*y/size.Height)
		for x := 0; x < size.Width; x++ {
			i := x * 4
			row[i] = uint8(64+127*x/size.Width) + shift
			row[i+1] = g
			row[i+2] = 160
			row[i+3] = 0xff
		}
	}

	if code := c.platform.opts.Barcode; code != "" {
		side := min(size.Width, size.Height) * 2 / 3
		if qr, err := qrcode.NewQRCodeWriter().Encode(code, gozxing.BarcodeFormat_QR_CODE, side, side, nil); err == nil {
			at := image.Pt((size.Width-side)/2, (size.Height-side)/2)
			draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(side, side))}, qr, image.Point{}, draw.Src)
		}
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: color.White},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, 8+basicfont.Face7x13.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(fmt.Sprintf("camkit %s #%d", c.info.Facing, n))
	return img
}

// Package session owns the active camera backend. It drives the open/close
// lifecycle, falls back to the legacy backend when a newer API generation
// cannot open the device, swaps in barcode-capable backends on demand and
// coordinates still captures.
//
// A Controller is not safe for concurrent use. Every method, and every
// backend callback, must run on the single control thread (see eventloop).
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/camkit/internal/backend"
	"github.com/MeKo-Tech/camkit/internal/barcode"
	"github.com/MeKo-Tech/camkit/internal/callback"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/orientation"
	"github.com/MeKo-Tech/camkit/internal/preview"
)

var (
	// ErrNotOpened is returned by operations that need an open camera.
	ErrNotOpened = errors.New("camera is not opened")
	// ErrCaptureInProgress is returned while a capture is in flight.
	ErrCaptureInProgress = errors.New("capture already in progress")
)

// DefaultPictureSize is the thumbnail size listeners receive by default.
var DefaultPictureSize = camera.Size{Width: 512, Height: 512}

// Options configures a Controller.
type Options struct {
	Tier device.Tier
	Mode backend.Mode
	// Snapshot is replayed onto the first backend.
	Snapshot camera.Snapshot
	// PictureSize is the size of the resized picture every listener receives.
	PictureSize camera.Size
	// ViewSize is the on-screen preview size. Hardware captures are resized
	// to it and preview snapshots are sampled at it.
	ViewSize         camera.Size
	SaveImage        bool
	AdjustViewBounds bool
}

// DefaultOptions returns the options of a freshly constructed camera view.
func DefaultOptions() Options {
	return Options{
		Tier:             device.TierModern,
		Mode:             backend.ModePlain,
		Snapshot:         camera.DefaultSnapshot(),
		PictureSize:      DefaultPictureSize,
		AdjustViewBounds: true,
	}
}

// Deps are the Controller's collaborators. Selector and Mux are required.
type Deps struct {
	Selector    backend.Selector
	Provider    preview.Provider
	Mux         *callback.Mux
	Orientation *orientation.Adapter
	Metrics     *Metrics
	Logger      *slog.Logger
}

// Controller is the session state machine.
type Controller struct {
	opts Options
	deps Deps
	log  *slog.Logger

	active  backend.Backend
	relay   *relay
	state   camera.SessionState
	capture captureState

	barcodeEnabled bool
	fallbackActive bool
}

// New builds a controller and its first backend. No device is opened.
func New(opts Options, deps Deps) (*Controller, error) {
	if deps.Selector == nil {
		return nil, errors.New("session: selector is required")
	}
	if deps.Mux == nil {
		return nil, errors.New("session: callback multiplexer is required")
	}
	if deps.Provider == nil {
		deps.Provider = preview.BufferProvider{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.PictureSize.Empty() {
		opts.PictureSize = DefaultPictureSize
	}
	c := &Controller{
		opts:           opts,
		deps:           deps,
		log:            deps.Logger.With("component", "session"),
		state:          camera.StateClosed,
		barcodeEnabled: opts.Mode == backend.ModeBarcode,
	}
	c.install(backend.Select(opts.Tier, opts.Mode), false, opts.Snapshot, camera.Orientation0)
	return c, nil
}

// install builds the backend for v, replays snap onto it and makes it active.
// The previous backend must already be released.
func (c *Controller) install(v backend.Variant, fallback bool, snap camera.Snapshot, display camera.Orientation) {
	r := &relay{c: c}
	b := c.deps.Selector.New(v, c.deps.Provider.NewSurface(fallback), r)
	c.active, c.relay, c.fallbackActive = b, r, fallback

	replay(b, snap)
	b.SetDisplayOrientation(display)
	if c.deps.Orientation != nil {
		c.deps.Orientation.Attach(b)
	}
	if bc := b.Barcode(); bc != nil {
		bc.EnableBarcodeDetection(c.barcodeEnabled)
		bc.AddBarcodeListener(func(res barcode.Result) {
			if c.relay == r {
				c.deps.Mux.OnBarcode(res)
			}
		})
	}
	c.log.Debug("backend installed", "variant", v.String(), "fallback_surface", fallback)
}

func replay(b backend.Backend, snap camera.Snapshot) {
	b.SetFacing(snap.Facing)
	if !snap.AspectRatio.IsZero() {
		b.SetAspectRatio(snap.AspectRatio)
	}
	b.SetAutoFocus(snap.AutoFocus)
	b.SetFlash(snap.Flash)
}

// release stops b without letting its events reach listeners.
func (c *Controller) release(b backend.Backend) {
	if c.active == b {
		c.relay = nil
	}
	b.Stop()
}

// Start opens the camera. If the active backend refuses, the configuration
// is moved onto a legacy plain backend with a fallback surface and started
// once more. Failures are emitted to listeners and returned.
func (c *Controller) Start() error {
	if c.state != camera.StateClosed {
		return nil
	}
	c.capture.reset(c.opts.SaveImage)
	c.state = camera.StateOpening
	if c.deps.Orientation != nil {
		c.deps.Orientation.Enable()
	}

	v := c.active.Variant()
	ok, err := c.active.Start()
	if err != nil {
		c.deps.Metrics.start(v, "error")
		return c.startFailed(camera.ErrorKindStart, fmt.Errorf("start %s backend: %w", v, err))
	}
	if ok {
		c.deps.Metrics.start(v, "opened")
		c.opened()
		return nil
	}
	c.deps.Metrics.start(v, "refused")

	snap := c.Snapshot()
	display := c.active.DisplayOrientation()
	c.log.Info("backend refused to open, falling back to legacy", "variant", v.String())
	c.deps.Metrics.fallback()
	c.release(c.active)
	c.install(backend.Variant{Tier: device.TierLegacy, Mode: backend.ModePlain}, true, snap, display)

	fv := c.active.Variant()
	ok, err = c.active.Start()
	switch {
	case err != nil:
		c.deps.Metrics.start(fv, "error")
		return c.startFailed(camera.ErrorKindFallback, fmt.Errorf("start fallback backend: %w", err))
	case !ok:
		c.deps.Metrics.start(fv, "refused")
		return c.startFailed(camera.ErrorKindFallback, fmt.Errorf("start fallback backend: %w", device.ErrUnavailable))
	}
	c.deps.Metrics.start(fv, "opened")
	c.opened()
	return nil
}

func (c *Controller) opened() {
	if c.state == camera.StateOpening {
		c.state = camera.StateOpened
	}
}

func (c *Controller) startFailed(kind camera.ErrorKind, err error) error {
	c.state = camera.StateClosed
	if c.deps.Orientation != nil {
		c.deps.Orientation.Disable()
	}
	c.log.Error("failed to start camera", "kind", kind.String(), "error", err)
	e := camera.NewError(kind, err)
	c.deps.Mux.OnError(e)
	return e
}

// Stop closes the camera. Stopping a closed session does nothing.
func (c *Controller) Stop() {
	if c.deps.Orientation != nil {
		c.deps.Orientation.Disable()
	}
	if c.state == camera.StateClosed {
		return
	}
	c.active.Stop()
	c.state = camera.StateClosed
}

// IsOpened reports whether the session is open.
func (c *Controller) IsOpened() bool {
	return c.state == camera.StateOpened || c.state == camera.StateCapturing
}

// State returns the session state.
func (c *Controller) State() camera.SessionState { return c.state }

// Variant returns the active backend's variant.
func (c *Controller) Variant() backend.Variant { return c.active.Variant() }

// FallbackActive reports whether the active backend is the fallback backend.
func (c *Controller) FallbackActive() bool { return c.fallbackActive }

// EnableBarcode toggles barcode detection. A plain backend is replaced by a
// barcode-capable one of the same tier; an open session is reopened on it.
func (c *Controller) EnableBarcode(enabled bool) error {
	if bc := c.active.Barcode(); bc != nil {
		c.barcodeEnabled = enabled
		bc.EnableBarcodeDetection(enabled)
		return nil
	}
	if !enabled {
		c.barcodeEnabled = false
		return nil
	}
	if c.state == camera.StateCapturing {
		return ErrCaptureInProgress
	}

	wasOpen := c.IsOpened()
	snap := c.Snapshot()
	display := c.active.DisplayOrientation()
	v := backend.Variant{Tier: c.active.Variant().Tier, Mode: backend.ModeBarcode}
	c.log.Info("switching to barcode backend", "from", c.active.Variant().String(), "to", v.String())

	c.Stop()
	c.deps.Metrics.swap()
	c.barcodeEnabled = true
	c.install(v, c.fallbackActive, snap, display)
	if wasOpen {
		return c.Start()
	}
	return nil
}

// BarcodeEnabled reports whether barcode detection is on.
func (c *Controller) BarcodeEnabled() bool {
	bc := c.active.Barcode()
	return bc != nil && bc.BarcodeDetectionEnabled()
}

// SetFacing selects the camera. An open camera is reopened.
func (c *Controller) SetFacing(f camera.Facing) { c.active.SetFacing(f) }

// Facing returns the selected camera.
func (c *Controller) Facing() camera.Facing { return c.active.Facing() }

// SetFlash sets the flash mode. Unsupported modes may be ignored.
func (c *Controller) SetFlash(f camera.Flash) { c.active.SetFlash(f) }

// Flash returns the flash mode.
func (c *Controller) Flash() camera.Flash { return c.active.Flash() }

// SetAutoFocus toggles continuous auto focus.
func (c *Controller) SetAutoFocus(on bool) { c.active.SetAutoFocus(on) }

// AutoFocus reports whether auto focus is on.
func (c *Controller) AutoFocus() bool { return c.active.AutoFocus() }

// SupportedAspectRatios returns the ratios of the active camera.
func (c *Controller) SupportedAspectRatios() camera.RatioSet {
	return c.active.SupportedAspectRatios()
}

// SetAspectRatio sets the preview ratio. When the backend reports a change
// a layout pass is requested.
func (c *Controller) SetAspectRatio(r camera.AspectRatio) bool {
	changed := c.active.SetAspectRatio(r)
	if changed {
		c.requestLayout()
	}
	return changed
}

// AspectRatio returns the preview ratio.
func (c *Controller) AspectRatio() camera.AspectRatio { return c.active.AspectRatio() }

// DisplayOrientation returns the orientation applied to the active backend.
func (c *Controller) DisplayOrientation() camera.Orientation {
	return c.active.DisplayOrientation()
}

// SetAdjustViewBounds toggles whether the view follows the camera ratio.
func (c *Controller) SetAdjustViewBounds(on bool) {
	if c.opts.AdjustViewBounds == on {
		return
	}
	c.opts.AdjustViewBounds = on
	c.requestLayout()
}

// AdjustViewBounds reports whether the view follows the camera ratio.
func (c *Controller) AdjustViewBounds() bool { return c.opts.AdjustViewBounds }

func (c *Controller) requestLayout() {
	if c.opts.AdjustViewBounds && !c.IsOpened() {
		c.deps.Mux.ReserveLayoutOnOpen()
		return
	}
	c.deps.Mux.RequestLayout()
}

// Measure applies the layout constraint for the host's measure pass. While
// the camera is closed the specs pass through and a layout pass is reserved
// for the next open, when the ratio is known.
func (c *Controller) Measure(width, height camera.MeasureSpec) (camera.MeasureSpec, camera.MeasureSpec) {
	if !c.opts.AdjustViewBounds {
		return width, height
	}
	if !c.IsOpened() {
		c.deps.Mux.ReserveLayoutOnOpen()
		return width, height
	}
	return camera.AdjustBounds(width, height, c.AspectRatio())
}

// PreviewSize returns the size the preview must be laid out at to cover the
// view.
func (c *Controller) PreviewSize() camera.Size {
	return camera.PreviewSize(c.opts.ViewSize.Width, c.opts.ViewSize.Height, c.AspectRatio(), c.DisplayOrientation())
}

// SetViewSize records the on-screen view size.
func (c *Controller) SetViewSize(s camera.Size) { c.opts.ViewSize = s }

// ViewSize returns the on-screen view size.
func (c *Controller) ViewSize() camera.Size { return c.opts.ViewSize }

// SetPictureSize sets the size of the resized picture listeners receive.
func (c *Controller) SetPictureSize(s camera.Size) {
	if !s.Empty() {
		c.opts.PictureSize = s
	}
}

// PictureSize returns the size of the resized picture.
func (c *Controller) PictureSize() camera.Size { return c.opts.PictureSize }

// SetSaveImage toggles persistence of captured pictures. It takes effect for
// the current session.
func (c *Controller) SetSaveImage(on bool) {
	c.opts.SaveImage = on
	c.capture.save = on
}

// SaveImage reports whether captured pictures are persisted.
func (c *Controller) SaveImage() bool { return c.opts.SaveImage }

// Snapshot returns the configuration that survives a backend swap.
func (c *Controller) Snapshot() camera.Snapshot {
	return camera.Snapshot{
		Facing:      c.active.Facing(),
		AspectRatio: c.active.AspectRatio(),
		AutoFocus:   c.active.AutoFocus(),
		Flash:       c.active.Flash(),
	}
}

// Restore replays snap onto the active backend.
func (c *Controller) Restore(snap camera.Snapshot) {
	prev := c.active.AspectRatio()
	replay(c.active, snap)
	if c.active.AspectRatio() != prev {
		c.requestLayout()
	}
}

// AddListener registers l.
func (c *Controller) AddListener(l callback.Listener) { c.deps.Mux.Add(l) }

// RemoveListener drops the first registration of l.
func (c *Controller) RemoveListener(l callback.Listener) bool { return c.deps.Mux.Remove(l) }

// relay forwards one backend's events to the controller while that backend
// is active. Events of superseded backends are dropped.
type relay struct {
	c *Controller
}

func (r *relay) live() bool { return r.c.relay == r }

func (r *relay) OnOpened() {
	if !r.live() {
		return
	}
	c := r.c
	// also covers a reopen by the backend itself, e.g. after a facing change
	if c.state != camera.StateCapturing {
		c.state = camera.StateOpened
	}
	c.deps.Mux.OnOpened()
}

func (r *relay) OnClosed() {
	if !r.live() {
		return
	}
	c := r.c
	if c.state != camera.StateOpening {
		c.state = camera.StateClosed
	}
	c.deps.Mux.OnClosed()
}

func (r *relay) OnPictureTaken(result camera.CaptureResult) {
	if !r.live() {
		return
	}
	r.c.deliver(result)
}

func (r *relay) OnError(err error) {
	if !r.live() {
		return
	}
	c := r.c
	var e *camera.Error
	if !errors.As(err, &e) {
		e = camera.NewError(camera.ErrorKindDevice, err)
	}
	if e.Kind == camera.ErrorKindCapture {
		// a capture that fails after Stop is dropped like a late result
		if c.state != camera.StateCapturing {
			c.log.Debug("dropping capture error outside a capture", "state", c.state.String(), "error", e.Message)
			return
		}
		c.captureFailed()
	}
	c.deps.Mux.OnError(e)
}

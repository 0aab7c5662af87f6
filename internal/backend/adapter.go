package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/preview"
)

var errNotOpen = errors.New("camera is not open")

// Adapter is the single Backend implementation. Its variant decides the
// profile it runs with and whether a barcode scanner is attached.
type Adapter struct {
	variant Variant
	profile profile
	deps    Deps
	surface preview.Surface
	cb      Callback
	log     *slog.Logger

	facing    camera.Facing
	flash     camera.Flash
	autoFocus bool
	ratio     camera.AspectRatio
	display   camera.Orientation

	cam          device.Camera
	info         device.Info
	previewSizes *camera.SizeMap
	pictureSizes *camera.SizeMap
	previewing   bool

	scanner *scanner
}

// New builds the backend for v. The surface receives preview frames and cb
// receives events.
func New(v Variant, surface preview.Surface, cb Callback, deps Deps) *Adapter {
	deps = deps.withDefaults()
	if surface == nil {
		surface = preview.NewBuffer(preview.KindTexture)
	}
	a := &Adapter{
		variant:      v,
		profile:      profileFor(v.Tier),
		deps:         deps,
		surface:      surface,
		cb:           cb,
		log:          deps.Logger.With("component", "backend", "variant", v.String()),
		facing:       camera.FacingBack,
		flash:        camera.FlashAuto,
		autoFocus:    true,
		ratio:        camera.DefaultAspectRatio,
		previewSizes: camera.NewSizeMap(),
		pictureSizes: camera.NewSizeMap(),
	}
	if v.Mode == ModeBarcode {
		a.scanner = newScanner(deps.Decoder, deps.BarcodeOptions, deps.Poster, a.log)
	}
	return a
}

// Variant implements Backend.
func (a *Adapter) Variant() Variant { return a.variant }

// Surface implements Backend.
func (a *Adapter) Surface() preview.Surface { return a.surface }

// Barcode implements Backend.
func (a *Adapter) Barcode() BarcodeControl {
	if a.scanner == nil {
		return nil
	}
	return a.scanner
}

// IsOpened implements Backend.
func (a *Adapter) IsOpened() bool { return a.cam != nil }

// Start implements Backend.
func (a *Adapter) Start() (bool, error) {
	if a.cam != nil {
		return true, nil
	}
	info, err := device.FindFacing(a.deps.Platform, a.facing)
	if err != nil {
		return false, err
	}
	cam, err := a.profile.open(a.deps.Platform, info.ID)
	if err != nil {
		if device.Expected(err) {
			a.log.Info("camera cannot be opened with this tier", "camera", info.ID, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("open camera %s: %w", info.ID, err)
	}
	a.cam, a.info = cam, info
	a.collectSizes()

	if err := a.configure(); err != nil {
		a.release()
		return false, err
	}
	if err := a.startPreview(); err != nil {
		a.release()
		return false, err
	}
	a.log.Debug("camera opened", "camera", info.ID, "ratio", a.ratio.String(), "flash", a.flash.String())
	if a.cb != nil {
		a.cb.OnOpened()
	}
	return true, nil
}

func (a *Adapter) collectSizes() {
	a.previewSizes.Clear()
	for _, s := range a.cam.PreviewSizes() {
		if a.profile.fitsPreview(s) {
			a.previewSizes.Add(s)
		}
	}
	a.pictureSizes.Clear()
	for _, s := range a.cam.PictureSizes() {
		a.pictureSizes.Add(s)
	}
	if a.profile.highResolution {
		for _, s := range a.cam.HighResolutionSizes() {
			a.pictureSizes.Add(s)
		}
	}
	pictures := a.pictureSizes.Ratios()
	for r := range a.previewSizes.Ratios() {
		if !pictures.Contains(r) {
			a.previewSizes.Remove(r)
		}
	}
}

func (a *Adapter) chooseRatio() camera.AspectRatio {
	ratios := a.previewSizes.Ratios()
	if ratios.Contains(a.ratio) {
		return a.ratio
	}
	if ratios.Contains(camera.DefaultAspectRatio) {
		return camera.DefaultAspectRatio
	}
	if sorted := ratios.Sorted(); len(sorted) > 0 {
		return sorted[len(sorted)-1]
	}
	return a.ratio
}

// configure pushes the current settings to the open camera.
func (a *Adapter) configure() error {
	a.ratio = a.chooseRatio()
	previewSize, _ := a.previewSizes.Largest(a.ratio)
	pictureSize, _ := a.pictureSizes.Largest(a.ratio)

	flash := a.flash
	if !a.info.SupportsFlash(flash) {
		if a.profile.flashToOff {
			a.flash = camera.FlashOff
		}
		flash = camera.FlashOff
	}
	err := a.cam.Configure(device.Params{
		PreviewSize: previewSize,
		PictureSize: pictureSize,
		Flash:       flash,
		AutoFocus:   a.autoFocus && a.info.AutoFocus,
		Rotation:    captureRotation(a.info, a.display),
	})
	if err != nil {
		return fmt.Errorf("configure camera %s: %w", a.info.ID, err)
	}
	return nil
}

func (a *Adapter) startPreview() error {
	if a.previewing {
		return nil
	}
	surface, sc := a.surface, a.scanner
	if sc != nil {
		sc.open()
	}
	err := a.cam.StartPreview(func(frame image.Image) {
		surface.Render(frame)
		if sc != nil {
			sc.offer(frame)
		}
	})
	if err != nil {
		return fmt.Errorf("start preview: %w", err)
	}
	a.previewing = true
	return nil
}

// reconfigure applies changed settings to a running camera.
func (a *Adapter) reconfigure() {
	if a.cam == nil {
		return
	}
	wasPreviewing := a.previewing
	a.StopPreview()
	if err := a.configure(); err != nil {
		a.fail(camera.ErrorKindDevice, err)
		return
	}
	if wasPreviewing {
		if err := a.startPreview(); err != nil {
			a.fail(camera.ErrorKindDevice, err)
		}
	}
}

func (a *Adapter) fail(kind camera.ErrorKind, err error) {
	a.log.Warn("backend error", "kind", kind.String(), "error", err)
	if a.cb != nil {
		a.cb.OnError(camera.NewError(kind, err))
	}
}

// release closes the device without emitting events.
func (a *Adapter) release() {
	if a.cam == nil {
		return
	}
	a.StopPreview()
	if a.scanner != nil {
		a.scanner.close()
	}
	if err := a.cam.Close(); err != nil {
		a.log.Warn("failed to close camera", "camera", a.info.ID, "error", err)
	}
	a.cam = nil
	a.surface.Reset()
}

// Stop implements Backend.
func (a *Adapter) Stop() {
	if a.cam == nil {
		return
	}
	a.release()
	a.log.Debug("camera closed")
	if a.cb != nil {
		a.cb.OnClosed()
	}
}

// StopPreview implements Backend.
func (a *Adapter) StopPreview() {
	if a.cam == nil || !a.previewing {
		return
	}
	a.cam.StopPreview()
	a.previewing = false
}

// SetFacing implements Backend. An open camera is reopened on the new side.
func (a *Adapter) SetFacing(f camera.Facing) {
	if a.facing == f {
		return
	}
	a.facing = f
	if a.cam == nil {
		return
	}
	a.Stop()
	ok, err := a.Start()
	switch {
	case err != nil:
		a.fail(camera.ErrorKindDevice, err)
	case !ok:
		a.fail(camera.ErrorKindDevice, fmt.Errorf("reopen camera facing %s: %w", f, device.ErrUnavailable))
	}
}

// Facing implements Backend.
func (a *Adapter) Facing() camera.Facing { return a.facing }

// SetFlash implements Backend.
func (a *Adapter) SetFlash(f camera.Flash) {
	if !f.Valid() || a.flash == f {
		return
	}
	if a.cam == nil {
		a.flash = f
		return
	}
	if a.info.SupportsFlash(f) {
		a.flash = f
		a.reconfigure()
		return
	}
	if a.profile.flashToOff && !a.info.SupportsFlash(a.flash) {
		a.flash = camera.FlashOff
		a.reconfigure()
		return
	}
	a.log.Debug("flash mode not supported, keeping current", "requested", f.String(), "current", a.flash.String())
}

// Flash implements Backend.
func (a *Adapter) Flash() camera.Flash { return a.flash }

// SetAutoFocus implements Backend.
func (a *Adapter) SetAutoFocus(on bool) {
	if a.autoFocus == on {
		return
	}
	a.autoFocus = on
	a.reconfigure()
}

// AutoFocus implements Backend.
func (a *Adapter) AutoFocus() bool { return a.autoFocus }

// SupportedAspectRatios implements Backend. It is empty until the camera has
// been opened once.
func (a *Adapter) SupportedAspectRatios() camera.RatioSet {
	return a.previewSizes.Ratios()
}

// SetAspectRatio implements Backend. While open, unsupported ratios are
// rejected.
func (a *Adapter) SetAspectRatio(r camera.AspectRatio) bool {
	if r.IsZero() || r == a.ratio {
		return false
	}
	if a.cam == nil {
		a.ratio = r
		return true
	}
	if !a.previewSizes.Ratios().Contains(r) {
		a.log.Debug("aspect ratio not supported", "ratio", r.String())
		return false
	}
	a.ratio = r
	a.reconfigure()
	return true
}

// AspectRatio implements Backend.
func (a *Adapter) AspectRatio() camera.AspectRatio { return a.ratio }

// SetDisplayOrientation implements Backend.
func (a *Adapter) SetDisplayOrientation(o camera.Orientation) {
	if !o.Valid() || a.display == o {
		return
	}
	a.display = o
	a.reconfigure()
}

// DisplayOrientation implements Backend.
func (a *Adapter) DisplayOrientation() camera.Orientation { return a.display }

// TakePicture implements Backend.
func (a *Adapter) TakePicture() {
	cam := a.cam
	if cam == nil {
		a.fail(camera.ErrorKindCapture, errNotOpen)
		return
	}
	timeout, poster := a.deps.CaptureTimeout, a.deps.Poster
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		data, err := cam.Capture(ctx)
		poster.Post(func() {
			if err != nil {
				a.fail(camera.ErrorKindCapture, fmt.Errorf("capture: %w", err))
				return
			}
			if a.cb != nil {
				a.cb.OnPictureTaken(camera.BytesResult(data, camera.SourceHardware))
			}
		})
	}()
}

// PreviewSnapshot implements Backend.
func (a *Adapter) PreviewSnapshot(width, height int) (image.Image, bool) {
	if a.cam == nil {
		return nil, false
	}
	img, ok := a.surface.Snapshot(width, height)
	if !ok {
		return nil, false
	}
	return img, true
}

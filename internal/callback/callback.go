// Package callback fans backend events out to the listeners a host
// registered, normalising capture results on the way.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/camkit/internal/barcode"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/imageutil"
	"github.com/MeKo-Tech/camkit/internal/storage"
)

// Listener is the public event contract.
type Listener interface {
	OnOpened()
	OnClosed()
	// OnPictureTakenOriginal receives the corrected full picture.
	OnPictureTakenOriginal(data []byte)
	// OnPictureTaken receives the picture resized to the requested size.
	OnPictureTaken(data []byte, size camera.Size)
	OnError(err *camera.Error)
}

// LayoutListener is implemented by listeners that lay out the preview.
type LayoutListener interface {
	OnLayoutRequested()
}

// BarcodeListener is implemented by listeners interested in decoded barcodes.
type BarcodeListener interface {
	OnBarcode(r barcode.Result)
}

// Funcs is a Listener built from optional functions. Register it by pointer.
type Funcs struct {
	Opened               func()
	Closed               func()
	PictureTakenOriginal func(data []byte)
	PictureTaken         func(data []byte, size camera.Size)
	Error                func(err *camera.Error)
	LayoutRequested      func()
	Barcode              func(r barcode.Result)
}

func (f *Funcs) OnOpened() {
	if f.Opened != nil {
		f.Opened()
	}
}

func (f *Funcs) OnClosed() {
	if f.Closed != nil {
		f.Closed()
	}
}

func (f *Funcs) OnPictureTakenOriginal(data []byte) {
	if f.PictureTakenOriginal != nil {
		f.PictureTakenOriginal(data)
	}
}

func (f *Funcs) OnPictureTaken(data []byte, size camera.Size) {
	if f.PictureTaken != nil {
		f.PictureTaken(data, size)
	}
}

func (f *Funcs) OnError(err *camera.Error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f *Funcs) OnLayoutRequested() {
	if f.LayoutRequested != nil {
		f.LayoutRequested()
	}
}

func (f *Funcs) OnBarcode(r barcode.Result) {
	if f.Barcode != nil {
		f.Barcode(r)
	}
}

// Delivery carries the per-capture parameters the multiplexer needs.
type Delivery struct {
	// ViewSize is the size hardware captures are resized to. Empty skips it.
	ViewSize camera.Size
	// PictureSize is the size of the thumbnail every listener receives.
	PictureSize camera.Size
	// Save persists the corrected original in the background.
	Save bool
}

// Mux is the ordered listener registry. Its methods must be called on the
// control thread. The same listener may be added more than once and then
// receives every event once per registration.
type Mux struct {
	transformer imageutil.Transformer
	saver       storage.Saver
	log         *slog.Logger

	listeners    []Listener
	layoutOnOpen bool
	pendingSaves sync.WaitGroup
}

// NewMux returns an empty multiplexer. saver may be nil when pictures are
// never saved.
func NewMux(t imageutil.Transformer, saver storage.Saver) *Mux {
	if t == nil {
		t = imageutil.NewJPEG(imageutil.DefaultJPEGQuality)
	}
	return &Mux{
		transformer: t,
		saver:       saver,
		log:         slog.Default().With("component", "callback"),
	}
}

// Add appends l.
func (m *Mux) Add(l Listener) {
	if l != nil {
		m.listeners = append(m.listeners, l)
	}
}

// Remove drops the first registration of l and reports whether it found one.
func (m *Mux) Remove(l Listener) bool {
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registrations.
func (m *Mux) Len() int { return len(m.listeners) }

func (m *Mux) snapshot() []Listener {
	return append([]Listener(nil), m.listeners...)
}

// ReserveLayoutOnOpen defers a layout request to the next OnOpened.
func (m *Mux) ReserveLayoutOnOpen() { m.layoutOnOpen = true }

// RequestLayout notifies every LayoutListener.
func (m *Mux) RequestLayout() {
	for _, l := range m.snapshot() {
		if ll, ok := l.(LayoutListener); ok {
			ll.OnLayoutRequested()
		}
	}
}

// OnOpened fans out the open event, first issuing a reserved layout request.
func (m *Mux) OnOpened() {
	if m.layoutOnOpen {
		m.layoutOnOpen = false
		m.RequestLayout()
	}
	for _, l := range m.snapshot() {
		l.OnOpened()
	}
}

// OnClosed fans out the close event.
func (m *Mux) OnClosed() {
	for _, l := range m.snapshot() {
		l.OnClosed()
	}
}

// OnError fans out err.
func (m *Mux) OnError(err *camera.Error) {
	for _, l := range m.snapshot() {
		l.OnError(err)
	}
}

// OnBarcode fans out a decoded barcode.
func (m *Mux) OnBarcode(r barcode.Result) {
	for _, l := range m.snapshot() {
		if bl, ok := l.(BarcodeListener); ok {
			bl.OnBarcode(r)
		}
	}
}

// Deliver normalises result to bytes, corrects hardware captures, optionally
// saves the picture and hands the original and the thumbnail to every
// listener in registration order.
func (m *Mux) Deliver(result camera.CaptureResult, d Delivery) error {
	var data []byte
	switch result.Kind() {
	case camera.ResultImage:
		img, _ := result.Image()
		encoded, err := m.transformer.Encode(img)
		if err != nil {
			return fmt.Errorf("encode picture: %w", err)
		}
		data = encoded
	case camera.ResultBytes:
		data, _ = result.Bytes()
	default:
		return fmt.Errorf("empty capture result")
	}

	if result.Source() == camera.SourceHardware {
		rotated, err := m.transformer.Rotate(data)
		if err != nil {
			return fmt.Errorf("rotate picture: %w", err)
		}
		data = rotated
		if !d.ViewSize.Empty() {
			resized, err := m.transformer.Resize(data, d.ViewSize.Width, d.ViewSize.Height)
			if err != nil {
				return fmt.Errorf("resize picture: %w", err)
			}
			data = resized
		}
	}

	if d.Save {
		m.save(data)
	}

	thumb := data
	if !d.PictureSize.Empty() {
		resized, err := m.transformer.Resize(data, d.PictureSize.Width, d.PictureSize.Height)
		if err != nil {
			return fmt.Errorf("resize thumbnail: %w", err)
		}
		thumb = resized
	}

	for _, l := range m.snapshot() {
		l.OnPictureTakenOriginal(data)
		l.OnPictureTaken(thumb, d.PictureSize)
	}
	return nil
}

func (m *Mux) save(data []byte) {
	if m.saver == nil {
		m.log.Warn("save requested but no saver configured")
		return
	}
	m.pendingSaves.Add(1)
	go func() {
		defer m.pendingSaves.Done()
		path, err := m.saver.Save(context.Background(), data)
		if err != nil {
			m.log.Warn("failed to save picture", "error", err)
			return
		}
		m.log.Info("picture saved", "path", path, "bytes", len(data))
	}()
}

// WaitSaves blocks until background saves have finished.
func (m *Mux) WaitSaves() { m.pendingSaves.Wait() }

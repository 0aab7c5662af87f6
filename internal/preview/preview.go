// Package preview holds the surfaces camera backends render preview frames
// into, and the provider the session asks for a new surface.
package preview

import (
	"image"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/MeKo-Tech/camkit/internal/camera"
)

// Kind is the surface type.
type Kind int

const (
	// KindTexture surfaces keep the last frame and can be sampled.
	KindTexture Kind = iota
	// KindSurface surfaces are display-only. Legacy fallback uses them since
	// they work with every API generation, but snapshots are not possible.
	KindSurface
)

func (k Kind) String() string {
	if k == KindSurface {
		return "surface"
	}
	return "texture"
}

// Surface receives preview frames from a backend.
type Surface interface {
	Kind() Kind
	// Render is called from the device goroutine with each new frame.
	Render(frame image.Image)
	// Snapshot returns the current frame scaled to cover width x height and
	// cropped at the origin. ok is false when the surface cannot be sampled.
	Snapshot(width, height int) (img *image.RGBA, ok bool)
	// HasFrame reports whether at least one frame has been rendered.
	HasFrame() bool
	// Reset drops the current frame.
	Reset()
}

// Provider creates surfaces.
type Provider interface {
	// NewSurface returns a surface. fallback asks for a type every backend tier
	// can render into.
	NewSurface(fallback bool) Surface
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(fallback bool) Surface

// NewSurface implements Provider.
func (f ProviderFunc) NewSurface(fallback bool) Surface { return f(fallback) }

// BufferProvider hands out in-memory buffers: textures normally and
// display-only surfaces for fallback.
type BufferProvider struct{}

// NewSurface implements Provider.
func (BufferProvider) NewSurface(fallback bool) Surface {
	if fallback {
		return NewBuffer(KindSurface)
	}
	return NewBuffer(KindTexture)
}

// Buffer is an in-memory Surface that keeps a copy of the latest frame.
type Buffer struct {
	kind Kind

	mu     sync.RWMutex
	frame  *image.RGBA
	frames uint64
}

// NewBuffer returns an empty buffer of the given kind.
func NewBuffer(kind Kind) *Buffer {
	return &Buffer{kind: kind}
}

// Kind implements Surface.
func (b *Buffer) Kind() Kind { return b.kind }

// Render implements Surface.
func (b *Buffer) Render(frame image.Image) {
	if frame == nil {
		return
	}
	bounds := frame.Bounds()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil || b.frame.Rect.Dx() != bounds.Dx() || b.frame.Rect.Dy() != bounds.Dy() {
		b.frame = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	}
	draw.Draw(b.frame, b.frame.Rect, frame, bounds.Min, draw.Src)
	b.frames++
}

// Frames returns how many frames were rendered since the last Reset.
func (b *Buffer) Frames() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frames
}

// Frame returns a copy of the latest frame.
func (b *Buffer) Frame() (*image.RGBA, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.frame == nil {
		return nil, false
	}
	out := image.NewRGBA(b.frame.Rect)
	copy(out.Pix, b.frame.Pix)
	return out, true
}

// HasFrame implements Surface.
func (b *Buffer) HasFrame() bool {
	return b.Frames() > 0
}

// Reset implements Surface.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = nil
	b.frames = 0
}

// Snapshot implements Surface.
func (b *Buffer) Snapshot(width, height int) (*image.RGBA, bool) {
	if b.kind != KindTexture || width <= 0 || height <= 0 {
		return nil, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.frame == nil {
		return nil, false
	}

	src := b.frame.Rect
	cover := Cover(camera.Size{Width: src.Dx(), Height: src.Dy()}, camera.Size{Width: width, Height: height})
	scaled := image.NewRGBA(image.Rect(0, 0, cover.Width, cover.Height))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Rect, b.frame, src, xdraw.Src, nil)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Rect, scaled, image.Point{}, draw.Src)
	return out, true
}

// Cover returns src scaled, keeping its aspect ratio, to the smallest size that
// covers dst in both dimensions.
func Cover(src, dst camera.Size) camera.Size {
	if src.Empty() {
		return dst
	}
	w := dst.Width
	h := (dst.Width*src.Height + src.Width - 1) / src.Width
	if h < dst.Height {
		h = dst.Height
		w = (dst.Height*src.Width + src.Height - 1) / src.Height
	}
	return camera.Size{Width: w, Height: h}
}

package callback

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/camkit/internal/camera"
)

// ErrClosedBeforePicture is reported when the camera closes while a waiter is
// pending.
var ErrClosedBeforePicture = errors.New("camera closed before the picture was delivered")

// Picture is one delivered capture.
type Picture struct {
	Original  []byte
	Thumbnail []byte
	Size      camera.Size
}

type pictureOutcome struct {
	picture Picture
	err     error
}

// Waiter is a one-shot listener resolved by the next picture, error or close
// event. Register it before taking the picture and remove it afterwards.
type Waiter struct {
	Funcs
	original []byte
	done     chan pictureOutcome
}

// NewWaiter returns a pending waiter.
func NewWaiter() *Waiter {
	w := &Waiter{done: make(chan pictureOutcome, 1)}
	w.PictureTakenOriginal = func(data []byte) { w.original = data }
	w.PictureTaken = func(data []byte, size camera.Size) {
		w.finish(pictureOutcome{picture: Picture{Original: w.original, Thumbnail: data, Size: size}})
	}
	w.Error = func(err *camera.Error) { w.finish(pictureOutcome{err: err}) }
	w.Closed = func() { w.finish(pictureOutcome{err: ErrClosedBeforePicture}) }
	return w
}

// finish keeps the first outcome.
func (w *Waiter) finish(o pictureOutcome) {
	select {
	case w.done <- o:
	default:
	}
}

// Wait blocks until the waiter resolves or ctx is done. A failed capture is
// returned as its *camera.Error.
func (w *Waiter) Wait(ctx context.Context) (Picture, error) {
	select {
	case o := <-w.done:
		return o.picture, o.err
	case <-ctx.Done():
		return Picture{}, ctx.Err()
	}
}

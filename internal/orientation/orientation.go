// Package orientation turns physical device rotation into the display
// orientation correction the active camera backend needs.
package orientation

import (
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/eventloop"
)

// Unknown is reported by sensors that cannot tell the device orientation,
// e.g. when it lies flat.
const Unknown = -1

// Sensor reports raw device rotation in degrees clockwise from natural
// orientation, or Unknown.
type Sensor interface {
	// Subscribe registers fn and returns a function that removes it. fn may
	// be called from any goroutine.
	Subscribe(fn func(degrees int)) (cancel func())
}

// Target receives the display orientation correction.
type Target interface {
	SetDisplayOrientation(o camera.Orientation)
}

// SnapRotation maps a raw sensor angle to the nearest right angle. ok is false
// for Unknown.
func SnapRotation(degrees int) (o camera.Orientation, ok bool) {
	if degrees == Unknown {
		return camera.Orientation0, false
	}
	d := ((degrees % 360) + 360) % 360
	switch {
	case d < 45 || d >= 315:
		return camera.Orientation0, true
	case d < 135:
		return camera.Orientation90, true
	case d < 225:
		return camera.Orientation180, true
	default:
		return camera.Orientation270, true
	}
}

// Adapter forwards snapped sensor changes to whichever target is attached.
// Sensor callbacks are moved onto the control thread through the poster, and
// every other method must be called on the control thread.
type Adapter struct {
	sensor Sensor
	poster eventloop.Poster
	log    *slog.Logger

	target Target
	last   camera.Orientation
	known  bool
	cancel func()
}

// NewAdapter returns a disabled adapter.
func NewAdapter(sensor Sensor, poster eventloop.Poster) *Adapter {
	if poster == nil {
		poster = eventloop.Inline{}
	}
	return &Adapter{
		sensor: sensor,
		poster: poster,
		log:    slog.Default().With("component", "orientation"),
	}
}

// Attach makes t the target and replays the last known orientation into it.
// It must be called again whenever the active backend is replaced.
func (a *Adapter) Attach(t Target) {
	a.target = t
	if t != nil && a.known {
		t.SetDisplayOrientation(a.last)
	}
}

// Enable subscribes to the sensor.
func (a *Adapter) Enable() {
	if a.cancel != nil || a.sensor == nil {
		return
	}
	a.cancel = a.sensor.Subscribe(func(degrees int) {
		a.poster.Post(func() { a.update(degrees) })
	})
}

// Disable unsubscribes from the sensor. The last orientation is kept.
func (a *Adapter) Disable() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	a.cancel = nil
}

// Enabled reports whether the adapter is subscribed.
func (a *Adapter) Enabled() bool { return a.cancel != nil }

// LastKnown returns the last forwarded orientation.
func (a *Adapter) LastKnown() (camera.Orientation, bool) { return a.last, a.known }

func (a *Adapter) update(degrees int) {
	if a.cancel == nil {
		return
	}
	o, ok := SnapRotation(degrees)
	if !ok || (a.known && o == a.last) {
		return
	}
	a.last, a.known = o, true
	a.log.Debug("display orientation changed", "degrees", int(o))
	if a.target != nil {
		a.target.SetDisplayOrientation(o)
	}
}

// ManualSensor is a Sensor driven by Set. The server and tests use it.
type ManualSensor struct {
	mu   sync.Mutex
	next int
	subs map[int]func(int)
}

// NewManualSensor returns a sensor with no subscribers.
func NewManualSensor() *ManualSensor {
	return &ManualSensor{subs: make(map[int]func(int))}
}

// Subscribe implements Sensor.
func (s *ManualSensor) Subscribe(fn func(degrees int)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Set reports a new raw rotation to every subscriber.
func (s *ManualSensor) Set(degrees int) {
	s.mu.Lock()
	fns := make([]func(int), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(degrees)
	}
}

// Subscribers returns the number of active subscriptions.
func (s *ManualSensor) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

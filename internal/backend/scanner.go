package backend

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/camkit/internal/barcode"
	"github.com/MeKo-Tech/camkit/internal/eventloop"
)

const decodeTimeout = 2 * time.Second

// scanner decodes preview frames one at a time. A frame is only taken while
// no decode is running, which re-arms the scanner after every attempt.
type scanner struct {
	decoder barcode.Decoder
	opts    barcode.Options
	poster  eventloop.Poster
	log     *slog.Logger

	enabled atomic.Bool
	running atomic.Bool
	busy    atomic.Bool
	wg      sync.WaitGroup

	// listeners is only touched on the control thread.
	listeners []func(barcode.Result)
}

func newScanner(d barcode.Decoder, opts barcode.Options, poster eventloop.Poster, log *slog.Logger) *scanner {
	s := &scanner{decoder: d, opts: opts, poster: poster, log: log}
	s.enabled.Store(true)
	return s
}

// EnableBarcodeDetection implements BarcodeControl.
func (s *scanner) EnableBarcodeDetection(enabled bool) { s.enabled.Store(enabled) }

// BarcodeDetectionEnabled implements BarcodeControl.
func (s *scanner) BarcodeDetectionEnabled() bool { return s.enabled.Load() }

// AddBarcodeListener implements BarcodeControl.
func (s *scanner) AddBarcodeListener(fn func(barcode.Result)) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

func (s *scanner) open() { s.running.Store(true) }

// close stops taking frames and waits for an in-flight decode.
func (s *scanner) close() {
	s.running.Store(false)
	s.wg.Wait()
}

// offer is called from the device goroutine for every preview frame.
func (s *scanner) offer(frame image.Image) {
	if !s.running.Load() || !s.enabled.Load() || !s.busy.CompareAndSwap(false, true) {
		return
	}
	img := imaging.Clone(frame)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), decodeTimeout)
		defer cancel()
		results, err := s.decoder.Decode(ctx, img, s.opts)
		if err != nil {
			if !errors.Is(err, barcode.ErrNotFound) {
				s.log.Debug("barcode decode failed", "error", err)
			}
			return
		}
		s.poster.Post(func() { s.deliver(results) })
	}()
}

func (s *scanner) deliver(results []barcode.Result) {
	if !s.enabled.Load() {
		return
	}
	for _, r := range results {
		for _, fn := range s.listeners {
			fn(r)
		}
	}
}

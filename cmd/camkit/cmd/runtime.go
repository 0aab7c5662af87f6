package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MeKo-Tech/camkit/internal/backend"
	"github.com/MeKo-Tech/camkit/internal/callback"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/config"
	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/device/gocvdev"
	"github.com/MeKo-Tech/camkit/internal/device/simulated"
	"github.com/MeKo-Tech/camkit/internal/eventloop"
	"github.com/MeKo-Tech/camkit/internal/imageutil"
	"github.com/MeKo-Tech/camkit/internal/orientation"
	"github.com/MeKo-Tech/camkit/internal/session"
	"github.com/MeKo-Tech/camkit/internal/storage"
)

const stackCloseTimeout = 10 * time.Second

// stack is one fully wired camera session living on its own control thread.
type stack struct {
	cfg       *config.Config
	loop      *eventloop.Queue
	platform  device.Platform
	mux       *callback.Mux
	ctrl      *session.Controller
	sensor    *orientation.ManualSensor
	statePath string
	log       *slog.Logger
}

// openPlatform returns the camera driver selected by device.driver.
func openPlatform(cfg *config.Config) (device.Platform, error) {
	switch cfg.Device.Driver {
	case config.DriverGoCV:
		facing, err := camera.ParseFacing(cfg.Camera.Facing)
		if err != nil {
			return nil, err
		}
		return gocvdev.New(cfg.Device.DeviceID, facing)
	case config.DriverSimulated, "":
		opts, err := cfg.SimulatedOptions()
		if err != nil {
			return nil, err
		}
		return simulated.New(opts), nil
	default:
		return nil, fmt.Errorf("unknown device driver %q", cfg.Device.Driver)
	}
}

// buildStack wires a controller for cfg. Session metrics go to reg; nil uses
// the default registerer.
func buildStack(cfg *config.Config, reg prometheus.Registerer) (*stack, error) {
	log := slog.Default()

	platform, err := openPlatform(cfg)
	if err != nil {
		return nil, fmt.Errorf("open camera platform: %w", err)
	}

	opts, err := cfg.CameraOptions(platform.Tier())
	if err != nil {
		return nil, err
	}
	if cfg.StateFile != "" {
		snap, ok, err := loadState(cfg.StateFile)
		if err != nil {
			return nil, err
		}
		if ok {
			opts.Snapshot = snap
			log.Debug("Restored camera state", "path", cfg.StateFile)
		}
	}

	barcodeOpts, err := cfg.BarcodeOptions()
	if err != nil {
		return nil, err
	}

	loop := eventloop.NewQueue(0)

	var saver storage.Saver
	if cfg.Capture.SaveImage {
		saver = storage.NewFileSaver(cfg.Capture.SaveDir)
	}
	mux := callback.NewMux(imageutil.NewJPEG(cfg.Capture.JPEGQuality), saver)

	var sensor *orientation.ManualSensor
	var adapter *orientation.Adapter
	if cfg.Camera.Orientation {
		sensor = orientation.NewManualSensor()
		adapter = orientation.NewAdapter(sensor, loop)
	}

	ctrl, err := session.New(opts, session.Deps{
		Selector: backend.NewFactory(backend.Deps{
			Platform:       platform,
			Poster:         loop,
			BarcodeOptions: barcodeOpts,
			CaptureTimeout: cfg.CaptureTimeout(),
			Logger:         log,
		}),
		Mux:         mux,
		Orientation: adapter,
		Metrics:     session.NewMetrics(reg),
		Logger:      log,
	})
	if err != nil {
		loop.Close()
		return nil, err
	}

	return &stack{
		cfg:       cfg,
		loop:      loop,
		platform:  platform,
		mux:       mux,
		ctrl:      ctrl,
		sensor:    sensor,
		statePath: cfg.StateFile,
		log:       log,
	}, nil
}

// do runs fn on the control thread.
func (s *stack) do(ctx context.Context, fn func()) error {
	return s.loop.Do(ctx, fn)
}

// start opens the camera and returns the start failure, if any.
func (s *stack) start(ctx context.Context) error {
	var startErr error
	if err := s.do(ctx, func() { startErr = s.ctrl.Start() }); err != nil {
		return err
	}
	return startErr
}

// takePicture captures one picture and waits for its delivery.
func (s *stack) takePicture(ctx context.Context) (callback.Picture, error) {
	waiter := callback.NewWaiter()
	var takeErr error
	if err := s.do(ctx, func() {
		s.ctrl.AddListener(waiter)
		if takeErr = s.ctrl.TakePicture(); takeErr != nil {
			s.ctrl.RemoveListener(waiter)
		}
	}); err != nil {
		return callback.Picture{}, err
	}
	if takeErr != nil {
		return callback.Picture{}, takeErr
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout()+time.Second)
	defer cancel()
	pic, err := waiter.Wait(waitCtx)

	cleanup, cancelCleanup := context.WithTimeout(context.Background(), stackCloseTimeout)
	defer cancelCleanup()
	_ = s.do(cleanup, func() { s.ctrl.RemoveListener(waiter) })
	return pic, err
}

// Close stops the camera, persists its configuration, waits for pending
// saves and shuts the control thread down.
func (s *stack) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), stackCloseTimeout)
	defer cancel()

	var snap camera.Snapshot
	err := s.do(ctx, func() {
		s.ctrl.Stop()
		snap = s.ctrl.Snapshot()
	})
	if err == nil && s.statePath != "" {
		if err = saveState(s.statePath, snap); err == nil {
			s.log.Debug("Saved camera state", "path", s.statePath)
		}
	}
	s.mux.WaitSaves()
	s.loop.Close()
	return err
}

package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/camkit/internal/backend"
	"github.com/MeKo-Tech/camkit/internal/callback"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/device/simulated"
	"github.com/MeKo-Tech/camkit/internal/eventloop"
	"github.com/MeKo-Tech/camkit/internal/imageutil"
)

// world holds the state of one scenario.
type world struct {
	sim      simulated.Options
	platform *simulated.Platform
	loop     *eventloop.Manual
	ctrl     *Controller
	main     *listener
	events   []string
	named    []string
	lastErr  error
}

func (w *world) device(tier string) error {
	t, err := device.ParseTier(tier)
	if err != nil {
		return err
	}
	w.sim = simulated.Options{Tier: t}
	return nil
}

func (w *world) deviceRefusingSessions(tier string) error {
	if err := w.device(tier); err != nil {
		return err
	}
	w.sim.FailModern = true
	return nil
}

func (w *world) deviceRefusingEverything(tier string) error {
	if err := w.deviceRefusingSessions(tier); err != nil {
		return err
	}
	w.sim.FailLegacy = true
	return nil
}

func (w *world) deviceWithBlankFrames(tier string, n int) error {
	if err := w.device(tier); err != nil {
		return err
	}
	w.sim.BlankFrames = n
	return nil
}

func (w *world) session(tier, mode string) error {
	t, err := device.ParseTier(tier)
	if err != nil {
		return err
	}
	m, err := backend.ParseMode(mode)
	if err != nil {
		return err
	}
	w.platform = simulated.New(w.sim)
	w.loop = eventloop.NewManual()
	mux := callback.NewMux(imageutil.NewJPEG(90), nil)
	w.main = &listener{name: "main", log: &w.events}
	mux.Add(w.main)

	opts := DefaultOptions()
	opts.Tier, opts.Mode = t, m
	opts.ViewSize = camera.Size{Width: 480, Height: 640}
	w.ctrl, err = New(opts, Deps{
		Selector: backend.NewFactory(backend.Deps{Platform: w.platform, Poster: w.loop}),
		Mux:      mux,
	})
	return err
}

func (w *world) flashIsSet(s string) error {
	f, err := camera.ParseFlash(s)
	if err != nil {
		return err
	}
	w.ctrl.SetFlash(f)
	return nil
}

func (w *world) autoFocusTurned(s string) error {
	w.ctrl.SetAutoFocus(s == "on")
	return nil
}

func (w *world) aspectRatioIsSet(s string) error {
	r, err := camera.ParseAspectRatio(s)
	if err != nil {
		return err
	}
	w.ctrl.SetAspectRatio(r)
	return nil
}

func (w *world) listenersRegistered(names string) error {
	for _, name := range splitList(names) {
		w.ctrl.AddListener(&listener{name: name, log: &w.named})
	}
	return nil
}

func (w *world) sessionStarted() error {
	w.lastErr = w.ctrl.Start()
	return nil
}

func (w *world) sessionStopped() error {
	w.ctrl.Stop()
	return nil
}

func (w *world) barcodeEnabled() error {
	return w.ctrl.EnableBarcode(true)
}

func (w *world) pictureTaken() error {
	if err := w.ctrl.TakePicture(); err != nil {
		return err
	}
	if w.ctrl.State() != camera.StateCapturing {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := w.loop.Await(ctx); err != nil {
		return fmt.Errorf("waiting for hardware capture: %w", err)
	}
	return nil
}

func (w *world) deviceRendersFrame() error {
	cam := w.platform.Last()
	if cam == nil || !cam.Emit() {
		return errors.New("preview is not running")
	}
	return nil
}

func (w *world) sessionIs(state string) error {
	if got := w.ctrl.State().String(); got != state {
		return fmt.Errorf("expected session %q, got %q", state, got)
	}
	return nil
}

func (w *world) activeBackendIs(variant string) error {
	if got := w.ctrl.Variant().String(); got != variant {
		return fmt.Errorf("expected backend %q, got %q", variant, got)
	}
	return nil
}

func (w *world) listenerEventsAre(list string) error {
	want := make([]string, 0)
	for _, ev := range splitList(list) {
		want = append(want, "main:"+ev)
	}
	if !slices.Equal(want, w.events) {
		return fmt.Errorf("expected events %v, got %v", want, w.events)
	}
	return nil
}

func (w *world) configurationIs(facing, flash, af, ratio string) error {
	snap := w.ctrl.Snapshot()
	got := fmt.Sprintf("%s/%s/%t/%s", snap.Facing, snap.Flash, snap.AutoFocus, snap.AspectRatio)
	want := fmt.Sprintf("%s/%s/%t/%s", facing, flash, af == "on", ratio)
	if got != want {
		return fmt.Errorf("expected configuration %s, got %s", want, got)
	}
	return nil
}

func (w *world) lastErrorKind(kind string) error {
	var ce *camera.Error
	if !errors.As(w.lastErr, &ce) {
		return fmt.Errorf("expected a camera error, got %v", w.lastErr)
	}
	if ce.Kind.String() != kind {
		return fmt.Errorf("expected %q error, got %q", kind, ce.Kind)
	}
	if n := len(w.main.errs); n != 1 {
		return fmt.Errorf("expected one error event, got %d", n)
	}
	return nil
}

func (w *world) hardwareCaptures(n int) error {
	got := 0
	for _, cam := range w.platform.Opened() {
		got += cam.Captures()
	}
	if got != n {
		return fmt.Errorf("expected %d hardware captures, got %d", n, got)
	}
	return nil
}

func (w *world) listenersReceivedInOrder(names, events string) error {
	order := splitList(names)
	evs := splitList(events)
	for _, name := range order {
		var own []string
		for _, e := range w.named {
			if n, ev, _ := strings.Cut(e, ":"); n == name {
				own = append(own, ev)
			}
		}
		if !slices.Equal(own, evs) {
			return fmt.Errorf("listener %s got %v, expected %v", name, own, evs)
		}
	}
	for _, ev := range evs {
		var who []string
		for _, e := range w.named {
			if n, got, _ := strings.Cut(e, ":"); got == ev {
				who = append(who, n)
			}
		}
		if !slices.Equal(who, order) {
			return fmt.Errorf("event %s reached %v, expected %v", ev, who, order)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitializeScenario registers the session step definitions.
func InitializeScenario(sc *godog.ScenarioContext) {
	w := &world{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*w = world{}
		return ctx, nil
	})

	sc.Step(`^a "([^"]*)" device$`, w.device)
	sc.Step(`^a "([^"]*)" device that refuses session opens$`, w.deviceRefusingSessions)
	sc.Step(`^a "([^"]*)" device that refuses every open$`, w.deviceRefusingEverything)
	sc.Step(`^a "([^"]*)" device showing (\d+) blank frames?$`, w.deviceWithBlankFrames)
	sc.Step(`^a "([^"]*)" "([^"]*)" session$`, w.session)
	sc.Step(`^the flash is set to "([^"]*)"$`, w.flashIsSet)
	sc.Step(`^auto focus is turned "([^"]*)"$`, w.autoFocusTurned)
	sc.Step(`^the aspect ratio is set to "([^"]*)"$`, w.aspectRatioIsSet)
	sc.Step(`^listeners "([^"]*)" are registered$`, w.listenersRegistered)

	sc.Step(`^the session is started$`, w.sessionStarted)
	sc.Step(`^the session is stopped$`, w.sessionStopped)
	sc.Step(`^barcode detection is enabled$`, w.barcodeEnabled)
	sc.Step(`^a picture is taken$`, w.pictureTaken)
	sc.Step(`^the device renders a frame$`, w.deviceRendersFrame)

	sc.Step(`^the session is "([^"]*)"$`, w.sessionIs)
	sc.Step(`^the active backend is "([^"]*)"$`, w.activeBackendIs)
	sc.Step(`^the listener events are "([^"]*)"$`, w.listenerEventsAre)
	sc.Step(`^the configuration is facing "([^"]*)", flash "([^"]*)", auto focus "([^"]*)", ratio "([^"]*)"$`, w.configurationIs)
	sc.Step(`^the last error is a "([^"]*)" error$`, w.lastErrorKind)
	sc.Step(`^(\d+) hardware captures? were made$`, w.hardwareCaptures)
	sc.Step(`^listeners "([^"]*)" received "([^"]*)" in order$`, w.listenersReceivedInOrder)
}

// TestFeatures runs the session feature files.
func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		featurePath := filepath.Join("features", e.Name())
		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     os.Getenv("GODOG_TAGS"),
					Paths:    []string{featurePath},
					TestingT: t,
				},
			}
			if suite.Run() != 0 {
				t.Fatalf("non-zero status returned for %s", featurePath)
			}
		})
	}
}

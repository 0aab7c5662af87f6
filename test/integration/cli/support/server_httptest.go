package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MeKo-Tech/camkit/internal/backend"
	"github.com/MeKo-Tech/camkit/internal/callback"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device/simulated"
	"github.com/MeKo-Tech/camkit/internal/eventloop"
	"github.com/MeKo-Tech/camkit/internal/imageutil"
	"github.com/MeKo-Tech/camkit/internal/orientation"
	"github.com/MeKo-Tech/camkit/internal/server"
	"github.com/MeKo-Tech/camkit/internal/session"
)

// HTTPTestServerWrapper wraps httptest.Server around a real camera server.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Platform   *simulated.Platform
	Loop       *eventloop.Queue
}

// createTestHTTPServer serves a simulated camera with the given options.
func (testCtx *TestContext) createTestHTTPServer(opts simulated.Options) error {
	loop := eventloop.NewQueue(0)
	platform := simulated.New(opts)
	sensor := orientation.NewManualSensor()

	sessOpts := session.DefaultOptions()
	sessOpts.Tier = platform.Tier()
	sessOpts.ViewSize = camera.Size{Width: 480, Height: 640}

	ctrl, err := session.New(sessOpts, session.Deps{
		Selector: backend.NewFactory(backend.Deps{
			Platform:       platform,
			Poster:         loop,
			CaptureTimeout: 5 * time.Second,
		}),
		Mux:         callback.NewMux(imageutil.NewJPEG(90), nil),
		Orientation: orientation.NewAdapter(sensor, loop),
		Metrics:     session.NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		loop.Close()
		return fmt.Errorf("failed to create controller: %w", err)
	}

	srv, err := server.NewServer(server.Config{CORSOrigin: "*", TimeoutSec: 5, Version: "test"}, server.Deps{
		Controller: ctrl,
		Loop:       loop,
		Sensor:     sensor,
	})
	if err != nil {
		loop.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
		Platform:   platform,
		Loop:       loop,
	}
	return nil
}

// StopServer stops the httptest server and its control thread.
func (testCtx *TestContext) StopServer() error {
	w := testCtx.HTTPTestServer
	if w == nil {
		return nil
	}
	testCtx.HTTPTestServer = nil
	w.Server.Close()
	err := w.TestServer.Close()
	w.Loop.Close()
	return err
}

// GetServerURL returns the base URL of the running test server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer == nil {
		return ""
	}
	return testCtx.HTTPTestServer.Server.URL
}

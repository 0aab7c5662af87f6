package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/orientation"
	"github.com/MeKo-Tech/camkit/internal/session"
)

// runner executes fn on the control thread and waits for it.
type runner interface {
	Do(ctx context.Context, fn func()) error
}

// Server exposes one camera session over HTTP and WebSocket.
type Server struct {
	ctrl       *session.Controller
	loop       runner
	sensor     *orientation.ManualSensor
	corsOrigin string
	timeout    time.Duration
	version    string
	log        *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
	// TimeoutSec bounds every control call, including waiting for a picture.
	TimeoutSec int
	Version    string
}

// Deps are the collaborators the server drives.
type Deps struct {
	Controller *session.Controller
	// Loop is the control thread the controller lives on.
	Loop runner
	// Sensor, when set, enables the orientation endpoint.
	Sensor *orientation.ManualSensor
	Logger *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// StateResponse reports the session state after a lifecycle call.
type StateResponse struct {
	Success  bool   `json:"success"`
	State    string `json:"state"`
	Backend  string `json:"backend"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// ConfigResponse is the full observable camera configuration.
type ConfigResponse struct {
	State              string             `json:"state"`
	Backend            string             `json:"backend"`
	Fallback           bool               `json:"fallback"`
	Facing             camera.Facing      `json:"facing"`
	Flash              camera.Flash       `json:"flash"`
	AutoFocus          bool               `json:"auto_focus"`
	AspectRatio        camera.AspectRatio `json:"aspect_ratio"`
	DisplayOrientation camera.Orientation `json:"display_orientation"`
	AdjustViewBounds   bool               `json:"adjust_view_bounds"`
	Barcode            bool               `json:"barcode"`
	SaveImage          bool               `json:"save_image"`
	ViewSize           camera.Size        `json:"view_size"`
	PictureSize        camera.Size        `json:"picture_size"`
	PreviewSize        camera.Size        `json:"preview_size"`
}

// ConfigUpdate is the body of PUT /camera/config. Absent fields are left alone.
type ConfigUpdate struct {
	Facing           *camera.Facing      `json:"facing,omitempty"`
	Flash            *camera.Flash       `json:"flash,omitempty"`
	AutoFocus        *bool               `json:"auto_focus,omitempty"`
	AspectRatio      *camera.AspectRatio `json:"aspect_ratio,omitempty"`
	AdjustViewBounds *bool               `json:"adjust_view_bounds,omitempty"`
	SaveImage        *bool               `json:"save_image,omitempty"`
	ViewSize         *camera.Size        `json:"view_size,omitempty"`
	PictureSize      *camera.Size        `json:"picture_size,omitempty"`
}

// RatiosResponse lists the aspect ratios the open camera supports.
type RatiosResponse struct {
	Ratios  []string `json:"ratios"`
	Current string   `json:"current"`
}

// BarcodeRequest toggles barcode detection.
type BarcodeRequest struct {
	Enabled bool `json:"enabled"`
}

// OrientationRequest reports a raw device rotation in degrees.
type OrientationRequest struct {
	Degrees int `json:"degrees"`
}

// PictureResponse carries both renditions of a captured picture.
type PictureResponse struct {
	Success     bool        `json:"success"`
	RequestID   string      `json:"request_id"`
	Original    []byte      `json:"original,omitempty"`
	Thumbnail   []byte      `json:"thumbnail,omitempty"`
	PictureSize camera.Size `json:"picture_size"`
	DurationMs  int64       `json:"duration_ms"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// NewServer creates a server for an already constructed controller.
func NewServer(config Config, deps Deps) (*Server, error) {
	if deps.Controller == nil {
		return nil, errors.New("server: controller is required")
	}
	if deps.Loop == nil {
		return nil, errors.New("server: control loop is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		ctrl:       deps.Controller,
		loop:       deps.Loop,
		sensor:     deps.Sensor,
		corsOrigin: config.CORSOrigin,
		timeout:    timeout,
		version:    config.Version,
		log:        log.With("component", "server"),
	}, nil
}

// Close stops the camera.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.loop.Do(ctx, s.ctrl.Stop)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/camera/start", s.corsMiddleware(s.startHandler))
	mux.HandleFunc("/camera/stop", s.corsMiddleware(s.stopHandler))
	mux.HandleFunc("/camera/picture", s.corsMiddleware(s.pictureHandler))
	mux.HandleFunc("/camera/config", s.corsMiddleware(s.configHandler))
	mux.HandleFunc("/camera/ratios", s.corsMiddleware(s.ratiosHandler))
	mux.HandleFunc("/camera/barcode", s.corsMiddleware(s.barcodeHandler))
	mux.HandleFunc("/camera/orientation", s.corsMiddleware(s.orientationHandler))
	mux.HandleFunc("/ws/events", s.eventsWebSocketHandler)
	mux.Handle("/metrics", metricsHandler())
}

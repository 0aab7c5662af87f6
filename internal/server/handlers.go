package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/camkit/internal/callback"
	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/session"
)

const maxBodyBytes = 64 * 1024

// do runs fn on the control thread, bounded by the request and the server
// timeout.
func (s *Server) do(r *http.Request, fn func()) error {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	return s.loop.Do(ctx, fn)
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// state must be called on the control thread.
func (s *Server) state() StateResponse {
	return StateResponse{
		Success:  true,
		State:    s.ctrl.State().String(),
		Backend:  s.ctrl.Variant().String(),
		Fallback: s.ctrl.FallbackActive(),
	}
}

// startHandler opens the camera.
func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		startErr error
		resp     StateResponse
	)
	if err := s.do(r, func() {
		startErr = s.ctrl.Start()
		resp = s.state()
	}); err != nil {
		s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	cameraRequestsTotal.WithLabelValues("start", statusLabel(startErr)).Inc()

	if startErr != nil {
		var ce *camera.Error
		if errors.As(startErr, &ce) {
			resp.Kind = ce.Kind.String()
		}
		resp.Success = false
		resp.Error = startErr.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// stopHandler closes the camera. Stopping a closed camera succeeds.
func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var resp StateResponse
	if err := s.do(r, func() {
		s.ctrl.Stop()
		resp = s.state()
	}); err != nil {
		s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	cameraRequestsTotal.WithLabelValues("stop", "success").Inc()
	s.writeJSON(w, http.StatusOK, resp)
}

// pictureHandler takes a picture and waits for it. format=jpeg returns the
// thumbnail as image/jpeg, original=1 together with it returns the full picture.
func (s *Server) pictureHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	start := time.Now()

	waiter := callback.NewWaiter()
	var takeErr error
	if err := s.do(r, func() {
		s.ctrl.AddListener(waiter)
		if takeErr = s.ctrl.TakePicture(); takeErr != nil {
			s.ctrl.RemoveListener(waiter)
		}
	}); err != nil {
		s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if takeErr != nil {
		cameraRequestsTotal.WithLabelValues("picture", "rejected").Inc()
		s.writeErrorResponse(w, takeErr.Error(), http.StatusConflict)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	pic, err := waiter.Wait(ctx)
	if err != nil && !errors.As(err, new(*camera.Error)) && !errors.Is(err, callback.ErrClosedBeforePicture) {
		err = fmt.Errorf("waiting for picture: %w", err)
	}
	// The listener is dropped on a fresh context: the request one may be gone.
	cleanup, cancelCleanup := context.WithTimeout(context.Background(), s.timeout)
	defer cancelCleanup()
	_ = s.loop.Do(cleanup, func() { s.ctrl.RemoveListener(waiter) })

	cameraRequestsTotal.WithLabelValues("picture", statusLabel(err)).Inc()
	if err != nil {
		var ce *camera.Error
		if errors.As(err, &ce) {
			s.writeCameraError(w, ce, http.StatusInternalServerError)
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.writeErrorResponse(w, err.Error(), status)
		return
	}
	pictureSizeBytes.Observe(float64(len(pic.Original)))

	if r.URL.Query().Get("format") == "jpeg" {
		data := pic.Thumbnail
		if r.URL.Query().Get("original") == "1" {
			data = pic.Original
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(data)
		return
	}

	s.writeJSON(w, http.StatusOK, PictureResponse{
		Success:     true,
		RequestID:   requestID,
		Original:    pic.Original,
		Thumbnail:   pic.Thumbnail,
		PictureSize: pic.Size,
		DurationMs:  time.Since(start).Milliseconds(),
	})
}

// configResponse must be called on the control thread.
func (s *Server) configResponse() ConfigResponse {
	return ConfigResponse{
		State:              s.ctrl.State().String(),
		Backend:            s.ctrl.Variant().String(),
		Fallback:           s.ctrl.FallbackActive(),
		Facing:             s.ctrl.Facing(),
		Flash:              s.ctrl.Flash(),
		AutoFocus:          s.ctrl.AutoFocus(),
		AspectRatio:        s.ctrl.AspectRatio(),
		DisplayOrientation: s.ctrl.DisplayOrientation(),
		AdjustViewBounds:   s.ctrl.AdjustViewBounds(),
		Barcode:            s.ctrl.BarcodeEnabled(),
		SaveImage:          s.ctrl.SaveImage(),
		ViewSize:           s.ctrl.ViewSize(),
		PictureSize:        s.ctrl.PictureSize(),
		PreviewSize:        s.ctrl.PreviewSize(),
	}
}

// configHandler reads (GET) or updates (PUT) the camera configuration.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var resp ConfigResponse
		if err := s.do(r, func() { resp = s.configResponse() }); err != nil {
			s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)

	case http.MethodPut:
		var update ConfigUpdate
		if err := decodeBody(w, r, &update); err != nil {
			s.writeErrorResponse(w, "Invalid config update: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := update.validate(); err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		var resp ConfigResponse
		if err := s.do(r, func() {
			s.apply(update)
			resp = s.configResponse()
		}); err != nil {
			s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		cameraRequestsTotal.WithLabelValues("config", "success").Inc()
		s.writeJSON(w, http.StatusOK, resp)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (u ConfigUpdate) validate() error {
	if u.Flash != nil && !u.Flash.Valid() {
		return fmt.Errorf("invalid flash mode: %d", int(*u.Flash))
	}
	if u.AspectRatio != nil && u.AspectRatio.IsZero() {
		return errors.New("aspect_ratio must not be empty")
	}
	if u.PictureSize != nil && u.PictureSize.Empty() {
		return fmt.Errorf("invalid picture size: %s (must be positive)", u.PictureSize)
	}
	if u.ViewSize != nil && (u.ViewSize.Width < 0 || u.ViewSize.Height < 0) {
		return fmt.Errorf("invalid view size: %s (must not be negative)", u.ViewSize)
	}
	return nil
}

// apply must be called on the control thread. Facing goes first since
// switching cameras rebuilds the supported ratios.
func (s *Server) apply(u ConfigUpdate) {
	if u.Facing != nil {
		s.ctrl.SetFacing(*u.Facing)
	}
	if u.AspectRatio != nil {
		s.ctrl.SetAspectRatio(*u.AspectRatio)
	}
	if u.Flash != nil {
		s.ctrl.SetFlash(*u.Flash)
	}
	if u.AutoFocus != nil {
		s.ctrl.SetAutoFocus(*u.AutoFocus)
	}
	if u.AdjustViewBounds != nil {
		s.ctrl.SetAdjustViewBounds(*u.AdjustViewBounds)
	}
	if u.SaveImage != nil {
		s.ctrl.SetSaveImage(*u.SaveImage)
	}
	if u.ViewSize != nil {
		s.ctrl.SetViewSize(*u.ViewSize)
	}
	if u.PictureSize != nil {
		s.ctrl.SetPictureSize(*u.PictureSize)
	}
}

// ratiosHandler lists the supported aspect ratios.
func (s *Server) ratiosHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var resp RatiosResponse
	if err := s.do(r, func() {
		resp.Ratios = s.ctrl.SupportedAspectRatios().Strings()
		resp.Current = s.ctrl.AspectRatio().String()
	}); err != nil {
		s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if resp.Ratios == nil {
		resp.Ratios = []string{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// barcodeHandler switches between the plain and barcode backends.
func (s *Server) barcodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BarcodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErrorResponse(w, "Invalid barcode request: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		swapErr error
		resp    ConfigResponse
	)
	if err := s.do(r, func() {
		swapErr = s.ctrl.EnableBarcode(req.Enabled)
		resp = s.configResponse()
	}); err != nil {
		s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	cameraRequestsTotal.WithLabelValues("barcode", statusLabel(swapErr)).Inc()

	if swapErr != nil {
		status := http.StatusInternalServerError
		if errors.Is(swapErr, session.ErrCaptureInProgress) {
			status = http.StatusConflict
		}
		s.writeErrorResponse(w, swapErr.Error(), status)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// orientationHandler feeds a device rotation into the orientation sensor.
func (s *Server) orientationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sensor == nil {
		s.writeErrorResponse(w, "orientation input disabled", http.StatusNotFound)
		return
	}

	var req OrientationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErrorResponse(w, "Invalid orientation request: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.sensor.Set(req.Degrees)

	var resp ConfigResponse
	if err := s.do(r, func() { resp = s.configResponse() }); err != nil {
		s.writeErrorResponse(w, "control loop unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// writeJSON writes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

func (s *Server) writeCameraError(w http.ResponseWriter, err *camera.Error, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: err.Message, Kind: err.Kind.String()})
}

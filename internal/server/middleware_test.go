package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		corsOrigin string
		method     string
		path       string
		wantNext   bool
	}{
		{"start with wildcard origin", "*", http.MethodPost, "/camera/start", true},
		{"config update from app origin", "https://app.example", http.MethodPut, "/camera/config", true},
		{"preflight for picture", "*", http.MethodOptions, "/camera/picture", false},
		{"no origin configured", "", http.MethodGet, "/health", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{corsOrigin: tt.corsOrigin}
			nextCalled := false
			handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
			})

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			assert.Equal(t, tt.wantNext, nextCalled)
		})
	}
}

func TestServer_CORSMiddleware_KeepsErrorStatus(t *testing.T) {
	server := &Server{corsOrigin: "*"}
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/camera/picture", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_MiddlewareRecordsRequests(t *testing.T) {
	var logs bytes.Buffer
	server := &Server{
		corsOrigin: "*",
		log:        slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	served := httpRequestsTotal.WithLabelValues(http.MethodPost, "/camera/start", "Service Unavailable")
	before := promtest.ToFloat64(served)

	req := httptest.NewRequest(http.MethodPost, "/camera/start", nil)
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 192.168.0.1")
	handler(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, promtest.ToFloat64(served))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "request served", entry["msg"])
	assert.Equal(t, "/camera/start", entry["path"])
	assert.Equal(t, float64(http.StatusServiceUnavailable), entry["status"])
	assert.Equal(t, "10.1.2.3", entry["client"])
}

func TestServer_PreflightIsNotCounted(t *testing.T) {
	server := &Server{corsOrigin: "*"}
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {})

	preflight := httpRequestsTotal.WithLabelValues(http.MethodOptions, "/camera/stop", "OK")
	before := promtest.ToFloat64(preflight)
	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodOptions, "/camera/stop", nil))

	assert.Equal(t, before, promtest.ToFloat64(preflight))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 10.0.0.7 , 10.0.0.1"}, "127.0.0.1:9000", "10.0.0.7"},
		{"real ip", map[string]string{"X-Real-IP": "172.16.0.4"}, "127.0.0.1:9000", "172.16.0.4"},
		{"remote address", nil, "192.0.2.10:51234", "192.0.2.10"},
		{"remote without port", nil, "camera-host", "camera-host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func BenchmarkServer_CORSMiddleware(b *testing.B) {
	server := &Server{corsOrigin: "*"}
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/camera/config", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler(httptest.NewRecorder(), req)
	}
}

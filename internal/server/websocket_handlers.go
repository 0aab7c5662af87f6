package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/camkit/internal/barcode"
	"github.com/MeKo-Tech/camkit/internal/camera"
)

const (
	eventBacklog = 32
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Event types streamed on /ws/events.
const (
	// EventReady is the first event of every connection; the client's
	// listener is registered once it arrives.
	EventReady   = "ready"
	EventOpened  = "opened"
	EventClosed  = "closed"
	EventPicture = "picture"
	EventError   = "error"
	EventLayout  = "layout"
	EventBarcode = "barcode"
)

// Event is one listener callback serialised for a remote client.
type Event struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Time    string          `json:"time"`
	Picture *PictureEvent   `json:"picture,omitempty"`
	Error   *ErrorEvent     `json:"error,omitempty"`
	Barcode *barcode.Result `json:"barcode,omitempty"`
}

// PictureEvent carries the thumbnail; the original is only reported by size.
type PictureEvent struct {
	Thumbnail     []byte      `json:"thumbnail"`
	Size          camera.Size `json:"size"`
	OriginalBytes int         `json:"original_bytes"`
}

// ErrorEvent is a camera error.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// eventClient is the listener registered for one WebSocket connection. Its
// callbacks run on the control thread and never block: events that do not fit
// the backlog are dropped.
type eventClient struct {
	send         chan Event
	lastOriginal int
}

func newEventClient() *eventClient {
	return &eventClient{send: make(chan Event, eventBacklog)}
}

func (c *eventClient) push(e Event) {
	e.ID = uuid.NewString()
	e.Time = time.Now().UTC().Format(time.RFC3339Nano)
	select {
	case c.send <- e:
	default:
		websocketMessagesTotal.WithLabelValues("dropped").Inc()
	}
}

func (c *eventClient) OnOpened() { c.push(Event{Type: EventOpened}) }

func (c *eventClient) OnClosed() { c.push(Event{Type: EventClosed}) }

func (c *eventClient) OnPictureTakenOriginal(data []byte) { c.lastOriginal = len(data) }

func (c *eventClient) OnPictureTaken(data []byte, size camera.Size) {
	c.push(Event{Type: EventPicture, Picture: &PictureEvent{
		Thumbnail:     data,
		Size:          size,
		OriginalBytes: c.lastOriginal,
	}})
}

func (c *eventClient) OnError(err *camera.Error) {
	c.push(Event{Type: EventError, Error: &ErrorEvent{Kind: err.Kind.String(), Message: err.Message}})
}

func (c *eventClient) OnLayoutRequested() { c.push(Event{Type: EventLayout}) }

func (c *eventClient) OnBarcode(r barcode.Result) {
	c.push(Event{Type: EventBarcode, Barcode: &r})
}

// upgrader returns a WebSocket upgrader honouring the configured CORS origin.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// eventsWebSocketHandler streams listener events until the client goes away.
func (s *Server) eventsWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	client := newEventClient()
	if err := s.do(r, func() {
		s.ctrl.AddListener(client)
		client.push(Event{Type: EventReady})
	}); err != nil {
		s.log.Error("Failed to register event listener", "error", err)
		return
	}
	s.log.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeEvents(conn, client.send)
	}()

	readUntilClosed(conn, s.log)

	// Once removal has run on the control thread nothing sends any more.
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.loop.Do(ctx, func() { s.ctrl.RemoveListener(client) }); err != nil {
		s.log.Warn("Failed to unregister event listener", "error", err)
	}
	close(client.send)
	<-done
	s.log.Info("WebSocket connection closed", "remote_addr", r.RemoteAddr)
}

// readUntilClosed discards client messages and returns when the connection
// fails or the client closes it.
func readUntilClosed(conn *websocket.Conn, log *slog.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket error", "error", err)
			}
			return
		}
	}
}

// writeEvents is the single writer of conn. It keeps pinging until events is
// closed.
func (s *Server) writeEvents(conn *websocket.Conn, events <-chan Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	broken := false
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if broken {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.sendEvent(conn, e); err != nil {
				broken = true
				// Unblock the reader.
				_ = conn.Close()
			}
		case <-ticker.C:
			if broken {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				broken = true
				_ = conn.Close()
			}
		}
	}
}

// sendEvent sends one event as a text message.
func (s *Server) sendEvent(conn WebSocketConnWriter, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger().Error("Failed to marshal WebSocket event", "error", err)
		return nil
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger().Debug("Failed to send WebSocket message", "error", err)
		return err
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

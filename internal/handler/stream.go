package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/rentroll/internal/event"
	"github.com/matthewbaird/rentroll/internal/eventbus"
)

// ClientMessage is the envelope for client-to-server stream messages.
type ClientMessage struct {
	Type string          `json:"type"` // "subscribe", "ping"
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SubscribeData narrows the stream to events that reference one entity.
// Both fields empty clears the filter.
type SubscribeData struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// ServerMessage is the envelope for server-to-client stream messages.
type ServerMessage struct {
	Type      string `json:"type"` // "ready", "event", "subscribed", "pong", "error"
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StreamHandler pushes domain events to websocket clients.
type StreamHandler struct {
	fanout  *eventbus.Fanout
	origins []string
	logger  *slog.Logger
}

// NewStreamHandler creates a StreamHandler. origins are the accepted Origin
// host patterns; empty accepts only same-host requests.
func NewStreamHandler(fanout *eventbus.Fanout, origins []string, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{fanout: fanout, origins: origins, logger: logger}
}

// ServeHTTP upgrades to WebSocket and streams events until the client leaves.
// The entity_type and entity_id query params set the initial filter.
// GET /v1/events/stream
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The server's read and write timeouts would cut the stream.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("stream: websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := h.fanout.Listen()
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	filter := SubscribeData{
		EntityType: r.URL.Query().Get("entity_type"),
		EntityID:   r.URL.Query().Get("entity_id"),
	}
	incoming := make(chan ClientMessage)
	go h.readLoop(ctx, stop, conn, incoming)

	h.send(ctx, conn, ServerMessage{Type: "ready", Data: filter})
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if matches(filter, evt) {
				h.send(ctx, conn, ServerMessage{Type: "event", Data: evt})
			}
		case msg := <-incoming:
			switch msg.Type {
			case "subscribe":
				var data SubscribeData
				if err := json.Unmarshal(msg.Data, &data); err != nil {
					h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid subscribe data")
					continue
				}
				filter = data
				h.send(ctx, conn, ServerMessage{Type: "subscribed", RequestID: msg.ID, Data: filter})
			case "ping":
				h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
			default:
				h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
			}
		}
	}
}

func (h *StreamHandler) readLoop(ctx context.Context, stop context.CancelFunc, conn *websocket.Conn, out chan<- ClientMessage) {
	defer stop()
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Debug("stream: read", "error", err)
			}
			return
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func matches(f SubscribeData, evt event.DomainEvent) bool {
	if f.EntityType == "" && f.EntityID == "" {
		return true
	}
	if f.EntityType != "" && f.EntityID != "" {
		return evt.RefersTo(f.EntityType, f.EntityID)
	}
	for _, ref := range evt.AffectedEntities {
		if (f.EntityType == "" || ref.EntityType == f.EntityType) &&
			(f.EntityID == "" || ref.EntityID == f.EntityID) {
			return true
		}
	}
	return false
}

func (h *StreamHandler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.logger.Debug("stream: write", "error", err)
	}
}

func (h *StreamHandler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	})
}

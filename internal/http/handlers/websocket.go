package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jmylchreest/youcube/internal/events"
	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/metrics"
	"github.com/jmylchreest/youcube/internal/observability"
)

// Inbound actions and the replies to requests that cannot be dispatched.
const (
	ActionRequestMedia = "request_media"

	MsgUnknownAction  = "Unknown action"
	MsgInvalidRequest = "Invalid request"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 64 * 1024
)

// clientRequest is one inbound websocket message.
type clientRequest struct {
	Action string `json:"action"`
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// WebSocketHandler serves the client channel. Each connection may run several
// resolutions at once; their events are interleaved on the connection in the
// order they are produced. Resolutions are canceled when the client disconnects
// or the handler's base context ends.
type WebSocketHandler struct {
	resolver MediaResolver
	metrics  *metrics.Metrics
	logger   *slog.Logger
	baseCtx  context.Context
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a websocket handler.
func NewWebSocketHandler(r MediaResolver) *WebSocketHandler {
	return &WebSocketHandler{
		resolver: r,
		logger:   slog.Default(),
		baseCtx:  context.Background(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// WithLogger sets the logger for the handler.
func (h *WebSocketHandler) WithLogger(logger *slog.Logger) *WebSocketHandler {
	h.logger = observability.WithComponent(logger, "websocket")
	return h
}

// WithMetrics sets the metrics recorder.
func (h *WebSocketHandler) WithMetrics(m *metrics.Metrics) *WebSocketHandler {
	h.metrics = m
	return h
}

// WithBaseContext sets the context every connection derives from. Canceling it
// closes all connections; http.Server.Shutdown does not reach hijacked ones.
func (h *WebSocketHandler) WithBaseContext(ctx context.Context) *WebSocketHandler {
	h.baseCtx = ctx
	return h
}

// RegisterChiRoutes registers the websocket endpoints.
func (h *WebSocketHandler) RegisterChiRoutes(r chi.Router) {
	r.Get("/", h.ServeHTTP)
	r.Get("/ws", h.ServeHTTP)
}

// ServeHTTP upgrades the request and runs the connection until either side
// closes it.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	clientID := uuid.NewString()
	logger := h.logger.With(slog.String("client_id", clientID))
	logger.Info("client connected", slog.String("remote_addr", r.RemoteAddr))

	closed := h.metrics.ConnectionOpened()
	defer closed()

	ctx, cancel := context.WithCancel(h.baseCtx)
	defer cancel()

	outbox := events.NewOutbox()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		err := outbox.Drain(ctx, func(m events.Message) error {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(m)
		})
		if err != nil && !errors.Is(err, events.ErrOutboxClosed) && !errors.Is(err, context.Canceled) {
			logger.Debug("websocket write failed", slog.String("error", err.Error()))
		}
		cancel()
	}()

	// Unblocks the read loop on shutdown and after a write failure.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var workers sync.WaitGroup
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				logger.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			break
		}
		h.dispatch(ctx, logger, data, outbox, &workers)
	}

	cancel()
	workers.Wait()
	outbox.Close()
	<-writerDone
	logger.Info("client disconnected")
}

// dispatch handles one inbound message. Media requests run in their own
// goroutine so the connection keeps reading while they progress.
func (h *WebSocketHandler) dispatch(ctx context.Context, logger *slog.Logger, data []byte, outbox *events.Outbox, workers *sync.WaitGroup) {
	var req clientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		outbox.Error(MsgInvalidRequest)
		return
	}

	switch req.Action {
	case ActionRequestMedia:
		if req.URL == "" {
			outbox.Error(MsgInvalidRequest)
			return
		}
		mreq := media.Request{URL: req.URL, Width: req.Width, Height: req.Height}
		reqCtx := observability.ContextWithRequestID(ctx, uuid.NewString())

		workers.Add(1)
		go func() {
			defer workers.Done()
			// Resolve reports failures through the outbox itself.
			_, _ = h.resolver.Resolve(reqCtx, mreq, outbox)
		}()
	default:
		logger.Debug("unknown action", slog.String("action", req.Action))
		outbox.Error(MsgUnknownAction)
	}
}

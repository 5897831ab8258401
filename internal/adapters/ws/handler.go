package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/pace/pkg/logger"
	"github.com/okian/pace/pkg/metrics"
	"github.com/okian/pace/pkg/protocol"
)

const handshakeTimeout = 10 * time.Second

// Dispatcher consumes parsed inbound messages for one session. Messages from
// the same session arrive sequentially; different sessions may dispatch
// concurrently.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *Session, msg protocol.Message)
}

// Handler upgrades /ws/{userId} requests and runs the per-session read loop.
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
	upgrader   websocket.Upgrader

	writeTimeout    time.Duration
	maxMessageBytes int64

	logger logger.Logger
}

// NewHandler creates a websocket handler.
func NewHandler(registry *Registry, dispatcher Dispatcher, allowedOrigins []string, writeTimeout time.Duration, maxMessageBytes int64, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      originChecker(allowedOrigins),
		},
		writeTimeout:    writeTimeout,
		maxMessageBytes: maxMessageBytes,
		logger:          log.Named("ws"),
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and any origin when the allow list contains "*".
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleWS handles GET /ws/{userId}.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed",
			logger.String("userId", userID),
			logger.Error(err),
		)
		return
	}
	sock.SetReadLimit(h.maxMessageBytes)

	conn := NewConn(sock, h.writeTimeout)
	ctx := context.Background() // session outlives the upgrade request
	sess := h.registry.Register(ctx, userID, conn)

	h.logger.Info(ctx, "session opened", logger.String("userId", userID))

	if err := sess.Send(protocol.Connected(userID)); err != nil {
		h.logger.Debug(ctx, "connected ack failed", logger.Error(err))
	}

	h.readLoop(ctx, sess, conn)

	h.registry.Unregister(ctx, sess)
	_ = conn.Close()
	h.logger.Info(ctx, "session closed", logger.String("userId", userID))
}

// readLoop processes the session's inbound frames sequentially. A frame that
// does not parse is logged and dropped; the session stays open.
func (h *Handler) readLoop(ctx context.Context, sess *Session, conn *Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug(ctx, "session read ended",
				logger.String("userId", sess.UserID),
				logger.Error(err),
			)
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			metrics.RecordMalformedMessage()
			h.logger.Warn(ctx, "dropping malformed frame",
				logger.String("userId", sess.UserID),
				logger.Error(err),
			)
			continue
		}

		h.dispatcher.Dispatch(ctx, sess, msg)
	}
}

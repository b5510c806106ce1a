package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	chatService "github.com/agricare/backend/internal/service/chat"
	"github.com/agricare/backend/internal/service/turn"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler carries conversation turns over a WebSocket bound to one session.
type Handler struct {
	turns    *turn.Service
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler. checkOrigin may be nil to accept any origin.
func New(turns *turn.Service, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		turns: turns,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Mood string `json:"mood,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.turns.History(r.Context(), sessionID); err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("session", sessionID).Logger()
	logger.Info().Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	out := make(chan outgoingMessage, 8)
	done := make(chan struct{})
	go h.writeLoop(ctx, cancel, conn, out, done)
	defer func() {
		cancel()
		<-done
	}()

	out <- outgoingMessage{Type: "connected", SessionID: sessionID, Timestamp: time.Now().Unix()}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		reply := h.handleMessage(ctx, sessionID, msg)
		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, sessionID string, msg inboundMessage) outgoingMessage {
	reply := outgoingMessage{SessionID: sessionID, Timestamp: time.Now().Unix()}

	switch msg.Type {
	case "turn":
		result, err := h.turns.HandleTurn(ctx, sessionID, msg.Text)
		if err != nil {
			return errorMessage(sessionID, err)
		}
		reply.Type = "reply"
		reply.Data = result
	case "checkin":
		saved, err := h.turns.CheckIn(ctx, sessionID, turn.Mood(msg.Mood))
		if err != nil {
			return errorMessage(sessionID, err)
		}
		reply.Type = "reply"
		reply.Data = saved
	default:
		return errorMessage(sessionID, errors.New("unsupported message type"))
	}
	return reply
}

// writeLoop owns every write to conn, including pings. A failed write closes
// the connection so the read loop returns.
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan outgoingMessage, done chan<- struct{}) {
	defer close(done)
	fail := func(err error) {
		log.Debug().Err(err).Msg("websocket write failed")
		cancel()
		_ = conn.Close()
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				fail(err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail(err)
				return
			}
		}
	}
}

func errorMessage(sessionID string, err error) outgoingMessage {
	return outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"message": err.Error()},
		Timestamp: time.Now().Unix(),
	}
}

package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/agricare/backend/internal/analysis/emotion"
	chatService "github.com/agricare/backend/internal/service/chat"
	"github.com/agricare/backend/internal/service/turn"
	"github.com/agricare/backend/pkg/utils"
)

// Handler runs a turn and reports its stages as server-sent events.
type Handler struct {
	turns *turn.Service
}

// New creates a stream handler.
func New(turns *turn.Service) *Handler {
	return &Handler{turns: turns}
}

// StreamResponse is the payload of every event.
type StreamResponse struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Data      any    `json:"data,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EscalationEvent is sent when a turn alerted emergency contacts.
type EscalationEvent struct {
	Fired     bool            `json:"fired"`
	Notified  int             `json:"notified"`
	Helplines []turn.Helpline `json:"helplines,omitempty"`
}

// RegisterRoutes mounts the SSE endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, message); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("stream request failed")
	}
}

// HandleStreamRequest runs one turn and emits start, emotion, message,
// escalation and end events. Errors after the stream opened are sent as an
// error event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)
	h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	result, err := h.turns.HandleTurn(ctx, sessionID, message)
	if err != nil {
		msg := "turn failed"
		if errors.Is(err, chatService.ErrSessionNotFound) || errors.Is(err, turn.ErrEmptyText) {
			msg = err.Error()
		}
		h.send(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: msg})
		return err
	}

	if result.Duplicate {
		h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true, Data: map[string]bool{"duplicate": true}})
		return nil
	}

	h.send(w, flusher, StreamResponse{
		Event:     "emotion",
		SessionID: sessionID,
		Content:   string(result.Emotion),
		Data:      map[string]string{"emoji": result.Emotion.Emoji()},
	})
	h.send(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   result.BotText,
		Data:      map[string]any{"backend": result.Backend, "fallback": result.Fallback},
	})
	if result.Emotion == emotion.HighRisk {
		h.send(w, flusher, StreamResponse{
			Event:     "escalation",
			SessionID: sessionID,
			Data: EscalationEvent{
				Fired:     result.EmergencyFired,
				Notified:  result.NotifiedCount,
				Helplines: result.Helplines,
			},
		})
	}
	h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
	return nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, resp StreamResponse) {
	utils.SendSSEEvent(w, flusher, resp.Event, resp)
}

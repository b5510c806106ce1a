package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	chatService "github.com/agricare/backend/internal/service/chat"
	"github.com/agricare/backend/internal/service/turn"
	"github.com/agricare/backend/pkg/utils"
)

// Handler serves sessions, turns and conversation history.
type Handler struct {
	turns *turn.Service
}

// New creates the conversation handler.
func New(turns *turn.Service) *Handler {
	return &Handler{turns: turns}
}

// RegisterRoutes mounts the conversation routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/starters", h.handleListStarters)
	r.Get("/helplines", h.handleHelplines)

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/turns", h.handleTurn)
		r.Get("/history", h.handleHistory)
		r.Delete("/history", h.handleClear)
		r.Get("/transcript", h.handleTranscript)
		r.Get("/insights", h.handleInsights)
		r.Post("/starters/{starterID}", h.handleStarter)
		r.Post("/checkin", h.handleCheckIn)
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FarmerID string `json:"farmerId"`
		Language string `json:"language"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.turns.CreateSession(r.Context(), payload.FarmerID, payload.Language)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.turns.HandleTurn(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Duplicate {
		status = http.StatusAccepted
	}
	utils.RespondJSON(w, status, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.turns.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, history)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.turns.Clear(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	text, err := h.turns.ExportTranscript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agricare_chat_`+sessionID+`.txt"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.turns.Insights(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, insights)
}

func (h *Handler) handleListStarters(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.turns.Starters())
}

func (h *Handler) handleStarter(w http.ResponseWriter, r *http.Request) {
	msg, err := h.turns.StartConversation(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "starterID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mood string `json:"mood"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.turns.CheckIn(r.Context(), chi.URLParam(r, "sessionID"), turn.Mood(payload.Mood))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleHelplines(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, turn.Helplines())
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrDuplicateSubmission):
		return http.StatusConflict
	case errors.Is(err, turn.ErrEmptyText),
		errors.Is(err, turn.ErrFarmerNotFound),
		errors.Is(err, turn.ErrUnknownStarter),
		errors.Is(err, turn.ErrUnknownMood),
		errors.Is(err, chatService.ErrFarmerRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, strings.TrimSpace(err.Error()))
}

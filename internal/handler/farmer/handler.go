package farmer

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agricare/backend/internal/model/farmer"
	"github.com/agricare/backend/pkg/utils"
)

// Registry is a profile store that also accepts writes.
type Registry interface {
	farmer.Store
	Save(profile farmer.Context) error
}

// Handler serves farmer profile capture.
type Handler struct {
	farmers Registry
}

// New creates the farmer handler.
func New(farmers Registry) *Handler {
	return &Handler{farmers: farmers}
}

// RegisterRoutes mounts the farmer routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/farmers", h.handleList)
	r.Post("/farmers", h.handleSave)
	r.Get("/farmers/{farmerID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.farmers.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.farmers.FindByID(chi.URLParam(r, "farmerID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "farmer not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var profile farmer.Context
	if err := utils.DecodeJSON(r, &profile); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(profile.ID) == "" {
		profile.ID = uuid.NewString()
	}

	if err := h.farmers.Save(profile); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, farmer.ErrNameRequired) || errors.Is(err, farmer.ErrTooManyContacts) || errors.Is(err, farmer.ErrProfileIDMissing) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	saved, _ := h.farmers.FindByID(strings.TrimSpace(profile.ID))
	utils.RespondJSON(w, http.StatusCreated, saved)
}

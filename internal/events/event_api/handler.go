package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/events"
	"ms-events/internal/logger"
	"ms-events/internal/utils"
)

type Handler struct {
	Service   *events.Service
	Logger    *logger.Logger
	PublicURL string
}

// RegisterRoutes mounts the event endpoints. The caller is expected to have
// applied the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Get("/{eventId}", h.GetEvent)
		r.Put("/{eventId}", h.UpdateEvent)
		r.Patch("/{eventId}", h.PartialUpdateEvent)
		r.Post("/{eventId}/attend", h.Attend)
		r.Post("/{eventId}/cancel", h.Cancel)
		r.Get("/{eventId}/qr", h.ShareQR)
	})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := h.Service.Options()
	filter, err := events.ParseFilter(r.URL.Query(), opts.DefaultLimit, opts.MaxLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.Service.List(r.Context(), filter, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in events.EventInput
	if !h.decode(w, r, &in) {
		return
	}

	view, err := h.Service.Create(r.Context(), in, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Get(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *Handler) PartialUpdateEvent(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	var in events.EventInput
	if !h.decode(w, r, &in) {
		return
	}

	view, err := h.Service.Update(r.Context(), chi.URLParam(r, "eventId"), in, auth.UserID(r.Context()), partial)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) Attend(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.Attend(r.Context(), chi.URLParam(r, "eventId"), auth.UserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "eventId"), auth.UserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ShareQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Service.ShareQR(r.Context(), chi.URLParam(r, "eventId"), h.PublicURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error(), "parse_error"))
		return false
	}
	return true
}

// writeError maps domain errors to HTTP responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *events.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.WriteJSON(w, http.StatusBadRequest, utils.FieldErrorResponse("Invalid input.", "invalid", verr.Fields))
	case errors.Is(err, events.ErrEventLocked):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Event has already started", "event_locked"))
	case errors.Is(err, events.ErrCapacityExhausted):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Event is full", "capacity_exhausted"))
	case errors.Is(err, events.ErrPermission):
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("You do not have permission to perform this action.", "permission_denied"))
	case errors.Is(err, events.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found.", "not_found"))
	case errors.Is(err, events.ErrConflict):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Event was modified concurrently, retry the request.", "conflict"))
	case errors.Is(err, auth.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse(err.Error(), "not_authenticated"))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal server error", "server_error"))
	}
}

package profile_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/events"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/profiles"
	"ms-events/internal/utils"
)

type Handler struct {
	Service *profiles.Service
	Logger  *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/profile", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/token", h.ObtainToken)
		r.Post("/token/refresh", h.RefreshToken)
	})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.Service.Signup(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Service.ObtainToken(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Service.Rotate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, pair)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error(), "parse_error"))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *events.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.WriteJSON(w, http.StatusBadRequest, utils.FieldErrorResponse("Invalid input.", "invalid", verr.Fields))
	case errors.Is(err, profiles.ErrInvalidCredentials):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("No active account found with the given credentials", "no_active_account"))
	case errors.Is(err, auth.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Token is invalid or expired", "token_not_valid"))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal server error", "server_error"))
	}
}

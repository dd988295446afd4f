package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-starter/internal/model"
	"go-auth-starter/internal/service"
	"go-auth-starter/pkg/apierror"
)

// UserHandler serves the admin-only user management endpoints.
type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apierror.New(http.StatusBadRequest, "invalid JSON body"))
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.service.ChangeRole(r.Context(), userID, payload.Role); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID := chi.URLParam(r, "id")
	if err := h.service.SetActive(r.Context(), userID, active); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": userID, "isActive": active})
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator"

	"go-auth-starter/internal/middleware"
	"go-auth-starter/internal/model"
	"go-auth-starter/internal/service"
	"go-auth-starter/pkg/apierror"
)

type AuthHandler struct {
	service  *service.AuthService
	cookies  *CookieWriter
	validate *validator.Validate
}

func NewAuthHandler(service *service.AuthService, cookies *CookieWriter) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookies:  cookies,
		validate: validator.New(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apierror.New(http.StatusBadRequest, "invalid JSON body"))
		return
	}

	if err := h.validate.Struct(payload); err != nil {
		writeError(w, r, apierror.New(http.StatusBadRequest, "email must be valid and password at least 8 characters"))
		return
	}

	resp, err := h.service.Register(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.SetPair(w, resp.Tokens)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apierror.New(http.StatusBadRequest, "invalid JSON body"))
		return
	}

	if err := h.validate.Struct(payload); err != nil {
		writeError(w, r, apierror.New(http.StatusBadRequest, "email and password are required"))
		return
	}

	resp, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.SetPair(w, resp.Tokens)
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(r.Context(), claims.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, model.LogoutResponse{LoggedOut: true})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	cookie, err := r.Cookie(middleware.RefreshTokenCookie)
	if err != nil {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	pair, err := h.service.Refresh(r.Context(), claims.UserID, cookie.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.SetPair(w, pair)
	writeJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	user, err := h.service.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

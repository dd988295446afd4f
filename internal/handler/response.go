package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go-auth-starter/internal/model"
	"go-auth-starter/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders the uniform error envelope. Domain sentinels map onto
// the Conflict/Unauthorized/NotFound taxonomy; anything unclassified is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "unexpected server error"

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		message = apiErr.Message
	case errors.Is(err, model.ErrUserAlreadyExists):
		status = http.StatusConflict
		message = "email already registered"
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = "invalid credentials"
	case errors.Is(err, model.ErrUserInactive):
		status = http.StatusUnauthorized
		message = "account is deactivated"
	case errors.Is(err, model.ErrTokenInvalid), errors.Is(err, model.ErrTokenExpired):
		status = http.StatusUnauthorized
		message = "invalid or expired token"
	case errors.Is(err, model.ErrTokenMismatch), errors.Is(err, model.ErrNotLoggedIn):
		status = http.StatusUnauthorized
		message = "refresh token is no longer valid"
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "authentication required"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		message = "access denied"
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		message = "user not found"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		message = "invalid input"
	default:
		slog.Error("unhandled error in writeError", "error", err.Error(), "path", r.URL.Path)
	}

	writeJSON(w, status, model.ErrorEnvelope{
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		Path:       r.URL.Path,
		Message:    message,
	})
}

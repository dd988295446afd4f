package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-auth-starter/internal/model"
)

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorEnvelope{
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		Path:       r.URL.Path,
		Message:    message,
	})
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-auth-starter/internal/model"
)

// Cookie names used for token transport.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type tokenValidator interface {
	ValidateAccess(ctx context.Context, tokenString string) (*model.AuthClaims, error)
	ValidateRefresh(ctx context.Context, tokenString string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAccess guards endpoints behind a valid access-token cookie. The
// validated claims are attached to the request context.
func (m *AuthMiddleware) RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := cookieValue(r, AccessTokenCookie)
		if !ok {
			writeEnvelope(w, r, http.StatusUnauthorized, "missing access token")
			return
		}

		claims, err := m.validator.ValidateAccess(r.Context(), token)
		if err != nil {
			writeEnvelope(w, r, http.StatusUnauthorized, "invalid or expired access token")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRefresh guards the refresh endpoint behind a valid refresh-token
// cookie; the user must also still have a stored refresh-token hash.
func (m *AuthMiddleware) RequireRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := cookieValue(r, RefreshTokenCookie)
		if !ok {
			writeEnvelope(w, r, http.StatusUnauthorized, "missing refresh token")
			return
		}

		claims, err := m.validator.ValidateRefresh(r.Context(), token)
		if err != nil {
			writeEnvelope(w, r, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowedRoles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeEnvelope(w, r, http.StatusUnauthorized, "authentication required")
				return
			}

			if _, exists := roleSet[strings.ToLower(claims.Role)]; !exists {
				writeEnvelope(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

func cookieValue(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}

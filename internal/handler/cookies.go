package handler

import (
	"net/http"
	"time"

	"go-auth-starter/internal/middleware"
	"go-auth-starter/internal/model"
)

// CookieWriter sets and clears the token-transport cookies. Secure is only
// enabled in production so local HTTP development keeps working.
type CookieWriter struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	secure     bool
}

func NewCookieWriter(accessTTL time.Duration, refreshTTL time.Duration, secure bool) *CookieWriter {
	return &CookieWriter{accessTTL: accessTTL, refreshTTL: refreshTTL, secure: secure}
}

func (c *CookieWriter) SetPair(w http.ResponseWriter, pair model.TokenPair) {
	http.SetCookie(w, c.cookie(middleware.AccessTokenCookie, pair.AccessToken, c.accessTTL))
	http.SetCookie(w, c.cookie(middleware.RefreshTokenCookie, pair.RefreshToken, c.refreshTTL))
}

func (c *CookieWriter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(middleware.AccessTokenCookie, "", -time.Second))
	http.SetCookie(w, c.cookie(middleware.RefreshTokenCookie, "", -time.Second))
}

func (c *CookieWriter) cookie(name string, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl.Seconds())
	if value == "" {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

package model

import "time"

// ErrorEnvelope is the uniform error body returned by every failing endpoint.
type ErrorEnvelope struct {
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
	Message    string    `json:"message"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	User   PublicUser `json:"user"`
	Tokens TokenPair  `json:"tokens"`
}

type LogoutResponse struct {
	LoggedOut bool `json:"loggedOut"`
}

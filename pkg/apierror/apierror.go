package apierror

import "fmt"

type APIError struct {
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d: %s", e.HTTPStatus, e.Message)
}

func New(status int, message string) *APIError {
	return &APIError{Message: message, HTTPStatus: status}
}

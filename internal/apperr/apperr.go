// Package apperr carries HTTP-aware errors from handlers to the client.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// AppError is an error with the status code it should be reported as.
type AppError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

var (
	ErrInvalidRequest = New(http.StatusBadRequest, "Invalid request parameters")
	ErrUnauthorized   = New(http.StatusUnauthorized, "Wallet not connected")
	ErrNotFound       = New(http.StatusNotFound, "Resource not found")
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error")
	ErrRateLimit      = New(http.StatusTooManyRequests, "Rate limit exceeded")
	ErrUnavailable    = New(http.StatusServiceUnavailable, "Service unavailable")
)

func BadRequest(msg string) *AppError {
	return New(http.StatusBadRequest, msg)
}

func NotFound(msg string) *AppError {
	return New(http.StatusNotFound, msg)
}

func Unavailable(msg string) *AppError {
	return New(http.StatusServiceUnavailable, msg)
}

func Conflict(msg string) *AppError {
	return New(http.StatusConflict, msg)
}

// Write renders err as {"error": {...}}. Anything that is not an AppError is
// reported as a 500 without leaking its message.
func Write(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = ErrInternalServer
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": appErr})
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package api

import (
	"encoding/json"
	"net/http"
)

// Error codes shared by handlers and middleware.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMissingToken       = "MISSING_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeExpiredToken       = "EXPIRED_TOKEN"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

// Authentication failures never say more than one of these two phrases.
const (
	MsgInvalidCredentials = "invalid email or password"
	MsgSessionExpired     = "session expired, please sign in again"
)

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the body of every non-2xx response.
type Envelope struct {
	Error ErrorDetail `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Envelope{Error: ErrorDetail{Code: code, Message: message}})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"tasklist/internal/api"
	"tasklist/internal/auth"

	"go.uber.org/zap"
)

// CredentialStore is the slice of auth.Store the gateway needs.
type CredentialStore interface {
	Register(ctx context.Context, email, password string) (uint64, error)
	Verify(ctx context.Context, email, password string) (uint64, error)
}

type AuthHandler struct {
	Store  CredentialStore
	Tokens *auth.JWT
	Policy auth.PasswordPolicy
	Log    *zap.Logger
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      uint64 `json:"user_id"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "body: invalid json")
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)

	// reject display-name forms like "jane <j@x.com>": only the bare
	// address may be stored
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "email: must be a valid address")
		return
	}
	if err := h.Policy.Validate(req.Password); err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "password: "+err.Error())
		return
	}

	uid, err := h.Store.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			// Same generic answer as a failed signin, so signup does not
			// reveal which emails are registered.
			api.Error(w, http.StatusBadRequest, api.CodeInvalidCredentials, api.MsgInvalidCredentials)
			return
		}
		h.Log.Error("signup failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}

	token, err := h.Tokens.Issue(uid, req.Email)
	if err != nil {
		h.Log.Error("token issue failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}

	api.JSON(w, http.StatusCreated, tokenResp{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.Tokens.TTL().Seconds()),
		UserID:      uid,
	})
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "body: invalid json")
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)

	uid, err := h.Store.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			api.Error(w, http.StatusUnauthorized, api.CodeInvalidCredentials, api.MsgInvalidCredentials)
			return
		}
		h.Log.Error("signin failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}

	token, err := h.Tokens.Issue(uid, req.Email)
	if err != nil {
		h.Log.Error("token issue failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}

	api.JSON(w, http.StatusOK, tokenResp{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.Tokens.TTL().Seconds()),
		UserID:      uid,
	})
}

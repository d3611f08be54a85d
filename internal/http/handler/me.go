package handler

import (
	"net/http"

	"tasklist/internal/api"
	"tasklist/internal/auth"
)

type MeHandler struct{}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	api.JSON(w, http.StatusOK, map[string]any{
		"user_id": id.UserID,
		"email":   id.Email,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tasklist/internal/api"
	"tasklist/internal/auth"
	"tasklist/internal/task"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxTitleLen       = 500
	maxDescriptionLen = 5000
)

// TaskService is the slice of task.Service the handlers need.
type TaskService interface {
	Create(ctx context.Context, userID uint64, in task.CreateInput) (task.Task, error)
	List(ctx context.Context, userID uint64, f task.ListFilter) ([]task.Task, error)
	Get(ctx context.Context, userID, id uint64) (task.Task, error)
	Update(ctx context.Context, userID, id uint64, in task.UpdateInput) (task.Task, error)
	Delete(ctx context.Context, userID, id uint64) error
	TagCounts(ctx context.Context, userID uint64, prefix string, limit int) ([]task.TagCount, error)
}

type TaskHandler struct {
	Svc TaskService
	Log *zap.Logger
}

type taskDTO struct {
	ID          uint64     `json:"id"`
	UserID      uint64     `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	DueAt       *time.Time `json:"due_at"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toDTO(t task.Task) taskDTO {
	return taskDTO{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		DueAt:       t.DueAt,
		Tags:        []string(t.Tags),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type createTaskReq struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueAt       *string `json:"due_at"` // RFC3339 optional
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "body: invalid json")
		return
	}

	title, ok := cleanTitle(req.Title)
	if !ok {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, titleRule)
		return
	}
	desc, ok := cleanDescription(req.Description)
	if !ok {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, descriptionRule)
		return
	}
	dueAt, _, err := parseDueAt(req.DueAt)
	if err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "due_at: must be RFC3339")
		return
	}

	t, err := h.Svc.Create(r.Context(), id.UserID, task.CreateInput{
		Title:       title,
		Description: desc,
		DueAt:       dueAt,
	})
	if err != nil {
		h.Log.Error("task create failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}

	api.JSON(w, http.StatusCreated, toDTO(t))
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var f task.ListFilter
	switch strings.ToLower(r.URL.Query().Get("completed")) {
	case "true":
		v := true
		f.Completed = &v
	case "false":
		v := false
		f.Completed = &v
	}
	f.Tag = strings.TrimSpace(r.URL.Query().Get("tag"))
	f.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	rows, err := h.Svc.List(r.Context(), id.UserID, f)
	if err != nil {
		h.Log.Error("task list failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}

	out := make([]taskDTO, 0, len(rows))
	for _, t := range rows {
		out = append(out, toDTO(t))
	}
	api.JSON(w, http.StatusOK, out)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	t, err := h.Svc.Get(r.Context(), id.UserID, taskID)
	if err != nil {
		h.respondTaskErr(w, err)
		return
	}
	api.JSON(w, http.StatusOK, toDTO(t))
}

type updateTaskReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	DueAt       *string `json:"due_at"` // RFC3339; empty string clears
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	var req updateTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "body: invalid json")
		return
	}

	var in task.UpdateInput
	if req.Title != nil {
		title, ok := cleanTitle(*req.Title)
		if !ok {
			api.Error(w, http.StatusBadRequest, api.CodeValidation, titleRule)
			return
		}
		in.Title = &title
	}
	if req.Description != nil {
		desc, ok := cleanDescription(req.Description)
		if !ok {
			api.Error(w, http.StatusBadRequest, api.CodeValidation, descriptionRule)
			return
		}
		in.Description = desc
		if desc == nil {
			empty := ""
			in.Description = &empty
		}
	}
	in.Completed = req.Completed

	dueAt, clear, err := parseDueAt(req.DueAt)
	if err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "due_at: must be RFC3339")
		return
	}
	in.DueAt = dueAt
	in.ClearDueAt = clear

	t, err := h.Svc.Update(r.Context(), id.UserID, taskID, in)
	if err != nil {
		h.respondTaskErr(w, err)
		return
	}
	api.JSON(w, http.StatusOK, toDTO(t))
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Svc.Delete(r.Context(), id.UserID, taskID); err != nil {
		h.respondTaskErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Tags(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	out, err := h.Svc.TagCounts(r.Context(), id.UserID, r.URL.Query().Get("q"), limit)
	if err != nil {
		h.Log.Error("tag counts failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}
	api.JSON(w, http.StatusOK, out)
}

func (h *TaskHandler) respondTaskErr(w http.ResponseWriter, err error) {
	if errors.Is(err, task.ErrNotFound) {
		api.Error(w, http.StatusNotFound, api.CodeNotFound, "task not found")
		return
	}
	h.Log.Error("task operation failed", zap.Error(err))
	api.Error(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
}

const (
	titleRule       = "title: must be 1-500 characters"
	descriptionRule = "description: must be at most 5000 characters"
)

func cleanTitle(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxTitleLen {
		return "", false
	}
	return s, true
}

func cleanDescription(s *string) (*string, bool) {
	if s == nil {
		return nil, true
	}
	d := strings.TrimSpace(*s)
	if len(d) > maxDescriptionLen {
		return nil, false
	}
	if d == "" {
		return nil, true
	}
	return &d, true
}

// parseDueAt distinguishes absent (nil, no change), empty (clear), and a
// concrete RFC3339 timestamp.
func parseDueAt(s *string) (*time.Time, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	raw := strings.TrimSpace(*s)
	if raw == "" {
		return nil, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false, err
	}
	return &t, false, nil
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "task_id"), 10, 64)
	if err != nil {
		api.Error(w, http.StatusBadRequest, api.CodeValidation, "task_id: must be a positive integer")
		return 0, false
	}
	return id, true
}

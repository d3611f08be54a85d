package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"tasklist/internal/api"
	"tasklist/internal/auth"
	"tasklist/internal/http/handler"
	"tasklist/internal/task"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTaskService mirrors task.Service semantics over a map.
type fakeTaskService struct {
	nextID uint64
	tasks  map[uint64]task.Task
}

func newFakeTaskService() *fakeTaskService {
	return &fakeTaskService{tasks: map[uint64]task.Task{}}
}

func (s *fakeTaskService) Create(_ context.Context, userID uint64, in task.CreateInput) (task.Task, error) {
	s.nextID++
	now := time.Now()
	t := task.Task{
		ID:          s.nextID,
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		DueAt:       in.DueAt,
		Tags:        tagsOf(in.Title, in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *fakeTaskService) List(_ context.Context, userID uint64, f task.ListFilter) ([]task.Task, error) {
	out := make([]task.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		if f.Tag != "" && !hasTag(t.Tags, strings.ToLower(f.Tag)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeTaskService) Get(_ context.Context, userID, id uint64) (task.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (s *fakeTaskService) Update(_ context.Context, userID, id uint64, in task.UpdateInput) (task.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return task.Task{}, task.ErrNotFound
	}
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		if *in.Description == "" {
			t.Description = nil
		} else {
			t.Description = in.Description
		}
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	if in.ClearDueAt {
		t.DueAt = nil
	} else if in.DueAt != nil {
		t.DueAt = in.DueAt
	}
	t.Tags = tagsOf(t.Title, t.Description)
	t.UpdatedAt = time.Now()
	s.tasks[id] = t
	return t, nil
}

func (s *fakeTaskService) Delete(_ context.Context, userID, id uint64) error {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return task.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeTaskService) TagCounts(_ context.Context, userID uint64, prefix string, _ int) ([]task.TagCount, error) {
	counts := map[string]int64{}
	for _, t := range s.tasks {
		if t.UserID != userID || t.Completed {
			continue
		}
		for _, tag := range t.Tags {
			if prefix == "" || strings.HasPrefix(tag, strings.ToLower(prefix)) {
				counts[tag]++
			}
		}
	}
	out := make([]task.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, task.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func tagsOf(title string, description *string) pq.StringArray {
	if description != nil {
		return pq.StringArray(task.ExtractTags(title, *description))
	}
	return pq.StringArray(task.ExtractTags(title))
}

func hasTag(tags pq.StringArray, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func newTaskRouter(tokens *auth.JWT, svc handler.TaskService) http.Handler {
	th := &handler.TaskHandler{Svc: svc, Log: zap.NewNop()}

	r := chi.NewRouter()
	r.Route("/users/{user_id}/tasks", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Use(auth.RequireOwner)

		r.Post("/", th.Create)
		r.Get("/", th.List)
		r.Get("/tags", th.Tags)
		r.Get("/{task_id}", th.Get)
		r.Put("/{task_id}", th.Update)
		r.Delete("/{task_id}", th.Delete)
	})
	return r
}

func doTask(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTaskCRUDScopedToOwner(t *testing.T) {
	tokens := auth.NewJWT("test-secret", time.Hour)
	svc := newFakeTaskService()
	h := newTaskRouter(tokens, svc)

	tokenA, err := tokens.Issue(1, "a@x.com")
	require.NoError(t, err)
	tokenB, err := tokens.Issue(2, "b@x.com")
	require.NoError(t, err)

	// each user creates a task
	rec := doTask(t, h, http.MethodPost, "/users/1/tasks/", tokenA,
		map[string]any{"title": "write report #work"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var taskA struct {
		ID     uint64   `json:"id"`
		UserID uint64   `json:"user_id"`
		Tags   []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &taskA))
	assert.Equal(t, uint64(1), taskA.UserID)
	assert.Equal(t, []string{"work"}, taskA.Tags)

	rec = doTask(t, h, http.MethodPost, "/users/2/tasks/", tokenB,
		map[string]any{"title": "buy milk"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var taskB struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &taskB))

	// A's token against B's collection is Forbidden
	rec = doTask(t, h, http.MethodGet, "/users/2/tasks/", tokenA, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var env api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, api.CodeForbidden, env.Error.Code)

	// A sees only A's tasks
	rec = doTask(t, h, http.MethodGet, "/users/1/tasks/", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []struct {
		ID     uint64 `json:"id"`
		UserID uint64 `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, taskA.ID, list[0].ID)

	// B's task id under A's scope reads as NotFound
	rec = doTask(t, h, http.MethodGet, "/users/1/tasks/42", tokenA, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskUpdateAndDelete(t *testing.T) {
	tokens := auth.NewJWT("test-secret", time.Hour)
	svc := newFakeTaskService()
	h := newTaskRouter(tokens, svc)

	token, err := tokens.Issue(7, "u@x.com")
	require.NoError(t, err)

	rec := doTask(t, h, http.MethodPost, "/users/7/tasks/", token,
		map[string]any{"title": "draft slides", "description": "for the #offsite"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doTask(t, h, http.MethodPut, "/users/7/tasks/1", token,
		map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Completed bool     `json:"completed"`
		Tags      []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.Completed)
	assert.Equal(t, []string{"offsite"}, updated.Tags)

	rec = doTask(t, h, http.MethodDelete, "/users/7/tasks/1", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doTask(t, h, http.MethodGet, "/users/7/tasks/1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskValidation(t *testing.T) {
	tokens := auth.NewJWT("test-secret", time.Hour)
	h := newTaskRouter(tokens, newFakeTaskService())

	token, err := tokens.Issue(1, "a@x.com")
	require.NoError(t, err)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty title", map[string]any{"title": ""}},
		{"whitespace title", map[string]any{"title": "   "}},
		{"title too long", map[string]any{"title": strings.Repeat("x", 501)}},
		{"description too long", map[string]any{
			"title":       "ok",
			"description": strings.Repeat("x", 5001),
		}},
		{"bad due date", map[string]any{"title": "ok", "due_at": "tomorrow"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doTask(t, h, http.MethodPost, "/users/1/tasks/", token, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var env api.Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, api.CodeValidation, env.Error.Code)
		})
	}
}

func TestTaskTagFilterAndCounts(t *testing.T) {
	tokens := auth.NewJWT("test-secret", time.Hour)
	svc := newFakeTaskService()
	h := newTaskRouter(tokens, svc)

	token, err := tokens.Issue(3, "c@x.com")
	require.NoError(t, err)

	for _, title := range []string{"a #home", "b #home #errand", "c #work"} {
		rec := doTask(t, h, http.MethodPost, "/users/3/tasks/", token,
			map[string]any{"title": title})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doTask(t, h, http.MethodGet, "/users/3/tasks/?tag=home", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = doTask(t, h, http.MethodGet, "/users/3/tasks/tags", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var counts []task.TagCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, []task.TagCount{
		{Tag: "errand", Count: 1},
		{Tag: "home", Count: 2},
		{Tag: "work", Count: 1},
	}, counts)
}

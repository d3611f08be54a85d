package http

import (
	"net/http"

	"tasklist/internal/auth"
	"tasklist/internal/config"
	"tasklist/internal/http/handler"
	mw "tasklist/internal/http/middleware"
	"tasklist/internal/jobs"
	"tasklist/internal/task"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, gdb *gorm.DB, tokens *auth.JWT, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.RequestLogger(log))

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{
		Store:  auth.NewStore(gdb, cfg.BcryptCost),
		Tokens: tokens,
		Policy: auth.PasswordPolicy{MinLength: cfg.PasswordMinLength},
		Log:    log,
	}
	r.Post("/auth/signup", ah.Signup)
	r.Post("/auth/signin", ah.Signin)

	me := &handler.MeHandler{}
	r.With(auth.RequireAuth(tokens)).Get("/me", me.Me)

	svc := &task.Service{DB: gdb, Reminders: jobs.Scheduler{}}
	th := &handler.TaskHandler{Svc: svc, Log: log}

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

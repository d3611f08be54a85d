package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasklist/internal/auth"
	"tasklist/internal/config"
	"tasklist/internal/db"
	httpx "tasklist/internal/http"
	"tasklist/internal/jobs"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}

	tokens := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL)
	r := httpx.NewRouter(cfg, gdb, tokens, log)

	// due-reminder worker
	worker := &jobs.Worker{
		ID:    "worker-" + uuid.NewString(),
		Repo:  &jobs.Repo{DB: gdb},
		Tasks: &jobs.TaskSource{DB: gdb},
		Log:   log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// Command server runs the notes web application.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/slugnotes/internal/auth"
	"github.com/kuitang/slugnotes/internal/config"
	"github.com/kuitang/slugnotes/internal/db"
	"github.com/kuitang/slugnotes/internal/notes"
	"github.com/kuitang/slugnotes/internal/obs"
	"github.com/kuitang/slugnotes/internal/ratelimit"
	"github.com/kuitang/slugnotes/internal/web"
)

const (
	shutdownTimeout        = 10 * time.Second
	sessionCleanupInterval = time.Hour
)

func main() {
	obs.Init()
	log := obs.Pkg("main")

	addr := config.ParseFlags()
	cfg, err := config.LoadConfig(addr)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db.DataDirectory = cfg.DataDirectory
	database, err := db.Open()
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.CloseAll()

	renderer, err := web.NewRenderer(cfg.TemplatesDir)
	if err != nil {
		log.Error("failed to load templates", "error", err, "dir", cfg.TemplatesDir)
		os.Exit(1)
	}

	userService := auth.NewUserService(database)
	sessionService := auth.NewSessionService(database, cfg.SessionDuration)
	notesService := notes.NewService(database)

	authMiddleware := auth.NewMiddleware(sessionService, web.LoginPath)
	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	mux := http.NewServeMux()
	handler := web.NewWebHandler(renderer, notesService, userService, sessionService)
	handler.RegisterRoutes(mux, authMiddleware, limiter)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           obs.RequestLogMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expired sessions accumulate in the shared database. Sweep them on a
	// fixed interval until shutdown.
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sessionService.Cleanup(context.Background()); err != nil {
					log.Warn("session cleanup failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}

	log.Info("server stopped")
}

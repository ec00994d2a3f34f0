package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elijificent/experimentation/internal/app/migrate"
	httpx "github.com/elijificent/experimentation/internal/http"
	"github.com/elijificent/experimentation/internal/repository/document"
	"github.com/elijificent/experimentation/internal/service/auth"
	"github.com/elijificent/experimentation/internal/service/dashboard"
	"github.com/elijificent/experimentation/internal/service/experiment"
	"github.com/elijificent/experimentation/internal/service/funnel"
	"github.com/elijificent/experimentation/internal/service/participant"
	"github.com/elijificent/experimentation/internal/service/variant"
	"github.com/elijificent/experimentation/internal/store"
	"github.com/elijificent/experimentation/internal/ws"
	"github.com/elijificent/experimentation/pkg/config"
	"github.com/elijificent/experimentation/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	st := store.NewPostgres(pool, cfg.Stage, log)

	experimentRepo := document.NewExperiments(st)
	variantRepo := document.NewVariants(st)
	participantRepo := document.NewParticipants(st)
	linkRepo := document.NewParticipantLinks(st)
	userRepo := document.NewUsers(st)
	funnelRepo := document.NewFunnelEvents(st)

	assignmentHub := ws.NewHub()

	authSvc := auth.New(userRepo, log, cfg)
	variantSvc := variant.New(variantRepo, log)
	experimentSvc := experiment.New(experimentRepo, variantSvc, log, nil, assignmentHub)
	participantSvc := participant.New(participantRepo, linkRepo, log)
	funnelSvc := funnel.New(funnelRepo, userRepo, participantSvc, log)
	dashboardSvc := dashboard.New(experimentSvc, variantSvc, experimentRepo, variantRepo, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, dashboardSvc, experimentSvc, participantSvc, funnelSvc, assignmentHub, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "stage", cfg.Stage)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

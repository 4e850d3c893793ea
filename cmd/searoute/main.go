package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/star/searoute/internal/api"
	"github.com/star/searoute/internal/backend"
	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/metrics"
	"github.com/star/searoute/internal/panels"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/simclock"
	"github.com/star/searoute/internal/stream"
	"github.com/star/searoute/internal/tracker"
	"github.com/star/searoute/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	envFile := os.Getenv("SEAROUTE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.Info("no env file loaded", "path", envFile, "error", err)
	}

	addr := os.Getenv("SEAROUTE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	routesCfg := loadRoutesConfig(logger)
	store := route.NewStore()
	loader := route.NewLoader(routesCfg.Path, store, logger)
	if rs, err := loader.Load(); err != nil {
		logger.Warn("starting without routes", "error", err)
	} else {
		metrics.SetRoutesLoaded(len(rs.Routes))
	}
	if routesCfg.Watch {
		loader.OnReload(func(rs *route.RouteSet, err error) {
			if err == nil {
				metrics.SetRoutesLoaded(len(rs.Routes))
			}
		})
		loader.Watch()
	}

	fleetCfg := loadFleetConfig(logger)
	pos := fleet.NewPositioner(store, fleetCfg, logger)
	metrics.SetWorkersActive(fleetCfg.Workers)

	clockCfg, autostart := loadClockConfig(logger)
	clock, err := simclock.New(clockCfg)
	if err != nil {
		logger.Error("invalid clock configuration", "error", err)
		os.Exit(1)
	}

	trackerCfg := loadTrackerConfig(logger)
	trk := tracker.New(trackerCfg, clock, pos, store, logger)
	if autostart {
		trk.StartClock()
	}

	client := backend.NewClient(loadBackendConfig(logger), logger)
	cacheCfg, panelCfg := loadPanelConfig(logger)
	scheduler := panels.NewScheduler(panels.NewDiskCache(cacheCfg.Dir, cacheCfg.MaxFiles), logger)
	for _, task := range panels.DefaultTasks(client, panelCfg) {
		if err := scheduler.Add(task); err != nil {
			logger.Error("invalid panel task", "panel", task.Name, "error", err)
			os.Exit(1)
		}
	}

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(trk, store, streamCfg, logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Store:      store,
		Positioner: pos,
		Tracker:    trk,
		Panels:     scheduler,
		Stream:     streamHandler,
		Web:        web.Content,
		TrustProxy: streamCfg.TrustProxy,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start simulation loop and panel pollers.
	go trk.Start(ctx)
	scheduler.Start(ctx)

	// Background goroutine to update route set age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetRouteSetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"backend_url", client.BaseURL(),
			"autostart", autostart,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	scheduler.Stop()

	logger.Info("server stopped")
}

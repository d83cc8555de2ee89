package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/recipehub/internal/app"
	"github.com/geocoder89/recipehub/internal/config"
	"github.com/geocoder89/recipehub/internal/janitor"
	"github.com/geocoder89/recipehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env).With("component", "janitor")

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.RefreshTTLDays <= 0 {
		log.Error("JWT_REFRESH_TTL_DAYS must be positive")
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	stores, err := app.OpenStores(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer stores.Close()

	j := janitor.New(janitor.Config{
		Retention:  cfg.RefreshTTL(),
		Schedule:   cfg.JanitorSchedule,
		MaxRetries: 3,
	}, stores.Tokens, log, prom)

	if err := j.Start(ctx); err != nil {
		log.Error("janitor start failed", "schedule", cfg.JanitorSchedule, "err", err)
		os.Exit(1)
	}

	healthAddr := fmt.Sprintf(":%d", cfg.Port+1)
	healthSrv := &http.Server{
		Addr:              healthAddr,
		Handler:           j.HealthHandler(stores.Ping, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("janitor health server starting", "addr", healthAddr)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("janitor started", "schedule", cfg.JanitorSchedule, "retention", cfg.RefreshTTL().String())

	<-ctx.Done()
	log.Info("janitor shutting down")

	j.Stop()

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("janitor shutdown complete")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/kanb1/clinic-ai-app-sub001/internal/hooks"
	"github.com/kanb1/clinic-ai-app-sub001/internal/httpclient"
	"github.com/kanb1/clinic-ai-app-sub001/internal/invalidation"
	"github.com/kanb1/clinic-ai-app-sub001/internal/querycache"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/monitoring"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

const serviceName = "clinic-probe"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	metrics := monitoring.NewMetricsCollector(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := httpclient.NewFromConfig(cfg.API, logger, metrics)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create API client")
	}

	cache := querycache.New(querycache.OptionsFromConfig(cfg.Cache), logger, metrics)
	cache.Start()
	defer cache.Close()

	health := monitoring.NewHealthManager(serviceName, 5*time.Second)

	// Invalidation bus: Redis when configured, otherwise in-process
	var bus invalidation.Bus
	if cfg.Redis.Enabled {
		rdb, err := invalidation.ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()

		redisBus := invalidation.NewRedisBus(rdb, cfg.Redis.Channel, logger)
		if err := redisBus.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to subscribe to invalidation channel")
		}
		bus = redisBus
		health.RegisterChecker("redis", monitoring.ErrorCheck(redisProbe(rdb)))
	} else {
		bus = invalidation.NewLocalBus()
	}
	defer bus.Close()

	broadcaster := invalidation.NewBroadcaster(bus, logger, metrics)
	detach := broadcaster.Attach(cache)
	defer detach()

	h := hooks.New(cache, client, broadcaster, logger)

	health.RegisterChecker("backend", monitoring.ErrorCheck(func(ctx context.Context) error {
		return h.Ping().Fetch(ctx).Err
	}))

	probe(ctx, h, logger)

	// Follow the clinic so remote invalidations show up in the log
	clinic, err := h.MyClinic().Watch()
	if err != nil {
		logger.WithError(err).Fatal("Failed to watch clinic")
	}
	defer clinic.Close()
	go followClinic(clinic, logger)

	router := mux.NewRouter()
	router.Handle(cfg.Monitoring.MetricsPath, metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", health.HTTPHandler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("Serving metrics and health")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down probe...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shutdown metrics server gracefully")
	}

	logger.Info("Probe stopped")
}

// probe reads the liveness, profile and clinic endpoints once
func probe(ctx context.Context, h *hooks.Hooks, log *logger.Logger) {
	if res := h.Ping().Fetch(ctx); res.Err != nil {
		log.WithError(res.Err).Warn("Backend is not reachable")
		return
	}
	log.Info("Backend is reachable")

	me := h.Me().Fetch(ctx)
	if me.Err != nil {
		log.WithError(me.Err).Warn("Failed to load profile")
		return
	}
	log.WithField("user_id", me.Data.ID).WithField("role", me.Data.Role).Info("Authenticated")

	if me.Data.Role != types.RoleAdmin {
		return
	}
	clinic := h.MyClinic().Fetch(ctx)
	switch {
	case types.IsNotFound(clinic.Err):
		log.Info("No clinic created yet")
	case clinic.Err != nil:
		log.WithError(clinic.Err).Warn("Failed to load clinic")
	default:
		log.WithField("clinic_id", clinic.Data.ID).WithField("name", clinic.Data.Name).Info("Clinic loaded")
	}
}

func followClinic(w *hooks.Watch[*types.Clinic], log *logger.Logger) {
	for res := range w.Updates() {
		if res.Status != hooks.StatusSuccess || res.Data == nil {
			continue
		}
		log.WithField("clinic_id", res.Data.ID).WithField("stale", res.Stale).Debug("Clinic updated")
	}
}

func redisProbe(rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

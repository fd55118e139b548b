package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caretransport/dispatch/internal/api"
	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/config"
	"caretransport/dispatch/internal/db"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/routes"
	"caretransport/dispatch/internal/workers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.Init(cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Dispatch service starting up",
		"environment", cfg.AppEnv,
		"db_driver", cfg.DBDriver,
		"timestamp", time.Now().Format(time.RFC3339),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.InitORM(cfg)
	if err != nil {
		logging.Error("Failed to open database", "error", err.Error())
		log.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, err := db.NewSQLX(gormDB)
	if err != nil {
		log.Fatalf("Failed to open sqlx handle: %v", err)
	}
	if err := db.WaitForDB(ctx, sqlDB, 10); err != nil {
		log.Fatalf("Database not reachable: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logging.Error("Migration failed", "error", err.Error())
		log.Fatalf("Migration failed: %v", err)
	}
	logging.Info("Database ready")

	redisClient := common.NewRedisClient(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsReg := metrics.NewMetricsRegistry(promReg)

	deps, err := api.InitDependencies(api.Infra{
		Config:  cfg,
		DB:      gormDB,
		SQL:     sqlDB,
		Redis:   redisClient,
		Metrics: metricsReg,
		Clock:   clock.RealClock{},
	})
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}

	deps.Jobs.Start(ctx)
	workers.InitWorkers(ctx, deps.Repo.Store, deps.Services.Queue, metricsReg, deps.Clock, cfg.OutboxRelayInterval, cfg.StreamMaxLen)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.RegisterRoutes(deps, promReg, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("Server starting", "port", cfg.Port, "environment", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server stopped unexpectedly", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Graceful shutdown failed", "error", err.Error())
	}
}

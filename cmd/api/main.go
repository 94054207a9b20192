package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dosewatch/adherence-api/internal/config"
	"github.com/dosewatch/adherence-api/internal/handler"
	adherenceHandler "github.com/dosewatch/adherence-api/internal/handler/adherence"
	doseHandler "github.com/dosewatch/adherence-api/internal/handler/dose"
	endpointHandler "github.com/dosewatch/adherence-api/internal/handler/endpoint"
	medicationHandler "github.com/dosewatch/adherence-api/internal/handler/medication"
	"github.com/dosewatch/adherence-api/internal/middleware"
	"github.com/dosewatch/adherence-api/internal/repository/postgres"
	"github.com/dosewatch/adherence-api/internal/router"
	adherenceService "github.com/dosewatch/adherence-api/internal/service/adherence"
	doseService "github.com/dosewatch/adherence-api/internal/service/dose"
	medicationService "github.com/dosewatch/adherence-api/internal/service/medication"
	schedulerService "github.com/dosewatch/adherence-api/internal/service/scheduler"
	"github.com/dosewatch/adherence-api/pkg/logger"
	"github.com/dosewatch/adherence-api/pkg/metrics"
	queueredis "github.com/dosewatch/adherence-api/pkg/queue/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	jobQueue, err := queueredis.NewRedisQueue(queueredis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer jobQueue.Close()

	appMetrics := metrics.New("adherence_api")

	// Repositories
	medicationRepo := postgres.NewMedicationRepository(db)
	doseRepo := postgres.NewDoseEventRepository(db)
	endpointRepo := postgres.NewEndpointRepository(db)

	// Services. The scheduler here only serves the cancellation path;
	// sweeps and escalation run in cmd/worker.
	schedulerSvc := schedulerService.NewService(medicationRepo, jobQueue, appLogger, appMetrics)
	doseSvc := doseService.NewService(medicationRepo, doseRepo, schedulerSvc, appLogger, appMetrics)
	medicationSvc := medicationService.NewService(medicationRepo)
	adherenceSvc := adherenceService.NewService(doseRepo)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	healthHandler := handler.NewHealthHandler(db)

	r := router.NewRouter(
		authMiddleware,
		healthHandler,
		router.Config{
			RateLimit: rate.Limit(cfg.Server.RateLimit),
			RateBurst: cfg.Server.RateBurst,
		},
		medicationHandler.NewHandler(medicationSvc),
		doseHandler.NewHandler(doseSvc),
		adherenceHandler.NewHandler(adherenceSvc),
		endpointHandler.NewHandler(endpointRepo),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dosewatch/adherence-api/internal/config"
	"github.com/dosewatch/adherence-api/internal/email"
	"github.com/dosewatch/adherence-api/internal/repository/postgres"
	"github.com/dosewatch/adherence-api/internal/service/escalation"
	"github.com/dosewatch/adherence-api/internal/service/notification"
	"github.com/dosewatch/adherence-api/internal/service/scheduler"
	"github.com/dosewatch/adherence-api/pkg/logger"
	"github.com/dosewatch/adherence-api/pkg/metrics"
	queueredis "github.com/dosewatch/adherence-api/pkg/queue/redis"
)

// WorkerEnv overrides the escalation knobs from the shared config file
// for one worker process. Unset values fall back to the file, then to
// the worker's own defaults.
type WorkerEnv struct {
	Concurrency  int           `envconfig:"WORKER_CONCURRENCY"`
	PollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL"`
	BatchSize    int           `envconfig:"WORKER_BATCH_SIZE"`
	HealthAddr   string        `envconfig:"WORKER_HEALTH_ADDR" default:":8081"`
}

func workerConfig(cfg config.EscalationConfig, env WorkerEnv) escalation.Config {
	out := escalation.Config{
		Concurrency:  cfg.Concurrency,
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
	}
	if env.Concurrency > 0 {
		out.Concurrency = env.Concurrency
	}
	if env.PollInterval > 0 {
		out.PollInterval = env.PollInterval
	}
	if env.BatchSize > 0 {
		out.BatchSize = env.BatchSize
	}
	return out
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env WorkerEnv
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to process worker environment")
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

	appMetrics := metrics.New("adherence_worker")

	medicationRepo := postgres.NewMedicationRepository(db)
	doseRepo := postgres.NewDoseEventRepository(db)
	connectionRepo := postgres.NewConnectionRepository(db)
	endpointRepo := postgres.NewEndpointRepository(db)

	emailSvc := email.NewService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	notifier := notification.NewService(endpointRepo, appLogger, appMetrics,
		notification.NewPushTransport(cfg.Notification.PushTimeout),
		notification.NewEmailTransport(emailSvc),
	)

	schedulerSvc := scheduler.NewService(medicationRepo, jobQueue, appLogger, appMetrics)
	worker := escalation.NewWorker(jobQueue, doseRepo, connectionRepo, notifier, appLogger, appMetrics,
		workerConfig(cfg.Escalation, env))

	setupHealthCheck(env.HealthAddr, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	go schedulerSvc.Run(ctx)
	worker.Run(ctx)
}

func setupHealthCheck(addr string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

// cmd/loan-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"loan-manager/internal/api"
	"loan-manager/internal/cbs"
	"loan-manager/internal/common/aws"
	"loan-manager/internal/common/config"
	"loan-manager/internal/common/database"
	apperrors "loan-manager/internal/common/errors"
	"loan-manager/internal/common/logger"
	"loan-manager/internal/common/observability"
	"loan-manager/internal/common/tasks"
	"loan-manager/internal/loan"
	"loan-manager/internal/scoring"
	"loan-manager/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("storeBackend", cfg.Store.Backend),
		zap.Bool("scoringMock", cfg.Scoring.MockEnabled),
	)

	obs := observability.New(cfg.App.Name, prometheus.DefaultRegisterer, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Application store ---
	appStore, ready, closeStore := openStore(ctx, cfg, zapLog)
	defer closeStore()

	// --- Scoring service ---
	scoringCfg := scoring.FromAppConfig(cfg.Scoring)
	registerClient(ctx, cfg, scoringCfg, log, zapLog)

	var gateway scoring.Gateway
	if scoringCfg.MockEnabled {
		gateway = scoring.NewMockGateway(rand.New(rand.NewSource(time.Now().UnixNano())))
		zapLog.Warn("Scoring mock mode enabled, scores are generated locally")
	} else {
		gateway = scoring.NewHTTPGateway(scoringCfg, log)
	}

	pipelineOpts := []scoring.PipelineOption{}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		pipelineOpts = append(pipelineOpts, scoring.WithPublisher(
			aws.NewDecisionPublisher(snsClient, cfg.Notifications.SNS.TopicARN, log),
		))
		zapLog.Info("Decision notifications enabled", zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}
	pipeline := scoring.NewPipeline(scoringCfg, gateway, appStore, log, pipelineOpts...)

	// --- Core banking (mock) ---
	coreBanking, err := cbs.NewMockCBS(log)
	if err != nil {
		zapLog.Fatal("core banking mock init failed", zap.Error(err))
	}

	// --- Workflow ---
	dispatcher := tasks.NewDispatcher(cfg.Scoring.MaxConcurrent, log)
	service := loan.NewService(coreBanking, appStore, pipeline, dispatcher, log)

	// --- HTTP ---
	errHandler := apperrors.NewErrorHandler(log)
	basicAuth, err := api.NewBasicAuth(cfg.Security.Username, cfg.Security.Password, bcrypt.DefaultCost, errHandler)
	if err != nil {
		zapLog.Fatal("basic auth init failed", zap.Error(err))
	}

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.RouterConfig{
			Handler:       api.NewHandler(service, coreBanking, errHandler, log),
			Auth:          basicAuth,
			Observability: obs,
			Ready:         ready,
		}),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	// in-flight scoring rounds persist a final status even when cancelled
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("scoring rounds still running at shutdown deadline", zap.Error(err))
	}

	zapLog.Info("Loan manager stopped")
}

// openStore connects the configured backend and returns it with a readiness
// probe and a close function.
func openStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (store.ApplicationStore, api.ReadinessCheck, func()) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		var rdb *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		zapLog.Info("Redis connected successfully")

		st := store.NewRedisStore(rdb.Client, store.WithKeyPrefix(rdb.KeyPrefix))
		return st, rdb.Ping, func() { _ = rdb.Close() }

	case config.StoreBackendPostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				return err
			}
			return pg.EnsureSchema(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")

		return store.NewPostgresStore(pg.DB), pg.Ping, func() { _ = pg.Close() }

	default:
		zapLog.Info("Using in-memory application store; state is lost on restart")
		return store.NewMemoryStore(), nil, func() {}
	}
}

// registerClient announces the transactions endpoint to the scoring service.
// Failure never stops startup.
func registerClient(ctx context.Context, cfg *config.Config, scoringCfg *scoring.Config, log logger.Logger, zapLog *zap.Logger) {
	if !cfg.Registration.Enabled || scoringCfg.MockEnabled {
		return
	}

	regCtx, cancel := context.WithTimeout(ctx, scoringCfg.Timeout)
	defer cancel()

	resp, err := scoring.NewRegistrar(scoringCfg, log).Register(regCtx,
		cfg.Registration.PublicURL,
		cfg.Registration.ClientName,
		cfg.Security.Username,
		cfg.Security.Password,
	)
	if err != nil {
		zapLog.Error("Client registration failed, manual registration required", zap.Error(err))
		return
	}

	zapLog.Info("Registered with scoring service", zap.String("clientName", resp.Name), zap.Int64("clientId", resp.ID))
	if scoringCfg.ClientToken == "" {
		scoringCfg.ClientToken = resp.Token
		zapLog.Warn("Using the issued client token for this process only; configure scoring.client_token to persist it")
	}
}

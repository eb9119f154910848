package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/worker-lifecycle/internal/adapters/messaging"
	queuepg "github.com/ogurasousui/worker-lifecycle/internal/adapters/queue/postgres"
	"github.com/ogurasousui/worker-lifecycle/internal/adapters/repository/postgres"
	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/broker"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/config"
	pg "github.com/ogurasousui/worker-lifecycle/internal/platform/db/postgres"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/logging"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/metrics"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/server"
)

const (
	shutdownTimeout      = 10 * time.Second
	serializationRetries = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize logger")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}
	logger.WithField("event", "ShutdownComplete").Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if err := metrics.Register(); err != nil {
		return err
	}

	traceLevel := tracelog.LogLevelWarn
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		traceLevel = tracelog.LogLevelDebug
	}

	// gRPC 用に 2 接続を残す
	dbPool, err := pg.NewPool(ctx, cfg.Database,
		pg.WithMinMaxConns(cfg.Broker.Workers+2),
		pg.WithQueryLogger(logger.WithField("component", "pgx"), traceLevel),
	)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool, pg.WithSerializationRetries(serializationRetries))
	queue := queuepg.NewQueue(dbPool)

	workerSvc := worker.NewService(
		postgres.NewWorkerRepository(dbPool),
		postgres.NewHistoryRepository(dbPool),
		messaging.NewPublisher(queue),
		nil,
		txManager,
		logger.WithField("component", "worker"),
	)

	dispatcher := broker.NewDispatcher(queue, cfg.Broker, logger.WithField("component", "dispatcher"))
	messaging.NewHandlers(workerSvc, logger.WithField("component", "messaging")).Register(dispatcher)

	grpcServer := server.New(cfg.Server.ListenAddr, workerSvc, logger.WithField("component", "grpc"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return grpcServer.Run(gctx)
	})

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	if cfg.Metrics.ListenAddr != "" {
		handler, err := metrics.NewHandler(cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.WithFields(logrus.Fields{
				"event": "MetricsServerStarted",
				"addr":  cfg.Metrics.ListenAddr,
			}).Info("metrics endpoint listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

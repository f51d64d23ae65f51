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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/easyhotel/easyhotel/internal/app"
	"github.com/easyhotel/easyhotel/internal/events"
	jobmetrics "github.com/easyhotel/easyhotel/internal/jobs"
	"github.com/easyhotel/easyhotel/internal/notify"
	"github.com/easyhotel/easyhotel/internal/observability"
	"github.com/easyhotel/easyhotel/internal/svcclient"
	"github.com/easyhotel/easyhotel/jobs"
)

const serviceName = "notifications-consumer"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping notifier startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("service", serviceName))
	metrics := observability.NewMetrics()
	redisOpt := cfg.RedisOptions().AsynqOpt()

	queue := jobs.NewClient(redisOpt)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	var peerNotifications *svcclient.NotificationsClient
	if cfg.NotifyMode == notify.ModePeer {
		peersCfg := cfg.PeersConfig()
		peersCfg.Logger = logger
		peersCfg.Recorder = metrics
		peers, err := svcclient.NewPeers(peersCfg)
		if err != nil {
			logger.Error("init peer clients", slog.Any("error", err))
			os.Exit(1)
		}
		peerNotifications = peers.Notifications
	}

	notifier, err := notify.Select(cfg.NotifyMode, queue, peerNotifications, logger)
	if err != nil {
		logger.Error("select notifier", slog.Any("error", err))
		os.Exit(1)
	}

	subscriber, err := events.NewKafkaSubscriber(events.SubscriberConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topics:  cfg.KafkaTopics,
	})
	if err != nil {
		logger.Error("init kafka subscriber", slog.Any("error", err))
		os.Exit(1)
	}

	dispatcher, err := notify.NewDispatcher(notify.Config{
		Subscriber: subscriber,
		Notifier:   notifier,
		Logger:     logger,
		Recorder:   metrics,
		HotelName:  cfg.HotelName,
	})
	if err != nil {
		logger.Error("init dispatcher", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		ServiceName: serviceName,
		Metrics:     metrics,
		Handlers:    []app.RouteMounter{jobs.NewHandler(inspector, logger)},
		Endpoints: map[string]string{
			"health":  "/health",
			"jobs":    "/jobs/health",
			"metrics": "/metrics",
		},
	})
	server := &http.Server{
		Addr:              cfg.NotifierHealthAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := dispatcher.Start(gctx); err != nil {
			return err
		}
		defer dispatcher.Stop()
		logger.Info("consuming events", slog.Any("topics", cfg.KafkaTopics), slog.String("mode", cfg.NotifyMode))
		err := dispatcher.Run(gctx)
		stop()
		return err
	})

	if cfg.NotifyMode == notify.ModeQueue {
		worker, err := jobs.NewWorker(jobs.WorkerConfig{
			RedisOpts:   redisOpt,
			Logger:      logger,
			Metrics:     jobmetrics.NewMetrics(metrics.Registerer()),
			Concurrency: cfg.WorkerConcurrency,
		})
		if err != nil {
			logger.Error("init worker", slog.Any("error", err))
			os.Exit(1)
		}
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting health server", slog.String("addr", cfg.NotifierHealthAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifier stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}

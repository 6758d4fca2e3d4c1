package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/cache"
	eventadapter "github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/events"
	httpadapter "github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/http"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/postgres"
	queueadapter "github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/queue"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/ws"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/application"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Runtime struct {
	cfg            Config
	logger         *slog.Logger
	httpServer     *http.Server
	grpcServer     *grpc.Server
	grpcLis        net.Listener
	hub            *ws.Hub
	consumer       *eventadapter.ConsumerWorker
	dispatcher     *eventadapter.DispatcherWorker
	inProcessQueue bool
	cleanupFn      func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	repos := postgres.NewRepositories(db)

	var closers []io.Closer
	cleanup := func(context.Context) {
		for _, closer := range closers {
			_ = closer.Close()
		}
		_ = sqlDB.Close()
	}

	// Redis backs both the durable command stream and the idempotency
	// cache. Without it the runtime degrades to in-process equivalents
	// for local development.
	var commandQueue ports.CommandQueue
	var idempotency ports.IdempotencyCache
	inProcessQueue := cfg.RedisURL == ""
	if inProcessQueue {
		logger.WarnContext(ctx, "redis not configured, using in-process queue and cache")
		commandQueue = queueadapter.NewMemoryQueue(cfg.VisibilityTimeout)
		idempotency = cache.NewMemoryIdempotencyCache()
	} else {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			cleanup(ctx)
			return nil, redisErr
		}
		closers = append(closers, redisClient)
		streamQueue, queueErr := queueadapter.NewRedisStreamQueue(ctx, redisClient, queueadapter.RedisStreamConfig{
			Stream:            cfg.CommandStream,
			Group:             cfg.QueueGroup,
			ConsumerName:      consumerName(cfg.ServiceID),
			VisibilityTimeout: cfg.VisibilityTimeout,
		})
		if queueErr != nil {
			cleanup(ctx)
			return nil, queueErr
		}
		commandQueue = streamQueue
		idempotency = cache.NewRedisIdempotencyCache(redisClient)
	}

	hub := ws.NewHub(logger)

	publisher := ports.OutcomePublisher(eventadapter.NewHubPublisher(hub))
	feed := eventadapter.OutcomeFeed(eventadapter.NewNoopFeed())
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaOutcomePublisher(cfg.KafkaBrokers, cfg.OutcomeTopic)
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, outcomes stay in-process", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}

		kafkaFeed, feedErr := eventadapter.NewKafkaOutcomeConsumer(cfg.KafkaBrokers, dispatchGroup(cfg.QueueGroup), cfg.OutcomeTopic)
		if feedErr != nil {
			logger.WarnContext(ctx, "kafka outcome feed disabled", "error", feedErr)
		} else {
			feed = kafkaFeed
			closers = append(closers, kafkaFeed)
		}
	}

	appCfg := application.Config{
		ServiceName:    cfg.ServiceID,
		EnvelopeTTL:    cfg.EnvelopeTTL,
		IdempotencyTTL: cfg.IdempotencyTTL,
		MaxDeliveries:  cfg.MaxDeliveries,
	}
	service := application.NewService(application.Dependencies{
		Config:      appCfg,
		Queue:       commandQueue,
		Store:       repos.Lessons,
		Idempotency: idempotency,
		DeadLetters: repos.DeadLetters,
	})
	processor := application.NewProcessor(application.ProcessorDependencies{
		Config:      appCfg,
		Store:       repos.Lessons,
		Idempotency: idempotency,
		DeadLetters: repos.DeadLetters,
		Publisher:   publisher,
		Logger:      logger,
	})

	handler := httpadapter.NewHandler(service, hub, logger)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanup(ctx)
		return nil, err
	}

	consumer := eventadapter.NewConsumerWorker(logger, commandQueue, processor, cfg.WorkerCount)
	dispatcher := eventadapter.NewDispatcherWorker(logger, feed, hub, cfg.DispatchPollInterval)

	return &Runtime{
		cfg:            cfg,
		logger:         logger,
		httpServer:     httpServer,
		grpcServer:     grpcServer,
		grpcLis:        lis,
		hub:            hub,
		consumer:       consumer,
		dispatcher:     dispatcher,
		inProcessQueue: inProcessQueue,
		cleanupFn:      cleanup,
	}, nil
}

// RunAPI serves ingress, the read boundary, and the real-time hub. With an
// in-process queue the consumer pool runs here too, since no other process
// can see that queue.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := r.dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	if r.inProcessQueue {
		go func() {
			if err := r.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker runs only the consumer pool against the shared queue.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)

	go func() {
		if err := r.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		r.cleanupFn(context.Background())
		return nil
	case err := <-errCh:
		r.cleanupFn(context.Background())
		return err
	}
}

func consumerName(serviceID string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return serviceID + "-" + host
}

// dispatchGroup is instance-unique on purpose: every API instance must see
// every outcome, because only the instance holding the user's connection can
// deliver it.
func dispatchGroup(base string) string {
	return base + "-dispatch-" + uuid.NewString()
}

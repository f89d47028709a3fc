package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/chaos"
	"github.com/ismaiel54/polygon-stream/internal/config"
	"github.com/ismaiel54/polygon-stream/internal/logging"
	"github.com/ismaiel54/polygon-stream/internal/msg"
	"github.com/ismaiel54/polygon-stream/internal/observability"
	"github.com/ismaiel54/polygon-stream/internal/rpc/control"
	"github.com/ismaiel54/polygon-stream/internal/sink"
	"github.com/ismaiel54/polygon-stream/internal/store"
	"github.com/ismaiel54/polygon-stream/internal/stream"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "optional YAML/TOML/JSON config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.App.ServiceName, cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting stream client",
		zap.String("url", cfg.Polygon.URL),
		zap.Strings("channels", cfg.Polygon.Symbols),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
		zap.Int("http_port", cfg.Server.HTTPPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker(logger, metrics)

	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	opts := cfg.StreamOptions()

	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	run := func(name string, fn func(context.Context) error) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := fn(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", zap.String("worker", name), zap.Error(err))
			}
		}()
	}

	var recorder *store.Recorder
	if cfg.Recorder.Enabled {
		frames, err := store.Open(cfg.Recorder.Path)
		if err != nil {
			logger.Fatal("failed to open frame store", zap.String("path", cfg.Recorder.Path), zap.Error(err))
		}
		defer frames.Close()
		recorder = store.NewRecorder(frames, cfg.Recorder.BatchSize, cfg.Recorder.FlushInterval, cfg.Recorder.Buffer, logger, metrics)
		opts.FrameObserver = recorder.RecordFrame
		run("recorder", recorder.Run)
		logger.Info("recording frames", zap.String("path", cfg.Recorder.Path))
	}

	var dialer stream.Dialer = cfg.WebSocketDialer()
	if cfg.Chaos.Enabled {
		logger.Warn("chaos enabled", zap.Any("chaos", cfg.Chaos))
		dialer = chaos.WrapDialer(dialer, chaos.New(cfg.Chaos, logger.Named("chaos")))
	}

	manager := stream.NewManager(opts, dialer, logger, metrics)

	var queues []*sink.Queue
	if cfg.Kafka.Enabled {
		producer, err := msg.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, logger)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		defer producer.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = producer.Ping(pingCtx)
		cancel()
		healthChecker.SetKafkaReady(err == nil)
		if err != nil {
			logger.Warn("kafka not reachable yet", zap.Error(err))
		}

		queues = append(queues, sink.NewQueue(sink.NewKafkaPublisher(producer), cfg.Sink.QueueCapacity, logger, metrics))
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := producer.Flush(flushCtx); err != nil {
				logger.Warn("kafka flush incomplete", zap.Error(err))
			}
		}()
	}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		queues = append(queues, sink.NewQueue(sink.NewRedisPublisher(client), cfg.Sink.QueueCapacity, logger, metrics))
	}
	for _, q := range queues {
		manager.AddHandler(q.Handler())
		run("sink", q.Run)
	}

	manager.AddHandler(stream.HandlerFuncs{
		Lifecycle: func(ev stream.Lifecycle) {
			if ev.Kind == stream.LifecycleStateChanged {
				healthChecker.SetStreamReady(ev.State == stream.StateAuthenticated)
			}
		},
	})
	stream.NewBootstrap(manager, cfg.Polygon.APIKey, cfg.Polygon.Symbols, logger)
	control.NewServer(manager, logger.Named("control")).Register(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := healthChecker.StartHTTPServer(cfg.HTTPAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	if err := manager.Start(ctx); err != nil {
		logger.Fatal("failed to start stream manager", zap.Error(err))
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")

	// the manager goes first so no handler runs after the sinks stop
	if err := manager.Close(); err != nil {
		logger.Error("error closing stream manager", zap.Error(err))
	}
	stopWorkers()
	workers.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("stream client stopped")
}

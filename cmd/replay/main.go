package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ismaiel54/polygon-stream/internal/config"
	"github.com/ismaiel54/polygon-stream/internal/event"
	"github.com/ismaiel54/polygon-stream/internal/frame"
	"github.com/ismaiel54/polygon-stream/internal/logging"
	"github.com/ismaiel54/polygon-stream/internal/msg"
	"github.com/ismaiel54/polygon-stream/internal/sink"
	"github.com/ismaiel54/polygon-stream/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "optional config file")
	dbPath := pflag.String("db", "", "frame store to replay (defaults to recorder.path)")
	after := pflag.Int64("after", 0, "replay frames with an ID greater than this")
	publish := pflag.Bool("publish", false, "republish decoded events to the configured Kafka/Redis sinks")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger("replay", cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	path := *dbPath
	if path == "" {
		path = cfg.Recorder.Path
	}

	frames, err := store.Open(path)
	if err != nil {
		logger.Fatal("failed to open frame store", zap.String("path", path), zap.Error(err))
	}
	defer frames.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publishers []sink.Publisher
	if *publish {
		if cfg.Kafka.Enabled {
			producer, err := msg.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID+"-replay", logger)
			if err != nil {
				logger.Fatal("failed to create kafka producer", zap.Error(err))
			}
			defer producer.Close()
			defer producer.Flush(context.Background())
			publishers = append(publishers, sink.NewKafkaPublisher(producer))
		}
		if cfg.Redis.Enabled {
			client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer client.Close()
			publishers = append(publishers, sink.NewRedisPublisher(client))
		}
	}

	stats := newReplayStats()
	forward := func(name string, fn func(sink.Publisher) error) {
		for _, p := range publishers {
			if err := fn(p); err != nil {
				stats.publishErrors++
				logger.Warn("republish failed", zap.String("sink", p.Name()), zap.String("event", name), zap.Error(err))
			}
		}
	}

	demux := frame.NewDemultiplexer()
	handler := frame.SinkFuncs{
		Quote: func(q event.Quote) {
			stats.events["quote"]++
			forward("quote", func(p sink.Publisher) error { return p.PublishQuote(ctx, q) })
		},
		Trade: func(t event.Trade) {
			stats.events["trade"]++
			forward("trade", func(p sink.Publisher) error { return p.PublishTrade(ctx, t) })
		},
		Aggregate: func(a event.Aggregate) {
			stats.events["aggregate"]++
			forward("aggregate", func(p sink.Publisher) error { return p.PublishAggregate(ctx, a) })
		},
		Status: func(s event.Status) {
			stats.events["status"]++
			logger.Debug("status", zap.Stringer("kind", s.Kind), zap.String("message", s.Message))
		},
		DecodeError: func(span []byte, err error) {
			stats.decodeErrors[event.Reason(err)]++
			logger.Debug("decode error", zap.ByteString("span", span), zap.Error(err))
		},
	}

	var lastID int64
	err = frames.EachFrame(ctx, *after, 500, func(f store.Frame) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.frames++
		lastID = f.ID
		if err := demux.Process(f.Payload, handler); err != nil {
			stats.malformed++
		}
		return nil
	})
	if err != nil {
		logger.Error("replay stopped early", zap.Int64("last_frame_id", lastID), zap.Error(err))
	}

	logger.Info("replay finished",
		zap.String("path", path),
		zap.Int("frames", stats.frames),
		zap.Int("malformed_frames", stats.malformed),
		zap.Int64("last_frame_id", lastID),
		zap.Any("events", stats.events),
		zap.Any("decode_errors", stats.decodeErrors),
		zap.Int("publish_errors", stats.publishErrors),
	)
}

type replayStats struct {
	frames        int
	malformed     int
	publishErrors int
	events        map[string]int
	decodeErrors  map[string]int
}

func newReplayStats() *replayStats {
	return &replayStats{
		events:       make(map[string]int),
		decodeErrors: make(map[string]int),
	}
}

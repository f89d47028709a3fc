package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/config"
	"github.com/ismaiel54/polygon-stream/internal/logging"
	"github.com/ismaiel54/polygon-stream/internal/msg"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "optional config file")
	duration := pflag.DurationP("duration", "d", 30*time.Second, "how long to consume")
	group := pflag.String("group", "", "consumer group; empty reads every partition from the start without committing")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger("tape-verifier", cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting tape verifier",
		zap.Duration("duration", *duration),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("group", *group),
	)

	consumer, err := msg.NewConsumer(cfg.Kafka.Brokers, *group, msg.Topics(), logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var mu sync.Mutex
	verifier := msg.NewVerifier()
	err = consumer.Run(ctx, func(ctx context.Context, rec msg.Record) error {
		mu.Lock()
		verifier.Observe(rec)
		mu.Unlock()

		logger.Debug("consumed record",
			zap.String("key", rec.Key),
			zap.String("topic", rec.Topic),
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("consumer error", zap.Error(err))
	}

	mu.Lock()
	report := verifier.Report()
	mu.Unlock()

	fmt.Println("\n=== Verification Results ===")
	fmt.Printf("Total records consumed: %d\n", report.Total)
	fmt.Printf("Unique event IDs: %d\n", report.Unique)
	fmt.Printf("Malformed records: %d\n", report.Malformed)
	fmt.Printf("Sequence regressions: %d\n", report.Regressions)
	fmt.Printf("Duplicate event IDs: %d\n", len(report.Duplicates))

	if !report.Passed() {
		fmt.Println("\nDuplicates found:")
		for _, id := range report.DuplicateIDs() {
			fmt.Printf("  Event ID: %s, Count: %d\n", id, report.Duplicates[id])
		}
		fmt.Println("\nVERIFICATION FAILED: duplicates detected")
		os.Exit(1)
	}

	fmt.Println("\nVERIFICATION PASSED: no duplicates detected")
}

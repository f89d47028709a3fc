package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/feedsim"
	"github.com/ismaiel54/polygon-stream/internal/logging"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		addr     = pflag.String("addr", "127.0.0.1:8765", "listen address; the feed is served at /stocks")
		apiKey   = pflag.String("api-key", "", "key clients must authenticate with (empty accepts any)")
		interval = pflag.Duration("interval", 200*time.Millisecond, "time between event batches")
		seed     = pflag.Int64("seed", 42, "random seed for deterministic generation")
		dupPct   = pflag.Int("dup-pct", 0, "percentage of repeated objects (0-100)")
		level    = pflag.String("log-level", "info", "log level")
	)
	pflag.Parse()

	logger, err := logging.NewLogger("mock-feed", *level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	feed := feedsim.NewServer(*apiKey, *interval, *seed, *dupPct, logger)
	mux := http.NewServeMux()
	mux.Handle("/stocks", feed)
	server := &http.Server{Addr: *addr, Handler: mux}

	logger.Info("starting mock feed",
		zap.String("url", "ws://"+*addr+"/stocks"),
		zap.Duration("interval", *interval),
		zap.Int64("seed", *seed),
		zap.Int("dup_pct", *dupPct),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info("mock feed stopped", zap.Int("duplicates_sent", feed.Duplicates()))
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ismaiel54/polygon-stream/internal/logging"
	"github.com/ismaiel54/polygon-stream/internal/rpc/control"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [--addr host:port] status | subscribe <channel> | unsubscribe <channel>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Example: %s subscribe T.MSFT\n", os.Args[0])
}

func main() {
	addr := pflag.String("addr", "127.0.0.1:50051", "stream-client gRPC address")
	verbose := pflag.BoolP("verbose", "v", false, "log each gRPC call")
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger("streamctl", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client, err := control.Dial(*addr, logger)
	if err != nil {
		logger.Fatal("failed to dial control service", zap.Error(err))
	}
	defer client.Close()

	ctx := context.Background()
	switch args[0] {
	case "status":
		reply, err := client.Status(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("state: %s\nconnection: %s\n", reply.State, reply.ConnectionID)
		for _, s := range reply.Subscriptions {
			fmt.Printf("  %-16s %s\n", s.Channel, s.State)
		}
	case "subscribe", "unsubscribe":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		call := client.Subscribe
		if args[0] == "unsubscribe" {
			call = client.Unsubscribe
		}
		reply, err := call(ctx, args[1])
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s %s: queued=%t request_id=%s\n", args[0], args[1], reply.Queued, reply.RequestID)
	default:
		usage()
		os.Exit(2)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

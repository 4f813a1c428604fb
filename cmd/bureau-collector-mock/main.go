// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-collector-mock is a stand-in trace collector for local
// development and integration tests. It serves the RecordSpan stream,
// logs every span it receives, and acknowledges each one.
//
// Flags shape the mock's behavior so the streamer's reconnect paths
// can be exercised by hand:
//
//   - --max-spans-per-stream closes each stream cleanly (codes.OK)
//     after N spans, forcing an immediate reconnect.
//   - --fail-every ends every Nth stream with codes.Unavailable
//     instead, forcing a delayed reconnect.
//   - --unimplemented rejects every stream with codes.Unimplemented,
//     which makes the streamer shut down permanently.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/bureau-foundation/spanstream/lib/collector"
	"github.com/bureau-foundation/spanstream/lib/process"
	"github.com/bureau-foundation/spanstream/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("bureau-collector-mock", pflag.ContinueOnError)
	listenAddress := flagSet.String("listen", "127.0.0.1:9443", "TCP address to serve gRPC on")
	maxSpans := flagSet.Int("max-spans-per-stream", 0, "close each stream with OK after this many spans (0 = never)")
	failEvery := flagSet.Int("fail-every", 0, "end every Nth stream with Unavailable (0 = never)")
	unimplemented := flagSet.Bool("unimplemented", false, "reject every stream with Unimplemented")
	showVersion := flagSet.Bool("version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		version.Print("bureau-collector-mock")
		return nil
	}
	if *maxSpans < 0 || *failEvery < 0 {
		return fmt.Errorf("--max-spans-per-stream and --fail-every must not be negative")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", *listenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", *listenAddress, err)
	}

	server := grpc.NewServer()
	collector.RegisterIngestServer(server, newMockCollector(mockOptions{
		maxSpansPerStream: *maxSpans,
		failEvery:         *failEvery,
		unimplemented:     *unimplemented,
	}, logger))

	context.AfterFunc(ctx, server.GracefulStop)

	logger.Info("collector mock listening",
		"address", listener.Addr().String(),
		"max_spans_per_stream", *maxSpans,
		"fail_every", *failEvery,
		"unimplemented", *unimplemented,
	)
	if err := server.Serve(listener); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("collector mock stopped")
	return nil
}

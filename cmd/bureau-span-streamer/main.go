// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/spanstream/lib/clock"
	"github.com/bureau-foundation/spanstream/lib/collector"
	"github.com/bureau-foundation/spanstream/lib/config"
	"github.com/bureau-foundation/spanstream/lib/process"
	"github.com/bureau-foundation/spanstream/lib/schema/span"
	"github.com/bureau-foundation/spanstream/lib/spanstream"
	"github.com/bureau-foundation/spanstream/lib/streambuffer"
	"github.com/bureau-foundation/spanstream/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("bureau-span-streamer", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to the YAML config file (default: $SPANSTREAM_CONFIG)")
	showVersion := flagSet.Bool("version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		version.Print("bureau-span-streamer")
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cancelled on a signal, or when the ingest socket fails, so that
	// one failing component stops the rest.
	ctx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := spanstream.NewMetrics(registry)

	conn, err := collector.Dial(collector.DialConfig{
		Address:     cfg.Collector.Address,
		Compression: cfg.Collector.Compression,
		Insecure:    cfg.Collector.Insecure,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	buffer := streambuffer.New[*span.Span](cfg.Buffer.Capacity)
	clk := clock.Real()

	streamer, err := spanstream.NewStreamer(spanstream.Config{
		Buffer: buffer,
		Opener: spanstream.OpenerFunc(func(ctx context.Context) (spanstream.Stream, error) {
			stream, err := conn.Open(ctx)
			if err != nil {
				return nil, err
			}
			return stream, nil
		}),
		ReconnectDelay: cfg.Collector.ReconnectDelay,
		Clock:          clk,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	harvester, err := spanstream.NewHarvester(buffer, cfg.Buffer.HarvestInterval, clk, metrics, logger)
	if err != nil {
		return err
	}

	ingest := newIngestServer(cfg.Ingest.SocketPath, streamer.Record, logger)

	ingestDone := make(chan error, 1)
	go func() {
		ingestDone <- ingest.Serve(ctx)
	}()

	harvesterDone := make(chan struct{})
	go func() {
		harvester.Run(ctx)
		close(harvesterDone)
	}()

	// The streamer stopping on its own (collector without streaming
	// support) does not stop the process: producers keep writing and
	// Record discards.
	streamerDone := make(chan struct{})
	go func() {
		if err := streamer.Run(ctx); err != nil {
			logger.Error("span streaming disabled", "error", err)
		}
		close(streamerDone)
	}()

	var metricsServer *http.Server
	if cfg.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("span streamer running",
		"version", version.Info(),
		"environment", cfg.Environment,
		"collector", cfg.Collector.Address,
		"compression", cfg.Collector.Compression,
		"socket", cfg.Ingest.SocketPath,
		"metrics", cfg.Metrics.ListenAddress,
		"buffer_capacity", cfg.Buffer.Capacity,
		"reconnect_delay", cfg.Collector.ReconnectDelay,
	)

	runErr := waitForShutdown(ctx, ingestDone)
	if runErr != nil {
		logger.Error("ingest socket failed", "error", runErr)
	}
	cancel()
	logger.Info("shutting down")

	<-streamerDone
	<-harvesterDone

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}

	return runErr
}

// waitForShutdown blocks until ctx is cancelled or the ingest server
// stops on its own. Serve returning before cancellation is always a
// failure (usually a socket that could not be bound), since without it
// no producer can reach the streamer.
func waitForShutdown(ctx context.Context, ingestDone <-chan error) error {
	select {
	case err := <-ingestDone:
		if err == nil {
			if ctx.Err() != nil {
				return nil
			}
			err = errors.New("ingest socket closed unexpectedly")
		}
		return fmt.Errorf("ingest socket: %w", err)
	case <-ctx.Done():
		if err := <-ingestDone; err != nil {
			return fmt.Errorf("ingest socket: %w", err)
		}
		return nil
	}
}

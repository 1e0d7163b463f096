// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/qapulse/qapulse/services/telemetry/cache"
	"github.com/qapulse/qapulse/services/telemetry/config"
	"github.com/qapulse/qapulse/services/telemetry/gcs"
	"github.com/qapulse/qapulse/services/telemetry/ghclient"
	"github.com/qapulse/qapulse/services/telemetry/history"
	"github.com/qapulse/qapulse/services/telemetry/observability"
	"github.com/qapulse/qapulse/services/telemetry/routes"
	"github.com/qapulse/qapulse/services/telemetry/scanner"
	"github.com/qapulse/qapulse/services/telemetry/snapshot"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// Tracing is opt-in; without a collector the service runs with
		// a no-op provider.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("telemetry-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: configuration: %v", err)
	}
	slog.Info("telemetry service configured",
		"repos", len(cfg.Repos),
		"scan_depth", cfg.ScanDepth,
		"cache_ttl", cfg.CacheTTL.String(),
		"token_present", cfg.GitHubToken != "",
		"cloud_enabled", cfg.GCSBucket != "",
		"refresh_enabled", cfg.RefreshToken != "")

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	ciClient := ghclient.NewClient(cfg.GitHubToken)
	collector := &snapshot.Collector{
		Repos:         cfg.Repos,
		Scanner:       scanner.New(ciClient),
		Fetcher:       ciClient,
		ScanDepth:     cfg.ScanDepth,
		RepoTimeout:   cfg.RepoTimeout,
		BatchDeadline: cfg.BatchDeadline,
		Targets:       cfg.Targets,
		Metrics:       metrics,
		Logger:        logger,
	}
	if cfg.GitHubToken != "" {
		collector.Validator = ciClient
	}

	cloud := &snapshot.CloudSource{Object: cfg.GCSObject}
	if cfg.GCSBucket != "" {
		gcsClient, err := gcs.NewClient(context.Background(), cfg.GCSBucket, cfg.GCSKeyFile)
		if err != nil {
			log.Fatalf("FATAL: cloud storage: %v", err)
		}
		defer gcsClient.Close()
		cloud.Reader = gcsClient
	}

	var store *history.Store
	if historyPath := os.Getenv("QAPULSE_HISTORY_DIR"); historyPath != "" {
		store, err = history.Open(history.Config{Path: historyPath, Logger: logger})
		if err != nil {
			log.Fatalf("FATAL: history store: %v", err)
		}
		defer store.Close()
	}

	provider := &snapshot.Provider{
		Live:    collector,
		Cloud:   cloud,
		Static:  &snapshot.StaticSource{Path: cfg.StaticSnapshotPath},
		Cache:   cache.New(cfg.CacheTTL, nil),
		History: store,
		Repos:   cfg.Repos,
		Metrics: metrics,
		Logger:  logger,
	}

	watcher, err := snapshot.WatchStaticFile(cfg.StaticSnapshotPath, provider.InvalidateStatic, logger)
	if err != nil {
		slog.Warn("static snapshot watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("telemetry-service"))

	routes.SetupRoutes(router, provider, store, cfg.RefreshToken)

	log.Println("Starting the telemetry server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

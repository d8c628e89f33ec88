package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rastac/rastac/internal/catalog"
	"github.com/rastac/rastac/internal/config"
	"github.com/rastac/rastac/internal/extract"
	"github.com/rastac/rastac/internal/ingest"
	"github.com/rastac/rastac/internal/logger"
	"github.com/rastac/rastac/internal/observability"
	"github.com/rastac/rastac/internal/query"
	"github.com/rastac/rastac/internal/rescan"
	"github.com/rastac/rastac/internal/server"
)

const version = "0.3.0"

func main() {
	_ = godotenv.Load(".env")
	cfg := config.FromEnv()

	addr := flag.String("addr", cfg.Addr, "listen address")
	dataDir := flag.String("data", cfg.DataDir, "catalog data root")
	console := flag.Bool("console", false, "human-readable log output")
	flag.Parse()
	cfg.Addr = *addr
	cfg.DataDir = *dataDir

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   *console,
		Component: "rastac",
	}, os.Stdout)
	// dependencies that log via slog share the zerolog stream
	slog.SetDefault(logger.NewSlog(&log))
	observability.ExposeBuildInfo(version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := catalog.New(ctx, cfg.StoreBackend, catalog.Options{
		Path:      cfg.StorePath,
		RedisAddr: cfg.RedisAddr,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store init failed")
	}
	if c, ok := backend.(interface{ Close() error }); ok {
		defer c.Close()
	}
	store := catalog.Instrument(backend)

	var src ingest.Source
	var ex extract.Extractor
	if cfg.S3.Enabled {
		mc, err := minio.New(cfg.S3.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
			Secure: cfg.S3.UseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("object storage client failed")
		}
		src = ingest.BucketSource{Client: mc, Bucket: cfg.S3.Bucket}
		ex = extract.NewSidecar(ingest.ReadObject(mc, cfg.S3.Bucket))
		log.Info().Str("endpoint", cfg.S3.Endpoint).Str("bucket", cfg.S3.Bucket).
			Msg("ingesting from object storage")
	} else {
		src = ingest.DirSource{Root: cfg.DataDir}
		ex = extract.NewSidecar(ingest.ReadFile)
		log.Info().Str("dir", cfg.DataDir).Msg("ingesting from directory tree")
	}

	pipe := ingest.NewPipeline(store, ex, cfg.IngestWorkers, log)
	stats, err := pipe.Run(ctx, src)
	if err != nil {
		log.Fatal().Err(err).Msg("ingestion failed")
	}
	log.Info().Int("ingested", stats.Ingested).Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).Msg("catalog ready")

	engine, err := query.NewEngine(store, cfg.QueryCacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("query engine init failed")
	}

	if cfg.Rescan.Enabled {
		proc := rescan.NewProcessor(pipe, src, store, engine, log)
		consumer, err := rescan.NewConsumer(
			strings.Split(cfg.Rescan.Brokers, ","),
			cfg.Rescan.GroupID, cfg.Rescan.Topic, proc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("rescan consumer init failed")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("rescan consumer stopped")
			}
		}()
		log.Info().Str("topic", cfg.Rescan.Topic).Msg("rescan consumer running")
	}

	srv := server.New(store, engine, server.Identity{
		ID:          cfg.ServiceID,
		Title:       cfg.ServiceTitle,
		Description: cfg.ServiceDesc,
		BaseURL:     cfg.BaseURL,
	}, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}

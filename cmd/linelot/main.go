// Package main provides the linelot manufacturing-line traceability
// service: multi-tenant ingestion, validation, and lineage queries over
// P1 (extruder), P2 (slitting), and P3 (punching/finish) inspection data.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/linelot/linelot/internal/api"
	"github.com/linelot/linelot/internal/api/middleware"
	"github.com/linelot/linelot/internal/config"
	"github.com/linelot/linelot/internal/events"
	"github.com/linelot/linelot/internal/flatten"
	"github.com/linelot/linelot/internal/ingest"
	"github.com/linelot/linelot/internal/query"
	"github.com/linelot/linelot/internal/schema"
	"github.com/linelot/linelot/internal/storage"
)

const (
	version = "1.0.0-dev"
	name    = "linelot"

	defaultUploadDir       = "./data/uploads"
	stagingCleanupInterval = time.Hour
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("starting linelot service", slog.String("version", version))

	if err := serverConfig.Validate(); err != nil {
		logger.Error("invalid server configuration", slog.Any("error", err))
		os.Exit(1)
	}

	server, closers, err := buildServer(serverConfig, logger)
	if err != nil {
		logger.Error("failed to build server", slog.Any("error", err))
		os.Exit(1)
	}

	for _, c := range closers {
		server.RegisterCloser(c)
	}

	if err := server.Start(); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("linelot service stopped")
}

type closer interface {
	Close() error
}

// buildServer wires every domain collaborator into an *api.Server,
// following the teacher's single-entrypoint composition-root style.
func buildServer(cfg api.ServerConfig, logger *slog.Logger) (*api.Server, []closer, error) {
	storageConfig := storage.LoadConfig()
	if err := storageConfig.Validate(); err != nil {
		return nil, nil, err
	}

	conn, err := storage.NewConnection(storageConfig)
	if err != nil {
		return nil, nil, err
	}

	schemaStore, err := storage.NewSchemaStore(conn)
	if err != nil {
		return nil, nil, err
	}

	tracingStore, err := storage.NewTracingStore(conn, stagingCleanupInterval)
	if err != nil {
		return nil, nil, err
	}

	tenantStore, err := storage.NewTenantStore(conn)
	if err != nil {
		return nil, nil, err
	}

	registry := schema.NewRegistry(schemaStore)

	blobDir := cfg.UploadTempDir
	if blobDir == "" {
		blobDir = defaultUploadDir
	}

	blobs := ingest.NewFilesystemBlobStore(blobDir)

	publisher, enabled := events.New(eventsConfigFromEnv(), logger)

	pipeline := ingest.New(tracingStore, registry, blobs, publisherOrNil(publisher, enabled), logger, ingest.Config{
		MaxUploadBytes: int64(cfg.MaxUploadSizeMB) << 20,
	})

	flattenConfig, err := flatten.LoadConfig(flatten.DefaultConfigPath)
	if err != nil {
		return nil, nil, err
	}

	flattener := flatten.New(tracingStore, flattenConfig.Columns)
	engine := query.New(tracingStore)

	var limiter middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewInMemoryRateLimiter(cfg.ToRateLimitConfig())
	}

	srv := api.NewServer(cfg, logger, pipeline, engine, flattener, tenantStore, limiter, tracingStore)

	closers := []closer{conn}
	if enabled {
		closers = append(closers, publisher)
	}

	return srv, closers, nil
}

func eventsConfigFromEnv() events.Config {
	brokers := os.Getenv("EVENTS_KAFKA_BROKERS")
	topic := os.Getenv("EVENTS_KAFKA_TOPIC")

	if brokers == "" || topic == "" {
		return events.Config{}
	}

	return events.Config{Brokers: config.ParseCommaSeparatedList(brokers), Topic: topic}
}

// publisherOrNil returns nil (so ingest.New installs its no-op default)
// when Kafka publishing isn't enabled.
func publisherOrNil(p *events.Publisher, enabled bool) ingest.EventPublisher {
	if !enabled {
		return nil
	}

	return p
}

package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/projection"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/service"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/sqlite"
)

// RuntimeConfig controls worker startup, storage paths, and loop behavior.
type RuntimeConfig struct {
	Port              int
	JournalDBPath     string
	ProjectionsDBPath string
	// SystemIssuerID is the engine identity propagated pardons are issued
	// under and recorded against in the ledger.
	SystemIssuerID string
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBackoff   time.Duration
	RetryMaxDelay  time.Duration
}

const (
	defaultWorkerPort        = 8089
	defaultJournalDBPath     = "data/moderation-events.db"
	defaultProjectionsDBPath = "data/moderation-projections.db"
	defaultSystemIssuerID    = "system"
)

// HealthServiceName is the gRPC health identifier panel probes check.
const HealthServiceName = "moderation.worker"

// Run starts worker runtime dependencies, the health server, and the outbox
// loop. It blocks until the context ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.JournalDBPath) == "" {
		cfg.JournalDBPath = defaultJournalDBPath
	}
	if strings.TrimSpace(cfg.ProjectionsDBPath) == "" {
		cfg.ProjectionsDBPath = defaultProjectionsDBPath
	}
	if strings.TrimSpace(cfg.SystemIssuerID) == "" {
		cfg.SystemIssuerID = defaultSystemIssuerID
	}

	for _, path := range []string{cfg.JournalDBPath, cfg.ProjectionsDBPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir for %s: %w", path, err)
			}
		}
	}

	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return fmt.Errorf("load event signing keys: %w", err)
	}

	journal, err := sqlite.OpenJournal(cfg.JournalDBPath, keyring, event.DefaultRegistry(),
		sqlite.WithProjectionApplyOutboxEnabled(true))
	if err != nil {
		return fmt.Errorf("open journal store: %w", err)
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			log.Printf("close journal store: %v", closeErr)
		}
	}()

	readModel, err := sqlite.OpenProjections(cfg.ProjectionsDBPath)
	if err != nil {
		return fmt.Errorf("open projections store: %w", err)
	}
	defer func() {
		if closeErr := readModel.Close(); closeErr != nil {
			log.Printf("close projections store: %v", closeErr)
		}
	}()

	// audit_events lives in the projections database.
	auditEmitter := audit.NewEmitter(readModel)
	directory := issuer.StaticDirectory{
		cfg.SystemIssuerID: {ID: cfg.SystemIssuerID, Role: issuer.RoleSystem, Active: true},
	}
	svc, err := service.New(service.Config{
		Journal:   journal,
		Directory: directory,
		Audit:     auditEmitter,
	})
	if err != nil {
		return fmt.Errorf("build moderation service: %w", err)
	}

	loop, err := NewLoop(LoopConfig{
		Modifier:       svc,
		Journal:        journal,
		ReadModel:      readModel,
		Folder:         projection.NewFolder(journal),
		Audit:          auditEmitter,
		SystemIssuerID: cfg.SystemIssuerID,
		Config: Config{
			PollInterval:  cfg.PollInterval,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
		},
	})
	if err != nil {
		return fmt.Errorf("build outbox loop: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("worker server listening at %v", listener.Addr())
	return loop.Run(ctx)
}

// Package worker parses worker command flags and launches the propagation
// worker runtime.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/bongbong-com/modl-panel-sub005/internal/platform/cmd"
	workerserver "github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/app"
)

// Config holds worker command configuration.
type Config struct {
	Port              int           `env:"MODL_PANEL_WORKER_PORT" envDefault:"8089"`
	JournalDBPath     string        `env:"MODL_PANEL_WORKER_JOURNAL_DB_PATH" envDefault:"data/moderation-events.db"`
	ProjectionsDBPath string        `env:"MODL_PANEL_WORKER_PROJECTIONS_DB_PATH" envDefault:"data/moderation-projections.db"`
	SystemIssuerID    string        `env:"MODL_PANEL_WORKER_SYSTEM_ISSUER" envDefault:"system"`
	PollInterval      time.Duration `env:"MODL_PANEL_WORKER_POLL_INTERVAL" envDefault:"2s"`
	BatchSize         int           `env:"MODL_PANEL_WORKER_BATCH_SIZE" envDefault:"16"`
	MaxAttempts       int           `env:"MODL_PANEL_WORKER_MAX_ATTEMPTS" envDefault:"8"`
	RetryBackoff      time.Duration `env:"MODL_PANEL_WORKER_RETRY_BACKOFF" envDefault:"1s"`
	RetryMaxDelay     time.Duration `env:"MODL_PANEL_WORKER_RETRY_MAX_DELAY" envDefault:"5m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.StringVar(&cfg.JournalDBPath, "journal-db-path", cfg.JournalDBPath, "The moderation event journal SQLite database path")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db-path", cfg.ProjectionsDBPath, "The moderation projections SQLite database path")
	fs.StringVar(&cfg.SystemIssuerID, "system-issuer", cfg.SystemIssuerID, "Issuer identity recorded on propagated pardons")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Outbox poll interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Maximum outbox rows claimed per poll")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum delivery attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(context.Context) error {
		return workerserver.Run(ctx, workerserver.RuntimeConfig{
			Port:              cfg.Port,
			JournalDBPath:     cfg.JournalDBPath,
			ProjectionsDBPath: cfg.ProjectionsDBPath,
			SystemIssuerID:    cfg.SystemIssuerID,
			PollInterval:      cfg.PollInterval,
			BatchSize:         cfg.BatchSize,
			MaxAttempts:       cfg.MaxAttempts,
			RetryBackoff:      cfg.RetryBackoff,
			RetryMaxDelay:     cfg.RetryMaxDelay,
		})
	})
}

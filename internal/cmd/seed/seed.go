// Package seed parses seed command flags and runs the demo ledger seeder.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"

	entrypoint "github.com/bongbong-com/modl-panel-sub005/internal/platform/cmd"
	"github.com/bongbong-com/modl-panel-sub005/internal/tools/seed"
)

// Config holds seed command configuration.
type Config struct {
	JournalDBPath     string `env:"MODL_PANEL_SEED_JOURNAL_DB_PATH" envDefault:"data/moderation-events.db"`
	ProjectionsDBPath string `env:"MODL_PANEL_SEED_PROJECTIONS_DB_PATH" envDefault:"data/moderation-projections.db"`
	Preset            string `env:"MODL_PANEL_SEED_PRESET" envDefault:"demo"`
	Seed              int64  `env:"MODL_PANEL_SEED_SEED" envDefault:"1"`
	Players           int    `env:"MODL_PANEL_SEED_PLAYERS"`
	Verbose           bool   `env:"MODL_PANEL_SEED_VERBOSE"`
	List              bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.JournalDBPath, "journal-db-path", cfg.JournalDBPath, "The moderation event journal SQLite database path")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db-path", cfg.ProjectionsDBPath, "The moderation projections SQLite database path")
	fs.StringVar(&cfg.Preset, "preset", cfg.Preset, "Ledger shape preset (demo, variety, appeal-heavy, stress-test)")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for reproducible runs (0 = random)")
	fs.IntVar(&cfg.Players, "players", cfg.Players, "Player count override (0 = preset default)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.List, "list", cfg.List, "List available presets and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if !cfg.List && !seed.ValidPreset(seed.Preset(cfg.Preset)) {
		return Config{}, fmt.Errorf("unknown preset %q", cfg.Preset)
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if cfg.List {
		listPresets(out)
		return nil
	}

	seeder, err := seed.New(seed.Config{
		JournalDBPath:     cfg.JournalDBPath,
		ProjectionsDBPath: cfg.ProjectionsDBPath,
		Preset:            seed.Preset(cfg.Preset),
		Seed:              cfg.Seed,
		Players:           cfg.Players,
		Verbose:           cfg.Verbose,
	})
	if err != nil {
		return err
	}
	defer seeder.Close()

	if err := seeder.Run(ctx); err != nil {
		return err
	}

	summary := seeder.Summary()
	fmt.Fprintf(out, "Seeded %d player(s), %d punishment(s), %d modification(s), %d appeal(s)\n",
		summary.Players, summary.Punishments, summary.Modifications, summary.Appeals)
	return nil
}

func listPresets(out io.Writer) {
	fmt.Fprintln(out, "Available presets:")
	for _, preset := range []seed.Preset{
		seed.PresetDemo,
		seed.PresetVariety,
		seed.PresetAppealHeavy,
		seed.PresetStressTest,
	} {
		cfg := seed.GetPresetConfig(preset)
		fmt.Fprintf(out, "  %-13s %d player(s), %d linked pair(s)\n", preset, cfg.Players, cfg.LinkedPairs)
	}
}

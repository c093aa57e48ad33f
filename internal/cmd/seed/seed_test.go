package seed

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Preset != "demo" {
		t.Fatalf("preset = %q, want demo", cfg.Preset)
	}
	if cfg.Seed != 1 {
		t.Fatalf("seed = %d, want 1", cfg.Seed)
	}
	if cfg.JournalDBPath != filepath.Join("data", "moderation-events.db") {
		t.Fatalf("journal path = %q", cfg.JournalDBPath)
	}
}

func TestParseConfigRejectsUnknownPreset(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-preset", "bogus"}); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("MODL_PANEL_SEED_PRESET", "variety")
	t.Setenv("MODL_PANEL_SEED_SEED", "9")

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-players", "3"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Preset != "variety" {
		t.Fatalf("preset = %q, want variety from env", cfg.Preset)
	}
	if cfg.Seed != 9 {
		t.Fatalf("seed = %d, want 9 from env", cfg.Seed)
	}
	if cfg.Players != 3 {
		t.Fatalf("players = %d, want 3 from flag", cfg.Players)
	}
}

func TestRunListPresets(t *testing.T) {
	var out bytes.Buffer
	if err := Run(context.Background(), Config{List: true}, &out); err != nil {
		t.Fatalf("run list: %v", err)
	}
	for _, preset := range []string{"demo", "variety", "appeal-heavy", "stress-test"} {
		if !strings.Contains(out.String(), preset) {
			t.Fatalf("list output missing preset %q: %s", preset, out.String())
		}
	}
}

func TestRunSeedsTempDatabases(t *testing.T) {
	t.Setenv("MODL_PANEL_MODERATION_EVENT_HMAC_KEY", "0123456789abcdef0123456789abcdef")

	dir := t.TempDir()
	cfg := Config{
		JournalDBPath:     filepath.Join(dir, "events.db"),
		ProjectionsDBPath: filepath.Join(dir, "projections.db"),
		Preset:            "demo",
		Seed:              5,
		Players:           2,
	}

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if !strings.Contains(out.String(), "Seeded 4 player(s)") {
		// 2 rostered players plus the demo preset's one linked pair.
		t.Fatalf("unexpected summary output: %s", out.String())
	}
}

package scenario

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-scenario", "lifecycle.lua"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.ScenarioPath != "lifecycle.lua" {
		t.Fatalf("ScenarioPath = %q, want lifecycle.lua", cfg.ScenarioPath)
	}
	if cfg.Assert != "strict" {
		t.Fatalf("Assert = %q, want strict", cfg.Assert)
	}
	if cfg.Verbose {
		t.Fatal("Verbose = true, want false")
	}
}

func TestParseConfigAcceptsPositionalPath(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"lifecycle.lua"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.ScenarioPath != "lifecycle.lua" {
		t.Fatalf("ScenarioPath = %q, want lifecycle.lua", cfg.ScenarioPath)
	}
}

func TestParseConfigRequiresScenarioPath(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("ParseConfig() error = nil, want missing scenario error")
	}
}

func TestParseConfigRejectsUnknownAssertMode(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	_, err := ParseConfig(fs, []string{"-scenario", "x.lua", "-assert", "fatal"})
	if err == nil || !strings.Contains(err.Error(), `unknown assertion mode "fatal"`) {
		t.Fatalf("ParseConfig() error = %v, want unknown assertion mode", err)
	}
}

func TestParseConfigEnvThenFlags(t *testing.T) {
	t.Setenv("MODL_PANEL_SCENARIO_PATH", "from-env.lua")
	t.Setenv("MODL_PANEL_SCENARIO_ASSERT", "lenient")

	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-scenario", "from-flag.lua"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.ScenarioPath != "from-flag.lua" {
		t.Fatalf("ScenarioPath = %q, want flag to win over env", cfg.ScenarioPath)
	}
	if cfg.Assert != "lenient" {
		t.Fatalf("Assert = %q, want lenient from env", cfg.Assert)
	}
}

func TestRunExecutesScenarioScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifecycle.lua")
	script := `
local scene = Scenario.new("cmd lifecycle")
scene:issue{player = "player-1", type = "temp_ban", reason = "griefing", duration = "24h", as = "ban"}
scene:expect_state{punishment = "ban", state = "active"}
scene:advance("25h")
scene:expect_state{punishment = "ban", state = "expired"}
return scene
`
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	var out, errOut bytes.Buffer
	cfg := Config{ScenarioPath: path, Assert: "strict"}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("Run() error = %v\nstderr: %s", err, errOut.String())
	}
	if !strings.Contains(out.String(), "passed") {
		t.Fatalf("output = %q, want pass confirmation", out.String())
	}
}

func TestRunReportsFailedExpectation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failing.lua")
	script := `
local scene = Scenario.new("failing")
scene:issue{player = "player-1", type = "temp_ban", duration = "24h", as = "ban"}
scene:expect_state{punishment = "ban", state = "expired"}
return scene
`
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	var out, errOut bytes.Buffer
	cfg := Config{ScenarioPath: path, Assert: "strict"}
	if err := Run(context.Background(), cfg, &out, &errOut); err == nil {
		t.Fatal("Run() error = nil, want expectation failure")
	}
}

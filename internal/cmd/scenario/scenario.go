// Package scenario parses scenario command flags and runs Lua lifecycle
// scripts against an in-process punishment engine.
package scenario

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	entrypoint "github.com/bongbong-com/modl-panel-sub005/internal/platform/cmd"
	"github.com/bongbong-com/modl-panel-sub005/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	// ScenarioPath is the Lua script to execute.
	ScenarioPath string `env:"MODL_PANEL_SCENARIO_PATH"`
	// Assert selects strict or lenient expectation handling.
	Assert  string `env:"MODL_PANEL_SCENARIO_ASSERT" envDefault:"strict"`
	Verbose bool   `env:"MODL_PANEL_SCENARIO_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.ScenarioPath, "scenario", cfg.ScenarioPath, "Path to the Lua scenario script")
	fs.StringVar(&cfg.Assert, "assert", cfg.Assert, "Expectation handling (strict, lenient)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose step logging")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.ScenarioPath == "" && fs.NArg() > 0 {
		cfg.ScenarioPath = fs.Arg(0)
	}
	if cfg.ScenarioPath == "" {
		return Config{}, fmt.Errorf("a scenario script is required (use -scenario or pass a path)")
	}
	if _, err := assertionMode(cfg.Assert); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	mode, err := assertionMode(cfg.Assert)
	if err != nil {
		return err
	}

	runCfg := scenario.Config{
		Assertions: mode,
		Verbose:    cfg.Verbose,
		Logger:     log.New(errOut, "", 0),
	}
	if err := scenario.RunFile(ctx, runCfg, cfg.ScenarioPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Scenario %s passed\n", cfg.ScenarioPath)
	return nil
}

func assertionMode(value string) (scenario.AssertionMode, error) {
	switch value {
	case "strict":
		return scenario.AssertionStrict, nil
	case "lenient":
		return scenario.AssertionLenient, nil
	default:
		return scenario.AssertionStrict, fmt.Errorf("unknown assertion mode %q (strict, lenient)", value)
	}
}

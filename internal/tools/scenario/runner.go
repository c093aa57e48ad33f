package scenario

import (
	"context"
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/platform/id"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/appeal"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/service"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/sqlite"
)

// scenarioEpoch is the starting instant of every scenario clock. Scripts move
// time forward with advance steps; nothing reads the wall clock.
var scenarioEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Staff identities registered in the scenario directory. Steps reference
// them by id through the issuer argument.
const (
	issuerModerator = "moderator"
	issuerSenior    = "senior-moderator"
	issuerAdmin     = "admin"
	issuerSystem    = "system"
	issuerAppeals   = "appeals-service"
)

// defaultReason backs issue steps that omit the reason argument, mirroring
// how steps default the issuer.
const defaultReason = "scenario default reason"

// Grant identity for the runner's ephemeral decision grant keypair.
const (
	grantIssuer   = "modl-panel-appeals"
	grantAudience = "moderation-engine"
)

// Config controls scenario execution.
type Config struct {
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{Assertions: AssertionStrict}
}

// punishmentRef addresses one scripted punishment on its player ledger.
type punishmentRef struct {
	PlayerID     string
	PunishmentID string
}

// Runner executes scenarios against a throwaway in-process engine: a temp
// sqlite ledger, an ephemeral HMAC keyring, and an ephemeral decision grant
// keypair. Nothing survives Close.
type Runner struct {
	svc        *service.Service
	journal    *sqlite.Store
	dir        string
	grantKey   ed25519.PrivateKey
	assertions Assertions
	logger     *log.Logger
	verbose    bool

	now     time.Time
	aliases map[string]punishmentRef
	lastRef punishmentRef
}

// NewRunner builds a runner with a fresh temp ledger.
func NewRunner(cfg Config) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	dir, err := os.MkdirTemp("", "moderation-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario dir: %w", err)
	}

	r := &Runner{
		dir:        dir,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		now:        scenarioEpoch,
		aliases:    map[string]punishmentRef{},
	}

	keyring, err := ephemeralKeyring()
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	journal, err := sqlite.OpenJournal(filepath.Join(dir, "events.db"), keyring, event.DefaultRegistry())
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("open scenario journal: %w", err)
	}
	r.journal = journal

	publicKey, privateKey, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("generate decision grant keypair: %w", err)
	}
	r.grantKey = privateKey

	svc, err := service.New(service.Config{
		Journal:   journal,
		Directory: scenarioDirectory(),
		Grants: appeal.DecisionGrantConfig{
			Issuer:   grantIssuer,
			Audience: grantAudience,
			Key:      publicKey,
			Now:      r.clock,
		},
		Clock:       r.clock,
		IDGenerator: id.NewID,
	})
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("build engine service: %w", err)
	}
	r.svc = svc
	return r, nil
}

// Close releases the temp ledger.
func (r *Runner) Close() error {
	var closeErr error
	if r.journal != nil {
		closeErr = r.journal.Close()
	}
	if r.dir != "" {
		if err := os.RemoveAll(r.dir); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps in order.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		if err := r.runStep(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) clock() time.Time {
	return r.now
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

// scenarioDirectory is the fixed staff roster scripts issue under.
func scenarioDirectory() issuer.StaticDirectory {
	return issuer.StaticDirectory{
		issuerModerator: {ID: issuerModerator, Role: issuer.RoleModerator, Active: true},
		issuerSenior:    {ID: issuerSenior, Role: issuer.RoleSeniorModerator, Active: true},
		issuerAdmin:     {ID: issuerAdmin, Role: issuer.RoleAdmin, Active: true},
		issuerSystem:    {ID: issuerSystem, Role: issuer.RoleSystem, Active: true},
		issuerAppeals:   {ID: issuerAppeals, Role: issuer.RoleAppealsService, Active: true},
	}
}

// ephemeralKeyring generates a single-run HMAC keyring; scenario ledgers are
// never reopened, so the key material lives and dies with the runner.
func ephemeralKeyring() (*integrity.Keyring, error) {
	raw := make([]byte, 32)
	if _, err := cryptorand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate scenario hmac key: %w", err)
	}
	return integrity.NewKeyring(map[string][]byte{"scenario": []byte(hex.EncodeToString(raw))}, "scenario")
}

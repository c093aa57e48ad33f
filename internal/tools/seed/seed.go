// Package seed generates a demo moderation ledger for local panel
// development: players, punishments, modifications, decided appeals, notes,
// and evidence, with the read model folded to match. Runs are deterministic
// for a fixed seed, so a bug found against seeded data can be reproduced.
package seed

import (
	"context"
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/appeal"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/service"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/sqlite"
)

// seedEpoch anchors the generated timeline. Every generated timestamp is a
// deterministic offset from it.
var seedEpoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// Staff roster recorded as issuers on generated events.
const (
	seedSeniorIssuerID  = "senior-cedar"
	seedAdminIssuerID   = "admin-dahlia"
	seedAppealsIssuerID = "appeals-service"
	seedSystemIssuerID  = "system"
)

var seedModeratorIssuerIDs = []string{"mod-aster", "mod-briar"}

// Grant identity for the run's ephemeral decision grant keypair.
const (
	seedGrantIssuer   = "modl-panel-appeals"
	seedGrantAudience = "moderation-engine"
)

// Config holds seeder configuration.
type Config struct {
	JournalDBPath     string
	ProjectionsDBPath string
	Preset            Preset
	Seed              int64
	// Players overrides the preset's player count when positive.
	Players int
	Verbose bool
}

// DefaultConfig returns a Config with sensible defaults. Seed 1 makes plain
// runs reproducible; pass zero to randomize.
func DefaultConfig() Config {
	return Config{
		JournalDBPath:     filepath.Join("data", "moderation-events.db"),
		ProjectionsDBPath: filepath.Join("data", "moderation-projections.db"),
		Preset:            PresetDemo,
		Seed:              1,
	}
}

// Summary counts what a seed run wrote.
type Summary struct {
	Players       int
	Punishments   int
	Modifications int
	Appeals       int
}

// Seeder generates the demo ledger through the engine service, so every
// generated event passes the same validation, authorization, and integrity
// sealing as production writes.
type Seeder struct {
	config    Config
	rng       *rand.Rand
	names     *nameRegistry
	journal   *sqlite.Store
	readModel *sqlite.Store
	svc       *service.Service
	grantKey  ed25519.PrivateKey
	errOut    io.Writer

	now       time.Time
	playerIDs []string
	summary   Summary
}

// New opens both stores and wires the engine service. The journal keyring
// comes from the environment; cmd/hmac-key generates one.
func New(cfg Config) (*Seeder, error) {
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load event hmac keyring: %w", err)
	}

	for _, path := range []string{cfg.JournalDBPath, cfg.ProjectionsDBPath} {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	journal, err := sqlite.OpenJournal(cfg.JournalDBPath, keyring, event.DefaultRegistry(),
		sqlite.WithProjectionApplyOutboxEnabled(true))
	if err != nil {
		return nil, fmt.Errorf("open event journal: %w", err)
	}
	readModel, err := sqlite.OpenProjections(cfg.ProjectionsDBPath)
	if err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("open projections store: %w", err)
	}

	// The keypair lives only for this run: grants are consumed at decision
	// time and the ledger keeps the resulting events, never the tokens.
	publicKey, privateKey, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		_ = journal.Close()
		_ = readModel.Close()
		return nil, fmt.Errorf("generate decision grant keypair: %w", err)
	}

	s := &Seeder{
		config:    cfg,
		rng:       NewSeededRNG(cfg.Seed, cfg.Verbose),
		names:     newNameRegistry(),
		journal:   journal,
		readModel: readModel,
		grantKey:  privateKey,
		errOut:    os.Stderr,
		now:       seedEpoch,
	}

	svc, err := service.New(service.Config{
		Journal:   journal,
		Directory: seedDirectory(),
		Grants: appeal.DecisionGrantConfig{
			Issuer:   seedGrantIssuer,
			Audience: seedGrantAudience,
			Key:      publicKey,
			Now:      s.clock,
		},
		Audit:       audit.NewEmitter(readModel),
		Clock:       s.clock,
		IDGenerator: s.nextID,
	})
	if err != nil {
		_ = journal.Close()
		_ = readModel.Close()
		return nil, fmt.Errorf("build engine service: %w", err)
	}
	s.svc = svc
	return s, nil
}

// Close releases both stores.
func (s *Seeder) Close() error {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			return err
		}
	}
	if s.readModel != nil {
		return s.readModel.Close()
	}
	return nil
}

// Run generates the preset's players and punishments, then folds the read
// model so the panel sees the seeded state without a worker pass.
func (s *Seeder) Run(ctx context.Context) error {
	presetCfg := GetPresetConfig(s.config.Preset)

	players := presetCfg.Players
	if s.config.Players > 0 {
		players = s.config.Players
	}

	s.logf("Seeding preset %q: %d player(s)", s.config.Preset, players)

	for i := 0; i < players; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.seedPlayer(ctx, presetCfg); err != nil {
			return fmt.Errorf("seed player %d: %w", i+1, err)
		}
	}

	for i := 0; i < presetCfg.LinkedPairs; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.seedLinkedPair(ctx); err != nil {
			return fmt.Errorf("seed linked pair %d: %w", i+1, err)
		}
	}

	if err := s.foldReadModel(ctx); err != nil {
		return fmt.Errorf("fold read model: %w", err)
	}

	s.logf("Seed complete: %d player(s), %d punishment(s), %d modification(s), %d appeal(s)",
		s.summary.Players, s.summary.Punishments, s.summary.Modifications, s.summary.Appeals)
	return nil
}

// Summary reports what the run wrote.
func (s *Seeder) Summary() Summary {
	return s.summary
}

func (s *Seeder) clock() time.Time {
	return s.now
}

// advance moves the generated timeline forward.
func (s *Seeder) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

// nextID mints identifiers in the platform id format but draws the bytes
// from the run's RNG, so reruns with the same seed produce identical ledgers.
func (s *Seeder) nextID() (string, error) {
	var raw [16]byte
	if _, err := s.rng.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read seeded bytes: %w", err)
	}
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:])
	return strings.ToLower(encoded), nil
}

// randomRange returns a random number in [min, max].
func (s *Seeder) randomRange(min, max int) int {
	if min >= max {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

// chance rolls a percentage.
func (s *Seeder) chance(percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	return s.rng.Intn(100) < percent
}

func (s *Seeder) logf(format string, args ...any) {
	if !s.config.Verbose {
		return
	}
	fmt.Fprintf(s.errOut, format+"\n", args...)
}

// seedDirectory is the static staff roster generated events are issued under.
func seedDirectory() issuer.StaticDirectory {
	directory := issuer.StaticDirectory{
		seedSeniorIssuerID:  {ID: seedSeniorIssuerID, Role: issuer.RoleSeniorModerator, Active: true},
		seedAdminIssuerID:   {ID: seedAdminIssuerID, Role: issuer.RoleAdmin, Active: true},
		seedAppealsIssuerID: {ID: seedAppealsIssuerID, Role: issuer.RoleAppealsService, Active: true},
		seedSystemIssuerID:  {ID: seedSystemIssuerID, Role: issuer.RoleSystem, Active: true},
	}
	for _, id := range seedModeratorIssuerIDs {
		directory[id] = issuer.Issuer{ID: id, Role: issuer.RoleModerator, Active: true}
	}
	return directory
}

// staffIssuer picks the acting moderator for an issuance, with the senior
// moderator in rotation.
func (s *Seeder) staffIssuer() string {
	pool := append([]string{}, seedModeratorIssuerIDs...)
	pool = append(pool, seedSeniorIssuerID)
	return pool[s.rng.Intn(len(pool))]
}

// Package maintenance implements the operator CLI for the moderation ledger:
// chain verification, read-model validation and refolds, outbox inspection
// and requeues, history export, and point-in-time state projection.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/platform/config"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/projection"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/sqlite"
)

// ledgerPageSize bounds one journal read while scanning or refolding.
const ledgerPageSize = 200

// Config holds maintenance command configuration.
type Config struct {
	PlayerID          string
	PlayerIDs         string
	PunishmentID      string
	At                string
	JournalDBPath     string        `env:"MODL_PANEL_MODERATION_EVENTS_DB_PATH"`
	ProjectionsDBPath string        `env:"MODL_PANEL_MODERATION_PROJECTIONS_DB_PATH"`
	Timeout           time.Duration `env:"MODL_PANEL_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	UntilSeq          uint64
	AfterSeq          uint64
	DryRun            bool
	Validate          bool
	Integrity         bool
	Export            bool
	ProjectState      bool
	WarningsCap       int
	JSONOutput        bool

	OutboxReport          bool
	OutboxStatus          string
	OutboxLimit           int
	OutboxRequeue         bool
	OutboxRequeuePlayerID string
	OutboxRequeueSeq      uint64
	OutboxRequeueDead     bool
	OutboxRequeueDeadMax  int

	PropagationRequeue        bool
	PropagationTaskID         string
	PropagationRequeueDead    bool
	PropagationRequeueDeadMax int
}

type envConfig struct {
	JournalDBPath     string        `env:"MODL_PANEL_MODERATION_EVENTS_DB_PATH"`
	ProjectionsDBPath string        `env:"MODL_PANEL_MODERATION_PROJECTIONS_DB_PATH"`
	Timeout           time.Duration `env:"MODL_PANEL_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		JournalDBPath:     envCfg.JournalDBPath,
		ProjectionsDBPath: envCfg.ProjectionsDBPath,
		Timeout:           envCfg.Timeout,
		WarningsCap:       25,
		OutboxLimit:       50,
	}
	if cfg.JournalDBPath == "" {
		cfg.JournalDBPath = filepath.Join("data", "moderation-events.db")
	}
	if cfg.ProjectionsDBPath == "" {
		cfg.ProjectionsDBPath = filepath.Join("data", "moderation-projections.db")
	}

	fs.StringVar(&cfg.PlayerID, "player-id", "", "player ID whose ledger to operate on")
	fs.StringVar(&cfg.PlayerIDs, "player-ids", "", "comma-separated player IDs whose ledgers to operate on")
	fs.StringVar(&cfg.PunishmentID, "punishment-id", "", "punishment ID for -project, or an export filter")
	fs.StringVar(&cfg.At, "at", "", "evaluation instant for -project, RFC 3339 (default: now)")
	fs.StringVar(&cfg.JournalDBPath, "events-db-path", cfg.JournalDBPath, "path to events sqlite database (default: MODL_PANEL_MODERATION_EVENTS_DB_PATH or data/moderation-events.db)")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db-path", cfg.ProjectionsDBPath, "path to projections sqlite database (default: MODL_PANEL_MODERATION_PROJECTIONS_DB_PATH or data/moderation-projections.db)")
	fs.Uint64Var(&cfg.UntilSeq, "until-seq", 0, "stop after this ledger sequence (0 = latest)")
	fs.Uint64Var(&cfg.AfterSeq, "after-seq", 0, "start after this ledger sequence")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "scan ledger events and validate payloads without writing anything")
	fs.BoolVar(&cfg.Validate, "validate", false, "refold the ledger into a scratch store and compare against the live read model")
	fs.BoolVar(&cfg.Integrity, "integrity", false, "recompute hash chains and signatures (whole ledger when no player is given)")
	fs.BoolVar(&cfg.Export, "export", false, "write a player's ledger history as JSON")
	fs.BoolVar(&cfg.ProjectState, "project", false, "project one punishment's state at an instant")
	fs.IntVar(&cfg.WarningsCap, "warnings-cap", cfg.WarningsCap, "max warnings to print (0 = no limit)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.BoolVar(&cfg.OutboxReport, "outbox-report", false, "report projection-apply and propagation queue depth and rows")
	fs.StringVar(&cfg.OutboxStatus, "outbox-status", "", "optional outbox status filter (pending|processing|failed|dead)")
	fs.IntVar(&cfg.OutboxLimit, "outbox-limit", cfg.OutboxLimit, "max outbox rows to print/list")
	fs.BoolVar(&cfg.OutboxRequeue, "outbox-requeue", false, "requeue one dead projection-apply outbox row")
	fs.StringVar(&cfg.OutboxRequeuePlayerID, "outbox-requeue-player-id", "", "player id for -outbox-requeue")
	fs.Uint64Var(&cfg.OutboxRequeueSeq, "outbox-requeue-seq", 0, "ledger sequence for -outbox-requeue")
	fs.BoolVar(&cfg.OutboxRequeueDead, "outbox-requeue-dead", false, "requeue a bounded batch of dead projection-apply outbox rows")
	fs.IntVar(&cfg.OutboxRequeueDeadMax, "outbox-requeue-dead-limit", 0, "max dead outbox rows to requeue (required with -outbox-requeue-dead)")
	fs.BoolVar(&cfg.PropagationRequeue, "propagation-requeue", false, "requeue one dead propagation task")
	fs.StringVar(&cfg.PropagationTaskID, "propagation-task-id", "", "task id for -propagation-requeue")
	fs.BoolVar(&cfg.PropagationRequeueDead, "propagation-requeue-dead", false, "requeue a bounded batch of dead propagation tasks")
	fs.IntVar(&cfg.PropagationRequeueDeadMax, "propagation-requeue-dead-limit", 0, "max dead propagation tasks to requeue (required with -propagation-requeue-dead)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Maintenance modes. Exactly one runs per invocation; the default with no
// mode flag is a refold of the named player ledgers into the read model.
const (
	modeRefold                 = "refold"
	modeScan                   = "scan"
	modeValidate               = "validate"
	modeIntegrity              = "integrity"
	modeExport                 = "export"
	modeProject                = "project"
	modeOutboxReport           = "outbox"
	modeOutboxRequeue          = "outbox-requeue"
	modeOutboxRequeueDead      = "outbox-requeue-dead"
	modePropagationRequeue     = "propagation-requeue"
	modePropagationRequeueDead = "propagation-requeue-dead"
)

// selectMode resolves the requested mode and rejects flag combinations that
// select more than one.
func selectMode(cfg Config) (string, error) {
	var selected []string
	pick := func(enabled bool, name string) {
		if enabled {
			selected = append(selected, name)
		}
	}
	pick(cfg.DryRun, modeScan)
	pick(cfg.Validate, modeValidate)
	pick(cfg.Integrity, modeIntegrity)
	pick(cfg.Export, modeExport)
	pick(cfg.ProjectState, modeProject)
	pick(cfg.OutboxReport, modeOutboxReport)
	pick(cfg.OutboxRequeue, modeOutboxRequeue)
	pick(cfg.OutboxRequeueDead, modeOutboxRequeueDead)
	pick(cfg.PropagationRequeue, modePropagationRequeue)
	pick(cfg.PropagationRequeueDead, modePropagationRequeueDead)

	switch len(selected) {
	case 0:
		return modeRefold, nil
	case 1:
		return selected[0], nil
	default:
		return "", fmt.Errorf("-%s cannot be combined with -%s", selected[0], selected[1])
	}
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	mode, err := selectMode(cfg)
	if err != nil {
		return err
	}

	switch mode {
	case modeOutboxReport, modeOutboxRequeue, modeOutboxRequeueDead,
		modePropagationRequeue, modePropagationRequeueDead:
		if cfg.PlayerID != "" || cfg.PlayerIDs != "" {
			return fmt.Errorf("-%s cannot be combined with -player-id or -player-ids", mode)
		}
		if cfg.AfterSeq > 0 || cfg.UntilSeq > 0 {
			return fmt.Errorf("-%s cannot be combined with -after-seq or -until-seq", mode)
		}
		if err := validateQueueArgs(mode, cfg); err != nil {
			return err
		}

		journal, err := openJournal(cfg.JournalDBPath)
		if err != nil {
			return err
		}
		defer closeStore(journal, "event journal", errOut)

		now := time.Now().UTC()
		switch mode {
		case modeOutboxReport:
			return runOutboxReport(ctx, journal, cfg.OutboxStatus, cfg.OutboxLimit, cfg.JSONOutput, out)
		case modeOutboxRequeue:
			return runOutboxRequeue(ctx, journal, cfg.OutboxRequeuePlayerID, cfg.OutboxRequeueSeq, now, cfg.JSONOutput, out)
		case modeOutboxRequeueDead:
			return runOutboxRequeueDeadRows(ctx, journal, cfg.OutboxRequeueDeadMax, now, cfg.JSONOutput, out)
		case modePropagationRequeue:
			return runPropagationRequeue(ctx, journal, cfg.PropagationTaskID, now, cfg.JSONOutput, out)
		default:
			return runPropagationRequeueDeadTasks(ctx, journal, cfg.PropagationRequeueDeadMax, now, cfg.JSONOutput, out)
		}

	case modeExport:
		if strings.TrimSpace(cfg.PlayerID) == "" || cfg.PlayerIDs != "" {
			return errors.New("-export requires exactly one -player-id")
		}
		journal, err := openJournal(cfg.JournalDBPath)
		if err != nil {
			return err
		}
		defer closeStore(journal, "event journal", errOut)
		return runExport(ctx, journal, cfg, out)

	case modeProject:
		if strings.TrimSpace(cfg.PlayerID) == "" || cfg.PlayerIDs != "" {
			return errors.New("-project requires exactly one -player-id")
		}
		if strings.TrimSpace(cfg.PunishmentID) == "" {
			return errors.New("-project requires -punishment-id")
		}
		if cfg.AfterSeq > 0 || cfg.UntilSeq > 0 {
			return errors.New("-project cannot be combined with -after-seq or -until-seq")
		}
		journal, err := openJournal(cfg.JournalDBPath)
		if err != nil {
			return err
		}
		defer closeStore(journal, "event journal", errOut)
		return runProjectState(ctx, journal, cfg, out)
	}

	// Per-player ledger modes.
	if cfg.WarningsCap < 0 {
		return errors.New("-warnings-cap must be >= 0")
	}
	if mode == modeValidate && (cfg.AfterSeq > 0 || cfg.UntilSeq > 0) {
		return errors.New("-validate refolds the full ledger; -after-seq and -until-seq cannot be combined")
	}
	if mode == modeIntegrity && (cfg.AfterSeq > 0 || cfg.UntilSeq > 0) {
		return errors.New("-integrity verifies the full chain; -after-seq and -until-seq cannot be combined")
	}
	required := mode != modeIntegrity
	if _, err := resolvePlayerIDs(cfg.PlayerID, cfg.PlayerIDs, required); err != nil {
		return err
	}

	journal, err := openJournal(cfg.JournalDBPath)
	if err != nil {
		return err
	}
	var readModel storage.ReadModelStore
	if mode == modeRefold || mode == modeValidate {
		projStore, err := openReadModel(cfg.ProjectionsDBPath)
		if err != nil {
			closeStore(journal, "event journal", errOut)
			return err
		}
		readModel = projStore
	}

	return runWithStores(ctx, cfg, mode, journal, readModel, out, errOut)
}

func validateQueueArgs(mode string, cfg Config) error {
	switch mode {
	case modeOutboxReport:
		if cfg.OutboxLimit <= 0 {
			return errors.New("-outbox-limit must be > 0")
		}
	case modeOutboxRequeue:
		if strings.TrimSpace(cfg.OutboxRequeuePlayerID) == "" {
			return errors.New("-outbox-requeue-player-id is required")
		}
		if cfg.OutboxRequeueSeq == 0 {
			return errors.New("-outbox-requeue-seq must be > 0")
		}
	case modeOutboxRequeueDead:
		if cfg.OutboxRequeueDeadMax <= 0 {
			return errors.New("-outbox-requeue-dead-limit must be > 0")
		}
	case modePropagationRequeue:
		if strings.TrimSpace(cfg.PropagationTaskID) == "" {
			return errors.New("-propagation-task-id is required")
		}
	case modePropagationRequeueDead:
		if cfg.PropagationRequeueDeadMax <= 0 {
			return errors.New("-propagation-requeue-dead-limit must be > 0")
		}
	}
	return nil
}

// runWithStores contains the per-player maintenance logic with injectable
// stores. It owns their lifecycle (closing them on return); readModel is nil
// for modes that only read the journal.
func runWithStores(ctx context.Context, cfg Config, mode string, journal storage.JournalStore, readModel storage.ReadModelStore, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		closeStore(journal, "event journal", errOut)
		if readModel != nil {
			closeStore(readModel, "read model", errOut)
		}
	}()

	ids, err := resolvePlayerIDs(cfg.PlayerID, cfg.PlayerIDs, mode != modeIntegrity)
	if err != nil {
		return err
	}

	options := runOptions{
		AfterSeq:    cfg.AfterSeq,
		UntilSeq:    cfg.UntilSeq,
		WarningsCap: cfg.WarningsCap,
		JSONOutput:  cfg.JSONOutput,
	}

	if mode == modeIntegrity && len(ids) == 0 {
		result := verifyWholeLedger(ctx, journal, options)
		emitResult(out, errOut, result, options.JSONOutput, "")
		if result.ExitCode != 0 {
			return errors.New("maintenance failed")
		}
		return nil
	}

	failed := false
	for _, id := range ids {
		result := runPlayer(ctx, mode, journal, readModel, id, options, errOut)
		prefix := ""
		if len(ids) > 1 {
			prefix = fmt.Sprintf("[%s] ", id)
		}
		emitResult(out, errOut, result, options.JSONOutput, prefix)
		if result.ExitCode != 0 {
			failed = true
		}
	}
	if failed {
		return errors.New("maintenance failed")
	}
	return nil
}

type runOptions struct {
	AfterSeq    uint64
	UntilSeq    uint64
	WarningsCap int
	JSONOutput  bool
}

type runResult struct {
	PlayerID      string          `json:"player_id,omitempty"`
	Mode          string          `json:"mode"`
	Report        json.RawMessage `json:"report,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	WarningsTotal int             `json:"warnings_total,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExitCode      int             `json:"-"`
}

type ledgerScanReport struct {
	LastSeq       uint64 `json:"last_seq"`
	TotalEvents   int    `json:"total_events"`
	Punishments   int    `json:"punishments"`
	InvalidEvents int    `json:"invalid_events"`
}

type refoldReport struct {
	LastSeq      uint64 `json:"last_seq"`
	FoldedEvents int    `json:"folded_events"`
}

type validateReport struct {
	LastSeq        uint64 `json:"last_seq"`
	FoldedEvents   int    `json:"folded_events"`
	Punishments    int    `json:"punishments"`
	Mismatches     int    `json:"mismatches"`
	MissingRecords int    `json:"missing_records"`
	ExtraRecords   int    `json:"extra_records"`
}

type chainReport struct {
	Verified bool `json:"verified"`
}

func runPlayer(ctx context.Context, mode string, journal storage.JournalStore, readModel storage.ReadModelStore, playerID string, options runOptions, errOut io.Writer) runResult {
	result := runResult{PlayerID: playerID, Mode: mode}

	switch mode {
	case modeScan:
		report, warnings, err := scanLedger(ctx, journal, playerID, options.AfterSeq, options.UntilSeq)
		result.Warnings, result.WarningsTotal = capWarnings(warnings, options.WarningsCap)
		if err != nil {
			result.Error = fmt.Sprintf("scan ledger: %v", err)
			result.ExitCode = 1
			return result
		}
		encodeReport(&result, report)
		if report.InvalidEvents > 0 {
			result.ExitCode = 1
		}
		return result

	case modeValidate:
		report, warnings, err := validatePlayerReadModel(ctx, journal, readModel, playerID, errOut)
		result.Warnings, result.WarningsTotal = capWarnings(warnings, options.WarningsCap)
		if err != nil {
			result.Error = fmt.Sprintf("validate read model: %v", err)
			result.ExitCode = 1
			return result
		}
		encodeReport(&result, report)
		if report.Mismatches > 0 || report.MissingRecords > 0 || report.ExtraRecords > 0 {
			result.ExitCode = 1
		}
		return result

	case modeIntegrity:
		report := chainReport{Verified: true}
		if err := journal.VerifyPlayerChain(ctx, playerID); err != nil {
			report.Verified = false
			result.Warnings, result.WarningsTotal = capWarnings([]string{err.Error()}, options.WarningsCap)
			result.ExitCode = 1
		}
		encodeReport(&result, report)
		return result

	default: // modeRefold
		report, err := refoldPlayer(ctx, journal, readModel, playerID, options.AfterSeq, options.UntilSeq)
		if err != nil {
			result.Error = fmt.Sprintf("refold ledger: %v", err)
			result.ExitCode = 1
			return result
		}
		encodeReport(&result, report)
		return result
	}
}

func verifyWholeLedger(ctx context.Context, journal storage.JournalStore, options runOptions) runResult {
	result := runResult{Mode: modeIntegrity}
	report := chainReport{Verified: true}
	if err := journal.VerifyLedgerIntegrity(ctx); err != nil {
		report.Verified = false
		result.Warnings, result.WarningsTotal = capWarnings([]string{err.Error()}, options.WarningsCap)
		result.ExitCode = 1
	}
	encodeReport(&result, report)
	return result
}

// scanLedger pages through a player ledger counting events and re-running
// append-time envelope validation against the registry.
func scanLedger(ctx context.Context, journal storage.LedgerStore, playerID string, afterSeq, untilSeq uint64) (ledgerScanReport, []string, error) {
	report := ledgerScanReport{LastSeq: afterSeq}
	warnings := []string{}
	if journal == nil {
		return report, warnings, errors.New("event journal is not configured")
	}
	if playerID == "" {
		return report, warnings, errors.New("player id is required")
	}
	registry := event.DefaultRegistry()
	punishments := map[string]struct{}{}

	lastSeq := afterSeq
	for {
		events, err := journal.ListEvents(ctx, playerID, lastSeq, ledgerPageSize)
		if err != nil {
			return report, warnings, err
		}
		if len(events) == 0 {
			break
		}
		for _, evt := range events {
			if untilSeq > 0 && evt.Seq > untilSeq {
				report.LastSeq = lastSeq
				report.Punishments = len(punishments)
				return report, warnings, nil
			}
			lastSeq = evt.Seq
			report.TotalEvents++
			punishments[evt.PunishmentID] = struct{}{}
			if err := validateLedgerEvent(registry, evt); err != nil {
				report.InvalidEvents++
				warnings = append(warnings, fmt.Sprintf("seq %d %s: %v", evt.Seq, evt.Type, err))
			}
		}
		if len(events) < ledgerPageSize {
			break
		}
	}
	report.LastSeq = lastSeq
	report.Punishments = len(punishments)
	return report, warnings, nil
}

// validateLedgerEvent re-checks a stored event against the append-time rules.
// Storage-assigned fields are cleared first so the check sees the same shape
// the append path did.
func validateLedgerEvent(registry *event.Registry, evt event.Event) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	stripped := evt
	stripped.Seq = 0
	stripped.PunishmentSeq = 0
	stripped.Hash = ""
	stripped.PrevHash = ""
	stripped.ChainHash = ""
	stripped.Signature = ""
	stripped.SignatureKeyID = ""
	_, err := registry.ValidateForAppend(stripped)
	return err
}

// refoldPlayer reapplies a player's ledger events to the live read model.
// Every projection write is an upsert keyed by ledger identity, so refolding
// over existing rows converges instead of duplicating.
func refoldPlayer(ctx context.Context, journal storage.JournalStore, readModel storage.ReadModelStore, playerID string, afterSeq, untilSeq uint64) (refoldReport, error) {
	report := refoldReport{LastSeq: afterSeq}
	if journal == nil {
		return report, errors.New("event journal is not configured")
	}
	if readModel == nil {
		return report, errors.New("read model store is not configured")
	}
	if playerID == "" {
		return report, errors.New("player id is required")
	}
	folder := projection.NewFolder(journal)

	lastSeq := afterSeq
	for {
		events, err := journal.ListEvents(ctx, playerID, lastSeq, ledgerPageSize)
		if err != nil {
			return report, err
		}
		if len(events) == 0 {
			break
		}
		for _, evt := range events {
			if untilSeq > 0 && evt.Seq > untilSeq {
				return finishRefold(ctx, readModel, playerID, report, lastSeq)
			}
			if err := folder.Apply(ctx, evt, readModel); err != nil {
				return report, fmt.Errorf("apply seq %d %s: %w", evt.Seq, evt.Type, err)
			}
			lastSeq = evt.Seq
			report.FoldedEvents++
		}
		if len(events) < ledgerPageSize {
			break
		}
	}
	return finishRefold(ctx, readModel, playerID, report, lastSeq)
}

// finishRefold records the refold position and bumps the fold watermark so a
// later worker pass does not look behind what maintenance already applied.
func finishRefold(ctx context.Context, readModel storage.ReadModelStore, playerID string, report refoldReport, lastSeq uint64) (refoldReport, error) {
	report.LastSeq = lastSeq
	if report.FoldedEvents == 0 {
		return report, nil
	}
	current, err := readModel.GetProjectionWatermark(ctx, playerID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
	default:
		return report, fmt.Errorf("read fold watermark: %w", err)
	}
	if current.AppliedSeq >= lastSeq {
		return report, nil
	}
	err = readModel.SaveProjectionWatermark(ctx, storage.ProjectionWatermark{
		PlayerID:   playerID,
		AppliedSeq: lastSeq,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return report, fmt.Errorf("save fold watermark: %w", err)
	}
	return report, nil
}

// validatePlayerReadModel refolds the player ledger into a scratch store and
// compares the produced rows against the live read model.
func validatePlayerReadModel(ctx context.Context, journal storage.JournalStore, live storage.ReadModelStore, playerID string, errOut io.Writer) (validateReport, []string, error) {
	report := validateReport{}
	warnings := []string{}
	if journal == nil {
		return report, warnings, errors.New("event journal is not configured")
	}
	if live == nil {
		return report, warnings, errors.New("read model store is not configured")
	}
	if playerID == "" {
		return report, warnings, errors.New("player id is required")
	}

	tmpFile, err := os.CreateTemp("", "modl-panel-validate-*.db")
	if err != nil {
		return report, warnings, fmt.Errorf("create scratch db: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return report, warnings, fmt.Errorf("close scratch db: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	scratch, err := sqlite.OpenProjections(tmpFile.Name())
	if err != nil {
		return report, warnings, fmt.Errorf("open scratch store: %w", err)
	}
	defer closeStore(scratch, "scratch store", errOut)

	return compareWithScratch(ctx, journal, live, scratch, playerID)
}

// compareWithScratch contains the testable validation logic: fold into the
// scratch store, then diff the snapshot rows of both stores.
func compareWithScratch(ctx context.Context, journal storage.JournalStore, live storage.ReadModelStore, scratch storage.ReadModelStore, playerID string) (validateReport, []string, error) {
	report := validateReport{}
	warnings := []string{}
	folder := projection.NewFolder(journal)

	var lastSeq uint64
	for {
		events, err := journal.ListEvents(ctx, playerID, lastSeq, ledgerPageSize)
		if err != nil {
			return report, warnings, err
		}
		if len(events) == 0 {
			break
		}
		for _, evt := range events {
			if err := folder.Apply(ctx, evt, scratch); err != nil {
				return report, warnings, fmt.Errorf("refold seq %d %s: %w", evt.Seq, evt.Type, err)
			}
			lastSeq = evt.Seq
			report.FoldedEvents++
		}
		if len(events) < ledgerPageSize {
			break
		}
	}
	report.LastSeq = lastSeq

	replayRows, err := scratch.ListPunishmentsByPlayer(ctx, playerID)
	if err != nil {
		return report, warnings, fmt.Errorf("list refolded punishments: %w", err)
	}
	report.Punishments = len(replayRows)
	replayIDs := map[string]struct{}{}
	for _, replay := range replayRows {
		replayIDs[replay.ID] = struct{}{}
		liveRec, err := live.GetPunishment(ctx, replay.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				report.MissingRecords++
				warnings = append(warnings, fmt.Sprintf("punishment %s missing from live read model", replay.ID))
				continue
			}
			return report, warnings, fmt.Errorf("get live punishment: %w", err)
		}
		if diffs := diffPunishmentRecords(liveRec, replay); len(diffs) > 0 {
			report.Mismatches++
			warnings = append(warnings, fmt.Sprintf("punishment %s: %s", replay.ID, strings.Join(diffs, ", ")))
		}
	}

	liveRows, err := live.ListPunishmentsByPlayer(ctx, playerID)
	if err != nil {
		return report, warnings, fmt.Errorf("list live punishments: %w", err)
	}
	for _, liveRec := range liveRows {
		if _, ok := replayIDs[liveRec.ID]; !ok {
			report.ExtraRecords++
			warnings = append(warnings, fmt.Sprintf("punishment %s exists in live read model but not in the ledger refold", liveRec.ID))
		}
	}

	return report, warnings, nil
}

// diffPunishmentRecords reports field-level differences between the live row
// and the refolded row. Both sides are deterministic functions of the ledger,
// so any difference means the read model drifted.
func diffPunishmentRecords(live, replay storage.PunishmentRecord) []string {
	var diffs []string
	add := func(field string, liveValue, replayValue any) {
		diffs = append(diffs, fmt.Sprintf("%s live=%v replay=%v", field, liveValue, replayValue))
	}
	if live.State != replay.State {
		add("state", live.State, replay.State)
	}
	if live.Version != replay.Version {
		add("version", live.Version, replay.Version)
	}
	if !equalDurationPtr(live.EffectiveDuration, replay.EffectiveDuration) {
		add("effective_duration", formatDurationPtr(live.EffectiveDuration), formatDurationPtr(replay.EffectiveDuration))
	}
	if !equalTimePtr(live.StartedAt, replay.StartedAt) {
		add("started_at", formatTimePtr(live.StartedAt), formatTimePtr(replay.StartedAt))
	}
	if !equalTimePtr(live.ExpiresAt, replay.ExpiresAt) {
		add("expires_at", formatTimePtr(live.ExpiresAt), formatTimePtr(replay.ExpiresAt))
	}
	if live.NoteCount != replay.NoteCount {
		add("note_count", live.NoteCount, replay.NoteCount)
	}
	if live.EvidenceCount != replay.EvidenceCount {
		add("evidence_count", live.EvidenceCount, replay.EvidenceCount)
	}
	return diffs
}

func equalDurationPtr(a, b *time.Duration) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func formatDurationPtr(d *time.Duration) string {
	if d == nil {
		return "permanent"
	}
	return d.String()
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.UTC().Format(time.RFC3339)
}

func resolvePlayerIDs(singleID, list string, required bool) ([]string, error) {
	if singleID == "" && list == "" {
		if required {
			return nil, errors.New("-player-id or -player-ids is required")
		}
		return nil, nil
	}
	if singleID != "" && list != "" {
		return nil, errors.New("-player-id cannot be combined with -player-ids")
	}
	if singleID != "" {
		return []string{singleID}, nil
	}
	ids := splitCSV(list)
	if len(ids) == 0 {
		return nil, errors.New("-player-ids must contain at least one player id")
	}
	return ids, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	output := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		output = append(output, trimmed)
	}
	return output
}

func capWarnings(warnings []string, limit int) ([]string, int) {
	total := len(warnings)
	if limit == 0 || total <= limit {
		return warnings, total
	}
	return warnings[:limit], total
}

func encodeReport(result *runResult, report any) {
	payload, err := json.Marshal(report)
	if err != nil {
		result.Error = fmt.Sprintf("encode report: %v", err)
		result.ExitCode = 1
		return
	}
	result.Report = payload
}

func emitResult(out io.Writer, errOut io.Writer, result runResult, jsonOutput bool, prefix string) {
	if jsonOutput {
		encoded, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(errOut, "Error: encode report: %v\n", err)
			return
		}
		fmt.Fprintln(out, string(encoded))
		return
	}
	printResult(out, errOut, result, prefix)
}

func printResult(out io.Writer, errOut io.Writer, result runResult, prefix string) {
	if result.Error != "" {
		fmt.Fprintf(errOut, "%sError: %s\n", prefix, result.Error)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(errOut, "%sWarning: %s\n", prefix, warning)
	}
	if result.WarningsTotal > len(result.Warnings) {
		fmt.Fprintf(errOut, "%sWarning: %d more warnings suppressed\n", prefix, result.WarningsTotal-len(result.Warnings))
	}
	if len(result.Report) == 0 {
		return
	}

	switch result.Mode {
	case modeScan:
		var report ledgerScanReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sScanned ledger for player %s through seq %d (%d events, %d punishments, %d invalid)\n",
			prefix, result.PlayerID, report.LastSeq, report.TotalEvents, report.Punishments, report.InvalidEvents)
	case modeValidate:
		var report validateReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sValidated read model for player %s through seq %d (%d punishments, %d mismatches, %d missing, %d extra)\n",
			prefix, result.PlayerID, report.LastSeq, report.Punishments, report.Mismatches, report.MissingRecords, report.ExtraRecords)
	case modeIntegrity:
		var report chainReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		status := "OK"
		if !report.Verified {
			status = "BROKEN"
		}
		if result.PlayerID == "" {
			fmt.Fprintf(out, "%sLedger chain (all players): %s\n", prefix, status)
		} else {
			fmt.Fprintf(out, "%sLedger chain for player %s: %s\n", prefix, result.PlayerID, status)
		}
	default:
		var report refoldReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sRefolded ledger for player %s through seq %d (%d events)\n",
			prefix, result.PlayerID, report.LastSeq, report.FoldedEvents)
	}
}

func openJournal(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, errors.New("events db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.OpenJournal(cleanPath, keyring, event.DefaultRegistry())
	if err != nil {
		return nil, fmt.Errorf("open event journal: %w", err)
	}
	return store, nil
}

func openReadModel(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, errors.New("projections db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.OpenProjections(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open projections store: %w", err)
	}
	return store, nil
}

func closeStore(store io.Closer, name string, errOut io.Writer) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil && errOut != nil {
		fmt.Fprintf(errOut, "Error: close %s: %v\n", name, err)
	}
}

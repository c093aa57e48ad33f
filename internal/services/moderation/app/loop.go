package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/projection"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/service"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultBatchSize     = 16
	defaultMaxAttempts   = 8
	defaultRetryBackoff  = time.Second
	defaultRetryMaxDelay = 5 * time.Minute
)

// Config controls loop cadence and the propagation retry policy.
type Config struct {
	// PollInterval is the pause between drain passes.
	PollInterval time.Duration
	// BatchSize caps rows claimed from each outbox per pass.
	BatchSize int
	// MaxAttempts dead-letters a propagation task after this many failed
	// deliveries.
	MaxAttempts int
	// RetryBackoff is the delay before the second delivery attempt; it
	// doubles per attempt up to RetryMaxDelay.
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	return c
}

// Modifier applies punishment modifications. *service.Service satisfies it.
type Modifier interface {
	Modify(ctx context.Context, req service.ModifyRequest) (punishment.Punishment, error)
}

// Journal is the slice of the event store the loop drains: leased propagation
// tasks and the projection-apply outbox.
type Journal interface {
	ClaimDuePropagationTasks(ctx context.Context, now time.Time, limit int) ([]storage.ClaimedPropagationTask, error)
	CompletePropagationTask(ctx context.Context, taskID string) error
	MarkPropagationTaskFailed(ctx context.Context, failure storage.PropagationTaskFailure, now time.Time) error
	ProcessProjectionApplyOutbox(ctx context.Context, now time.Time, limit int, apply func(context.Context, event.Event) error) (int, error)
}

// ReadModel is the checkpointed projection target the fold writes to.
type ReadModel interface {
	ApplyEventExactlyOnce(ctx context.Context, consumer string, evt event.Event, apply func(context.Context, event.Event, storage.ProjectionStore) error) (bool, error)
	GetProjectionWatermark(ctx context.Context, playerID string) (storage.ProjectionWatermark, error)
	SaveProjectionWatermark(ctx context.Context, wm storage.ProjectionWatermark) error
}

// LoopConfig wires the loop's collaborators.
type LoopConfig struct {
	Modifier  Modifier
	Journal   Journal
	ReadModel ReadModel
	Folder    *projection.Folder
	// Audit receives delivery and dead-letter rows. Nil disables audit writes.
	Audit *audit.Emitter
	// SystemIssuerID is the directory identity propagated pardons are issued
	// under. Defaults to "system".
	SystemIssuerID string
	Config         Config
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Logf defaults to log.Printf.
	Logf func(string, ...any)
}

// Loop drains the propagation and projection-apply outboxes.
type Loop struct {
	modifier       Modifier
	journal        Journal
	readModel      ReadModel
	folder         *projection.Folder
	audit          *audit.Emitter
	systemIssuerID string
	cfg            Config
	clock          func() time.Time
	logf           func(string, ...any)
}

// NewLoop builds the outbox loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Modifier == nil {
		return nil, fmt.Errorf("modifier is required")
	}
	if cfg.Journal == nil {
		return nil, fmt.Errorf("journal store is required")
	}
	if cfg.ReadModel == nil {
		return nil, fmt.Errorf("read-model store is required")
	}
	if cfg.Folder == nil {
		return nil, fmt.Errorf("projection folder is required")
	}
	loop := &Loop{
		modifier:       cfg.Modifier,
		journal:        cfg.Journal,
		readModel:      cfg.ReadModel,
		folder:         cfg.Folder,
		audit:          cfg.Audit,
		systemIssuerID: cfg.SystemIssuerID,
		cfg:            cfg.Config.normalized(),
		clock:          cfg.Clock,
		logf:           cfg.Logf,
	}
	if loop.systemIssuerID == "" {
		loop.systemIssuerID = defaultSystemIssuerID
	}
	if loop.clock == nil {
		loop.clock = time.Now
	}
	if loop.logf == nil {
		loop.logf = log.Printf
	}
	return loop, nil
}

// Run drains both outboxes until the context ends. Cancellation is the
// normal shutdown path and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	l.logf("outbox loop started (poll %s, batch %d)", l.cfg.PollInterval, l.cfg.BatchSize)
	for {
		l.runOnce(ctx)
		select {
		case <-ctx.Done():
			l.logf("outbox loop stopped: %v", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// runOnce drains one batch from each outbox. Propagations run first so the
// projection pass in the same tick picks up the events they append.
func (l *Loop) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	l.deliverPropagations(ctx)
	l.applyProjections(ctx)
}

func (l *Loop) deliverPropagations(ctx context.Context) {
	tasks, err := l.journal.ClaimDuePropagationTasks(ctx, l.clock().UTC(), l.cfg.BatchSize)
	if err != nil {
		l.logf("claim propagation tasks: %v", err)
		return
	}
	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		l.deliver(ctx, task)
	}
}

// deliver applies one leased task through the service facade. A redelivered
// pardon is absorbed by the engine as a no-op success, so completing after a
// crash-induced reclaim stays safe.
func (l *Loop) deliver(ctx context.Context, task storage.ClaimedPropagationTask) {
	if task.Action != storage.PropagationActionPardon {
		l.fail(ctx, task, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("unsupported propagation action %q", task.Action)))
		return
	}

	reason := task.Reason
	if reason == "" {
		reason = fmt.Sprintf("pardon propagated from punishment %s", task.SourcePunishmentID)
	}
	_, err := l.modifier.Modify(ctx, service.ModifyRequest{
		PlayerID:            task.PlayerID,
		PunishmentID:        task.PunishmentID,
		Type:                punishment.ModificationManualPardon,
		IssuerID:            l.systemIssuerID,
		Reason:              reason,
		SourcePropagationID: task.ID,
	})
	if err != nil {
		l.fail(ctx, task, err)
		return
	}

	if err := l.journal.CompletePropagationTask(ctx, task.ID); err != nil {
		l.logf("complete propagation task %s: %v", task.ID, err)
		return
	}
	l.emitAudit(ctx, storage.AuditEvent{
		Severity:     string(audit.SeverityInfo),
		Action:       audit.ActionPropagationDelivered,
		ActorType:    string(event.ActorTypeSystem),
		ActorID:      l.systemIssuerID,
		PlayerID:     task.PlayerID,
		PunishmentID: task.PunishmentID,
		Attributes: map[string]any{
			"task_id":           task.ID,
			"source_player":     task.SourcePlayerID,
			"source_punishment": task.SourcePunishmentID,
			"attempt":           task.AttemptCount + 1,
		},
	})
}

func (l *Loop) fail(ctx context.Context, task storage.ClaimedPropagationTask, cause error) {
	attempt := task.AttemptCount + 1
	dead := attempt >= l.cfg.MaxAttempts || !retryableDelivery(cause)
	now := l.clock().UTC()

	failure := storage.PropagationTaskFailure{
		TaskID:        task.ID,
		Attempt:       attempt,
		NextAttemptAt: now.Add(retryDelay(l.cfg.RetryBackoff, l.cfg.RetryMaxDelay, attempt)),
		LastError:     cause.Error(),
		Dead:          dead,
	}
	if err := l.journal.MarkPropagationTaskFailed(ctx, failure, now); err != nil {
		l.logf("mark propagation task %s failed: %v", task.ID, err)
		return
	}
	if !dead {
		l.logf("propagation task %s attempt %d failed, retry scheduled: %v", task.ID, attempt, cause)
		return
	}

	l.logf("propagation task %s dead-lettered after attempt %d: %v", task.ID, attempt, cause)
	l.emitAudit(ctx, storage.AuditEvent{
		Severity:     string(audit.SeverityError),
		Action:       audit.ActionPropagationDeadLettered,
		ActorType:    string(event.ActorTypeSystem),
		ActorID:      l.systemIssuerID,
		PlayerID:     task.PlayerID,
		PunishmentID: task.PunishmentID,
		Attributes: map[string]any{
			"task_id":  task.ID,
			"attempts": attempt,
			"error":    cause.Error(),
		},
	})
}

func (l *Loop) applyProjections(ctx context.Context) {
	processed, err := l.journal.ProcessProjectionApplyOutbox(ctx, l.clock().UTC(), l.cfg.BatchSize, l.applyProjectionEvent)
	if err != nil {
		l.logf("process projection outbox: %v", err)
		return
	}
	if processed > 0 {
		l.logf("applied %d projection outbox rows", processed)
	}
}

// applyProjectionEvent folds one ledger event into the read model exactly
// once, then advances the player watermark.
func (l *Loop) applyProjectionEvent(ctx context.Context, evt event.Event) error {
	if _, err := l.readModel.ApplyEventExactlyOnce(ctx, projection.Consumer, evt, l.folder.Apply); err != nil {
		return err
	}
	return l.advanceWatermark(ctx, evt)
}

func (l *Loop) advanceWatermark(ctx context.Context, evt event.Event) error {
	current, err := l.readModel.GetProjectionWatermark(ctx, evt.PlayerID)
	switch {
	case err == nil:
		if current.AppliedSeq >= evt.Seq {
			return nil
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("load projection watermark for %s: %w", evt.PlayerID, err)
	}
	return l.readModel.SaveProjectionWatermark(ctx, storage.ProjectionWatermark{
		PlayerID:   evt.PlayerID,
		AppliedSeq: evt.Seq,
		UpdatedAt:  l.clock().UTC(),
	})
}

func (l *Loop) emitAudit(ctx context.Context, evt storage.AuditEvent) {
	_ = l.audit.Emit(ctx, evt)
}

// retryableDelivery reports whether a delivery error can succeed on a later
// attempt. Caller-fault codes dead-letter immediately instead of burning the
// retry budget.
func retryableDelivery(err error) bool {
	for _, code := range []apperrors.Code{
		apperrors.CodeValidation,
		apperrors.CodeNotFound,
		apperrors.CodeUnauthorizedIssuer,
		apperrors.CodeInvalidModificationOrder,
	} {
		if apperrors.IsCode(err, code) {
			return false
		}
	}
	return true
}

// retryDelay doubles from base per attempt, capped at max.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return base
	}
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}
	delay := base << shift
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}

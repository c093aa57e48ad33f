package storage

import (
	"context"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity" states
// and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// PunishmentRecord captures the resolved punishment snapshot that panel read
// views consume. It is derived from the ledger by the projection folder and
// never written directly by command paths.
type PunishmentRecord struct {
	ID                 string
	PlayerID           string
	Type               punishment.Type
	State              punishment.State
	Reason             string
	Severity           punishment.Severity
	OffenseLevel       punishment.OffenseLevel
	IssuedBy           string
	IssuedAt           time.Time
	StartedAt          *time.Time
	EffectiveDuration  *time.Duration
	ExpiresAt          *time.Time
	Version            uint64
	AltBlocking        bool
	StatWiping         bool
	Silent             bool
	KickSameIP         bool
	BanLinkedAccounts  bool
	LinkedPunishmentID string
	NoteCount          int
	EvidenceCount      int
	UpdatedAt          time.Time
}

// ModificationRecord captures one ordered history row for a punishment.
// Ordinal is the punishment sequence of the ledger event that produced it.
type ModificationRecord struct {
	PunishmentID        string
	Ordinal             uint64
	ModificationID      string
	Type                punishment.ModificationType
	IssuedAt            time.Time
	IssuerID            string
	Reason              string
	EffectiveDuration   *time.Duration
	SourceAppealID      string
	SourcePropagationID string
	RollbackBatchID     string
}

// NoteRecord captures an append-only staff or system note.
type NoteRecord struct {
	ID             string
	PunishmentID   string
	PlayerID       string
	AuthorID       string
	Text           string
	SourceAppealID string
	CreatedAt      time.Time
}

// EvidenceRecord captures an append-only evidence reference.
type EvidenceRecord struct {
	ID           string
	PunishmentID string
	PlayerID     string
	AuthorID     string
	URL          string
	Caption      string
	AddedAt      time.Time
}

// PlayerIndexRecord aggregates per-player punishment counts for panel lookups.
type PlayerIndexRecord struct {
	PlayerID     string
	TotalCount   int
	ActiveCount  int
	LastIssuedAt *time.Time
	UpdatedAt    time.Time
}

// PunishmentPage describes a page of punishment records.
type PunishmentPage struct {
	Punishments   []PunishmentRecord
	NextPageToken string
}

// PropagationAction names the operation a propagation task performs against a
// linked punishment.
type PropagationAction string

const (
	// PropagationActionPardon propagates a pardon to a linked-ban punishment.
	PropagationActionPardon PropagationAction = "pardon"
)

// PropagationTask describes one linked-punishment side effect to deliver.
// Tasks are enqueued in the same transaction as the ledger event that caused
// them and retried independently of the originating request.
type PropagationTask struct {
	ID                 string
	PlayerID           string
	PunishmentID       string
	SourcePlayerID     string
	SourcePunishmentID string
	Action             PropagationAction
	Reason             string
}

// ClaimedPropagationTask is a task leased to a worker, with the retry state
// the worker needs to compute the next attempt.
type ClaimedPropagationTask struct {
	PropagationTask
	SourceSeq    uint64
	AttemptCount int
}

// PropagationTaskFailure records the outcome of a failed delivery attempt.
type PropagationTaskFailure struct {
	TaskID        string
	Attempt       int
	NextAttemptAt time.Time
	LastError     string
	Dead          bool
}

// PropagationOutboxSummary reports propagation queue depth and the oldest
// retry-eligible task.
type PropagationOutboxSummary struct {
	PendingCount    int
	ProcessingCount int
	FailedCount     int
	DeadCount       int
	OldestPendingID string
	OldestPendingAt time.Time
}

// PropagationOutboxEntry describes one propagation task row for inspection
// tooling.
type PropagationOutboxEntry struct {
	PropagationTask
	SourceSeq     uint64
	Status        string
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	UpdatedAt     time.Time
}

// ProjectionApplyOutboxSummary reports projection-apply queue depth and the
// oldest retry-eligible row.
type ProjectionApplyOutboxSummary struct {
	PendingCount          int
	ProcessingCount       int
	FailedCount           int
	DeadCount             int
	OldestPendingPlayerID string
	OldestPendingSeq      uint64
	OldestPendingAt       time.Time
}

// ProjectionApplyOutboxEntry describes one projection-apply outbox row for
// inspection tooling.
type ProjectionApplyOutboxEntry struct {
	PlayerID      string
	Seq           uint64
	EventType     event.Type
	Status        string
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	UpdatedAt     time.Time
}

// ProjectionWatermark tracks how far a player ledger has been folded into the
// read model. Maintenance tooling compares it against the journal head.
type ProjectionWatermark struct {
	PlayerID   string
	AppliedSeq uint64
	UpdatedAt  time.Time
}

// AppendEventRequest carries an event append together with its concurrency
// expectation and the side effects that must land in the same transaction.
type AppendEventRequest struct {
	Event event.Event
	// ExpectedPunishmentSeq is the punishment sequence the caller last
	// observed; the append is assigned ExpectedPunishmentSeq+1. Issuance
	// passes 0. A stale value fails with CodeConcurrentModification unless
	// the append replays an already-stored identical event.
	ExpectedPunishmentSeq uint64
	// PropagationTasks are enqueued atomically with the event.
	PropagationTasks []PropagationTask
}

// ListEventsPageRequest describes request filters for operator and panel
// history views.
type ListEventsPageRequest struct {
	// PlayerID scopes the query to one player ledger; empty spans all players.
	PlayerID string
	// PageSize is the maximum number of events to return (default: 50, max: 200).
	PageSize int
	// AfterRowID is the storage row id to paginate from (0 for the first page).
	AfterRowID int64
	// Descending orders results newest-first when true.
	Descending bool
	// FilterClause is an optional SQL WHERE clause fragment.
	FilterClause string
	// FilterParams are the positional parameters for the filter clause.
	FilterParams []any
}

// ListEventsPageResult contains paginated ledger history.
type ListEventsPageResult struct {
	// Events are the events matching the request.
	Events []event.Event
	// RowIDs align with Events and carry the cursor for the next page.
	RowIDs []int64
	// HasNextPage indicates whether more results exist past this page.
	HasNextPage bool
	// TotalCount is the total number of events matching the filter.
	TotalCount int
}

// AuditEvent captures an operational observation emitted around command
// execution, grant verification, and propagation delivery.
type AuditEvent struct {
	Timestamp      time.Time
	Severity       string
	Action         string
	ActorType      string
	ActorID        string
	PlayerID       string
	PunishmentID   string
	AppealID       string
	RequestID      string
	TraceID        string
	SpanID         string
	Attributes     map[string]any
	AttributesJSON []byte
}

// LedgerStore owns the append-only punishment journal; this is the source of
// truth for state reconstruction.
type LedgerStore interface {
	// AppendEvent atomically appends an event and returns it with sequence,
	// hash, and signature fields assigned.
	AppendEvent(ctx context.Context, req AppendEventRequest) (event.Event, error)
	// GetEventByHash retrieves an event by its content hash.
	GetEventByHash(ctx context.Context, hash string) (event.Event, error)
	// GetEventBySeq retrieves a specific event by ledger sequence number.
	GetEventBySeq(ctx context.Context, playerID string, seq uint64) (event.Event, error)
	// ListEvents returns events ordered by sequence ascending.
	ListEvents(ctx context.Context, playerID string, afterSeq uint64, limit int) ([]event.Event, error)
	// ListEventsByPunishment returns events addressing a specific punishment.
	ListEventsByPunishment(ctx context.Context, playerID, punishmentID string, afterSeq uint64, limit int) ([]event.Event, error)
	// GetLatestSeq returns the latest ledger sequence number for a player.
	// Returns 0 if no events exist.
	GetLatestSeq(ctx context.Context, playerID string) (uint64, error)
	// GetLatestPunishmentSeq returns the latest punishment sequence for a
	// punishment, which doubles as its optimistic-concurrency version.
	// Returns 0 if no events exist.
	GetLatestPunishmentSeq(ctx context.Context, punishmentID string) (uint64, error)
	// ListEventsPage returns a paginated, filtered, and sorted ledger page.
	ListEventsPage(ctx context.Context, req ListEventsPageRequest) (ListEventsPageResult, error)
	// VerifyPlayerChain recomputes hashes and signatures for a player ledger.
	VerifyPlayerChain(ctx context.Context, playerID string) error
	// VerifyLedgerIntegrity validates the event chain and signatures for all
	// player ledgers.
	VerifyLedgerIntegrity(ctx context.Context) error
}

// ApplyOutboxStore owns the projection-apply outbox rows enqueued with ledger
// appends and consumed by fold workers.
type ApplyOutboxStore interface {
	// ProcessProjectionApplyOutbox claims due rows and applies them through
	// the callback. Successful rows are removed; failures are retried with
	// backoff and dead-lettered past the attempt threshold.
	ProcessProjectionApplyOutbox(ctx context.Context, now time.Time, limit int, apply func(context.Context, event.Event) error) (int, error)
	// GetProjectionApplyOutboxSummary returns queue depth by status.
	GetProjectionApplyOutboxSummary(ctx context.Context) (ProjectionApplyOutboxSummary, error)
	// ListProjectionApplyOutboxRows lists rows optionally filtered by status.
	ListProjectionApplyOutboxRows(ctx context.Context, status string, limit int) ([]ProjectionApplyOutboxEntry, error)
	// RequeueProjectionApplyOutboxRow transitions one dead row back to pending.
	RequeueProjectionApplyOutboxRow(ctx context.Context, playerID string, seq uint64, now time.Time) (bool, error)
	// RequeueProjectionApplyOutboxDeadRows requeues up to limit dead rows in
	// deterministic retry order.
	RequeueProjectionApplyOutboxDeadRows(ctx context.Context, limit int, now time.Time) (int, error)
}

// PropagationStore owns linked-punishment side-effect tasks and their retry
// lifecycle.
type PropagationStore interface {
	// EnqueuePropagationTasks adds tasks outside an append transaction.
	// Enqueueing the same task id twice is a no-op.
	EnqueuePropagationTasks(ctx context.Context, tasks []PropagationTask, now time.Time) error
	// ClaimDuePropagationTasks leases due tasks to the calling worker.
	ClaimDuePropagationTasks(ctx context.Context, now time.Time, limit int) ([]ClaimedPropagationTask, error)
	// CompletePropagationTask removes a delivered task.
	CompletePropagationTask(ctx context.Context, taskID string) error
	// MarkPropagationTaskFailed schedules a retry or dead-letters the task.
	MarkPropagationTaskFailed(ctx context.Context, failure PropagationTaskFailure, now time.Time) error
	// RequeuePropagationTask transitions one dead task back to pending.
	RequeuePropagationTask(ctx context.Context, taskID string, now time.Time) (bool, error)
	// RequeueDeadPropagationTasks requeues up to limit dead tasks.
	RequeueDeadPropagationTasks(ctx context.Context, limit int, now time.Time) (int, error)
	// GetPropagationOutboxSummary returns queue depth by status.
	GetPropagationOutboxSummary(ctx context.Context) (PropagationOutboxSummary, error)
	// ListPropagationTasks lists task rows optionally filtered by status.
	ListPropagationTasks(ctx context.Context, status string, limit int) ([]PropagationOutboxEntry, error)
}

// ProjectionStore owns the read-model rows consumed by panel queries.
type ProjectionStore interface {
	PutPunishment(ctx context.Context, rec PunishmentRecord) error
	GetPunishment(ctx context.Context, punishmentID string) (PunishmentRecord, error)
	// ListPunishmentsByPlayer returns all punishments for a player ordered by
	// issuance time.
	ListPunishmentsByPlayer(ctx context.Context, playerID string) ([]PunishmentRecord, error)
	// ListPunishments returns a page of punishment records starting after the
	// page token.
	ListPunishments(ctx context.Context, pageSize int, pageToken string) (PunishmentPage, error)
	PutModification(ctx context.Context, rec ModificationRecord) error
	// ListModifications returns modification rows ordered by ordinal.
	ListModifications(ctx context.Context, punishmentID string) ([]ModificationRecord, error)
	PutNote(ctx context.Context, rec NoteRecord) error
	ListNotes(ctx context.Context, punishmentID string) ([]NoteRecord, error)
	PutEvidence(ctx context.Context, rec EvidenceRecord) error
	ListEvidence(ctx context.Context, punishmentID string) ([]EvidenceRecord, error)
	GetPlayerIndex(ctx context.Context, playerID string) (PlayerIndexRecord, error)
	PutPlayerIndex(ctx context.Context, rec PlayerIndexRecord) error
}

// CheckpointStore guarantees exactly-once projection application per
// (consumer, player, sequence).
type CheckpointStore interface {
	// ApplyEventExactlyOnce runs apply inside one read-model transaction and
	// records a checkpoint to dedupe retries. The ProjectionStore handed to
	// apply is bound to that transaction. The boolean reports whether apply
	// ran; false means the checkpoint already existed.
	ApplyEventExactlyOnce(ctx context.Context, consumer string, evt event.Event, apply func(context.Context, event.Event, ProjectionStore) error) (bool, error)
	// GetProjectionWatermark returns the fold watermark for a player.
	// Returns ErrNotFound if no watermark exists.
	GetProjectionWatermark(ctx context.Context, playerID string) (ProjectionWatermark, error)
	// SaveProjectionWatermark upserts the fold watermark for a player.
	SaveProjectionWatermark(ctx context.Context, wm ProjectionWatermark) error
	// ListProjectionWatermarks returns all watermarks ordered by player id.
	ListProjectionWatermarks(ctx context.Context) ([]ProjectionWatermark, error)
}

// AuditStore persists operational audit records for incident analysis.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, evt AuditEvent) error
	// ListAuditEvents returns recent audit rows for a punishment, newest first.
	ListAuditEvents(ctx context.Context, punishmentID string, limit int) ([]AuditEvent, error)
}

// JournalStore is the composite persistence surface of the events database.
type JournalStore interface {
	LedgerStore
	ApplyOutboxStore
	PropagationStore
	Close() error
}

// ReadModelStore is the composite persistence surface of the projections
// database.
type ReadModelStore interface {
	ProjectionStore
	CheckpointStore
	AuditStore
	Close() error
}

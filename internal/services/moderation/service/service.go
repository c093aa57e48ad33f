package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/platform/id"
	"github.com/bongbong-com/modl-panel-sub005/internal/platform/requestctx"
	"github.com/bongbong-com/modl-panel-sub005/internal/platform/timeouts"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/appeal"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// Service exposes the punishment lifecycle engine.
type Service struct {
	journal     storage.LedgerStore
	directory   issuer.Directory
	grants      appeal.DecisionGrantConfig
	audit       *audit.Emitter
	clock       func() time.Time
	idGenerator func() (string, error)
}

// Config wires the engine's collaborators.
type Config struct {
	// Journal is the append-only punishment ledger.
	Journal storage.LedgerStore
	// Directory resolves issuer identities to roles.
	Directory issuer.Directory
	// Grants configures appeal decision grant verification. The zero value
	// rejects every grant.
	Grants appeal.DecisionGrantConfig
	// Audit receives operational audit rows. Nil disables audit writes.
	Audit *audit.Emitter
	// Clock defaults to time.Now.
	Clock func() time.Time
	// IDGenerator defaults to the platform id generator.
	IDGenerator func() (string, error)
}

// New creates the engine facade.
func New(cfg Config) (*Service, error) {
	if cfg.Journal == nil {
		return nil, fmt.Errorf("journal store is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("issuer directory is required")
	}
	svc := &Service{
		journal:     cfg.Journal,
		directory:   cfg.Directory,
		grants:      cfg.Grants,
		audit:       cfg.Audit,
		clock:       cfg.Clock,
		idGenerator: cfg.IDGenerator,
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.idGenerator == nil {
		svc.idGenerator = id.NewID
	}
	return svc, nil
}

// resolveIssuer looks up the acting issuer under the dependency-call bound.
// Authorization failures pass through unchanged; infrastructure failures
// surface as DEPENDENCY_UNAVAILABLE, never as denials.
func (s *Service) resolveIssuer(ctx context.Context, issuerID string) (issuer.Issuer, error) {
	issuerID = strings.TrimSpace(issuerID)
	if issuerID == "" {
		return issuer.Issuer{}, apperrors.New(apperrors.CodeValidation, "issuer id is required")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeouts.DependencyCall)
	defer cancel()

	entry, err := s.directory.GetIssuer(lookupCtx, issuerID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeUnauthorizedIssuer) {
			return issuer.Issuer{}, err
		}
		return issuer.Issuer{}, apperrors.Wrap(apperrors.CodeDependencyUnavailable,
			fmt.Sprintf("resolve issuer %s", issuerID), err)
	}
	return entry, nil
}

// authorize checks the policy table and audits denials. Denials are
// security-relevant and recorded even when the command never reaches the
// ledger.
func (s *Service) authorize(ctx context.Context, entry issuer.Issuer, capability issuer.Capability, command string, scope auditScope) error {
	decision := issuer.Can(entry, capability)
	if decision.Allowed {
		return nil
	}

	s.emitAudit(ctx, storage.AuditEvent{
		Severity:     string(audit.SeverityWarn),
		Action:       audit.ActionCommandDenied,
		ActorType:    string(actorTypeForRole(entry.Role)),
		ActorID:      entry.ID,
		PlayerID:     scope.PlayerID,
		PunishmentID: scope.PunishmentID,
		AppealID:     scope.AppealID,
		Attributes: map[string]any{
			"command": command,
			"role":    issuer.RoleLabel(entry.Role),
			"reason":  decision.ReasonCode,
		},
	})

	return apperrors.WithMetadata(apperrors.CodeUnauthorizedIssuer,
		fmt.Sprintf("issuer %s may not %s", entry.ID, command),
		map[string]string{"Issuer": entry.ID, "Reason": decision.ReasonCode})
}

// auditScope carries the identifiers an audit row attaches to.
type auditScope struct {
	PlayerID     string
	PunishmentID string
	AppealID     string
}

// emitAudit writes one audit row. Audit failures never fail a command that
// the ledger already accepted or is about to judge on its own terms, but
// they are logged so a broken audit sink is visible.
func (s *Service) emitAudit(ctx context.Context, evt storage.AuditEvent) {
	if evt.RequestID == "" {
		evt.RequestID = requestctx.RequestIDFromContext(ctx)
	}
	if err := s.audit.Emit(ctx, evt); err != nil {
		log.Printf("[MODERATION] audit emit %s: %v", evt.Action, err)
	}
}

// appendEvent marshals the payload and appends one ledger event together
// with any propagation tasks, all in the journal's transaction.
func (s *Service) appendEvent(ctx context.Context, evt event.Event, expectedSeq uint64, payload any, tasks []storage.PropagationTask) (event.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("encode %s payload: %w", evt.Type, err)
	}
	evt.PayloadJSON = raw
	if evt.RequestID == "" {
		evt.RequestID = requestctx.RequestIDFromContext(ctx)
	}

	return s.journal.AppendEvent(ctx, storage.AppendEventRequest{
		Event:                 evt,
		ExpectedPunishmentSeq: expectedSeq,
		PropagationTasks:      tasks,
	})
}

// actorTypeForRole maps the issuer role to the ledger actor taxonomy.
func actorTypeForRole(role issuer.Role) event.ActorType {
	switch role {
	case issuer.RoleSystem:
		return event.ActorTypeSystem
	case issuer.RoleAppealsService:
		return event.ActorTypeAppeals
	default:
		return event.ActorTypeStaff
	}
}

// checkExpectedVersion fast-fails a stale optimistic-concurrency token
// before domain validation runs. Without this check a concurrent pardon
// could absorb a retried pardon as a no-op success when the caller deserves
// a conflict.
func checkExpectedVersion(folded punishment.Punishment, expected uint64) error {
	if expected == 0 || expected == folded.Version {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeConcurrentModification,
		fmt.Sprintf("punishment %s is at version %d, expected %d", folded.ID, folded.Version, expected),
		map[string]string{
			"PunishmentID": folded.ID,
			"Current":      fmt.Sprintf("%d", folded.Version),
			"Expected":     fmt.Sprintf("%d", expected),
		})
}

package punishment

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
)

// State is the effective lifecycle state of a punishment at an evaluation
// time. It is always derived through Project, never stored as authority.
type State int

const (
	// StateUnspecified represents an invalid state value.
	StateUnspecified State = iota
	// StatePending indicates the punishment was issued but has not started.
	StatePending
	// StateActive indicates the punishment is in effect.
	StateActive
	// StateExpired indicates the punishment ran out or was instant.
	StateExpired
	// StatePardoned indicates a pardon override is in effect.
	StatePardoned
	// StateRolledBack indicates a rollback override is in effect.
	StateRolledBack
)

// Project derives the effective state at the evaluation time. It is a pure
// function of the issuance, the modifications issued at or before the
// evaluation time, and the time itself: identical inputs always produce
// identical output, and evaluating a past instant is unaffected by later
// modifications.
func Project(issuance Punishment, modifications []Modification, at time.Time) State {
	// Status overrides take priority over everything else. Later overrides
	// replace earlier ones; a restore clears whatever override is in effect.
	override := StateUnspecified
	for _, modification := range modifications {
		if modification.IssuedAt.After(at) {
			continue
		}
		switch {
		case IsPardonModification(modification.Type):
			override = StatePardoned
		case modification.Type == ModificationRollback:
			override = StateRolledBack
		case modification.Type == ModificationManualRestore:
			override = StateUnspecified
		}
	}
	if override != StateUnspecified {
		return override
	}

	if issuance.StartedAt == nil || at.Before(*issuance.StartedAt) {
		return StatePending
	}

	if profile, err := ProfileFor(issuance.Type); err == nil && profile.Instant {
		return StateExpired
	}

	resolution := ResolveDurationAt(issuance, modifications, at)
	expiry, expires := resolution.ExpiresAt()
	if !expires || at.Before(expiry) {
		return StateActive
	}
	return StateExpired
}

// TransitionPunishmentState guards read-model state writes: every transition
// a fold over the ledger can legitimately produce is allowed, anything else
// is a fold bug.
func TransitionPunishmentState(from, to State) error {
	if to == StateUnspecified {
		return apperrors.WithMetadata(
			apperrors.CodePunishmentInvalidStateTransition,
			fmt.Sprintf("punishment state cannot transition from %s to %s", StateLabel(from), StateLabel(to)),
			map[string]string{"From": StateLabel(from), "To": StateLabel(to)},
		)
	}
	if from == to {
		return nil
	}

	allowed := false
	switch from {
	case StateUnspecified:
		// First fold of a punishment. Applies can arrive out of ledger
		// order, so any projector state can land first.
		allowed = true
	case StatePending:
		allowed = to == StateActive || to == StateExpired || to == StatePardoned || to == StateRolledBack
	case StateActive:
		allowed = to == StateExpired || to == StatePardoned || to == StateRolledBack
	case StateExpired:
		// A duration change can push expiry past the evaluation time.
		allowed = to == StateActive || to == StatePardoned || to == StateRolledBack
	case StatePardoned:
		allowed = to == StatePending || to == StateActive || to == StateExpired || to == StateRolledBack
	case StateRolledBack:
		allowed = to == StatePending || to == StateActive || to == StateExpired || to == StatePardoned
	}

	if !allowed {
		return apperrors.WithMetadata(
			apperrors.CodePunishmentInvalidStateTransition,
			fmt.Sprintf("punishment state cannot transition from %s to %s", StateLabel(from), StateLabel(to)),
			map[string]string{"From": StateLabel(from), "To": StateLabel(to)},
		)
	}
	return nil
}

// StateLabel returns a stable label for a punishment state.
func StateLabel(state State) string {
	switch state {
	case StatePending:
		return "PENDING"
	case StateActive:
		return "ACTIVE"
	case StateExpired:
		return "EXPIRED"
	case StatePardoned:
		return "PARDONED"
	case StateRolledBack:
		return "ROLLED_BACK"
	default:
		return "UNSPECIFIED"
	}
}

// StateMessageKey returns the locale catalog key for a punishment state.
func StateMessageKey(state State) string {
	switch state {
	case StatePending:
		return "moderation.state.pending"
	case StateActive:
		return "moderation.state.active"
	case StateExpired:
		return "moderation.state.expired"
	case StatePardoned:
		return "moderation.state.pardoned"
	case StateRolledBack:
		return "moderation.state.rolled_back"
	default:
		return ""
	}
}

// StateFromLabel parses a string label into a State.
// It trims whitespace and matches case-insensitively. Both short and
// PUNISHMENT_STATE_-prefixed forms are accepted.
func StateFromLabel(value string) (State, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StateUnspecified, fmt.Errorf("punishment state is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "PENDING", "PUNISHMENT_STATE_PENDING":
		return StatePending, nil
	case "ACTIVE", "PUNISHMENT_STATE_ACTIVE":
		return StateActive, nil
	case "EXPIRED", "PUNISHMENT_STATE_EXPIRED":
		return StateExpired, nil
	case "PARDONED", "PUNISHMENT_STATE_PARDONED":
		return StatePardoned, nil
	case "ROLLED_BACK", "ROLLEDBACK", "PUNISHMENT_STATE_ROLLED_BACK":
		return StateRolledBack, nil
	default:
		return StateUnspecified, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("unknown punishment state: %s", trimmed))
	}
}

// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Engine taxonomy. Callers branch on these: validation failures are the
	// caller's fault and never retried automatically, conflicts are retried
	// after a re-read, dependency failures are retried with backoff.
	CodeValidation               Code = "VALIDATION_ERROR"
	CodeConcurrentModification   Code = "CONCURRENT_MODIFICATION_CONFLICT"
	CodeInvalidModificationOrder Code = "INVALID_MODIFICATION_ORDER"
	CodeDependencyUnavailable    Code = "DEPENDENCY_UNAVAILABLE"
	CodeUnauthorizedIssuer       Code = "UNAUTHORIZED_ISSUER"
	CodeMissingDurationValue     Code = "MISSING_DURATION_VALUE"
	CodeUnknownPunishmentType    Code = "UNKNOWN_PUNISHMENT_TYPE"

	// Punishment errors
	CodePunishmentPlayerIDEmpty          Code = "PUNISHMENT_PLAYER_ID_EMPTY"
	CodePunishmentIssuerEmpty            Code = "PUNISHMENT_ISSUER_EMPTY"
	CodePunishmentInvalidSeverity        Code = "PUNISHMENT_INVALID_SEVERITY"
	CodePunishmentInvalidOffenseLevel    Code = "PUNISHMENT_INVALID_OFFENSE_LEVEL"
	CodePunishmentSeverityOffenseClash   Code = "PUNISHMENT_SEVERITY_OFFENSE_CLASH"
	CodePunishmentDurationForbidden      Code = "PUNISHMENT_DURATION_FORBIDDEN"
	CodePunishmentAlreadyStarted         Code = "PUNISHMENT_ALREADY_STARTED"
	CodePunishmentStartInFuture          Code = "PUNISHMENT_START_IN_FUTURE"
	CodePunishmentInvalidStateTransition Code = "PUNISHMENT_INVALID_STATE_TRANSITION"
	CodePunishmentNotRestorable          Code = "PUNISHMENT_NOT_RESTORABLE"
	CodePunishmentPermanentExtension     Code = "PUNISHMENT_PERMANENT_EXTENSION"

	// Modification errors
	CodeModificationReasonEmpty   Code = "MODIFICATION_REASON_EMPTY"
	CodeModificationInvalidType   Code = "MODIFICATION_INVALID_TYPE"
	CodeModificationFutureIssued  Code = "MODIFICATION_FUTURE_ISSUED"
	CodeModificationDurationExtra Code = "MODIFICATION_DURATION_EXTRA"

	// Appeal errors
	CodeAppealDecisionInvalid     Code = "APPEAL_DECISION_INVALID"
	CodeAppealGrantInvalid        Code = "APPEAL_GRANT_INVALID"
	CodeAppealGrantExpired        Code = "APPEAL_GRANT_EXPIRED"
	CodeAppealGrantMismatch       Code = "APPEAL_GRANT_MISMATCH"
	CodeAppealReductionOutOfRange Code = "APPEAL_REDUCTION_OUT_OF_RANGE"
	CodeAppealPermanentPercentage Code = "APPEAL_PERMANENT_PERCENTAGE"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeValidation,
		CodeMissingDurationValue,
		CodeUnknownPunishmentType,
		CodePunishmentPlayerIDEmpty,
		CodePunishmentIssuerEmpty,
		CodePunishmentInvalidSeverity,
		CodePunishmentInvalidOffenseLevel,
		CodePunishmentSeverityOffenseClash,
		CodePunishmentDurationForbidden,
		CodeModificationReasonEmpty,
		CodeModificationInvalidType,
		CodeModificationDurationExtra,
		CodeAppealDecisionInvalid,
		CodeAppealReductionOutOfRange:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInvalidModificationOrder,
		CodePunishmentAlreadyStarted,
		CodePunishmentStartInFuture,
		CodePunishmentInvalidStateTransition,
		CodePunishmentNotRestorable,
		CodePunishmentPermanentExtension,
		CodeModificationFutureIssued,
		CodeAppealGrantExpired,
		CodeAppealPermanentPercentage:
		return codes.FailedPrecondition

	// Aborted - optimistic concurrency losers retry after a re-read
	case CodeConcurrentModification:
		return codes.Aborted

	// Unavailable - transient dependency failures, retry with backoff
	case CodeDependencyUnavailable:
		return codes.Unavailable

	// PermissionDenied - issuer not allowed, surfaced and audited
	case CodeUnauthorizedIssuer,
		CodeAppealGrantInvalid,
		CodeAppealGrantMismatch:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeAlreadyExists:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}

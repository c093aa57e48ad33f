package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeValidation               = "VALIDATION_ERROR"
	CodeConcurrentModification   = "CONCURRENT_MODIFICATION_CONFLICT"
	CodeInvalidModificationOrder = "INVALID_MODIFICATION_ORDER"
	CodeDependencyUnavailable    = "DEPENDENCY_UNAVAILABLE"
	CodeUnauthorizedIssuer       = "UNAUTHORIZED_ISSUER"
	CodeMissingDurationValue     = "MISSING_DURATION_VALUE"
	CodeUnknownPunishmentType    = "UNKNOWN_PUNISHMENT_TYPE"

	CodePunishmentPlayerIDEmpty          = "PUNISHMENT_PLAYER_ID_EMPTY"
	CodePunishmentIssuerEmpty            = "PUNISHMENT_ISSUER_EMPTY"
	CodePunishmentInvalidSeverity        = "PUNISHMENT_INVALID_SEVERITY"
	CodePunishmentInvalidOffenseLevel    = "PUNISHMENT_INVALID_OFFENSE_LEVEL"
	CodePunishmentSeverityOffenseClash   = "PUNISHMENT_SEVERITY_OFFENSE_CLASH"
	CodePunishmentDurationForbidden      = "PUNISHMENT_DURATION_FORBIDDEN"
	CodePunishmentAlreadyStarted         = "PUNISHMENT_ALREADY_STARTED"
	CodePunishmentStartInFuture          = "PUNISHMENT_START_IN_FUTURE"
	CodePunishmentInvalidStateTransition = "PUNISHMENT_INVALID_STATE_TRANSITION"
	CodePunishmentNotRestorable          = "PUNISHMENT_NOT_RESTORABLE"
	CodePunishmentPermanentExtension     = "PUNISHMENT_PERMANENT_EXTENSION"

	CodeModificationReasonEmpty   = "MODIFICATION_REASON_EMPTY"
	CodeModificationInvalidType   = "MODIFICATION_INVALID_TYPE"
	CodeModificationFutureIssued  = "MODIFICATION_FUTURE_ISSUED"
	CodeModificationDurationExtra = "MODIFICATION_DURATION_EXTRA"

	CodeAppealDecisionInvalid     = "APPEAL_DECISION_INVALID"
	CodeAppealGrantInvalid        = "APPEAL_GRANT_INVALID"
	CodeAppealGrantExpired        = "APPEAL_GRANT_EXPIRED"
	CodeAppealGrantMismatch       = "APPEAL_GRANT_MISMATCH"
	CodeAppealReductionOutOfRange = "APPEAL_REDUCTION_OUT_OF_RANGE"
	CodeAppealPermanentPercentage = "APPEAL_PERMANENT_PERCENTAGE"

	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Engine taxonomy
		CodeValidation:               "The request is invalid",
		CodeConcurrentModification:   "The punishment was modified concurrently; reload and retry",
		CodeInvalidModificationOrder: "The modification predates existing punishment history",
		CodeDependencyUnavailable:    "A required service is temporarily unavailable",
		CodeUnauthorizedIssuer:       "Issuer {{.IssuerID}} is not authorized for {{.Action}}",
		CodeMissingDurationValue:     "A duration value is required for this modification",
		CodeUnknownPunishmentType:    "Unknown punishment type {{.Type}}",

		// Punishment errors
		CodePunishmentPlayerIDEmpty:          "Player ID is required",
		CodePunishmentIssuerEmpty:            "Issuer ID is required",
		CodePunishmentInvalidSeverity:        "Invalid severity specified",
		CodePunishmentInvalidOffenseLevel:    "Invalid offense level specified",
		CodePunishmentSeverityOffenseClash:   "Severity and offense level cannot both be set for this type",
		CodePunishmentDurationForbidden:      "Punishment type {{.Type}} does not carry a duration",
		CodePunishmentAlreadyStarted:         "The punishment has already started",
		CodePunishmentStartInFuture:          "Start time is in the future and not marked future-effective",
		CodePunishmentInvalidStateTransition: "Cannot transition punishment from {{.FromState}} to {{.ToState}}",
		CodePunishmentNotRestorable:          "The punishment is neither pardoned nor rolled back",
		CodePunishmentPermanentExtension:     "A permanent punishment cannot be extended",

		// Modification errors
		CodeModificationReasonEmpty:   "A reason is required",
		CodeModificationInvalidType:   "Invalid modification type specified",
		CodeModificationFutureIssued:  "Modification time is in the future and not marked future-effective",
		CodeModificationDurationExtra: "Modification type {{.Type}} does not accept a duration",

		// Appeal errors
		CodeAppealDecisionInvalid:     "Invalid appeal decision",
		CodeAppealGrantInvalid:        "Appeal decision grant is invalid",
		CodeAppealGrantExpired:        "Appeal decision grant has expired",
		CodeAppealGrantMismatch:       "Appeal decision grant {{.Field}} does not match",
		CodeAppealReductionOutOfRange: "Reduction percentage must be between 1 and 100",
		CodeAppealPermanentPercentage: "A permanent punishment cannot be reduced by percentage",

		// Storage errors
		CodeNotFound:      "The requested resource was not found",
		CodeAlreadyExists: "The resource already exists",
	},
}

func init() {
	RegisterCatalog(enUSCatalog.locale, enUSCatalog)
}

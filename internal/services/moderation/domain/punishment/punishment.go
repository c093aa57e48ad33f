package punishment

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/platform/id"
)

// Type describes the kind of sanction a punishment applies.
type Type int

// Severity grades a manually issued punishment.
type Severity int

// OffenseLevel grades a punishment by the player's offense history.
type OffenseLevel int

const (
	// TypeUnspecified represents an invalid punishment type value.
	TypeUnspecified Type = iota
	// TypeBan indicates a ban, permanent unless a duration is set.
	TypeBan
	// TypeTempBan indicates a ban that always carries a duration.
	TypeTempBan
	// TypeMute indicates a chat mute.
	TypeMute
	// TypeKick indicates an instant disconnect with no lasting duration.
	TypeKick
	// TypeWarn indicates a recorded warning with no lasting duration.
	TypeWarn
	// TypeBlacklist indicates a permanent ban that also blocks alternate accounts.
	TypeBlacklist
	// TypeSecurityBan indicates a ban issued to protect a compromised account.
	TypeSecurityBan
	// TypeLinkedBan indicates a ban propagated from another account's punishment.
	TypeLinkedBan
)

const (
	// SeverityUnspecified represents an unset severity value.
	SeverityUnspecified Severity = iota
	// SeverityLenient indicates the lightest severity tier.
	SeverityLenient
	// SeverityRegular indicates the standard severity tier.
	SeverityRegular
	// SeverityAggravated indicates the heaviest severity tier.
	SeverityAggravated
)

const (
	// OffenseLevelUnspecified represents an unset offense level value.
	OffenseLevelUnspecified OffenseLevel = iota
	// OffenseLevelFirst indicates a first offense.
	OffenseLevelFirst
	// OffenseLevelMedium indicates a repeat offense.
	OffenseLevelMedium
	// OffenseLevelHabitual indicates a habitual offender.
	OffenseLevelHabitual
)

var (
	// ErrEmptyPlayerID indicates a missing player identifier.
	ErrEmptyPlayerID = apperrors.New(apperrors.CodePunishmentPlayerIDEmpty, "player id is required")
	// ErrEmptyIssuerID indicates a missing issuer identifier.
	ErrEmptyIssuerID = apperrors.New(apperrors.CodePunishmentIssuerEmpty, "issuer id is required")
	// ErrEmptyReason indicates a missing reason.
	ErrEmptyReason = apperrors.New(apperrors.CodeModificationReasonEmpty, "reason is required")
	// ErrUnknownType indicates a missing or invalid punishment type.
	ErrUnknownType = apperrors.New(apperrors.CodeUnknownPunishmentType, "punishment type is unknown")
	// ErrMissingDuration indicates a duration was required but absent.
	ErrMissingDuration = apperrors.New(apperrors.CodeMissingDurationValue, "duration value is required")
)

// Flags carries the issuance-time behavior switches of a punishment.
// Flags are immutable once set; pardons consult BanLinkedAccounts to decide
// whether to propagate to linked punishments.
type Flags struct {
	// AltBlocking blocks detected alternate accounts while active.
	AltBlocking bool
	// StatWiping wipes player statistics when the punishment starts.
	StatWiping bool
	// Silent suppresses the public broadcast when the punishment is issued.
	Silent bool
	// KickSameIP disconnects other sessions from the same address at issue time.
	KickSameIP bool
	// BanLinkedAccounts propagates pardons to linked punishments.
	BanLinkedAccounts bool
}

// Note is an append-only, attributed annotation on a punishment.
type Note struct {
	ID string
	// AuthorID is the staff member or subsystem that wrote the note.
	AuthorID string
	Text     string
	// SourceAppealID links notes written by appeal decisions, such as the
	// audit note recording a rejection.
	SourceAppealID string
	CreatedAt      time.Time
}

// Evidence is an append-only, attributed evidence reference on a punishment.
type Evidence struct {
	ID       string
	AuthorID string
	URL      string
	Caption  string
	AddedAt  time.Time
}

// Punishment is the immutable issuance record. Follow-up changes live in the
// ordered Modifications list; nothing here is rewritten after creation.
type Punishment struct {
	// ID is a short opaque token, unique within the player.
	ID string
	// PlayerID is the stable identifier of the punished player.
	PlayerID string
	Type     Type
	Reason   string
	// Severity and OffenseLevel are mutually exclusive per type profile.
	Severity     Severity
	OffenseLevel OffenseLevel
	// IssuedBy is the staff member who created the issuance.
	IssuedBy string
	// IssuedAt is when the punishment was created.
	IssuedAt time.Time
	// StartedAt is when the punishment took effect. Nil means it has not
	// started yet, such as a ban waiting for the player's next login.
	StartedAt *time.Time
	// InitialDuration is the duration at issuance. Nil means permanent.
	InitialDuration *time.Duration
	Flags           Flags
	// LinkedPunishmentID references the punishment this one was propagated
	// from, set on linked/alt-account bans.
	LinkedPunishmentID string
	// LinkedPlayerIDs are accounts identified as the same person at issue
	// time; pardons propagate to their linked punishments.
	LinkedPlayerIDs []string
	Evidence        []Evidence
	Notes           []Note
	// Modifications is the ordered, append-only modification history.
	Modifications []Modification
	// Version counts issuance plus modifications and serves as the
	// optimistic-concurrency token for appends.
	Version uint64
}

// TypeProfile describes the invariants of a punishment type.
type TypeProfile struct {
	// RequiresDuration forces a non-nil initial duration.
	RequiresDuration bool
	// Instant marks punishments with no lasting effect window.
	Instant bool
	// SupportsSeverity allows the severity field.
	SupportsSeverity bool
	// SupportsOffenseLevel allows the offense level field.
	SupportsOffenseLevel bool
	// AlwaysPermanent rejects any duration at issuance.
	AlwaysPermanent bool
}

// typeProfiles is keyed by punishment type; absence means the type is unknown.
var typeProfiles = map[Type]TypeProfile{
	TypeBan:         {SupportsSeverity: true, SupportsOffenseLevel: true},
	TypeTempBan:     {RequiresDuration: true, SupportsSeverity: true, SupportsOffenseLevel: true},
	TypeMute:        {SupportsSeverity: true, SupportsOffenseLevel: true},
	TypeKick:        {Instant: true},
	TypeWarn:        {Instant: true, SupportsOffenseLevel: true},
	TypeBlacklist:   {AlwaysPermanent: true},
	TypeSecurityBan: {},
	TypeLinkedBan:   {},
}

// ProfileFor returns the profile of a punishment type.
func ProfileFor(punishmentType Type) (TypeProfile, error) {
	profile, ok := typeProfiles[punishmentType]
	if !ok {
		return TypeProfile{}, apperrors.WithMetadata(
			apperrors.CodeUnknownPunishmentType,
			fmt.Sprintf("punishment type is unknown: %s", TypeLabel(punishmentType)),
			map[string]string{"Type": TypeLabel(punishmentType)},
		)
	}
	return profile, nil
}

// CreatePunishmentInput describes the data needed to issue a punishment.
type CreatePunishmentInput struct {
	PlayerID     string
	Type         Type
	Reason       string
	Severity     Severity
	OffenseLevel OffenseLevel
	IssuedBy     string
	// StartImmediately stamps StartedAt with the issue time. When false the
	// punishment stays pending until a start acknowledgement arrives.
	StartImmediately bool
	// Duration is the initial duration; nil means permanent.
	Duration           *time.Duration
	Flags              Flags
	LinkedPunishmentID string
	LinkedPlayerIDs    []string
}

// CreatePunishment creates a new issuance with a generated ID and timestamps.
func CreatePunishment(input CreatePunishmentInput, now func() time.Time, idGenerator func() (string, error)) (Punishment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreatePunishmentInput(input)
	if err != nil {
		return Punishment{}, err
	}

	punishmentID, err := idGenerator()
	if err != nil {
		return Punishment{}, fmt.Errorf("generate punishment id: %w", err)
	}

	issuedAt := now().UTC()
	created := Punishment{
		ID:                 punishmentID,
		PlayerID:           normalized.PlayerID,
		Type:               normalized.Type,
		Reason:             normalized.Reason,
		Severity:           normalized.Severity,
		OffenseLevel:       normalized.OffenseLevel,
		IssuedBy:           normalized.IssuedBy,
		IssuedAt:           issuedAt,
		InitialDuration:    normalized.Duration,
		Flags:              normalized.Flags,
		LinkedPunishmentID: normalized.LinkedPunishmentID,
		LinkedPlayerIDs:    normalized.LinkedPlayerIDs,
		Version:            1,
	}
	if normalized.StartImmediately {
		created.StartedAt = &issuedAt
	}
	return created, nil
}

// NormalizeCreatePunishmentInput trims and validates issuance input against
// the type profile.
func NormalizeCreatePunishmentInput(input CreatePunishmentInput) (CreatePunishmentInput, error) {
	input.PlayerID = strings.TrimSpace(input.PlayerID)
	if input.PlayerID == "" {
		return CreatePunishmentInput{}, ErrEmptyPlayerID
	}
	input.IssuedBy = strings.TrimSpace(input.IssuedBy)
	if input.IssuedBy == "" {
		return CreatePunishmentInput{}, ErrEmptyIssuerID
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if input.Reason == "" {
		return CreatePunishmentInput{}, ErrEmptyReason
	}

	profile, err := ProfileFor(input.Type)
	if err != nil {
		return CreatePunishmentInput{}, err
	}

	if input.Severity != SeverityUnspecified && !profile.SupportsSeverity {
		return CreatePunishmentInput{}, apperrors.New(apperrors.CodePunishmentInvalidSeverity,
			fmt.Sprintf("punishment type %s does not grade by severity", TypeLabel(input.Type)))
	}
	if input.OffenseLevel != OffenseLevelUnspecified && !profile.SupportsOffenseLevel {
		return CreatePunishmentInput{}, apperrors.New(apperrors.CodePunishmentInvalidOffenseLevel,
			fmt.Sprintf("punishment type %s does not grade by offense level", TypeLabel(input.Type)))
	}
	if input.Severity != SeverityUnspecified && input.OffenseLevel != OffenseLevelUnspecified {
		return CreatePunishmentInput{}, apperrors.New(apperrors.CodePunishmentSeverityOffenseClash,
			"severity and offense level are mutually exclusive")
	}

	if profile.RequiresDuration && input.Duration == nil {
		return CreatePunishmentInput{}, apperrors.WithMetadata(
			apperrors.CodeMissingDurationValue,
			fmt.Sprintf("punishment type %s requires a duration", TypeLabel(input.Type)),
			map[string]string{"Type": TypeLabel(input.Type)},
		)
	}
	if (profile.Instant || profile.AlwaysPermanent) && input.Duration != nil {
		return CreatePunishmentInput{}, apperrors.WithMetadata(
			apperrors.CodePunishmentDurationForbidden,
			fmt.Sprintf("punishment type %s does not carry a duration", TypeLabel(input.Type)),
			map[string]string{"Type": TypeLabel(input.Type)},
		)
	}
	if input.Duration != nil && *input.Duration <= 0 {
		return CreatePunishmentInput{}, apperrors.New(apperrors.CodeValidation, "duration must be positive")
	}

	// Instant punishments take effect the moment they are issued.
	if profile.Instant {
		input.StartImmediately = true
	}
	return input, nil
}

// TypeLabel returns a stable label for a punishment type.
func TypeLabel(punishmentType Type) string {
	switch punishmentType {
	case TypeBan:
		return "BAN"
	case TypeTempBan:
		return "TEMP_BAN"
	case TypeMute:
		return "MUTE"
	case TypeKick:
		return "KICK"
	case TypeWarn:
		return "WARN"
	case TypeBlacklist:
		return "BLACKLIST"
	case TypeSecurityBan:
		return "SECURITY_BAN"
	case TypeLinkedBan:
		return "LINKED_BAN"
	default:
		return "UNSPECIFIED"
	}
}

// TypeFromLabel parses a string label into a Type.
// It trims whitespace and matches case-insensitively. Both short ("BAN")
// and prefixed ("PUNISHMENT_TYPE_BAN") forms are accepted.
func TypeFromLabel(value string) (Type, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return TypeUnspecified, fmt.Errorf("punishment type is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "BAN", "PUNISHMENT_TYPE_BAN":
		return TypeBan, nil
	case "TEMP_BAN", "TEMPBAN", "PUNISHMENT_TYPE_TEMP_BAN":
		return TypeTempBan, nil
	case "MUTE", "PUNISHMENT_TYPE_MUTE":
		return TypeMute, nil
	case "KICK", "PUNISHMENT_TYPE_KICK":
		return TypeKick, nil
	case "WARN", "PUNISHMENT_TYPE_WARN":
		return TypeWarn, nil
	case "BLACKLIST", "PUNISHMENT_TYPE_BLACKLIST":
		return TypeBlacklist, nil
	case "SECURITY_BAN", "PUNISHMENT_TYPE_SECURITY_BAN":
		return TypeSecurityBan, nil
	case "LINKED_BAN", "PUNISHMENT_TYPE_LINKED_BAN":
		return TypeLinkedBan, nil
	default:
		return TypeUnspecified, apperrors.WithMetadata(
			apperrors.CodeUnknownPunishmentType,
			fmt.Sprintf("unknown punishment type: %s", trimmed),
			map[string]string{"Type": trimmed},
		)
	}
}

// SeverityLabel returns a stable label for a severity.
func SeverityLabel(severity Severity) string {
	switch severity {
	case SeverityLenient:
		return "LENIENT"
	case SeverityRegular:
		return "REGULAR"
	case SeverityAggravated:
		return "AGGRAVATED"
	default:
		return "UNSPECIFIED"
	}
}

// SeverityFromLabel parses a string label into a Severity. Empty input is
// allowed and returns SeverityUnspecified.
func SeverityFromLabel(value string) (Severity, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return SeverityUnspecified, nil
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "LENIENT", "SEVERITY_LENIENT":
		return SeverityLenient, nil
	case "REGULAR", "SEVERITY_REGULAR":
		return SeverityRegular, nil
	case "AGGRAVATED", "SEVERITY_AGGRAVATED":
		return SeverityAggravated, nil
	default:
		return SeverityUnspecified, apperrors.New(apperrors.CodePunishmentInvalidSeverity,
			fmt.Sprintf("unknown severity: %s", trimmed))
	}
}

// OffenseLevelLabel returns a stable label for an offense level.
func OffenseLevelLabel(level OffenseLevel) string {
	switch level {
	case OffenseLevelFirst:
		return "FIRST"
	case OffenseLevelMedium:
		return "MEDIUM"
	case OffenseLevelHabitual:
		return "HABITUAL"
	default:
		return "UNSPECIFIED"
	}
}

// OffenseLevelFromLabel parses a string label into an OffenseLevel. Empty
// input is allowed and returns OffenseLevelUnspecified.
func OffenseLevelFromLabel(value string) (OffenseLevel, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return OffenseLevelUnspecified, nil
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "FIRST", "OFFENSE_LEVEL_FIRST":
		return OffenseLevelFirst, nil
	case "MEDIUM", "OFFENSE_LEVEL_MEDIUM":
		return OffenseLevelMedium, nil
	case "HABITUAL", "OFFENSE_LEVEL_HABITUAL":
		return OffenseLevelHabitual, nil
	default:
		return OffenseLevelUnspecified, apperrors.New(apperrors.CodePunishmentInvalidOffenseLevel,
			fmt.Sprintf("unknown offense level: %s", trimmed))
	}
}

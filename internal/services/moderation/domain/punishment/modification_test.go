package punishment

import (
	"testing"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
)

func TestNewModificationStampsDefaults(t *testing.T) {
	fixedTime := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	modification, err := NewModification(NewModificationInput{
		Type:     ModificationManualPardon,
		IssuerID: " senior-1 ",
		Reason:   " appealed in person ",
	}, func() time.Time { return fixedTime }, func() (string, error) {
		return "mod123", nil
	})
	if err != nil {
		t.Fatalf("new modification: %v", err)
	}

	if modification.ID != "mod123" {
		t.Fatalf("expected id mod123, got %q", modification.ID)
	}
	if !modification.IssuedAt.Equal(fixedTime) {
		t.Fatalf("expected issued at fixed time, got %v", modification.IssuedAt)
	}
	if modification.IssuerID != "senior-1" {
		t.Fatalf("expected trimmed issuer, got %q", modification.IssuerID)
	}
	if modification.Reason != "appealed in person" {
		t.Fatalf("expected trimmed reason, got %q", modification.Reason)
	}
}

func TestNewModificationKeepsExplicitIssuedAt(t *testing.T) {
	explicit := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	modification, err := NewModification(NewModificationInput{
		Type:            ModificationRollback,
		IssuerID:        "admin-1",
		Reason:          "compromised staff account",
		IssuedAt:        explicit,
		RollbackBatchID: "batch-7",
	}, nil, nil)
	if err != nil {
		t.Fatalf("new modification: %v", err)
	}
	if !modification.IssuedAt.Equal(explicit) {
		t.Fatalf("expected explicit issued at, got %v", modification.IssuedAt)
	}
	if modification.RollbackBatchID != "batch-7" {
		t.Fatalf("expected rollback batch id, got %q", modification.RollbackBatchID)
	}
}

func TestNewModificationValidation(t *testing.T) {
	hour := time.Hour
	zero := time.Duration(0)

	tests := []struct {
		name  string
		input NewModificationInput
		code  apperrors.Code
	}{
		{
			name:  "unknown type",
			input: NewModificationInput{Type: ModificationUnspecified, IssuerID: "mod-1", Reason: "r"},
			code:  apperrors.CodeModificationInvalidType,
		},
		{
			name:  "empty issuer",
			input: NewModificationInput{Type: ModificationManualPardon, IssuerID: "  ", Reason: "r"},
			code:  apperrors.CodePunishmentIssuerEmpty,
		},
		{
			name:  "empty reason",
			input: NewModificationInput{Type: ModificationManualPardon, IssuerID: "senior-1", Reason: " "},
			code:  apperrors.CodeModificationReasonEmpty,
		},
		{
			name:  "duration change requires value",
			input: NewModificationInput{Type: ModificationManualDurationChange, IssuerID: "mod-1", Reason: "r"},
			code:  apperrors.CodeMissingDurationValue,
		},
		{
			name:  "extension requires value",
			input: NewModificationInput{Type: ModificationExtension, IssuerID: "mod-1", Reason: "r"},
			code:  apperrors.CodeMissingDurationValue,
		},
		{
			name:  "zero duration rejected",
			input: NewModificationInput{Type: ModificationExtension, IssuerID: "mod-1", Reason: "r", EffectiveDuration: &zero},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "pardon forbids value",
			input: NewModificationInput{Type: ModificationManualPardon, IssuerID: "senior-1", Reason: "r", EffectiveDuration: &hour},
			code:  apperrors.CodeModificationDurationExtra,
		},
		{
			name:  "appeal reduction requires appeal id",
			input: NewModificationInput{Type: ModificationAppealReduction, IssuerID: "appeals", Reason: "r", EffectiveDuration: &hour},
			code:  apperrors.CodeValidation,
		},
		{
			name: "appeal pardon rejects propagation id",
			input: NewModificationInput{
				Type: ModificationAppealPardon, IssuerID: "appeals", Reason: "r",
				SourceAppealID: "appeal-1", SourcePropagationID: "prop-1",
			},
			code: apperrors.CodeValidation,
		},
		{
			name:  "manual pardon rejects appeal id",
			input: NewModificationInput{Type: ModificationManualPardon, IssuerID: "senior-1", Reason: "r", SourceAppealID: "appeal-1"},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "batch id only on rollback",
			input: NewModificationInput{Type: ModificationManualPardon, IssuerID: "senior-1", Reason: "r", RollbackBatchID: "batch-1"},
			code:  apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModification(tt.input, nil, nil)
			wantCode(t, err, tt.code)
		})
	}
}

func TestModificationTypeLabelRoundTrip(t *testing.T) {
	types := []ModificationType{
		ModificationManualDurationChange,
		ModificationManualPardon,
		ModificationManualRestore,
		ModificationExtension,
		ModificationAppealReduction,
		ModificationAppealPardon,
		ModificationRollback,
	}
	for _, modType := range types {
		label := ModificationTypeLabel(modType)
		parsed, err := ModificationTypeFromLabel(label)
		if err != nil {
			t.Fatalf("parse label %q: %v", label, err)
		}
		if parsed != modType {
			t.Fatalf("round trip %q = %v, want %v", label, parsed, modType)
		}
	}

	if got, err := ModificationTypeFromLabel("modification_type_extension"); err != nil || got != ModificationExtension {
		t.Fatalf("prefixed form = %v, %v; want extension, nil", got, err)
	}
	if _, err := ModificationTypeFromLabel("unban"); err == nil {
		t.Fatal("expected unknown label to be rejected")
	}
}

func TestModificationClassPredicates(t *testing.T) {
	if !IsPardonModification(ModificationManualPardon) || !IsPardonModification(ModificationAppealPardon) {
		t.Fatal("expected both pardon types to be pardon-class")
	}
	if IsPardonModification(ModificationRollback) {
		t.Fatal("expected rollback not to be pardon-class")
	}
	if !IsAppealModification(ModificationAppealReduction) || IsAppealModification(ModificationManualPardon) {
		t.Fatal("appeal-class predicate mismatch")
	}
	if !SetsAbsoluteDuration(ModificationManualDurationChange) || !SetsAbsoluteDuration(ModificationAppealReduction) {
		t.Fatal("expected absolute-setting types to be recognized")
	}
	if SetsAbsoluteDuration(ModificationExtension) {
		t.Fatal("expected extension to accumulate, not set")
	}
}

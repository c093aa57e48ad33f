package appeal

import (
	"strings"
	"testing"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
)

var appealTestIssuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func appealTestPunishment(duration *time.Duration) punishment.Punishment {
	started := appealTestIssuedAt
	return punishment.Punishment{
		ID:              "pun-1",
		PlayerID:        "player-1",
		Type:            punishment.TypeTempBan,
		Reason:          "griefing spawn",
		IssuedBy:        "mod-1",
		IssuedAt:        appealTestIssuedAt,
		StartedAt:       &started,
		InitialDuration: duration,
		Version:         1,
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTranslatePardon(t *testing.T) {
	issuance := appealTestPunishment(durationPtr(100 * time.Hour))
	decision := Decision{Type: DecisionPardon, ReviewerID: "reviewer-9", Comment: "verified alibi"}

	outcome, err := Translate(issuance, "appeal-1", decision, "appeals", fixedClock(appealTestIssuedAt.Add(time.Hour)), nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(outcome.Modifications) != 1 {
		t.Fatalf("expected 1 modification, got %d", len(outcome.Modifications))
	}
	modification := outcome.Modifications[0]
	if modification.Type != punishment.ModificationAppealPardon {
		t.Fatalf("expected appeal pardon, got %s", punishment.ModificationTypeLabel(modification.Type))
	}
	if modification.SourceAppealID != "appeal-1" {
		t.Fatalf("expected source appeal stamped, got %q", modification.SourceAppealID)
	}
	if modification.IssuerID != "appeals" {
		t.Fatalf("expected appeals service issuer, got %q", modification.IssuerID)
	}
	if !strings.Contains(modification.Reason, "appeal-1") || !strings.Contains(modification.Reason, "reviewer-9") {
		t.Fatalf("expected reason to carry appeal and reviewer, got %q", modification.Reason)
	}
	if outcome.RejectionNote != "" {
		t.Fatal("expected no rejection note for a pardon")
	}
}

func TestTranslateReducePercentageStacks(t *testing.T) {
	issuance := appealTestPunishment(durationPtr(100 * time.Hour))
	clock := fixedClock(appealTestIssuedAt.Add(time.Hour))

	first, err := Translate(issuance, "appeal-1", Decision{Type: DecisionReducePercentage, Percentage: 50, ReviewerID: "reviewer-9"}, "appeals", clock, nil)
	if err != nil {
		t.Fatalf("first reduction: %v", err)
	}
	if got := *first.Modifications[0].EffectiveDuration; got != 50*time.Hour {
		t.Fatalf("expected 50h after first reduction, got %v", got)
	}

	issuance.Modifications = append(issuance.Modifications, first.Modifications[0])

	second, err := Translate(issuance, "appeal-2", Decision{Type: DecisionReducePercentage, Percentage: 50, ReviewerID: "reviewer-9"}, "appeals", clock, nil)
	if err != nil {
		t.Fatalf("second reduction: %v", err)
	}
	if got := *second.Modifications[0].EffectiveDuration; got != 25*time.Hour {
		t.Fatalf("expected reductions to stack to 25h, got %v", got)
	}
}

func TestTranslateReducePercentageValidation(t *testing.T) {
	issuance := appealTestPunishment(durationPtr(100 * time.Hour))
	clock := fixedClock(appealTestIssuedAt.Add(time.Hour))

	for _, percentage := range []int{0, -5, 100, 150} {
		_, err := Translate(issuance, "appeal-1", Decision{Type: DecisionReducePercentage, Percentage: percentage}, "appeals", clock, nil)
		wantCode(t, err, apperrors.CodeAppealReductionOutOfRange)
	}

	permanent := appealTestPunishment(nil)
	_, err := Translate(permanent, "appeal-1", Decision{Type: DecisionReducePercentage, Percentage: 50}, "appeals", clock, nil)
	wantCode(t, err, apperrors.CodeAppealPermanentPercentage)
}

func TestTranslateReduceFixed(t *testing.T) {
	issuance := appealTestPunishment(durationPtr(100 * time.Hour))
	clock := fixedClock(appealTestIssuedAt.Add(time.Hour))

	outcome, err := Translate(issuance, "appeal-1", Decision{Type: DecisionReduceFixed, Duration: durationPtr(24 * time.Hour)}, "appeals", clock, nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	modification := outcome.Modifications[0]
	if modification.Type != punishment.ModificationAppealReduction {
		t.Fatalf("expected appeal reduction, got %s", punishment.ModificationTypeLabel(modification.Type))
	}
	if *modification.EffectiveDuration != 24*time.Hour {
		t.Fatalf("expected 24h, got %v", *modification.EffectiveDuration)
	}

	_, err = Translate(issuance, "appeal-1", Decision{Type: DecisionReduceFixed}, "appeals", clock, nil)
	wantCode(t, err, apperrors.CodeMissingDurationValue)
}

func TestTranslateRejectProducesNote(t *testing.T) {
	issuance := appealTestPunishment(durationPtr(100 * time.Hour))
	clock := fixedClock(appealTestIssuedAt.Add(time.Hour))

	outcome, err := Translate(issuance, "appeal-1", Decision{Type: DecisionReject, ReviewerID: "reviewer-9", Comment: "no new evidence"}, "appeals", clock, nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(outcome.Modifications) != 0 {
		t.Fatalf("expected no modifications on rejection, got %d", len(outcome.Modifications))
	}
	if !strings.Contains(outcome.RejectionNote, "appeal-1") || !strings.Contains(outcome.RejectionNote, "no new evidence") {
		t.Fatalf("expected rejection note with appeal id and comment, got %q", outcome.RejectionNote)
	}
}

func TestTranslateValidation(t *testing.T) {
	issuance := appealTestPunishment(durationPtr(100 * time.Hour))
	clock := fixedClock(appealTestIssuedAt.Add(time.Hour))

	_, err := Translate(issuance, "  ", Decision{Type: DecisionPardon}, "appeals", clock, nil)
	wantCode(t, err, apperrors.CodeValidation)

	_, err = Translate(issuance, "appeal-1", Decision{Type: DecisionUnspecified}, "appeals", clock, nil)
	wantCode(t, err, apperrors.CodeAppealDecisionInvalid)
}

func TestDecisionFromClaims(t *testing.T) {
	ms := int64(24 * time.Hour / time.Millisecond)
	claims := DecisionGrantClaims{
		Decision:   "reduce_fixed",
		DurationMs: &ms,
		ReviewerID: "reviewer-9",
		Comment:    "shortened",
	}

	decision, err := DecisionFromClaims(claims)
	if err != nil {
		t.Fatalf("decision from claims: %v", err)
	}
	if decision.Type != DecisionReduceFixed {
		t.Fatalf("expected reduce fixed, got %v", decision.Type)
	}
	if decision.Duration == nil || *decision.Duration != 24*time.Hour {
		t.Fatalf("expected 24h duration, got %v", decision.Duration)
	}

	if _, err := DecisionFromClaims(DecisionGrantClaims{Decision: "shrug"}); err == nil {
		t.Fatal("expected unknown decision to be rejected")
	}
}

func TestDecisionTypeLabelRoundTrip(t *testing.T) {
	types := []DecisionType{DecisionPardon, DecisionReducePercentage, DecisionReduceFixed, DecisionReject}
	for _, decisionType := range types {
		label := DecisionTypeLabel(decisionType)
		parsed, err := DecisionTypeFromLabel(label)
		if err != nil {
			t.Fatalf("parse label %q: %v", label, err)
		}
		if parsed != decisionType {
			t.Fatalf("round trip %q = %v, want %v", label, parsed, decisionType)
		}
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
)

type grantSpec struct {
	appealID     string
	playerID     string
	punishmentID string
	decision     string
	percentage   int
	durationMs   *int64
	reviewerID   string
	comment      string
	jti          string
	issuer       string
	audience     string
	expiresAt    time.Time
}

func newGrantKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate grant keys: %v", err)
	}
	return public, private
}

func signGrant(t *testing.T, key ed25519.PrivateKey, spec grantSpec) string {
	t.Helper()
	if spec.issuer == "" {
		spec.issuer = testGrantIssuer
	}
	if spec.audience == "" {
		spec.audience = testGrantAudience
	}
	if spec.jti == "" {
		spec.jti = "grant-1"
	}
	if spec.reviewerID == "" {
		spec.reviewerID = "reviewer-9"
	}
	if spec.expiresAt.IsZero() {
		spec.expiresAt = testIssuedAt.Add(24 * time.Hour)
	}

	claims := jwt.MapClaims{
		"iss":           spec.issuer,
		"aud":           spec.audience,
		"jti":           spec.jti,
		"exp":           spec.expiresAt.Unix(),
		"appeal_id":     spec.appealID,
		"player_id":     spec.playerID,
		"punishment_id": spec.punishmentID,
		"decision":      spec.decision,
		"reviewer_id":   spec.reviewerID,
	}
	if spec.percentage != 0 {
		claims["percentage"] = spec.percentage
	}
	if spec.durationMs != nil {
		claims["duration_ms"] = *spec.durationMs
	}
	if spec.comment != "" {
		claims["comment"] = spec.comment
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}
	return signed
}

func TestApplyAppealDecisionPardon(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, store, audits, now := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 48*time.Hour)
	*now = testIssuedAt.Add(time.Hour)

	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "PARDON",
		comment:      "first offense, clean record",
	})

	modifications, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	})
	if err != nil {
		t.Fatalf("apply appeal pardon: %v", err)
	}
	if len(modifications) != 1 || modifications[0].Type != punishment.ModificationAppealPardon {
		t.Fatalf("expected one appeal pardon, got %+v", modifications)
	}
	if modifications[0].SourceAppealID != "appeal-1" {
		t.Fatalf("expected source appeal id, got %q", modifications[0].SourceAppealID)
	}
	if modifications[0].IssuerID != "appeals-1" {
		t.Fatalf("expected the appeals service as issuer, got %q", modifications[0].IssuerID)
	}
	if !strings.Contains(modifications[0].Reason, "reviewer-9") {
		t.Fatalf("expected the reviewer in the reason, got %q", modifications[0].Reason)
	}

	events, err := store.ListEvents(ctx, "player-1", 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != event.TypeAppealPardoned || last.SourceAppealID != "appeal-1" {
		t.Fatalf("unexpected ledger event: %s with appeal %q", last.Type, last.SourceAppealID)
	}
	if last.ActorType != event.ActorTypeAppeals {
		t.Fatalf("expected appeals actor, got %s", last.ActorType)
	}

	state, err := svc.ProjectState(ctx, "player-1", created.ID, *now)
	if err != nil {
		t.Fatalf("project state: %v", err)
	}
	if state != punishment.StatePardoned {
		t.Fatalf("expected pardoned state, got %v", punishment.StateLabel(state))
	}

	if _, found := findAuditRow(t, audits, audit.ActionAppealApplied); !found {
		t.Fatalf("expected an appeal audit row")
	}
}

func TestApplyAppealReductionsStack(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, _, _, now := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 10*time.Hour)

	*now = testIssuedAt.Add(time.Hour)
	first := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "REDUCE_PERCENTAGE",
		percentage:   50,
		jti:          "grant-1",
	})
	modifications, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        first,
		IssuerID:     "appeals-1",
	})
	if err != nil {
		t.Fatalf("first reduction: %v", err)
	}
	if got := modifications[0].EffectiveDuration; got == nil || *got != 5*time.Hour {
		t.Fatalf("expected 5h after halving 10h, got %v", got)
	}

	// The second reduction halves the already reduced sentence, not the
	// original one.
	*now = testIssuedAt.Add(2 * time.Hour)
	second := signGrant(t, private, grantSpec{
		appealID:     "appeal-2",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "REDUCE_PERCENTAGE",
		percentage:   50,
		jti:          "grant-2",
	})
	modifications, err = svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-2",
		Grant:        second,
		IssuerID:     "appeals-1",
	})
	if err != nil {
		t.Fatalf("second reduction: %v", err)
	}
	if got := modifications[0].EffectiveDuration; got == nil || *got != 150*time.Minute {
		t.Fatalf("expected 2h30m after halving 5h, got %v", got)
	}

	view, err := svc.GetPunishment(ctx, "player-1", created.ID, *now)
	if err != nil {
		t.Fatalf("get punishment: %v", err)
	}
	if view.Resolution.Duration == nil || *view.Resolution.Duration != 150*time.Minute {
		t.Fatalf("expected resolved duration 2h30m, got %v", view.Resolution.Duration)
	}
}

func TestApplyAppealPercentageOnPermanentRejected(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, _, _, _ := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created, err := svc.Issue(ctx, IssueRequest{
		PlayerID:         "player-1",
		Type:             punishment.TypeBan,
		Reason:           "cheating",
		IssuerID:         "mod-1",
		StartImmediately: true,
	})
	if err != nil {
		t.Fatalf("issue permanent ban: %v", err)
	}

	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "REDUCE_PERCENTAGE",
		percentage:   50,
	})
	_, err = svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeAppealPermanentPercentage) {
		t.Fatalf("expected permanent-percentage rejection, got %v", err)
	}
}

func TestApplyAppealReduceFixedRecordsBasis(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, store, _, now := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 10*time.Hour)
	*now = testIssuedAt.Add(time.Hour)

	fixedMs := (3 * time.Hour).Milliseconds()
	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "REDUCE_FIXED",
		durationMs:   &fixedMs,
	})
	modifications, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	})
	if err != nil {
		t.Fatalf("fixed reduction: %v", err)
	}
	if got := modifications[0].EffectiveDuration; got == nil || *got != 3*time.Hour {
		t.Fatalf("expected 3h absolute duration, got %v", got)
	}

	events, err := store.ListEvents(ctx, "player-1", 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != event.TypeAppealReduced {
		t.Fatalf("expected appeal reduced event, got %s", last.Type)
	}
	payload := string(last.PayloadJSON)
	if !strings.Contains(payload, `"basis_millis":36000000`) {
		t.Fatalf("expected the 10h basis recorded, got %s", payload)
	}
	if !strings.Contains(payload, `"duration_millis":10800000`) {
		t.Fatalf("expected the 3h duration recorded, got %s", payload)
	}
}

func TestApplyAppealRejectRecordsNote(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, _, _, now := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 48*time.Hour)
	*now = testIssuedAt.Add(time.Hour)

	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "REJECT",
		comment:      "evidence is conclusive",
	})
	modifications, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	})
	if err != nil {
		t.Fatalf("reject appeal: %v", err)
	}
	if len(modifications) != 0 {
		t.Fatalf("expected no modifications on rejection, got %+v", modifications)
	}

	view, err := svc.GetPunishment(ctx, "player-1", created.ID, *now)
	if err != nil {
		t.Fatalf("get punishment: %v", err)
	}
	if view.State != punishment.StateActive {
		t.Fatalf("expected the punishment to stay active, got %v", punishment.StateLabel(view.State))
	}
	if len(view.Punishment.Notes) != 1 {
		t.Fatalf("expected one rejection note, got %d", len(view.Punishment.Notes))
	}
	note := view.Punishment.Notes[0]
	if note.SourceAppealID != "appeal-1" {
		t.Fatalf("expected the note linked to the appeal, got %q", note.SourceAppealID)
	}
	if !strings.Contains(note.Text, "rejected") || !strings.Contains(note.Text, "evidence is conclusive") {
		t.Fatalf("unexpected rejection note: %q", note.Text)
	}
}

func TestApplyAppealGrantMismatchAudited(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, _, audits, _ := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 48*time.Hour)

	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: "pun-other",
		decision:     "PARDON",
	})
	_, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeAppealGrantMismatch) {
		t.Fatalf("expected grant mismatch, got %v", err)
	}

	attrs, found := findAuditRow(t, audits, audit.ActionGrantRejected)
	if !found {
		t.Fatalf("expected a grant-rejected audit row")
	}
	if !strings.Contains(string(attrs), string(apperrors.CodeAppealGrantMismatch)) {
		t.Fatalf("expected the rejection code in attributes, got %s", attrs)
	}
}

func TestApplyAppealGrantWrongKeyRejected(t *testing.T) {
	public, _ := newGrantKeys(t)
	_, otherPrivate := newGrantKeys(t)
	svc, _, _, _ := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 48*time.Hour)

	grant := signGrant(t, otherPrivate, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "PARDON",
	})
	_, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeAppealGrantInvalid) {
		t.Fatalf("expected invalid grant, got %v", err)
	}
}

func TestApplyAppealExpiredGrantRejected(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, _, _, _ := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 48*time.Hour)

	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "PARDON",
		expiresAt:    testIssuedAt.Add(-time.Hour),
	})
	_, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeAppealGrantExpired) {
		t.Fatalf("expected expired grant, got %v", err)
	}
}

func TestApplyAppealRequiresAppealsRole(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, _, _, _ := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 48*time.Hour)

	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-1",
		punishmentID: created.ID,
		decision:     "PARDON",
	})
	_, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "admin-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeUnauthorizedIssuer) {
		t.Fatalf("expected unauthorized issuer, got %v", err)
	}
}

func TestApplyAppealPardonPropagates(t *testing.T) {
	public, private := newGrantKeys(t)
	svc, store, _, now := newTestServiceWithGrants(t, public)
	ctx := context.Background()

	duration := 72 * time.Hour
	source, err := svc.Issue(ctx, IssueRequest{
		PlayerID:         "player-a",
		Type:             punishment.TypeBan,
		Reason:           "duping",
		IssuerID:         "mod-1",
		StartImmediately: true,
		Duration:         &duration,
		Flags:            punishment.Flags{BanLinkedAccounts: true},
		LinkedPlayerIDs:  []string{"player-b"},
	})
	if err != nil {
		t.Fatalf("issue source ban: %v", err)
	}
	linked, err := svc.Issue(ctx, IssueRequest{
		PlayerID:           "player-b",
		Type:               punishment.TypeLinkedBan,
		Reason:             "linked to player-a duping ban",
		IssuerID:           "system-1",
		StartImmediately:   true,
		LinkedPunishmentID: source.ID,
	})
	if err != nil {
		t.Fatalf("issue linked ban: %v", err)
	}

	*now = testIssuedAt.Add(time.Hour)
	grant := signGrant(t, private, grantSpec{
		appealID:     "appeal-1",
		playerID:     "player-a",
		punishmentID: source.ID,
		decision:     "PARDON",
	})
	if _, err := svc.ApplyAppealDecision(ctx, AppealDecisionRequest{
		PlayerID:     "player-a",
		PunishmentID: source.ID,
		AppealID:     "appeal-1",
		Grant:        grant,
		IssuerID:     "appeals-1",
	}); err != nil {
		t.Fatalf("appeal pardon: %v", err)
	}

	tasks, err := store.ListPropagationTasks(ctx, "pending", 10)
	if err != nil {
		t.Fatalf("list propagation tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one propagation task, got %d", len(tasks))
	}
	if tasks[0].PlayerID != "player-b" || tasks[0].PunishmentID != linked.ID {
		t.Fatalf("unexpected task target: %s/%s", tasks[0].PlayerID, tasks[0].PunishmentID)
	}
}

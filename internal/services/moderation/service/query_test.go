package service

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
)

func TestGetPunishmentProjectsAtInstant(t *testing.T) {
	svc, _, _, now := newTestService(t)
	ctx := context.Background()

	created := issueTestBan(t, svc, "player-1", 24*time.Hour)

	view, err := svc.GetPunishment(ctx, "player-1", created.ID, testIssuedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("get punishment: %v", err)
	}
	if view.State != punishment.StateActive {
		t.Fatalf("expected active one hour in, got %v", punishment.StateLabel(view.State))
	}
	expiry, ok := view.Resolution.ExpiresAt()
	if !ok || !expiry.Equal(testIssuedAt.Add(24*time.Hour)) {
		t.Fatalf("unexpected expiry: %v ok=%v", expiry, ok)
	}

	view, err = svc.GetPunishment(ctx, "player-1", created.ID, testIssuedAt.Add(25*time.Hour))
	if err != nil {
		t.Fatalf("get punishment past expiry: %v", err)
	}
	if view.State != punishment.StateExpired {
		t.Fatalf("expected expired past the window, got %v", punishment.StateLabel(view.State))
	}

	// A zero instant projects at the engine clock.
	*now = testIssuedAt.Add(30 * time.Hour)
	view, err = svc.GetPunishment(ctx, "player-1", created.ID, time.Time{})
	if err != nil {
		t.Fatalf("get punishment at clock: %v", err)
	}
	if !view.At.Equal(*now) {
		t.Fatalf("expected the view pinned to the clock, got %v", view.At)
	}
	if view.State != punishment.StateExpired {
		t.Fatalf("expected expired at the clock, got %v", punishment.StateLabel(view.State))
	}
}

func TestListPlayerPunishmentsProjectsEach(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	short := issueTestBan(t, svc, "player-1", 2*time.Hour)
	mute, err := svc.Issue(ctx, IssueRequest{
		PlayerID:         "player-1",
		Type:             punishment.TypeMute,
		Reason:           "slurs in chat",
		Severity:         punishment.SeverityAggravated,
		IssuerID:         "mod-1",
		StartImmediately: true,
	})
	if err != nil {
		t.Fatalf("issue mute: %v", err)
	}

	views, err := svc.ListPlayerPunishments(ctx, "player-1", testIssuedAt.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("list punishments: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected two punishments, got %d", len(views))
	}
	if views[0].Punishment.ID != short.ID || views[1].Punishment.ID != mute.ID {
		t.Fatalf("expected issuance order, got %s then %s", views[0].Punishment.ID, views[1].Punishment.ID)
	}
	if views[0].State != punishment.StateExpired {
		t.Fatalf("expected the short ban expired, got %v", punishment.StateLabel(views[0].State))
	}
	if views[1].State != punishment.StateActive {
		t.Fatalf("expected the permanent mute active, got %v", punishment.StateLabel(views[1].State))
	}

	empty, err := svc.ListPlayerPunishments(ctx, "player-unknown", testIssuedAt)
	if err != nil {
		t.Fatalf("list unknown player: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected an empty list for an unknown player, got %d", len(empty))
	}
}

// seedHistory issues a ban and annotates it, spacing each command on the
// clock so ordering is observable: issued, note, note, evidence.
func seedHistory(t *testing.T, svc *Service, now *time.Time) punishment.Punishment {
	t.Helper()
	ctx := context.Background()
	created := issueTestBan(t, svc, "player-1", 48*time.Hour)

	for i, text := range []string{"spoke with the player", "player acknowledged the rules"} {
		*now = testIssuedAt.Add(time.Duration(i+1) * time.Hour)
		if _, err := svc.AddNote(ctx, AddNoteRequest{
			PlayerID:     "player-1",
			PunishmentID: created.ID,
			IssuerID:     "mod-1",
			Text:         text,
		}); err != nil {
			t.Fatalf("add note %d: %v", i, err)
		}
	}
	*now = testIssuedAt.Add(3 * time.Hour)
	if _, err := svc.AddEvidence(ctx, AddEvidenceRequest{
		PlayerID:     "player-1",
		PunishmentID: created.ID,
		IssuerID:     "mod-1",
		URL:          "https://evidence.example/clip-1",
		Caption:      "grief timelapse",
	}); err != nil {
		t.Fatalf("add evidence: %v", err)
	}
	return created
}

func TestListHistoryPaginates(t *testing.T) {
	svc, _, _, now := newTestService(t)
	ctx := context.Background()

	seedHistory(t, svc, now)

	first, err := svc.ListHistory(ctx, HistoryRequest{PlayerID: "player-1", PageSize: 3})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Events) != 3 {
		t.Fatalf("expected three events on the first page, got %d", len(first.Events))
	}
	if first.Events[0].Type != event.TypePunishmentIssued {
		t.Fatalf("expected issuance first in ascending order, got %s", first.Events[0].Type)
	}
	if first.TotalCount != 4 {
		t.Fatalf("expected four events total, got %d", first.TotalCount)
	}
	if first.NextPageToken == "" {
		t.Fatalf("expected a continuation token")
	}

	second, err := svc.ListHistory(ctx, HistoryRequest{
		PlayerID:  "player-1",
		PageSize:  3,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Events) != 1 {
		t.Fatalf("expected one trailing event, got %d", len(second.Events))
	}
	if second.Events[0].Type != event.TypeEvidenceAdded {
		t.Fatalf("expected the evidence event last, got %s", second.Events[0].Type)
	}
	if second.NextPageToken != "" {
		t.Fatalf("expected no token on the final page, got %q", second.NextPageToken)
	}
}

func TestListHistoryDescendingNewestFirst(t *testing.T) {
	svc, _, _, now := newTestService(t)
	ctx := context.Background()

	seedHistory(t, svc, now)

	page, err := svc.ListHistory(ctx, HistoryRequest{
		PlayerID:   "player-1",
		PageSize:   10,
		Descending: true,
	})
	if err != nil {
		t.Fatalf("descending page: %v", err)
	}
	if len(page.Events) != 4 {
		t.Fatalf("expected four events, got %d", len(page.Events))
	}
	if page.Events[0].Type != event.TypeEvidenceAdded {
		t.Fatalf("expected the newest event first, got %s", page.Events[0].Type)
	}
	if page.Events[3].Type != event.TypePunishmentIssued {
		t.Fatalf("expected the issuance last, got %s", page.Events[3].Type)
	}
}

func TestListHistoryFiltersByEventType(t *testing.T) {
	svc, _, _, now := newTestService(t)
	ctx := context.Background()

	seedHistory(t, svc, now)

	page, err := svc.ListHistory(ctx, HistoryRequest{
		PlayerID: "player-1",
		Filter:   `event_type = "punishment.note_added"`,
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("filtered page: %v", err)
	}
	if len(page.Events) != 2 || page.TotalCount != 2 {
		t.Fatalf("expected the two notes, got %d events total %d", len(page.Events), page.TotalCount)
	}
	for _, evt := range page.Events {
		if evt.Type != event.TypeNoteAdded {
			t.Fatalf("unexpected event type %s", evt.Type)
		}
	}
}

func TestListHistoryRejectsMalformedFilter(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ListHistory(context.Background(), HistoryRequest{
		PlayerID: "player-1",
		Filter:   `event_type ~ "nope"`,
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestListHistoryRejectsTokenFilterMismatch(t *testing.T) {
	svc, _, _, now := newTestService(t)
	ctx := context.Background()

	seedHistory(t, svc, now)

	first, err := svc.ListHistory(ctx, HistoryRequest{PlayerID: "player-1", PageSize: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}

	_, err = svc.ListHistory(ctx, HistoryRequest{
		PlayerID:  "player-1",
		Filter:    `event_type = "punishment.note_added"`,
		PageSize:  2,
		PageToken: first.NextPageToken,
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected a validation error for a re-filtered token, got %v", err)
	}
}

func TestListHistoryRejectsTokenOrderFlip(t *testing.T) {
	svc, _, _, now := newTestService(t)
	ctx := context.Background()

	seedHistory(t, svc, now)

	first, err := svc.ListHistory(ctx, HistoryRequest{PlayerID: "player-1", PageSize: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}

	_, err = svc.ListHistory(ctx, HistoryRequest{
		PlayerID:   "player-1",
		PageSize:   2,
		PageToken:  first.NextPageToken,
		Descending: true,
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected a validation error for a reordered token, got %v", err)
	}
}

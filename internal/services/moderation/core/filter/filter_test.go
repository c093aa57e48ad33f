package filter

import (
	"strings"
	"testing"
	"time"
)

func TestParseEventFilterEmpty(t *testing.T) {
	cond, err := ParseEventFilter("   ")
	if err != nil {
		t.Fatalf("parse empty filter: %v", err)
	}
	if cond.Clause != "" || len(cond.Params) != 0 {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseEventFilterTranslations(t *testing.T) {
	cutoff := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		filter     string
		wantClause string
		wantParams []any
	}{
		{
			name:       "equality",
			filter:     `punishment_id = "pun-1"`,
			wantClause: "punishment_id = ?",
			wantParams: []any{"pun-1"},
		},
		{
			name:       "inequality",
			filter:     `event_type != "punishment.note_added"`,
			wantClause: "event_type != ?",
			wantParams: []any{"punishment.note_added"},
		},
		{
			name:       "conjunction",
			filter:     `actor_type = "staff" AND actor_id = "mod-1"`,
			wantClause: "(actor_type = ? AND actor_id = ?)",
			wantParams: []any{"staff", "mod-1"},
		},
		{
			name:       "disjunction",
			filter:     `event_type = "punishment.pardoned" OR event_type = "punishment.appeal_pardoned"`,
			wantClause: "(event_type = ? OR event_type = ?)",
			wantParams: []any{"punishment.pardoned", "punishment.appeal_pardoned"},
		},
		{
			name:       "timestamp coercion to millis",
			filter:     `timestamp >= timestamp("2026-03-02T10:00:00Z")`,
			wantClause: "timestamp >= ?",
			wantParams: []any{cutoff.UnixMilli()},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cond, err := ParseEventFilter(tc.filter)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.filter, err)
			}
			if cond.Clause != tc.wantClause {
				t.Fatalf("expected clause %q, got %q", tc.wantClause, cond.Clause)
			}
			if len(cond.Params) != len(tc.wantParams) {
				t.Fatalf("expected %d params, got %d", len(tc.wantParams), len(cond.Params))
			}
			for i, want := range tc.wantParams {
				if cond.Params[i] != want {
					t.Fatalf("param %d: expected %v, got %v", i, want, cond.Params[i])
				}
			}
		})
	}
}

func TestParseEventFilterRejectsUnknownField(t *testing.T) {
	_, err := ParseEventFilter(`player_name = "steve"`)
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseEventFilterRejectsBadTimestamp(t *testing.T) {
	_, err := ParseEventFilter(`timestamp > timestamp("yesterday")`)
	if err == nil || !strings.Contains(err.Error(), "timestamp") {
		t.Fatalf("expected timestamp format error, got %v", err)
	}
}

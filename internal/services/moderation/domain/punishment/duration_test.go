package punishment

import (
	"testing"
	"time"
)

var testIssuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func days(n int) *time.Duration {
	d := time.Duration(n) * 24 * time.Hour
	return &d
}

func hours(n int) *time.Duration {
	d := time.Duration(n) * time.Hour
	return &d
}

func startedPunishment(punishmentType Type, duration *time.Duration) Punishment {
	started := testIssuedAt
	return Punishment{
		ID:              "pun-1",
		PlayerID:        "player-1",
		Type:            punishmentType,
		Reason:          "griefing spawn",
		IssuedBy:        "mod-1",
		IssuedAt:        testIssuedAt,
		StartedAt:       &started,
		InitialDuration: duration,
		Version:         1,
	}
}

func modificationAt(modType ModificationType, issuerID string, at time.Time, duration *time.Duration) Modification {
	return Modification{
		ID:                "m-" + ModificationTypeLabel(modType),
		Type:              modType,
		IssuedAt:          at,
		IssuerID:          issuerID,
		Reason:            "test reason",
		EffectiveDuration: duration,
	}
}

func TestResolveDurationPermanentByDefault(t *testing.T) {
	issuance := startedPunishment(TypeBan, nil)

	resolution := ResolveDuration(issuance, nil)
	if resolution.Duration != nil {
		t.Fatalf("expected permanent, got %v", *resolution.Duration)
	}
	if _, ok := resolution.ExpiresAt(); ok {
		t.Fatal("expected no expiry for a permanent punishment")
	}
}

func TestResolveDurationInitial(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(7))

	resolution := ResolveDuration(issuance, nil)
	if resolution.Duration == nil || *resolution.Duration != 7*24*time.Hour {
		t.Fatalf("expected 7d, got %v", resolution.Duration)
	}
	expiry, ok := resolution.ExpiresAt()
	if !ok {
		t.Fatal("expected an expiry")
	}
	if want := testIssuedAt.Add(7 * 24 * time.Hour); !expiry.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, expiry)
	}
}

func TestResolveDurationMostRecentAbsoluteWins(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(7))
	mods := []Modification{
		modificationAt(ModificationManualDurationChange, "mod-1", testIssuedAt.Add(time.Hour), days(3)),
		modificationAt(ModificationAppealReduction, "appeals", testIssuedAt.Add(2*time.Hour), days(1)),
	}

	resolution := ResolveDuration(issuance, mods)
	if resolution.Duration == nil || *resolution.Duration != 24*time.Hour {
		t.Fatalf("expected most recent absolute value 1d, got %v", resolution.Duration)
	}
}

func TestResolveDurationExtensionsAccumulate(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(2))
	mods := []Modification{
		modificationAt(ModificationExtension, "mod-1", testIssuedAt.Add(time.Hour), days(1)),
		modificationAt(ModificationExtension, "mod-1", testIssuedAt.Add(2*time.Hour), hours(12)),
	}

	resolution := ResolveDuration(issuance, mods)
	if want := 3*24*time.Hour + 12*time.Hour; resolution.Duration == nil || *resolution.Duration != want {
		t.Fatalf("expected %v, got %v", want, resolution.Duration)
	}
}

func TestResolveDurationAbsoluteResetsAccumulation(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(2))
	mods := []Modification{
		modificationAt(ModificationExtension, "mod-1", testIssuedAt.Add(time.Hour), days(5)),
		modificationAt(ModificationManualDurationChange, "mod-1", testIssuedAt.Add(2*time.Hour), days(1)),
	}

	resolution := ResolveDuration(issuance, mods)
	if resolution.Duration == nil || *resolution.Duration != 24*time.Hour {
		t.Fatalf("expected absolute set to discard prior extensions, got %v", resolution.Duration)
	}
}

func TestResolveDurationAtIgnoresLaterModifications(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(7))
	mods := []Modification{
		modificationAt(ModificationManualDurationChange, "mod-1", testIssuedAt.Add(48*time.Hour), days(1)),
	}

	early := ResolveDurationAt(issuance, mods, testIssuedAt.Add(24*time.Hour))
	if early.Duration == nil || *early.Duration != 7*24*time.Hour {
		t.Fatalf("expected early resolution to keep 7d, got %v", early.Duration)
	}

	late := ResolveDurationAt(issuance, mods, testIssuedAt.Add(72*time.Hour))
	if late.Duration == nil || *late.Duration != 24*time.Hour {
		t.Fatalf("expected late resolution to see 1d, got %v", late.Duration)
	}
}

func TestResolveDurationStrayExtensionKeepsPermanent(t *testing.T) {
	issuance := startedPunishment(TypeBan, nil)
	mods := []Modification{
		modificationAt(ModificationExtension, "mod-1", testIssuedAt.Add(time.Hour), days(1)),
	}

	resolution := ResolveDuration(issuance, mods)
	if resolution.Duration != nil {
		t.Fatalf("expected stray extension to keep the punishment permanent, got %v", *resolution.Duration)
	}
}

func TestResolveDurationIgnoresStateModifications(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(7))
	mods := []Modification{
		modificationAt(ModificationManualPardon, "senior-1", testIssuedAt.Add(time.Hour), nil),
		modificationAt(ModificationRollback, "admin-1", testIssuedAt.Add(2*time.Hour), nil),
	}

	resolution := ResolveDuration(issuance, mods)
	if resolution.Duration == nil || *resolution.Duration != 7*24*time.Hour {
		t.Fatalf("expected pardon and rollback to leave duration alone, got %v", resolution.Duration)
	}
}

func TestResolutionExpiresAtBeforeStart(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(7))
	issuance.StartedAt = nil

	resolution := ResolveDuration(issuance, nil)
	if _, ok := resolution.ExpiresAt(); ok {
		t.Fatal("expected no expiry before the punishment starts")
	}
}

func TestResolveDurationDoesNotMutateInputs(t *testing.T) {
	issuance := startedPunishment(TypeTempBan, days(7))
	mods := []Modification{
		modificationAt(ModificationExtension, "mod-1", testIssuedAt.Add(time.Hour), days(1)),
	}

	resolution := ResolveDuration(issuance, mods)
	*resolution.Duration = 0

	if *issuance.InitialDuration != 7*24*time.Hour {
		t.Fatal("expected resolution to copy, not alias, the initial duration")
	}
	if *mods[0].EffectiveDuration != 24*time.Hour {
		t.Fatal("expected resolution to copy, not alias, modification durations")
	}
}

package punishment

import "time"

// Resolution is the outcome of duration resolution: when the punishment took
// effect and how long it runs from that point. A nil Duration means permanent.
type Resolution struct {
	StartedAt *time.Time
	Duration  *time.Duration
}

// ExpiresAt returns the instant the punishment lapses. The second return is
// false for punishments that have not started or never expire.
func (r Resolution) ExpiresAt() (time.Time, bool) {
	if r.StartedAt == nil || r.Duration == nil {
		return time.Time{}, false
	}
	return r.StartedAt.Add(*r.Duration), true
}

// ResolveDuration resolves the effective duration from the issuance and the
// full modification history.
func ResolveDuration(issuance Punishment, modifications []Modification) Resolution {
	return resolveDuration(issuance, modifications, nil)
}

// ResolveDurationAt resolves the effective duration as it stood at the
// evaluation time: only modifications issued at or before it participate, so
// past-time resolutions are unaffected by later history.
func ResolveDurationAt(issuance Punishment, modifications []Modification, at time.Time) Resolution {
	return resolveDuration(issuance, modifications, &at)
}

// resolveDuration scans modifications in ledger order. Absolute-setting types
// replace the working duration (most recent wins); extensions accumulate on
// top of it. Pardons, restores, and rollbacks are state concerns and do not
// touch duration.
func resolveDuration(issuance Punishment, modifications []Modification, at *time.Time) Resolution {
	working := copyDuration(issuance.InitialDuration)

	for _, modification := range modifications {
		if at != nil && modification.IssuedAt.After(*at) {
			continue
		}
		switch {
		case SetsAbsoluteDuration(modification.Type):
			working = copyDuration(modification.EffectiveDuration)
		case modification.Type == ModificationExtension:
			// Extending a permanent punishment is rejected at apply
			// time; a stray one in history keeps it permanent.
			if working == nil || modification.EffectiveDuration == nil {
				continue
			}
			extended := *working + *modification.EffectiveDuration
			working = &extended
		}
	}

	return Resolution{
		StartedAt: copyTime(issuance.StartedAt),
		Duration:  working,
	}
}

func copyDuration(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/service"
)

// punishmentTypePool weights issuance toward the common moderation actions.
var punishmentTypePool = []punishment.Type{
	punishment.TypeTempBan,
	punishment.TypeTempBan,
	punishment.TypeBan,
	punishment.TypeMute,
	punishment.TypeMute,
	punishment.TypeKick,
	punishment.TypeWarn,
	punishment.TypeWarn,
	punishment.TypeBlacklist,
	punishment.TypeSecurityBan,
}

var reasonPools = map[punishment.Type][]string{
	punishment.TypeBan: {
		"x-ray mining across multiple sessions",
		"duplication exploit abuse",
		"repeated harassment after final warning",
	},
	punishment.TypeTempBan: {
		"griefing spawn builds",
		"stealing from team storage",
		"combat logging in staged fights",
	},
	punishment.TypeMute: {
		"chat spam after warnings",
		"slurs in public chat",
		"advertising another server",
	},
	punishment.TypeKick: {
		"afk farm on the minigame lobby",
		"inappropriate skin",
	},
	punishment.TypeWarn: {
		"minor chat etiquette violation",
		"build too close to protected area",
	},
	punishment.TypeBlacklist: {
		"chargeback fraud on the store",
		"organized raid coordination",
	},
	punishment.TypeSecurityBan: {
		"compromised account flagged by anti-cheat",
		"credential sharing detected",
	},
}

var notePool = []string{
	"player warned in chat before action was taken",
	"alt account check came back clean",
	"second staff member confirmed the report",
	"player acknowledged the rules in appeal chat",
	"prior incident logged last season",
}

var evidenceCaptions = []string{
	"chat log excerpt",
	"anti-cheat report",
	"screenshot of the build",
	"session replay clip",
}

// seedPlayer generates one player's punishment history.
func (s *Seeder) seedPlayer(ctx context.Context, cfg PresetConfig) error {
	playerID := s.names.playerHandle(s.rng)
	s.playerIDs = append(s.playerIDs, playerID)
	s.summary.Players++

	count := s.randomRange(cfg.PunishmentsMin, cfg.PunishmentsMax)
	for i := 0; i < count; i++ {
		s.advance(time.Duration(s.randomRange(6, 72)) * time.Hour)
		if err := s.seedPunishment(ctx, playerID, cfg); err != nil {
			return fmt.Errorf("punishment %d for %s: %w", i+1, playerID, err)
		}
	}

	s.logf("  Seeded player %s (%d punishment(s))", playerID, count)
	return nil
}

// seedPunishment issues one punishment and rolls its follow-up history:
// start acknowledgement, annotations, manual modifications, and a decided
// appeal.
func (s *Seeder) seedPunishment(ctx context.Context, playerID string, cfg PresetConfig) error {
	typ := punishmentTypePool[s.rng.Intn(len(punishmentTypePool))]
	profile, err := punishment.ProfileFor(typ)
	if err != nil {
		return err
	}

	req := service.IssueRequest{
		PlayerID:         playerID,
		Type:             typ,
		Reason:           s.reasonFor(typ),
		IssuerID:         s.staffIssuer(),
		StartImmediately: true,
		Duration:         s.durationFor(typ, profile),
	}

	// Severity and offense level are mutually exclusive grading scales.
	switch {
	case profile.SupportsSeverity && s.chance(50):
		req.Severity = s.pickSeverity()
	case profile.SupportsOffenseLevel:
		req.OffenseLevel = s.pickOffenseLevel()
	}

	if s.chance(10) {
		req.Flags.AltBlocking = true
	}
	if s.chance(10) {
		req.Flags.Silent = true
	}

	// Some non-instant punishments stay pending until the platform
	// acknowledges the start, mirroring a banned player's next login.
	pending := !profile.Instant && s.chance(20)
	if pending {
		req.StartImmediately = false
	}

	created, err := s.svc.Issue(ctx, req)
	if err != nil {
		return fmt.Errorf("issue %s: %w", punishment.TypeLabel(typ), err)
	}
	s.summary.Punishments++

	if pending && s.chance(60) {
		s.advance(time.Duration(s.randomRange(10, 180)) * time.Minute)
		_, err := s.svc.MarkStarted(ctx, service.MarkStartedRequest{
			PlayerID:     playerID,
			PunishmentID: created.ID,
			IssuerID:     seedSystemIssuerID,
		})
		if err != nil {
			return fmt.Errorf("mark started: %w", err)
		}
	}

	if err := s.seedAnnotations(ctx, playerID, created.ID, cfg); err != nil {
		return err
	}

	// Instant punishments complete at issuance; there is nothing left to
	// modify or appeal.
	if profile.Instant {
		return nil
	}

	pardoned := false
	if s.chance(cfg.ModificationChance) {
		pardoned, err = s.seedModification(ctx, playerID, created)
		if err != nil {
			return err
		}
	}

	if !pardoned && s.chance(cfg.AppealChance) {
		if err := s.seedAppealDecision(ctx, playerID, created); err != nil {
			return err
		}
	}
	return nil
}

// seedAnnotations rolls notes and evidence for a punishment.
func (s *Seeder) seedAnnotations(ctx context.Context, playerID, punishmentID string, cfg PresetConfig) error {
	if s.chance(cfg.NoteChance) {
		count := s.randomRange(1, 2)
		for i := 0; i < count; i++ {
			s.advance(time.Duration(s.randomRange(5, 120)) * time.Minute)
			_, err := s.svc.AddNote(ctx, service.AddNoteRequest{
				PlayerID:     playerID,
				PunishmentID: punishmentID,
				IssuerID:     s.staffIssuer(),
				Text:         notePool[s.rng.Intn(len(notePool))],
			})
			if err != nil {
				return fmt.Errorf("add note: %w", err)
			}
		}
	}

	if s.chance(cfg.EvidenceChance) {
		s.advance(time.Duration(s.randomRange(5, 120)) * time.Minute)
		evidenceID, err := s.nextID()
		if err != nil {
			return err
		}
		_, err = s.svc.AddEvidence(ctx, service.AddEvidenceRequest{
			PlayerID:     playerID,
			PunishmentID: punishmentID,
			IssuerID:     s.staffIssuer(),
			URL:          fmt.Sprintf("https://evidence.modl-panel.test/%s.png", evidenceID),
			Caption:      evidenceCaptions[s.rng.Intn(len(evidenceCaptions))],
		})
		if err != nil {
			return fmt.Errorf("add evidence: %w", err)
		}
	}
	return nil
}

// seedModification applies one manual modification and reports whether it
// pardoned the punishment.
func (s *Seeder) seedModification(ctx context.Context, playerID string, created punishment.Punishment) (bool, error) {
	s.advance(time.Duration(s.randomRange(2, 48)) * time.Hour)

	req := service.ModifyRequest{
		PlayerID:     playerID,
		PunishmentID: created.ID,
	}

	roll := s.rng.Intn(100)
	switch {
	case roll < 35:
		req.Type = punishment.ModificationManualPardon
		req.IssuerID = seedSeniorIssuerID
		req.Reason = "pardoned after staff review"
	case roll < 60 && created.InitialDuration != nil:
		duration := time.Duration(s.randomRange(1, 14)) * 24 * time.Hour
		req.Type = punishment.ModificationManualDurationChange
		req.IssuerID = s.staffIssuer()
		req.Reason = "duration adjusted to match the offense ladder"
		req.Duration = &duration
	case roll < 85 && created.InitialDuration != nil:
		extension := time.Duration(s.randomRange(6, 72)) * time.Hour
		req.Type = punishment.ModificationExtension
		req.IssuerID = s.staffIssuer()
		req.Reason = "extended for continued evasion attempts"
		req.Duration = &extension
	default:
		batchID, err := s.nextID()
		if err != nil {
			return false, err
		}
		req.Type = punishment.ModificationRollback
		req.IssuerID = seedAdminIssuerID
		req.Reason = "voided in an administrative cleanup batch"
		req.RollbackBatchID = batchID
	}

	if _, err := s.svc.Modify(ctx, req); err != nil {
		return false, fmt.Errorf("apply %s: %w", punishment.ModificationTypeLabel(req.Type), err)
	}
	s.summary.Modifications++

	// An occasional restore shows the admin override path in the demo data.
	terminal := req.Type == punishment.ModificationManualPardon || req.Type == punishment.ModificationRollback
	if terminal && s.chance(20) {
		s.advance(time.Duration(s.randomRange(2, 24)) * time.Hour)
		_, err := s.svc.Modify(ctx, service.ModifyRequest{
			PlayerID:     playerID,
			PunishmentID: created.ID,
			Type:         punishment.ModificationManualRestore,
			IssuerID:     seedAdminIssuerID,
			Reason:       "reinstated after new evidence surfaced",
		})
		if err != nil {
			return false, fmt.Errorf("restore: %w", err)
		}
		s.summary.Modifications++
		return false, nil
	}

	return req.Type == punishment.ModificationManualPardon, nil
}

// seedAppealDecision mints a decision grant with the run's keypair and
// applies it through the appeal bridge.
func (s *Seeder) seedAppealDecision(ctx context.Context, playerID string, created punishment.Punishment) error {
	s.advance(time.Duration(s.randomRange(12, 96)) * time.Hour)

	appealID, err := s.nextID()
	if err != nil {
		return err
	}
	jti, err := s.nextID()
	if err != nil {
		return err
	}

	claims := jwt.MapClaims{
		"iss":           seedGrantIssuer,
		"aud":           seedGrantAudience,
		"jti":           jti,
		"exp":           s.now.Add(24 * time.Hour).Unix(),
		"appeal_id":     appealID,
		"player_id":     playerID,
		"punishment_id": created.ID,
		"reviewer_id":   seedSeniorIssuerID,
	}

	profile, err := punishment.ProfileFor(created.Type)
	if err != nil {
		return err
	}

	roll := s.rng.Intn(100)
	switch {
	case roll < 30:
		claims["decision"] = "PARDON"
		claims["comment"] = "first offense with a clean prior record"
	case roll < 55 && created.InitialDuration != nil:
		claims["decision"] = "REDUCE_PERCENTAGE"
		claims["percentage"] = []int{25, 50, 75}[s.rng.Intn(3)]
	case roll < 75 && !profile.AlwaysPermanent:
		claims["decision"] = "REDUCE_FIXED"
		claims["duration_ms"] = (time.Duration(s.randomRange(1, 7)) * 24 * time.Hour).Milliseconds()
	default:
		claims["decision"] = "REJECT"
		claims["comment"] = "evidence stands, punishment upheld"
	}

	grant, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.grantKey)
	if err != nil {
		return fmt.Errorf("sign decision grant: %w", err)
	}

	_, err = s.svc.ApplyAppealDecision(ctx, service.AppealDecisionRequest{
		PlayerID:     playerID,
		PunishmentID: created.ID,
		AppealID:     appealID,
		Grant:        grant,
		IssuerID:     seedAppealsIssuerID,
	})
	if err != nil {
		return fmt.Errorf("apply appeal decision: %w", err)
	}
	s.summary.Appeals++
	return nil
}

// seedLinkedPair seeds an alt-account pair: a source ban flagged to ban
// linked accounts, the linked ban it caused, and a pardon of the source. The
// pardon leaves a propagation task queued so the worker has visible work on
// a fresh environment.
func (s *Seeder) seedLinkedPair(ctx context.Context) error {
	sourceID := s.names.playerHandle(s.rng)
	altID := s.names.playerHandle(s.rng)
	s.playerIDs = append(s.playerIDs, sourceID, altID)
	s.summary.Players += 2

	s.advance(time.Duration(s.randomRange(6, 72)) * time.Hour)
	sourceBan, err := s.svc.Issue(ctx, service.IssueRequest{
		PlayerID:         sourceID,
		Type:             punishment.TypeBan,
		Reason:           "ban evasion ring uncovered by ip correlation",
		Severity:         punishment.SeverityAggravated,
		IssuerID:         seedSeniorIssuerID,
		StartImmediately: true,
		Flags: punishment.Flags{
			AltBlocking:       true,
			BanLinkedAccounts: true,
		},
		LinkedPlayerIDs: []string{altID},
	})
	if err != nil {
		return fmt.Errorf("issue source ban: %w", err)
	}

	s.advance(time.Duration(s.randomRange(5, 60)) * time.Minute)
	_, err = s.svc.Issue(ctx, service.IssueRequest{
		PlayerID:           altID,
		Type:               punishment.TypeLinkedBan,
		Reason:             fmt.Sprintf("linked to %s's ban", sourceID),
		IssuerID:           seedSystemIssuerID,
		StartImmediately:   true,
		LinkedPunishmentID: sourceBan.ID,
	})
	if err != nil {
		return fmt.Errorf("issue linked ban: %w", err)
	}
	s.summary.Punishments += 2

	s.advance(time.Duration(s.randomRange(24, 120)) * time.Hour)
	_, err = s.svc.Modify(ctx, service.ModifyRequest{
		PlayerID:     sourceID,
		PunishmentID: sourceBan.ID,
		Type:         punishment.ModificationManualPardon,
		IssuerID:     seedSeniorIssuerID,
		Reason:       "identity review cleared the account",
	})
	if err != nil {
		return fmt.Errorf("pardon source ban: %w", err)
	}
	s.summary.Modifications++

	s.logf("  Seeded linked pair %s -> %s (pardon queued for propagation)", sourceID, altID)
	return nil
}

func (s *Seeder) reasonFor(typ punishment.Type) string {
	pool := reasonPools[typ]
	if len(pool) == 0 {
		return "rule violation"
	}
	return pool[s.rng.Intn(len(pool))]
}

// durationFor picks an initial duration consistent with the type profile.
func (s *Seeder) durationFor(typ punishment.Type, profile punishment.TypeProfile) *time.Duration {
	if profile.Instant || profile.AlwaysPermanent {
		return nil
	}
	switch typ {
	case punishment.TypeTempBan:
		d := time.Duration(s.randomRange(12, 720)) * time.Hour
		return &d
	case punishment.TypeBan:
		if s.chance(40) {
			return nil
		}
		d := time.Duration(s.randomRange(7, 90)) * 24 * time.Hour
		return &d
	case punishment.TypeMute:
		if s.chance(30) {
			return nil
		}
		d := time.Duration(s.randomRange(1, 168)) * time.Hour
		return &d
	default:
		return nil
	}
}

func (s *Seeder) pickSeverity() punishment.Severity {
	return []punishment.Severity{
		punishment.SeverityLenient,
		punishment.SeverityRegular,
		punishment.SeverityAggravated,
	}[s.rng.Intn(3)]
}

func (s *Seeder) pickOffenseLevel() punishment.OffenseLevel {
	return []punishment.OffenseLevel{
		punishment.OffenseLevelFirst,
		punishment.OffenseLevelMedium,
		punishment.OffenseLevelHabitual,
	}[s.rng.Intn(3)]
}

package scenario

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bongbong-com/modl-panel-sub005/internal/platform/id"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/service"
)

func (r *Runner) runStep(ctx context.Context, step Step) error {
	switch step.Kind {
	case "issue":
		return r.stepIssue(ctx, step.Args)
	case "mark_started":
		return r.stepMarkStarted(ctx, step.Args)
	case "modify":
		return r.stepModify(ctx, step.Args)
	case "appeal":
		return r.stepAppeal(ctx, step.Args)
	case "note":
		return r.stepNote(ctx, step.Args)
	case "evidence":
		return r.stepEvidence(ctx, step.Args)
	case "advance":
		return r.stepAdvance(step.Args)
	case "expect_state":
		return r.stepExpectState(ctx, step.Args)
	case "expect_duration":
		return r.stepExpectDuration(ctx, step.Args)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) stepIssue(ctx context.Context, args map[string]any) error {
	playerID, err := requireString(args, "player")
	if err != nil {
		return err
	}
	typeLabel, err := requireString(args, "type")
	if err != nil {
		return err
	}
	punishmentType, err := punishment.TypeFromLabel(typeLabel)
	if err != nil {
		return err
	}

	req := service.IssueRequest{
		PlayerID:         playerID,
		Type:             punishmentType,
		Reason:           argStringDefault(args, "reason", defaultReason),
		IssuerID:         argStringDefault(args, "issuer", issuerSenior),
		StartImmediately: !argBool(args, "pending"),
		Flags: punishment.Flags{
			AltBlocking:       argBool(args, "alt_blocking"),
			StatWiping:        argBool(args, "stat_wiping"),
			Silent:            argBool(args, "silent"),
			KickSameIP:        argBool(args, "kick_same_ip"),
			BanLinkedAccounts: argBool(args, "ban_linked_accounts"),
		},
		LinkedPlayerIDs: argStringSlice(args, "linked_players"),
	}

	if value := argString(args, "duration"); value != "" {
		duration, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		req.Duration = &duration
	}
	if value := argString(args, "severity"); value != "" {
		severity, err := punishment.SeverityFromLabel(value)
		if err != nil {
			return err
		}
		req.Severity = severity
	}
	if value := argString(args, "offense_level"); value != "" {
		level, err := punishment.OffenseLevelFromLabel(value)
		if err != nil {
			return err
		}
		req.OffenseLevel = level
	}
	if alias := argString(args, "linked_punishment"); alias != "" {
		ref, err := r.resolveRef(alias)
		if err != nil {
			return err
		}
		req.LinkedPunishmentID = ref.PunishmentID
	}

	created, err := r.svc.Issue(ctx, req)
	if err != nil {
		return err
	}

	ref := punishmentRef{PlayerID: playerID, PunishmentID: created.ID}
	r.lastRef = ref
	if alias := argString(args, "as"); alias != "" {
		r.aliases[alias] = ref
	}
	return nil
}

func (r *Runner) stepMarkStarted(ctx context.Context, args map[string]any) error {
	ref, err := r.resolveRef(argString(args, "punishment"))
	if err != nil {
		return err
	}
	_, err = r.svc.MarkStarted(ctx, service.MarkStartedRequest{
		PlayerID:     ref.PlayerID,
		PunishmentID: ref.PunishmentID,
		IssuerID:     argStringDefault(args, "issuer", issuerSystem),
	})
	return err
}

func (r *Runner) stepModify(ctx context.Context, args map[string]any) error {
	ref, err := r.resolveRef(argString(args, "punishment"))
	if err != nil {
		return err
	}
	typeLabel, err := requireString(args, "type")
	if err != nil {
		return err
	}
	modificationType, err := punishment.ModificationTypeFromLabel(typeLabel)
	if err != nil {
		return err
	}

	req := service.ModifyRequest{
		PlayerID:     ref.PlayerID,
		PunishmentID: ref.PunishmentID,
		Type:         modificationType,
		IssuerID:     argStringDefault(args, "issuer", defaultModifyIssuer(modificationType)),
		Reason:       argString(args, "reason"),
	}
	if value := argString(args, "duration"); value != "" {
		duration, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		req.Duration = &duration
	}
	if version, ok := argInt(args, "expected_version"); ok {
		req.ExpectedVersion = uint64(version)
	}
	if modificationType == punishment.ModificationRollback {
		batchID, err := id.NewID()
		if err != nil {
			return err
		}
		req.RollbackBatchID = batchID
	}

	_, err = r.svc.Modify(ctx, req)
	return err
}

// defaultModifyIssuer picks the least-privileged roster identity allowed to
// apply the modification, so scripts only name issuers when testing denials.
func defaultModifyIssuer(modificationType punishment.ModificationType) string {
	switch modificationType {
	case punishment.ModificationRollback, punishment.ModificationManualRestore:
		return issuerAdmin
	default:
		return issuerSenior
	}
}

func (r *Runner) stepAppeal(ctx context.Context, args map[string]any) error {
	ref, err := r.resolveRef(argString(args, "punishment"))
	if err != nil {
		return err
	}
	decision, err := requireString(args, "decision")
	if err != nil {
		return err
	}

	appealID := argString(args, "appeal_id")
	if appealID == "" {
		if appealID, err = id.NewID(); err != nil {
			return err
		}
	}
	jti, err := id.NewID()
	if err != nil {
		return err
	}

	claims := jwt.MapClaims{
		"iss":           grantIssuer,
		"aud":           grantAudience,
		"jti":           jti,
		"exp":           r.now.Add(time.Hour).Unix(),
		"appeal_id":     appealID,
		"player_id":     ref.PlayerID,
		"punishment_id": ref.PunishmentID,
		"decision":      decision,
		"reviewer_id":   argStringDefault(args, "reviewer", issuerSenior),
	}
	if percentage, ok := argInt(args, "percentage"); ok {
		claims["percentage"] = percentage
	}
	if value := argString(args, "duration"); value != "" {
		duration, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		claims["duration_ms"] = duration.Milliseconds()
	}
	if comment := argString(args, "comment"); comment != "" {
		claims["comment"] = comment
	}

	grant, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(r.grantKey)
	if err != nil {
		return fmt.Errorf("sign decision grant: %w", err)
	}

	_, err = r.svc.ApplyAppealDecision(ctx, service.AppealDecisionRequest{
		PlayerID:     ref.PlayerID,
		PunishmentID: ref.PunishmentID,
		AppealID:     appealID,
		Grant:        grant,
		IssuerID:     issuerAppeals,
	})
	return err
}

func (r *Runner) stepNote(ctx context.Context, args map[string]any) error {
	ref, err := r.resolveRef(argString(args, "punishment"))
	if err != nil {
		return err
	}
	text, err := requireString(args, "text")
	if err != nil {
		return err
	}
	_, err = r.svc.AddNote(ctx, service.AddNoteRequest{
		PlayerID:     ref.PlayerID,
		PunishmentID: ref.PunishmentID,
		IssuerID:     argStringDefault(args, "issuer", issuerModerator),
		Text:         text,
	})
	return err
}

func (r *Runner) stepEvidence(ctx context.Context, args map[string]any) error {
	ref, err := r.resolveRef(argString(args, "punishment"))
	if err != nil {
		return err
	}
	url, err := requireString(args, "url")
	if err != nil {
		return err
	}
	_, err = r.svc.AddEvidence(ctx, service.AddEvidenceRequest{
		PlayerID:     ref.PlayerID,
		PunishmentID: ref.PunishmentID,
		IssuerID:     argStringDefault(args, "issuer", issuerModerator),
		URL:          url,
		Caption:      argString(args, "caption"),
	})
	return err
}

func (r *Runner) stepAdvance(args map[string]any) error {
	value, err := requireString(args, "by")
	if err != nil {
		return err
	}
	duration, err := parseDuration(value)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("advance must move time forward, got %s", duration)
	}
	r.now = r.now.Add(duration)
	return nil
}

func (r *Runner) stepExpectState(ctx context.Context, args map[string]any) error {
	ref, err := r.resolveRef(argString(args, "punishment"))
	if err != nil {
		return err
	}
	stateLabel, err := requireString(args, "state")
	if err != nil {
		return err
	}
	want, err := punishment.StateFromLabel(stateLabel)
	if err != nil {
		return err
	}

	at, err := r.evaluationTime(args)
	if err != nil {
		return err
	}
	got, err := r.svc.ProjectState(ctx, ref.PlayerID, ref.PunishmentID, at)
	if err != nil {
		return err
	}
	if got != want {
		return r.assertions.Failf("punishment %s at %s: state = %s, want %s",
			ref.PunishmentID, at.Format(time.RFC3339), punishment.StateLabel(got), punishment.StateLabel(want))
	}
	return nil
}

func (r *Runner) stepExpectDuration(ctx context.Context, args map[string]any) error {
	ref, err := r.resolveRef(argString(args, "punishment"))
	if err != nil {
		return err
	}
	at, err := r.evaluationTime(args)
	if err != nil {
		return err
	}
	view, err := r.svc.GetPunishment(ctx, ref.PlayerID, ref.PunishmentID, at)
	if err != nil {
		return err
	}

	if argBool(args, "permanent") {
		if view.Resolution.Duration != nil {
			return r.assertions.Failf("punishment %s: duration = %s, want permanent",
				ref.PunishmentID, *view.Resolution.Duration)
		}
		return nil
	}

	value, err := requireString(args, "duration")
	if err != nil {
		return err
	}
	want, err := parseDuration(value)
	if err != nil {
		return err
	}
	if view.Resolution.Duration == nil {
		return r.assertions.Failf("punishment %s: duration = permanent, want %s", ref.PunishmentID, want)
	}
	if *view.Resolution.Duration != want {
		return r.assertions.Failf("punishment %s: duration = %s, want %s",
			ref.PunishmentID, *view.Resolution.Duration, want)
	}
	return nil
}

// evaluationTime is the runner clock, optionally offset by an "after"
// duration for projecting ahead without advancing the scenario.
func (r *Runner) evaluationTime(args map[string]any) (time.Time, error) {
	value := argString(args, "after")
	if value == "" {
		return r.now, nil
	}
	offset, err := parseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("after: %w", err)
	}
	return r.now.Add(offset), nil
}

// resolveRef maps a script alias to the punishment it named; an empty alias
// refers to the most recently issued punishment.
func (r *Runner) resolveRef(alias string) (punishmentRef, error) {
	if alias == "" {
		if r.lastRef.PunishmentID == "" {
			return punishmentRef{}, fmt.Errorf("no punishment issued yet")
		}
		return r.lastRef, nil
	}
	ref, ok := r.aliases[alias]
	if !ok {
		return punishmentRef{}, fmt.Errorf("unknown punishment alias %q", alias)
	}
	return ref, nil
}

// parseDuration extends time.ParseDuration with a whole-day suffix, so
// scripts can write "7d" instead of "168h".
func parseDuration(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasSuffix(trimmed, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(trimmed, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	duration, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return duration, nil
}

func argString(args map[string]any, key string) string {
	if value, ok := args[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func argStringDefault(args map[string]any, key, fallback string) string {
	if value := argString(args, key); value != "" {
		return value
	}
	return fallback
}

func requireString(args map[string]any, key string) (string, error) {
	value := argString(args, key)
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func argBool(args map[string]any, key string) bool {
	value, _ := args[key].(bool)
	return value
}

func argInt(args map[string]any, key string) (int, bool) {
	switch value := args[key].(type) {
	case int:
		return value, true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

func argStringSlice(args map[string]any, key string) []string {
	values, ok := args[key].([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, value := range values {
		if text, ok := value.(string); ok {
			result = append(result, text)
		}
	}
	return result
}

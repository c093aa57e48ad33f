package appeal

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
)

// Environment variable names for decision grant verification.
const (
	EnvDecisionGrantIssuer    = "MODL_PANEL_DECISION_GRANT_ISSUER"
	EnvDecisionGrantAudience  = "MODL_PANEL_DECISION_GRANT_AUDIENCE"
	EnvDecisionGrantPublicKey = "MODL_PANEL_DECISION_GRANT_PUBLIC_KEY"
)

// decisionGrantEnv holds raw env values before post-parse validation.
type decisionGrantEnv struct {
	Issuer    string `env:"MODL_PANEL_DECISION_GRANT_ISSUER"`
	Audience  string `env:"MODL_PANEL_DECISION_GRANT_AUDIENCE"`
	PublicKey string `env:"MODL_PANEL_DECISION_GRANT_PUBLIC_KEY"`
}

// DecisionGrantConfig defines how decision grants are verified.
type DecisionGrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// DecisionGrantExpectation pins a grant to the punishment it was decided for.
type DecisionGrantExpectation struct {
	AppealID     string
	PlayerID     string
	PunishmentID string
}

// DecisionGrantClaims captures validated decision grant claims.
type DecisionGrantClaims struct {
	Issuer       string
	Audience     []string
	ExpiresAt    time.Time
	NotBefore    time.Time
	IssuedAt     time.Time
	JWTID        string
	AppealID     string
	PlayerID     string
	PunishmentID string
	Decision     string
	Percentage   int
	DurationMs   *int64
	ReviewerID   string
	Comment      string
}

// decisionGrantClaims is the internal claims type used for JWT parsing.
type decisionGrantClaims struct {
	jwt.RegisteredClaims
	AppealID     string `json:"appeal_id"`
	PlayerID     string `json:"player_id"`
	PunishmentID string `json:"punishment_id"`
	Decision     string `json:"decision"`
	Percentage   int    `json:"percentage,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	ReviewerID   string `json:"reviewer_id"`
	Comment      string `json:"comment,omitempty"`
}

// LoadDecisionGrantConfigFromEnv reads decision grant verification configuration.
func LoadDecisionGrantConfigFromEnv(now func() time.Time) (DecisionGrantConfig, error) {
	var raw decisionGrantEnv
	if err := env.Parse(&raw); err != nil {
		return DecisionGrantConfig{}, fmt.Errorf("parse decision grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return DecisionGrantConfig{}, fmt.Errorf("%s is required", EnvDecisionGrantIssuer)
	}
	if audience == "" {
		return DecisionGrantConfig{}, fmt.Errorf("%s is required", EnvDecisionGrantAudience)
	}
	if publicKey == "" {
		return DecisionGrantConfig{}, fmt.Errorf("%s is required", EnvDecisionGrantPublicKey)
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return DecisionGrantConfig{}, fmt.Errorf("decode decision grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return DecisionGrantConfig{}, fmt.Errorf("decision grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return DecisionGrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// VerifyDecisionGrant verifies a decision grant token and validates that it
// was minted for the expected appeal, player, and punishment. Claim checks
// run manually against the injected clock so verification is deterministic.
func VerifyDecisionGrant(grant string, expected DecisionGrantExpectation, cfg DecisionGrantConfig) (DecisionGrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return DecisionGrantClaims{}, apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return DecisionGrantClaims{}, errors.New("decision grant verifier is not configured")
	}

	var parsed decisionGrantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return DecisionGrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return DecisionGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeAppealGrantMismatch,
			"decision grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return DecisionGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeAppealGrantMismatch,
			"decision grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return DecisionGrantClaims{}, apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return DecisionGrantClaims{}, apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return DecisionGrantClaims{}, apperrors.New(apperrors.CodeAppealGrantExpired, "decision grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return DecisionGrantClaims{}, apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant not active yet")
		}
	}

	if strings.TrimSpace(parsed.AppealID) == "" || parsed.AppealID != expected.AppealID {
		return DecisionGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeAppealGrantMismatch,
			"decision grant appeal mismatch",
			map[string]string{"Field": "appeal_id"},
		)
	}
	if strings.TrimSpace(parsed.PlayerID) == "" || parsed.PlayerID != expected.PlayerID {
		return DecisionGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeAppealGrantMismatch,
			"decision grant player mismatch",
			map[string]string{"Field": "player_id"},
		)
	}
	if strings.TrimSpace(parsed.PunishmentID) == "" || parsed.PunishmentID != expected.PunishmentID {
		return DecisionGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeAppealGrantMismatch,
			"decision grant punishment mismatch",
			map[string]string{"Field": "punishment_id"},
		)
	}
	if strings.TrimSpace(parsed.Decision) == "" {
		return DecisionGrantClaims{}, apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant decision is required")
	}
	if strings.TrimSpace(parsed.ReviewerID) == "" {
		return DecisionGrantClaims{}, apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant reviewer is required")
	}

	claims := DecisionGrantClaims{
		Issuer:       parsed.Issuer,
		Audience:     []string(parsed.Audience),
		ExpiresAt:    exp,
		JWTID:        parsed.ID,
		AppealID:     parsed.AppealID,
		PlayerID:     parsed.PlayerID,
		PunishmentID: parsed.PunishmentID,
		Decision:     parsed.Decision,
		Percentage:   parsed.Percentage,
		DurationMs:   parsed.DurationMs,
		ReviewerID:   parsed.ReviewerID,
		Comment:      parsed.Comment,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeAppealGrantInvalid, "decision grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}

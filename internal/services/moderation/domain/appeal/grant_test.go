package appeal

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
)

func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error with code %s, got %v", code, err)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, domainErr.Code, err)
	}
}

func signDecisionGrant(t *testing.T, privateKey ed25519.PrivateKey, header, payload map[string]any) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signingInput := encodedHeader + "." + encodedPayload
	signature := ed25519.Sign(privateKey, []byte(signingInput))
	encodedSig := base64.RawURLEncoding.EncodeToString(signature)
	return signingInput + "." + encodedSig
}

func baseClaims(now time.Time) map[string]any {
	return map[string]any{
		"iss":           "tickets",
		"aud":           []string{"moderation"},
		"exp":           now.Add(time.Hour).Unix(),
		"iat":           now.Add(-time.Minute).Unix(),
		"jti":           "jti-1",
		"appeal_id":     "appeal-1",
		"player_id":     "player-1",
		"punishment_id": "pun-1",
		"decision":      "PARDON",
		"reviewer_id":   "reviewer-9",
	}
}

func TestLoadDecisionGrantConfigFromEnv(t *testing.T) {
	t.Setenv(EnvDecisionGrantIssuer, "")
	t.Setenv(EnvDecisionGrantAudience, "")
	t.Setenv(EnvDecisionGrantPublicKey, "")

	if _, err := LoadDecisionGrantConfigFromEnv(nil); err == nil {
		t.Fatal("expected error when env vars are missing")
	}

	pubKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	t.Setenv(EnvDecisionGrantIssuer, "tickets")
	t.Setenv(EnvDecisionGrantAudience, "moderation")
	t.Setenv(EnvDecisionGrantPublicKey, base64.RawStdEncoding.EncodeToString(pubKey))

	cfg, err := LoadDecisionGrantConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load decision grant config: %v", err)
	}
	if cfg.Issuer != "tickets" || cfg.Audience != "moderation" {
		t.Fatal("expected issuer and audience to be loaded")
	}
	if len(cfg.Key) != ed25519.PublicKeySize {
		t.Fatalf("expected public key size %d", ed25519.PublicKeySize)
	}
}

func TestVerifyDecisionGrantSuccess(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claims := baseClaims(now)
	claims["decision"] = "REDUCE_PERCENTAGE"
	claims["percentage"] = 50
	claims["comment"] = "first offense"
	grant := signDecisionGrant(t, priv, map[string]any{"alg": "EdDSA", "typ": "JWT"}, claims)

	cfg := DecisionGrantConfig{Issuer: "tickets", Audience: "moderation", Key: pub, Now: func() time.Time { return now }}
	verified, err := VerifyDecisionGrant(grant, DecisionGrantExpectation{
		AppealID:     "appeal-1",
		PlayerID:     "player-1",
		PunishmentID: "pun-1",
	}, cfg)
	if err != nil {
		t.Fatalf("verify decision grant: %v", err)
	}
	if verified.AppealID != "appeal-1" || verified.PlayerID != "player-1" || verified.PunishmentID != "pun-1" {
		t.Fatal("expected identity claims to match")
	}
	if verified.Decision != "REDUCE_PERCENTAGE" || verified.Percentage != 50 {
		t.Fatalf("expected decision claims carried, got %q %d", verified.Decision, verified.Percentage)
	}
	if verified.ReviewerID != "reviewer-9" {
		t.Fatalf("expected reviewer claim, got %q", verified.ReviewerID)
	}
	if verified.Comment != "first offense" {
		t.Fatalf("expected comment claim, got %q", verified.Comment)
	}
}

func TestVerifyDecisionGrantRejections(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expected := DecisionGrantExpectation{AppealID: "appeal-1", PlayerID: "player-1", PunishmentID: "pun-1"}
	cfg := DecisionGrantConfig{Issuer: "tickets", Audience: "moderation", Key: pub, Now: func() time.Time { return now }}
	header := map[string]any{"alg": "EdDSA", "typ": "JWT"}

	tests := []struct {
		name  string
		grant func() string
		code  apperrors.Code
	}{
		{
			name:  "empty grant",
			grant: func() string { return "   " },
			code:  apperrors.CodeAppealGrantInvalid,
		},
		{
			name: "wrong signing key",
			grant: func() string {
				return signDecisionGrant(t, otherPriv, header, baseClaims(now))
			},
			code: apperrors.CodeAppealGrantInvalid,
		},
		{
			name: "expired",
			grant: func() string {
				claims := baseClaims(now)
				claims["exp"] = now.Add(-time.Minute).Unix()
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantExpired,
		},
		{
			name: "not yet valid",
			grant: func() string {
				claims := baseClaims(now)
				claims["nbf"] = now.Add(time.Hour).Unix()
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantInvalid,
		},
		{
			name: "issuer mismatch",
			grant: func() string {
				claims := baseClaims(now)
				claims["iss"] = "someone-else"
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantMismatch,
		},
		{
			name: "audience mismatch",
			grant: func() string {
				claims := baseClaims(now)
				claims["aud"] = []string{"other-service"}
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantMismatch,
		},
		{
			name: "missing jti",
			grant: func() string {
				claims := baseClaims(now)
				delete(claims, "jti")
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantInvalid,
		},
		{
			name: "missing exp",
			grant: func() string {
				claims := baseClaims(now)
				delete(claims, "exp")
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantInvalid,
		},
		{
			name: "punishment mismatch",
			grant: func() string {
				claims := baseClaims(now)
				claims["punishment_id"] = "pun-2"
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantMismatch,
		},
		{
			name: "player mismatch",
			grant: func() string {
				claims := baseClaims(now)
				claims["player_id"] = "player-2"
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantMismatch,
		},
		{
			name: "appeal mismatch",
			grant: func() string {
				claims := baseClaims(now)
				claims["appeal_id"] = "appeal-2"
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantMismatch,
		},
		{
			name: "missing decision",
			grant: func() string {
				claims := baseClaims(now)
				delete(claims, "decision")
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantInvalid,
		},
		{
			name: "missing reviewer",
			grant: func() string {
				claims := baseClaims(now)
				delete(claims, "reviewer_id")
				return signDecisionGrant(t, priv, header, claims)
			},
			code: apperrors.CodeAppealGrantInvalid,
		},
		{
			name: "alg confusion rejected",
			grant: func() string {
				return signDecisionGrant(t, priv, map[string]any{"alg": "HS256", "typ": "JWT"}, baseClaims(now))
			},
			code: apperrors.CodeAppealGrantInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyDecisionGrant(tt.grant(), expected, cfg)
			wantCode(t, err, tt.code)
		})
	}
}

func TestVerifyDecisionGrantUnconfigured(t *testing.T) {
	if _, err := VerifyDecisionGrant("x.y.z", DecisionGrantExpectation{}, DecisionGrantConfig{}); err == nil {
		t.Fatal("expected unconfigured verifier to fail")
	}
}

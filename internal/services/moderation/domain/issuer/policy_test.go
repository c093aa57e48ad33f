package issuer

import (
	"context"
	"errors"
	"testing"
)

func TestPolicyTablePardonSeniorAndAdminOnly(t *testing.T) {
	table := PolicyTable()
	allowed := map[Role]bool{}
	for _, row := range table {
		if row.Capability != CapabilityPardon {
			continue
		}
		allowed[row.Role] = true
	}
	if allowed[RoleModerator] {
		t.Fatal("moderator should not be allowed pardons")
	}
	if !allowed[RoleSeniorModerator] {
		t.Fatal("senior moderator should be allowed pardons")
	}
	if !allowed[RoleAdmin] {
		t.Fatal("admin should be allowed pardons")
	}
	if allowed[RoleAppealsService] {
		t.Fatal("appeals service should not use the manual pardon capability")
	}
}

func TestCan(t *testing.T) {
	tests := []struct {
		name       string
		entry      Issuer
		capability Capability
		allowed    bool
		reasonCode string
	}{
		{
			name:       "moderator can issue",
			entry:      Issuer{ID: "mod-1", Role: RoleModerator, Active: true},
			capability: CapabilityIssue,
			allowed:    true,
			reasonCode: ReasonAllowRole,
		},
		{
			name:       "moderator cannot pardon",
			entry:      Issuer{ID: "mod-1", Role: RoleModerator, Active: true},
			capability: CapabilityPardon,
			allowed:    false,
			reasonCode: ReasonDenyRoleRequired,
		},
		{
			name:       "admin can roll back",
			entry:      Issuer{ID: "admin-1", Role: RoleAdmin, Active: true},
			capability: CapabilityRollback,
			allowed:    true,
			reasonCode: ReasonAllowRole,
		},
		{
			name:       "senior moderator cannot restore",
			entry:      Issuer{ID: "senior-1", Role: RoleSeniorModerator, Active: true},
			capability: CapabilityRestore,
			allowed:    false,
			reasonCode: ReasonDenyRoleRequired,
		},
		{
			name:       "appeals service applies appeal decisions",
			entry:      Issuer{ID: "appeals", Role: RoleAppealsService, Active: true},
			capability: CapabilityAppealDecision,
			allowed:    true,
			reasonCode: ReasonAllowRole,
		},
		{
			name:       "admin cannot apply appeal decisions directly",
			entry:      Issuer{ID: "admin-1", Role: RoleAdmin, Active: true},
			capability: CapabilityAppealDecision,
			allowed:    false,
			reasonCode: ReasonDenyRoleRequired,
		},
		{
			name:       "system owns propagation",
			entry:      Issuer{ID: "system", Role: RoleSystem, Active: true},
			capability: CapabilityPropagate,
			allowed:    true,
			reasonCode: ReasonAllowRole,
		},
		{
			name:       "inactive admin is denied everything",
			entry:      Issuer{ID: "admin-2", Role: RoleAdmin, Active: false},
			capability: CapabilityIssue,
			allowed:    false,
			reasonCode: ReasonDenyIssuerInactive,
		},
		{
			name:       "unknown capability is denied",
			entry:      Issuer{ID: "admin-1", Role: RoleAdmin, Active: true},
			capability: CapabilityUnspecified,
			allowed:    false,
			reasonCode: ReasonDenyUnknownCapability,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Can(tt.entry, tt.capability)
			if decision.Allowed != tt.allowed {
				t.Fatalf("allowed = %v, want %v", decision.Allowed, tt.allowed)
			}
			if decision.ReasonCode != tt.reasonCode {
				t.Fatalf("reason = %q, want %q", decision.ReasonCode, tt.reasonCode)
			}
		})
	}
}

func TestStaticDirectory(t *testing.T) {
	directory := StaticDirectory{
		"mod-1": {ID: "mod-1", Role: RoleModerator, Active: true},
	}

	entry, err := directory.GetIssuer(context.Background(), "mod-1")
	if err != nil {
		t.Fatalf("GetIssuer() error = %v", err)
	}
	if entry.Role != RoleModerator {
		t.Fatalf("role = %v, want %v", entry.Role, RoleModerator)
	}

	if _, err := directory.GetIssuer(context.Background(), "ghost"); !errors.Is(err, ErrUnknownIssuer) {
		t.Fatalf("GetIssuer() error = %v, want %v", err, ErrUnknownIssuer)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := directory.GetIssuer(cancelled, "mod-1"); err == nil {
		t.Fatal("expected cancelled context to fail lookup")
	}
}

func TestRoleFromLabel(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"moderator", RoleModerator},
		{" SENIOR_MODERATOR ", RoleSeniorModerator},
		{"Role_Admin", RoleAdmin},
		{"system", RoleSystem},
		{"APPEALS_SERVICE", RoleAppealsService},
	}
	for _, tt := range tests {
		got, err := RoleFromLabel(tt.input)
		if err != nil {
			t.Fatalf("RoleFromLabel(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("RoleFromLabel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := RoleFromLabel("intern"); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
	if _, err := RoleFromLabel(""); err == nil {
		t.Fatal("expected empty role to be rejected")
	}
}

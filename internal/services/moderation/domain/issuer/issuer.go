// Package issuer models who may act on punishments: staff roles, service
// identities, and the directory they are resolved through. The engine never
// authenticates anyone; callers pass an issuer id and the engine authorizes
// the resolved role against the action.
package issuer

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
)

// Role is the authorization tier of an issuer.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleModerator is the entry staff tier.
	RoleModerator
	// RoleSeniorModerator may additionally pardon punishments.
	RoleSeniorModerator
	// RoleAdmin may additionally restore and roll back punishments.
	RoleAdmin
	// RoleSystem is the server-side service identity used for start
	// acknowledgements and linked-ban propagation.
	RoleSystem
	// RoleAppealsService is the ticket subsystem identity that applies
	// appeal decisions.
	RoleAppealsService
)

var (
	// ErrUnknownIssuer indicates the directory has no record of the issuer.
	ErrUnknownIssuer = apperrors.New(apperrors.CodeUnauthorizedIssuer, "issuer is not known to the directory")
	// ErrInactiveIssuer indicates the issuer exists but is suspended.
	ErrInactiveIssuer = apperrors.New(apperrors.CodeUnauthorizedIssuer, "issuer is inactive")
)

// Issuer is a resolved directory entry.
type Issuer struct {
	ID   string
	Role Role
	// Active is false for suspended staff; inactive issuers are denied
	// regardless of role.
	Active bool
}

// Directory resolves issuer identities. Implementations are external
// dependencies; callers bound lookups with a timeout and surface
// infrastructure failures as dependency errors, never as denials.
type Directory interface {
	GetIssuer(ctx context.Context, issuerID string) (Issuer, error)
}

// StaticDirectory is a map-backed Directory for tools and tests.
type StaticDirectory map[string]Issuer

// GetIssuer implements Directory.
func (d StaticDirectory) GetIssuer(ctx context.Context, issuerID string) (Issuer, error) {
	if err := ctx.Err(); err != nil {
		return Issuer{}, err
	}
	entry, ok := d[issuerID]
	if !ok {
		return Issuer{}, ErrUnknownIssuer
	}
	return entry, nil
}

// RoleLabel returns a stable label for a role.
func RoleLabel(role Role) string {
	switch role {
	case RoleModerator:
		return "MODERATOR"
	case RoleSeniorModerator:
		return "SENIOR_MODERATOR"
	case RoleAdmin:
		return "ADMIN"
	case RoleSystem:
		return "SYSTEM"
	case RoleAppealsService:
		return "APPEALS_SERVICE"
	default:
		return "UNSPECIFIED"
	}
}

// RoleFromLabel parses a string label into a Role.
// It trims whitespace and matches case-insensitively. Both short and
// ROLE_-prefixed forms are accepted.
func RoleFromLabel(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return RoleUnspecified, fmt.Errorf("issuer role is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "MODERATOR", "ROLE_MODERATOR":
		return RoleModerator, nil
	case "SENIOR_MODERATOR", "ROLE_SENIOR_MODERATOR":
		return RoleSeniorModerator, nil
	case "ADMIN", "ROLE_ADMIN":
		return RoleAdmin, nil
	case "SYSTEM", "ROLE_SYSTEM":
		return RoleSystem, nil
	case "APPEALS_SERVICE", "ROLE_APPEALS_SERVICE":
		return RoleAppealsService, nil
	default:
		return RoleUnspecified, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("unknown issuer role: %s", trimmed))
	}
}

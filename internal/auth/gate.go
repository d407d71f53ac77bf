package auth

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bottlecrm/authd/internal/core"
)

// DefaultElevatedExpr reproduces the legacy superadmin rule: membership in
// the operator's trusted mail domain. Deployments should override this
// with an explicit role or claim check.
const DefaultElevatedExpr = `Subject.Email endsWith "@micropyramid.com"`

// ElevatedEnv is the expression environment for the elevated check.
type ElevatedEnv struct {
	Subject *core.Subject
}

// Gate enforces organization-scoped access and role membership on an
// already-established identity. It returns augmented identity copies and
// never mutates its input.
type Gate struct {
	elevated *vm.Program
}

// NewGate compiles the elevated-access expression. An empty expression
// falls back to DefaultElevatedExpr.
func NewGate(elevatedExpr string) (*Gate, error) {
	if elevatedExpr == "" {
		elevatedExpr = DefaultElevatedExpr
	}
	program, err := expr.Compile(elevatedExpr, expr.Env(ElevatedEnv{}), expr.AsBool())
	if err != nil {
		return nil, ConfigurationError(fmt.Sprintf("invalid elevated-access expression: %v", err))
	}
	return &Gate{elevated: program}, nil
}

// RequireOrganization checks the identity against the caller-supplied
// tenant selector and returns a copy carrying the matched membership's
// role and organization.
func (g *Gate) RequireOrganization(identity Identity, organizationID string) (Identity, error) {
	if organizationID == "" {
		return Identity{}, BadRequest("organization ID is required in X-Organization-ID header")
	}

	membership := identity.Subject.MembershipFor(organizationID)
	if membership == nil {
		return Identity{}, Forbidden("access denied to this organization")
	}

	identity.OrganizationID = organizationID
	identity.Role = membership.Role
	org := membership.Organization
	identity.Organization = &org
	return identity, nil
}

// RequireRole fails unless the identity's resolved role is one of allowed.
// It must run after RequireOrganization.
func (g *Gate) RequireRole(identity Identity, allowed ...core.Role) error {
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireElevated runs the configured elevated-access expression against
// the subject.
func (g *Gate) RequireElevated(identity Identity) error {
	out, err := expr.Run(g.elevated, ElevatedEnv{Subject: identity.Subject})
	if err != nil {
		return Internal(fmt.Errorf("evaluating elevated-access expression: %w", err))
	}
	if ok, _ := out.(bool); !ok {
		return Forbidden("super admin access required")
	}
	return nil
}

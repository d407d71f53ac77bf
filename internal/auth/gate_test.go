package auth

import (
	"testing"

	"github.com/bottlecrm/authd/internal/core"
)

func testIdentity() Identity {
	return Identity{
		Kind: KindBearer,
		Subject: &core.Subject{
			ID:    "alice",
			Email: "alice@example.com",
			Memberships: []core.Membership{
				{
					OrganizationID: "org-1",
					Role:           core.RoleAdmin,
					Organization:   core.Organization{ID: "org-1", Name: "Acme"},
				},
				{
					OrganizationID: "org-2",
					Role:           core.RoleMember,
					Organization:   core.Organization{ID: "org-2", Name: "Globex"},
				},
			},
		},
	}
}

func TestRequireOrganization(t *testing.T) {
	gate, err := NewGate("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		orgID    string
		wantCode Code
		wantRole core.Role
	}{
		{name: "missing selector", orgID: "", wantCode: CodeBadRequest},
		{name: "not a member", orgID: "org-3", wantCode: CodeForbidden},
		{name: "admin membership", orgID: "org-1", wantRole: core.RoleAdmin},
		{name: "member membership", orgID: "org-2", wantRole: core.RoleMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := testIdentity()
			scoped, err := gate.RequireOrganization(identity, tt.orgID)

			if tt.wantCode != "" {
				wantCode(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if scoped.OrganizationID != tt.orgID {
				t.Fatalf("expected org %s, got %s", tt.orgID, scoped.OrganizationID)
			}
			if scoped.Role != tt.wantRole {
				t.Fatalf("expected role %s, got %s", tt.wantRole, scoped.Role)
			}
			if scoped.Organization == nil || scoped.Organization.ID != tt.orgID {
				t.Fatal("expected organization attached to scoped identity")
			}

			// input identity stays untouched
			if identity.OrganizationID != "" || identity.Organization != nil {
				t.Fatal("gate mutated its input identity")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	gate, err := NewGate("")
	if err != nil {
		t.Fatal(err)
	}

	scoped, err := gate.RequireOrganization(testIdentity(), "org-2")
	if err != nil {
		t.Fatal(err)
	}

	if err := gate.RequireRole(scoped, core.RoleMember, core.RoleAdmin); err != nil {
		t.Fatalf("expected member role to pass, got %v", err)
	}
	if err := gate.RequireRole(scoped, core.RoleAdmin); err == nil {
		t.Fatal("expected member to fail an admin-only check")
	} else {
		wantCode(t, err, CodeForbidden)
	}
}

func TestRequireElevated(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		email   string
		wantOK  bool
		wantErr bool
	}{
		{name: "default rule, trusted domain", expr: "", email: "ops@micropyramid.com", wantOK: true},
		{name: "default rule, outside domain", expr: "", email: "alice@example.com", wantOK: false},
		{name: "custom rule match", expr: `Subject.Email == "root@example.com"`, email: "root@example.com", wantOK: true},
		{name: "custom rule mismatch", expr: `Subject.Email == "root@example.com"`, email: "alice@example.com", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, err := NewGate(tt.expr)
			if err != nil {
				t.Fatal(err)
			}

			identity := testIdentity()
			identity.Subject.Email = tt.email

			err = gate.RequireElevated(identity)
			if tt.wantOK && err != nil {
				t.Fatalf("expected elevated access, got %v", err)
			}
			if !tt.wantOK {
				wantCode(t, err, CodeForbidden)
			}
		})
	}
}

func TestNewGateRejectsBadExpression(t *testing.T) {
	if _, err := NewGate("this is not an expression ((("); err == nil {
		t.Fatal("expected compile error")
	}
}

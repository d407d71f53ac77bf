package core

import "time"

// Role is the role a subject holds inside one organization.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// Organization is a tenant. Every business record in the CRM is scoped
// to exactly one organization; the auth layer only needs id and name.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Membership links a subject to an organization with a role.
type Membership struct {
	OrganizationID string       `json:"organization_id"`
	Role           Role         `json:"role"`
	Organization   Organization `json:"organization"`
}

// Subject is an account that can authenticate. It is the owner of
// bearer credentials and agent sessions.
type Subject struct {
	// ID is the stable internal identifier (UUID).
	ID string `json:"id"`

	Email string `json:"email"`
	Name  string `json:"name"`

	// PasswordHash is the bcrypt hash for password login.
	// Empty for subjects created via federated or agent login only.
	PasswordHash string `json:"-"`

	Phone        string `json:"phone,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`

	// OpenID and UnionID are the external platform's account identifiers,
	// set when the subject was created or linked via the agent flow.
	OpenID  string `json:"open_id,omitempty"`
	UnionID string `json:"union_id,omitempty"`

	// Active guards login; inactive subjects cannot obtain new credentials.
	Active bool `json:"active"`

	LastLoginAt time.Time `json:"last_login_at,omitempty"`

	// Memberships are the subject's organization memberships, resolved
	// eagerly so the authorization gate never hits the store again.
	Memberships []Membership `json:"memberships"`
}

// MembershipFor returns the membership for the given organization, or nil.
func (s *Subject) MembershipFor(organizationID string) *Membership {
	for i := range s.Memberships {
		if s.Memberships[i].OrganizationID == organizationID {
			return &s.Memberships[i]
		}
	}
	return nil
}

package auth

import "github.com/bottlecrm/authd/internal/core"

// Kind says which validator produced an Identity.
type Kind string

const (
	// KindBearer is standard bearer-token authentication.
	KindBearer Kind = "bearer"

	// KindExternalAgent is the external mobile-assistant session path.
	KindExternalAgent Kind = "external_agent"
)

// Identity is the normalized result of successful authentication. It is a
// request-scoped value passed explicitly from the dispatcher through the
// authorization gate to the handler; it is never mutated after creation,
// the gate returns an augmented copy instead.
type Identity struct {
	Subject *core.Subject
	Kind    Kind

	// CredentialID is set for KindBearer: the store row of the presented token.
	CredentialID string

	// SessionHandle, OpenID and UnionID are set for KindExternalAgent.
	SessionHandle string
	OpenID        string
	UnionID       string

	// OrganizationID, Role and Organization are populated by the
	// authorization gate once a tenant selector has been checked.
	OrganizationID string
	Role           core.Role
	Organization   *core.Organization
}

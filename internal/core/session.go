package core

import "time"

// AgentSession is one login of the external mobile-assistant platform.
// Unlike a Credential its handle carries no signature; it is trusted
// purely because it is found in the store under the active predicate.
//
// Policy: at most one active session per subject. A new successful
// authorization bulk-revokes all earlier sessions before creating its own.
type AgentSession struct {
	// ID is the internal row identifier.
	ID string `json:"id"`

	// Handle is the opaque session id presented by the platform on every call.
	Handle string `json:"-"`

	// SubjectID is the owning subject.
	SubjectID string `json:"subject_id"`

	// OpenID is the platform's account identifier for the subject.
	// UnionID is the cross-application identifier, when the platform sends one.
	OpenID  string `json:"open_id"`
	UnionID string `json:"union_id,omitempty"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Revoked bool `json:"revoked"`

	LastUsedAt time.Time `json:"last_used_at,omitempty"`

	DeviceInfo string `json:"device_info,omitempty"`
	SourceAddr string `json:"source_addr,omitempty"`
}

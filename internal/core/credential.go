package core

import "time"

// Credential is one issued bearer token. A subject may hold many at once
// (one per device). Rows are never deleted, only revoked, so the table
// doubles as an audit trail of every credential ever handed out.
type Credential struct {
	// ID is the internal row identifier.
	ID string `json:"id"`

	// Token is the signed bearer token itself, used verbatim as lookup key.
	Token string `json:"-"`

	// SubjectID is the owning subject.
	SubjectID string `json:"subject_id"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Revoked is a one-way flag; once set it is never cleared.
	Revoked bool `json:"revoked"`

	// LastUsedAt is advisory only, updated on successful validation.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`

	// DeviceInfo and SourceAddr are captured at issuance for audit.
	// They play no part in validation.
	DeviceInfo string `json:"device_info,omitempty"`
	SourceAddr string `json:"source_addr,omitempty"`
}

// Expired reports whether the credential is past its expiry at the given time.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

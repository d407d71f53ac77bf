package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "credential.issue", "session.authorize")
	Action string `json:"action"`

	// SubjectID identifies who the event is about, if known
	SubjectID string `json:"subject_id,omitempty"`

	// AuthKind is the credential kind involved ("bearer", "external_agent")
	AuthKind string `json:"auth_kind,omitempty"`

	Granted bool   `json:"granted"`
	Error   string `json:"error,omitempty"`

	// Metadata contains extra details (revoked counts, device info, ...)
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

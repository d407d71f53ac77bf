package core

import (
	"context"
	"time"
)

// CredentialStore manages the lifecycle of issued bearer credentials.
// Implementations must provide atomic per-record updates; no cross-record
// transactions are required.
type CredentialStore interface {
	// CreateCredential records a newly issued credential.
	CreateCredential(ctx context.Context, cred Credential) error

	// FindCredentialByToken returns the credential for the raw token string,
	// or nil if no such credential was ever issued.
	FindCredentialByToken(ctx context.Context, token string) (*Credential, error)

	// RevokeCredential flips the revoked flag. Revoking an already revoked
	// credential is a no-op, not an error.
	RevokeCredential(ctx context.Context, id string) error

	// RevokeCredentialsForSubject revokes every non-revoked credential owned
	// by the subject and returns how many were flipped.
	RevokeCredentialsForSubject(ctx context.Context, subjectID string) (int64, error)

	// ExpireCredentialIfPast transitions the credential to revoked iff its
	// expiry is at or before now. It reports whether the transition happened
	// in this call. The write is conditional and idempotent, so concurrent
	// observers of the same expired credential all end up seeing it revoked.
	ExpireCredentialIfPast(ctx context.Context, id string, now time.Time) (bool, error)

	// TouchCredential updates the last-used timestamp. Best-effort; callers
	// log failures and move on.
	TouchCredential(ctx context.Context, id string, now time.Time) error
}

// AgentSessionStore manages external-platform agent sessions.
type AgentSessionStore interface {
	// CreateSession records a new agent session.
	CreateSession(ctx context.Context, sess AgentSession) error

	// FindActiveSession returns the session for the handle iff it exists,
	// is not revoked, and expires after now. Any miss returns nil; the
	// caller must not be able to tell which condition failed.
	FindActiveSession(ctx context.Context, handle string, now time.Time) (*AgentSession, error)

	// FindSession returns the session for the handle regardless of state,
	// or nil. Used by the deauthorization callback.
	FindSession(ctx context.Context, handle string) (*AgentSession, error)

	// RevokeSession flips the revoked flag, idempotently.
	RevokeSession(ctx context.Context, id string) error

	// RevokeSessionsForSubject revokes every non-revoked session owned by
	// the subject and returns how many were flipped.
	RevokeSessionsForSubject(ctx context.Context, subjectID string) (int64, error)

	// TouchSession updates the last-used timestamp. Best-effort.
	TouchSession(ctx context.Context, id string, now time.Time) error
}

// SubjectStore resolves and maintains subjects.
type SubjectStore interface {
	// FindSubjectByID returns the subject with memberships resolved, or nil.
	FindSubjectByID(ctx context.Context, id string) (*Subject, error)

	// FindSubjectByEmail returns the subject for the (lowercased) email, or nil.
	FindSubjectByEmail(ctx context.Context, email string) (*Subject, error)

	// FindSubjectByOpenID returns the subject linked to the external
	// platform account, or nil.
	FindSubjectByOpenID(ctx context.Context, openID string) (*Subject, error)

	// CreateSubject persists a new subject. The subject must have ID set.
	CreateSubject(ctx context.Context, sub *Subject) error

	// UpdateSubject persists mutable profile fields (name, phone, image,
	// union id, last login). Memberships are not written through this path.
	UpdateSubject(ctx context.Context, sub *Subject) error
}

// Store is the durable backend behind the auth layer.
type Store interface {
	CredentialStore
	AgentSessionStore
	SubjectStore
}

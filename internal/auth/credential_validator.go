package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bottlecrm/authd/internal/core"
)

// CredentialValidator validates bearer tokens: signature first, then the
// durable record. A token that verifies cryptographically is still useless
// if its row is missing, revoked, or past expiry.
type CredentialValidator struct {
	issuer   *Issuer
	store    core.CredentialStore
	subjects core.SubjectStore
	now      func() time.Time
}

func NewCredentialValidator(issuer *Issuer, store core.CredentialStore, subjects core.SubjectStore) *CredentialValidator {
	return &CredentialValidator{
		issuer:   issuer,
		store:    store,
		subjects: subjects,
		now:      time.Now,
	}
}

// Validate checks the raw token end to end and returns the identity it
// proves. Observing expiry durably revokes the credential before the
// failure is surfaced, so a concurrent validation of the same token can
// never report it as still valid.
func (v *CredentialValidator) Validate(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, &Error{
			Code:    CodeUnauthenticated,
			Status:  ErrUnauthenticated.Status,
			Message: "access denied: no token provided",
		}
	}

	if _, err := v.issuer.parse(rawToken); err != nil {
		// The claims-level expiry check fires before the store lookup, but
		// the durable transition must still happen: find the row and revoke
		// it before surfacing the failure.
		if errors.Is(err, ErrCredentialExpired) {
			if expireErr := v.expireByToken(ctx, rawToken); expireErr != nil {
				return nil, expireErr
			}
		}
		return nil, err
	}

	cred, err := v.store.FindCredentialByToken(ctx, rawToken)
	if err != nil {
		return nil, Internal(fmt.Errorf("looking up credential: %w", err))
	}
	if cred == nil {
		return nil, &Error{
			Code:    CodeInvalidCredential,
			Status:  ErrInvalidCredential.Status,
			Message: "invalid token: token not found",
		}
	}

	if cred.Revoked {
		return nil, ErrCredentialRevoked
	}

	now := v.now()
	if cred.Expired(now) {
		// Lazy revoke: the expiry observation itself is the revoking event.
		// The write must be durable before we fail the request.
		if _, err := v.store.ExpireCredentialIfPast(ctx, cred.ID, now); err != nil {
			return nil, Internal(fmt.Errorf("revoking expired credential: %w", err))
		}
		return nil, ErrCredentialExpired
	}

	subject, err := v.subjects.FindSubjectByID(ctx, cred.SubjectID)
	if err != nil {
		return nil, Internal(fmt.Errorf("resolving subject: %w", err))
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}

	if err := v.store.TouchCredential(ctx, cred.ID, now); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("credential_id", cred.ID).
			Msg("failed to update credential last-used timestamp")
	}

	return &Identity{
		Subject:      subject,
		Kind:         KindBearer,
		CredentialID: cred.ID,
	}, nil
}

// expireByToken applies the expiry transition to the row backing a token
// whose claims already proved stale. A token without a row needs nothing.
func (v *CredentialValidator) expireByToken(ctx context.Context, rawToken string) error {
	cred, err := v.store.FindCredentialByToken(ctx, rawToken)
	if err != nil {
		return Internal(fmt.Errorf("looking up credential: %w", err))
	}
	if cred == nil || cred.Revoked {
		return nil
	}
	if _, err := v.store.ExpireCredentialIfPast(ctx, cred.ID, v.now()); err != nil {
		return Internal(fmt.Errorf("revoking expired credential: %w", err))
	}
	return nil
}

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bottlecrm/authd/internal/core"
)

// AgentSessionValidator validates opaque session handles issued to the
// external mobile-assistant platform. There is no signature step; trust
// comes entirely from the durable store. All misses collapse into one
// SessionInvalid answer so callers cannot enumerate which handles exist.
type AgentSessionValidator struct {
	store    core.AgentSessionStore
	subjects core.SubjectStore

	// channelSecret, when non-empty, gates the whole channel: a provided
	// key that does not match fails before any handle lookup.
	channelSecret string

	now func() time.Time
}

func NewAgentSessionValidator(store core.AgentSessionStore, subjects core.SubjectStore, channelSecret string) *AgentSessionValidator {
	return &AgentSessionValidator{
		store:         store,
		subjects:      subjects,
		channelSecret: channelSecret,
		now:           time.Now,
	}
}

// CheckChannelSecret compares a provided shared-secret value against the
// configured one. An empty providedKey passes when the check is optional:
// the platform only sends the header on some deployments.
func (v *AgentSessionValidator) CheckChannelSecret(providedKey string) error {
	if v.channelSecret == "" || providedKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(providedKey), []byte(v.channelSecret)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// RequireChannelSecret is the strict variant used on the agent message
// channel: the key must be configured, present and matching.
func (v *AgentSessionValidator) RequireChannelSecret(providedKey string) error {
	if v.channelSecret == "" {
		return ConfigurationError("agent channel secret not configured")
	}
	if providedKey == "" {
		return &Error{
			Code:    CodeInvalidAPIKey,
			Status:  ErrInvalidAPIKey.Status,
			Message: "missing API key",
		}
	}
	if subtle.ConstantTimeCompare([]byte(providedKey), []byte(v.channelSecret)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// Validate looks up an active session for the handle and returns the
// identity it proves.
func (v *AgentSessionValidator) Validate(ctx context.Context, handle string) (*Identity, error) {
	if handle == "" {
		return nil, &Error{
			Code:    CodeUnauthenticated,
			Status:  ErrUnauthenticated.Status,
			Message: "access denied: no agent session provided",
		}
	}

	now := v.now()

	// Single active-predicate query; never-existed, revoked and expired are
	// indistinguishable from here on.
	sess, err := v.store.FindActiveSession(ctx, handle, now)
	if err != nil {
		return nil, Internal(fmt.Errorf("looking up agent session: %w", err))
	}
	if sess == nil {
		return nil, ErrSessionInvalid
	}

	subject, err := v.subjects.FindSubjectByID(ctx, sess.SubjectID)
	if err != nil {
		return nil, Internal(fmt.Errorf("resolving subject: %w", err))
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}

	if err := v.store.TouchSession(ctx, sess.ID, now); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", sess.ID).
			Msg("failed to update agent session last-used timestamp")
	}

	return &Identity{
		Subject:       subject,
		Kind:          KindExternalAgent,
		SessionHandle: sess.Handle,
		OpenID:        sess.OpenID,
		UnionID:       sess.UnionID,
	}, nil
}

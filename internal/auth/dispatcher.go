package auth

import (
	"context"
	"net/http"
	"strings"
)

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*Identity, error)
}

// SessionValidator validates an opaque agent session handle.
type SessionValidator interface {
	Validate(ctx context.Context, handle string) (*Identity, error)
}

// Dispatcher decides which validator a request goes to. The precedence is
// fixed: a presented bearer token is always tried first, and its failure is
// final. A bearer failure never falls through to the agent-session path,
// otherwise a forged token plus a stolen handle would get two chances.
type Dispatcher struct {
	tokens   TokenValidator
	sessions SessionValidator
}

func NewDispatcher(tokens TokenValidator, sessions SessionValidator) *Dispatcher {
	return &Dispatcher{tokens: tokens, sessions: sessions}
}

// Authenticate resolves an identity from whichever credential material is
// present. The Authorization header being present at all is what routes the
// request to the bearer path, even when the token after the marker turns
// out to be empty. Both inputs empty yields an Unauthenticated error whose
// message tells the caller what to send.
func (d *Dispatcher) Authenticate(ctx context.Context, authorization, sessionHandle string) (*Identity, error) {
	if authorization != "" {
		return d.tokens.Validate(ctx, bearerToken(authorization))
	}

	if sessionHandle != "" {
		if d.sessions == nil {
			return nil, &Error{
				Code:    CodeUnauthenticated,
				Status:  http.StatusUnauthorized,
				Message: "agent sessions are not enabled on this server",
			}
		}
		return d.sessions.Validate(ctx, sessionHandle)
	}

	return nil, &Error{
		Code:    CodeUnauthenticated,
		Status:  http.StatusUnauthorized,
		Message: "access denied: provide a Bearer token or an agent session header",
	}
}

// bearerToken strips the bearer marker from an Authorization header value.
// "Bearer " followed by nothing yields an empty token, which the token
// validator rejects; it must never divert the request to the session path.
func bearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
}

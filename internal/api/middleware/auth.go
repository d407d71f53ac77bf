package middleware

import (
	"context"
	"net/http"

	"github.com/bottlecrm/authd/internal/api/presenter"
	"github.com/bottlecrm/authd/internal/auth"
)

const (
	// AgentSessionHeader carries the opaque session handle on requests made
	// on behalf of an external assistant conversation.
	AgentSessionHeader = "X-Agent-Session-Id"

	// OrganizationHeader selects the tenant for organization-scoped routes.
	OrganizationHeader = "X-Organization-ID"
)

type identityKeyType struct{}

var identityKey identityKeyType

// IdentityCtx returns the authenticated identity stored by Authenticate.
func IdentityCtx(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey).(*auth.Identity)
	return id
}

func withIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticate resolves the request's identity through the dispatcher and
// rejects the request if no validator accepts it. The raw Authorization
// header goes through untouched; the dispatcher decides what its presence
// means.
func Authenticate(d *auth.Dispatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := d.Authenticate(r.Context(), r.Header.Get("Authorization"), r.Header.Get(AgentSessionHeader))
			if err != nil {
				presenter.Err(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireOrganization gates the wrapped handler on tenant membership. It
// replaces the context identity with the gate's org-scoped copy.
func RequireOrganization(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityCtx(r.Context())
			if identity == nil {
				presenter.Err(w, r, auth.ErrUnauthenticated)
				return
			}

			scoped, err := gate.RequireOrganization(*identity, r.Header.Get(OrganizationHeader))
			if err != nil {
				presenter.Err(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), &scoped)))
		})
	}
}

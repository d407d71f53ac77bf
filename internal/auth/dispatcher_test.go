package auth

import (
	"context"
	"testing"

	"github.com/bottlecrm/authd/internal/core"
)

type spyTokenValidator struct {
	calls    int
	gotToken string
	identity *Identity
	err      error
}

func (s *spyTokenValidator) Validate(_ context.Context, rawToken string) (*Identity, error) {
	s.calls++
	s.gotToken = rawToken
	return s.identity, s.err
}

type spySessionValidator struct {
	calls    int
	identity *Identity
	err      error
}

func (s *spySessionValidator) Validate(_ context.Context, _ string) (*Identity, error) {
	s.calls++
	return s.identity, s.err
}

func TestDispatcherPrecedence(t *testing.T) {
	bearerIdentity := &Identity{Kind: KindBearer, Subject: &core.Subject{ID: "alice"}}
	agentIdentity := &Identity{Kind: KindExternalAgent, Subject: &core.Subject{ID: "bob"}}

	tests := []struct {
		name          string
		authorization string
		handle        string
		tokenErr      error
		wantKind      Kind
		wantCode      Code
		wantToken     int
		wantExtracted string
		wantSession   int
	}{
		{
			name:          "bearer only",
			authorization: "Bearer some-token",
			wantKind:      KindBearer,
			wantToken:     1,
			wantExtracted: "some-token",
			wantSession:   0,
		},
		{
			name:        "session only",
			handle:      "some-handle",
			wantKind:    KindExternalAgent,
			wantToken:   0,
			wantSession: 1,
		},
		{
			name:          "both present, bearer wins",
			authorization: "Bearer some-token",
			handle:        "some-handle",
			wantKind:      KindBearer,
			wantToken:     1,
			wantExtracted: "some-token",
			wantSession:   0,
		},
		{
			name:          "bearer failure never falls through to the session path",
			authorization: "Bearer bad-token",
			handle:        "some-handle",
			tokenErr:      ErrInvalidCredential,
			wantCode:      CodeInvalidCredential,
			wantToken:     1,
			wantExtracted: "bad-token",
			wantSession:   0,
		},
		{
			name:          "bearer marker with empty token stays on the bearer path",
			authorization: "Bearer ",
			handle:        "some-handle",
			tokenErr:      ErrUnauthenticated,
			wantCode:      CodeUnauthenticated,
			wantToken:     1,
			wantExtracted: "",
			wantSession:   0,
		},
		{
			name:        "neither present",
			wantCode:    CodeUnauthenticated,
			wantToken:   0,
			wantSession: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &spyTokenValidator{identity: bearerIdentity, err: tt.tokenErr}
			sessions := &spySessionValidator{identity: agentIdentity}
			d := NewDispatcher(tokens, sessions)

			identity, err := d.Authenticate(context.Background(), tt.authorization, tt.handle)

			if tt.wantCode != "" {
				wantCode(t, err, tt.wantCode)
			} else {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if identity.Kind != tt.wantKind {
					t.Fatalf("expected kind %s, got %s", tt.wantKind, identity.Kind)
				}
			}

			if tokens.calls != tt.wantToken {
				t.Fatalf("expected %d token validator call(s), got %d", tt.wantToken, tokens.calls)
			}
			if tokens.calls > 0 && tokens.gotToken != tt.wantExtracted {
				t.Fatalf("expected extracted token %q, got %q", tt.wantExtracted, tokens.gotToken)
			}
			if sessions.calls != tt.wantSession {
				t.Fatalf("expected %d session validator call(s), got %d", tt.wantSession, sessions.calls)
			}
		})
	}
}

func TestDispatcherWithoutSessionValidator(t *testing.T) {
	d := NewDispatcher(&spyTokenValidator{}, nil)

	_, err := d.Authenticate(context.Background(), "", "some-handle")
	wantCode(t, err, CodeUnauthenticated)
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/bottlecrm/authd/internal/core"
	"github.com/bottlecrm/authd/internal/store"
)

func newAgentSetup(t *testing.T, channelSecret string) (*AgentSessionValidator, *store.Memory, *testClock) {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mem := store.NewMemory()
	validator := NewAgentSessionValidator(mem, mem, channelSecret)
	validator.now = clock.Now
	return validator, mem, clock
}

func seedSession(t *testing.T, mem *store.Memory, clock *testClock, subjectID, handle string, ttl time.Duration) core.AgentSession {
	t.Helper()
	sess := core.AgentSession{
		ID:        "sess-" + handle,
		Handle:    handle,
		SubjectID: subjectID,
		OpenID:    "open-" + subjectID,
		UnionID:   "union-" + subjectID,
		IssuedAt:  clock.Now(),
		ExpiresAt: clock.Now().Add(ttl),
	}
	if err := mem.CreateSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestAgentSessionValidatorHappyPath(t *testing.T) {
	validator, mem, clock := newAgentSetup(t, "")
	seedSubject(t, mem, "alice")
	seedSession(t, mem, clock, "alice", "handle-1", 168*time.Hour)

	identity, err := validator.Validate(context.Background(), "handle-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if identity.Kind != KindExternalAgent {
		t.Fatalf("expected external_agent kind, got %s", identity.Kind)
	}
	if identity.SessionHandle != "handle-1" {
		t.Fatalf("expected handle-1, got %s", identity.SessionHandle)
	}
	if identity.OpenID != "open-alice" || identity.UnionID != "union-alice" {
		t.Fatalf("expected platform identifiers, got %q / %q", identity.OpenID, identity.UnionID)
	}
}

// TestSessionMissesAreIndistinguishable: a handle that never existed, one
// that was revoked and one that expired must all fail with the same code
// and message, so callers cannot tell which handles exist.
func TestSessionMissesAreIndistinguishable(t *testing.T) {
	validator, mem, clock := newAgentSetup(t, "")
	seedSubject(t, mem, "alice")

	revoked := seedSession(t, mem, clock, "alice", "revoked-handle", 168*time.Hour)
	if err := mem.RevokeSession(context.Background(), revoked.ID); err != nil {
		t.Fatal(err)
	}

	seedSession(t, mem, clock, "alice", "expired-handle", time.Hour)
	clock.Advance(2 * time.Hour)

	var messages []string
	for _, handle := range []string{"never-existed", "revoked-handle", "expired-handle"} {
		t.Run(handle, func(t *testing.T) {
			_, err := validator.Validate(context.Background(), handle)
			wantCode(t, err, CodeSessionInvalid)
			messages = append(messages, err.Error())
		})
	}

	for i := 1; i < len(messages); i++ {
		if messages[i] != messages[0] {
			t.Fatalf("miss messages differ: %q vs %q", messages[0], messages[i])
		}
	}
}

func TestAgentSessionValidatorEmptyHandle(t *testing.T) {
	validator, _, _ := newAgentSetup(t, "")
	_, err := validator.Validate(context.Background(), "")
	wantCode(t, err, CodeUnauthenticated)
}

func TestCheckChannelSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		provided string
		wantErr  bool
	}{
		{name: "no secret configured", secret: "", provided: "anything", wantErr: false},
		{name: "secret configured, none provided", secret: "s3cret", provided: "", wantErr: false},
		{name: "matching secret", secret: "s3cret", provided: "s3cret", wantErr: false},
		{name: "mismatching secret", secret: "s3cret", provided: "wrong", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, _, _ := newAgentSetup(t, tt.secret)
			err := validator.CheckChannelSecret(tt.provided)
			if tt.wantErr {
				wantCode(t, err, CodeInvalidAPIKey)
			} else if err != nil {
				t.Fatalf("expected nil, got %v", err)
			}
		})
	}
}

func TestRequireChannelSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		provided string
		wantCode Code
	}{
		{name: "not configured", secret: "", provided: "x", wantCode: CodeConfiguration},
		{name: "missing key", secret: "s3cret", provided: "", wantCode: CodeInvalidAPIKey},
		{name: "wrong key", secret: "s3cret", provided: "nope", wantCode: CodeInvalidAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, _, _ := newAgentSetup(t, tt.secret)
			err := validator.RequireChannelSecret(tt.provided)
			wantCode(t, err, tt.wantCode)
		})
	}

	t.Run("matching key", func(t *testing.T) {
		validator, _, _ := newAgentSetup(t, "s3cret")
		if err := validator.RequireChannelSecret("s3cret"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})
}

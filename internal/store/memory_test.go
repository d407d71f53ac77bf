package store

import (
	"context"
	"testing"
	"time"

	"github.com/bottlecrm/authd/internal/core"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedCredential(t *testing.T, m *Memory, id, subjectID string, expiresAt time.Time) core.Credential {
	t.Helper()
	cred := core.Credential{
		ID:        id,
		Token:     "token-" + id,
		SubjectID: subjectID,
		IssuedAt:  baseTime,
		ExpiresAt: expiresAt,
	}
	if err := m.CreateCredential(context.Background(), cred); err != nil {
		t.Fatal(err)
	}
	return cred
}

func TestRevokeCredentialIsIdempotent(t *testing.T) {
	m := NewMemory()
	cred := seedCredential(t, m, "c1", "alice", baseTime.Add(time.Hour))

	for i := 0; i < 3; i++ {
		if err := m.RevokeCredential(context.Background(), cred.ID); err != nil {
			t.Fatalf("revoke #%d failed: %v", i+1, err)
		}
	}

	stored, err := m.FindCredentialByToken(context.Background(), cred.Token)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Revoked {
		t.Fatal("expected credential revoked")
	}

	// unknown id is a no-op, not an error
	if err := m.RevokeCredential(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("expected no error for unknown id, got %v", err)
	}
}

func TestRevokeCredentialsForSubjectIsolation(t *testing.T) {
	m := NewMemory()
	seedCredential(t, m, "a1", "alice", baseTime.Add(time.Hour))
	seedCredential(t, m, "a2", "alice", baseTime.Add(time.Hour))
	bob := seedCredential(t, m, "b1", "bob", baseTime.Add(time.Hour))

	count, err := m.RevokeCredentialsForSubject(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 revoked, got %d", count)
	}

	stored, _ := m.FindCredentialByToken(context.Background(), bob.Token)
	if stored.Revoked {
		t.Fatal("bulk revoke touched another subject's credential")
	}

	// already-revoked rows do not count again
	count, err = m.RevokeCredentialsForSubject(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected 0 on second bulk revoke, got %d", count)
	}
}

func TestExpireCredentialIfPast(t *testing.T) {
	m := NewMemory()
	cred := seedCredential(t, m, "c1", "alice", baseTime.Add(time.Hour))

	tests := []struct {
		name string
		id   string
		now  time.Time
		want bool
	}{
		{name: "before expiry", id: cred.ID, now: baseTime.Add(30 * time.Minute), want: false},
		{name: "at expiry", id: cred.ID, now: baseTime.Add(time.Hour), want: true},
		{name: "second observer", id: cred.ID, now: baseTime.Add(2 * time.Hour), want: false},
		{name: "unknown id", id: "nope", now: baseTime.Add(2 * time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ExpireCredentialIfPast(context.Background(), tt.id, tt.now)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	stored, _ := m.FindCredentialByToken(context.Background(), cred.Token)
	if !stored.Revoked {
		t.Fatal("expected credential revoked after expiry transition")
	}
}

func TestFindActiveSessionPredicate(t *testing.T) {
	m := NewMemory()
	now := baseTime

	active := core.AgentSession{
		ID: "s1", Handle: "h-active", SubjectID: "alice",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	revoked := core.AgentSession{
		ID: "s2", Handle: "h-revoked", SubjectID: "alice",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour), Revoked: true,
	}
	expired := core.AgentSession{
		ID: "s3", Handle: "h-expired", SubjectID: "alice",
		IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	for _, s := range []core.AgentSession{active, revoked, expired} {
		if err := m.CreateSession(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		handle string
		found  bool
	}{
		{"h-active", true},
		{"h-revoked", false},
		{"h-expired", false},
		{"h-unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			got, err := m.FindActiveSession(context.Background(), tt.handle, now)
			if err != nil {
				t.Fatal(err)
			}
			if (got != nil) != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, got)
			}
		})
	}

	// FindSession ignores the active predicate
	got, err := m.FindSession(context.Background(), "h-revoked")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Revoked {
		t.Fatal("expected FindSession to return the revoked session")
	}
}

func TestRevokeSessionsForSubjectIsolation(t *testing.T) {
	m := NewMemory()
	for _, s := range []core.AgentSession{
		{ID: "s1", Handle: "h1", SubjectID: "alice", ExpiresAt: baseTime.Add(time.Hour)},
		{ID: "s2", Handle: "h2", SubjectID: "alice", ExpiresAt: baseTime.Add(time.Hour)},
		{ID: "s3", Handle: "h3", SubjectID: "bob", ExpiresAt: baseTime.Add(time.Hour)},
	} {
		if err := m.CreateSession(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	count, err := m.RevokeSessionsForSubject(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 revoked, got %d", count)
	}

	bob, _ := m.FindActiveSession(context.Background(), "h3", baseTime)
	if bob == nil {
		t.Fatal("bulk revoke touched another subject's session")
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	m := NewMemory()
	sub := &core.Subject{
		ID: "alice", Email: "Alice@Example.com", Name: "Alice",
		OpenID: "open-1", Active: true,
	}
	if err := m.CreateSubject(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	m.AddMembership("alice", core.Membership{
		OrganizationID: "org-1",
		Role:           core.RoleAdmin,
		Organization:   core.Organization{ID: "org-1", Name: "Acme"},
	})

	byEmail, err := m.FindSubjectByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail == nil || byEmail.ID != "alice" {
		t.Fatal("expected case-insensitive email lookup to find alice")
	}

	byOpenID, err := m.FindSubjectByOpenID(context.Background(), "open-1")
	if err != nil {
		t.Fatal(err)
	}
	if byOpenID == nil || byOpenID.ID != "alice" {
		t.Fatal("expected open-id lookup to find alice")
	}

	// updates keep memberships
	byEmail.Name = "Alice B."
	if err := m.UpdateSubject(context.Background(), byEmail); err != nil {
		t.Fatal(err)
	}
	updated, _ := m.FindSubjectByID(context.Background(), "alice")
	if updated.Name != "Alice B." {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}
	if len(updated.Memberships) != 1 {
		t.Fatal("update dropped memberships")
	}

	// returned values are copies
	updated.Memberships[0].Role = core.RoleMember
	again, _ := m.FindSubjectByID(context.Background(), "alice")
	if again.Memberships[0].Role != core.RoleAdmin {
		t.Fatal("store handed out a shared membership slice")
	}
}

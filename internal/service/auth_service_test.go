package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bottlecrm/authd/internal/agentplatform"
	"github.com/bottlecrm/authd/internal/auth"
	"github.com/bottlecrm/authd/internal/core"
	"github.com/bottlecrm/authd/internal/idp"
	"github.com/bottlecrm/authd/internal/store"
)

type fakeExchanger struct {
	account *agentplatform.AccountInfo
	err     error
	calls   int
}

func (f *fakeExchanger) Exchange(_ context.Context, _ string) (*agentplatform.AccountInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc       *AuthService
	issuer    *auth.Issuer
	store     *store.Memory
	clock     *testClock
	exchanger *fakeExchanger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	issuer, err := auth.NewIssuer([]byte("test-signing-key"))
	if err != nil {
		t.Fatal(err)
	}

	mem := store.NewMemory()
	exchanger := &fakeExchanger{
		account: &agentplatform.AccountInfo{OpenID: "open-1", UnionID: "union-1", Phone: "15551234567"},
	}

	svc := NewAuthService(issuer, mem, nil, exchanger, nil, 24*time.Hour, 168*time.Hour)
	svc.now = clock.Now

	return &fixture{svc: svc, issuer: issuer, store: mem, clock: clock, exchanger: exchanger}
}

func wantCode(t *testing.T, err error, code auth.Code) {
	t.Helper()
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *auth.Error with code %s, got %v", code, err)
	}
	if authErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, authErr.Code, authErr.Message)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		req      RegisterRequest
		wantText string
	}{
		{
			name:     "name too short",
			req:      RegisterRequest{Name: "A", Email: "a@example.com", Password: "Passw0rd"},
			wantText: "name",
		},
		{
			name:     "bad email",
			req:      RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "Passw0rd"},
			wantText: "email",
		},
		{
			name:     "password too short",
			req:      RegisterRequest{Name: "Alice", Email: "a@example.com", Password: "Pw1"},
			wantText: "8 characters",
		},
		{
			name:     "password missing uppercase",
			req:      RegisterRequest{Name: "Alice", Email: "a@example.com", Password: "passw0rd"},
			wantText: "uppercase",
		},
		{
			name:     "password missing lowercase",
			req:      RegisterRequest{Name: "Alice", Email: "a@example.com", Password: "PASSW0RD"},
			wantText: "lowercase",
		},
		{
			name:     "password missing digit",
			req:      RegisterRequest{Name: "Alice", Email: "a@example.com", Password: "Password"},
			wantText: "digit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Register(context.Background(), tt.req)
			wantCode(t, err, auth.CodeBadRequest)
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Fatalf("expected message mentioning %q, got %q", tt.wantText, err.Error())
			}
		})
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)

	reg, err := f.svc.Register(context.Background(), RegisterRequest{
		Name: "Alice", Email: "Alice@Example.com", Password: "Passw0rd",
	})
	if err != nil {
		t.Fatal(err)
	}
	if reg.Subject.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %q", reg.Subject.Email)
	}
	if reg.Token == "" {
		t.Fatal("expected a credential on registration")
	}

	// duplicate registration is rejected
	_, err = f.svc.Register(context.Background(), RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "Passw0rd",
	})
	wantCode(t, err, auth.CodeBadRequest)

	result, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "alice@example.com", Password: "Passw0rd",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Subject.ID != reg.Subject.ID {
		t.Fatal("login resolved a different subject")
	}
	if !result.ExpiresAt.After(time.Now().Add(23 * time.Hour)) {
		t.Fatalf("expected roughly 24h expiry, got %v", result.ExpiresAt)
	}
}

// TestLoginFailureIsUniform: unknown email and wrong password produce the
// same status and message, so login cannot be used to enumerate accounts.
func TestLoginFailureIsUniform(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Register(context.Background(), RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "Passw0rd",
	}); err != nil {
		t.Fatal(err)
	}

	_, errUnknown := f.svc.Login(context.Background(), LoginRequest{
		Email: "nobody@example.com", Password: "Passw0rd",
	})
	_, errWrongPw := f.svc.Login(context.Background(), LoginRequest{
		Email: "alice@example.com", Password: "WrongPassw0rd",
	})

	wantCode(t, errUnknown, auth.CodeBadRequest)
	wantCode(t, errWrongPw, auth.CodeBadRequest)
	if errUnknown.Error() != errWrongPw.Error() {
		t.Fatalf("login errors differ: %q vs %q", errUnknown.Error(), errWrongPw.Error())
	}
}

func TestLoginRejectsInactiveSubject(t *testing.T) {
	f := newFixture(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("Passw0rd"), bcrypt.MinCost)
	if err := f.store.CreateSubject(context.Background(), &core.Subject{
		ID: "frozen", Email: "frozen@example.com", Name: "Frozen",
		PasswordHash: string(hash), Active: false,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "frozen@example.com", Password: "Passw0rd",
	})
	wantCode(t, err, auth.CodeBadRequest)
	if !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled-account message, got %q", err.Error())
	}
}

// TestBulkRevokeSparesOtherSubjects is the two-device scenario: one subject
// logs out everywhere, another subject's credential stays valid.
func TestBulkRevokeSparesOtherSubjects(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "Passw0rd",
	})
	if err != nil {
		t.Fatal(err)
	}
	bobReg, err := f.svc.Register(context.Background(), RegisterRequest{
		Name: "Bob", Email: "bob@example.com", Password: "Passw0rd",
	})
	if err != nil {
		t.Fatal(err)
	}

	// alice logs in on a second device
	second, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "alice@example.com", Password: "Passw0rd",
	})
	if err != nil {
		t.Fatal(err)
	}

	count, err := f.svc.LogoutAll(context.Background(), second.Subject.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 revoked credentials, got %d", count)
	}

	validator := auth.NewCredentialValidator(f.issuer, f.store, f.store)
	if _, err := validator.Validate(context.Background(), second.Token); err == nil {
		t.Fatal("expected alice's credential to be revoked")
	}
	if _, err := validator.Validate(context.Background(), bobReg.Token); err != nil {
		t.Fatalf("bulk revoke touched bob's credential: %v", err)
	}
}

// TestAgentAuthorizeSupersedesPriorSession: a second authorization for the
// same platform account kills the first session before issuing the new one.
func TestAgentAuthorizeSupersedesPriorSession(t *testing.T) {
	f := newFixture(t)
	// AgentSessionValidator always reads the real clock, so the fixture
	// clock must match it or every issued session looks expired.
	f.clock.t = time.Now().UTC()

	first, err := f.svc.AgentAuthorize(context.Background(), AgentAuthorizeRequest{AuthCode: "code-1"})
	if err != nil {
		t.Fatal(err)
	}
	if first.SessionHandle == "" {
		t.Fatal("expected a session handle")
	}
	if first.Subject.OpenID != "open-1" {
		t.Fatalf("expected platform open id on subject, got %q", first.Subject.OpenID)
	}

	second, err := f.svc.AgentAuthorize(context.Background(), AgentAuthorizeRequest{AuthCode: "code-2"})
	if err != nil {
		t.Fatal(err)
	}
	if second.SessionHandle == first.SessionHandle {
		t.Fatal("expected a fresh session handle")
	}
	if second.Subject.ID != first.Subject.ID {
		t.Fatal("expected the same subject across authorizations")
	}

	sessValidator := auth.NewAgentSessionValidator(f.store, f.store, "")
	if _, err := sessValidator.Validate(context.Background(), first.SessionHandle); err == nil {
		t.Fatal("expected the first session to be superseded")
	}
	if _, err := sessValidator.Validate(context.Background(), second.SessionHandle); err != nil {
		t.Fatalf("expected the second session to validate: %v", err)
	}
}

func TestAgentAuthorizeUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.exchanger.err = fmt.Errorf("connection refused")

	_, err := f.svc.AgentAuthorize(context.Background(), AgentAuthorizeRequest{AuthCode: "code-1"})
	wantCode(t, err, auth.CodeUpstreamUnavailable)
}

func TestAgentDeauthorizeUnknownHandleSucceeds(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.AgentDeauthorize(context.Background(), "never-issued"); err != nil {
		t.Fatalf("expected success for unknown handle, got %v", err)
	}
}

func TestAgentLoginIssuesBearerCredential(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.AgentLogin(context.Background(), AgentAuthorizeRequest{AuthCode: "code-1"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsNewUser {
		t.Fatal("expected first platform login to create the subject")
	}

	validator := auth.NewCredentialValidator(f.issuer, f.store, f.store)
	identity, err := validator.Validate(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("expected issued token to validate: %v", err)
	}
	if identity.Kind != auth.KindBearer {
		t.Fatalf("expected bearer identity, got %s", identity.Kind)
	}

	again, err := f.svc.AgentLogin(context.Background(), AgentAuthorizeRequest{AuthCode: "code-2"})
	if err != nil {
		t.Fatal(err)
	}
	if again.IsNewUser {
		t.Fatal("expected second platform login to reuse the subject")
	}
}

func TestFederatedLogin(t *testing.T) {
	f := newFixture(t)

	verifier, err := idp.NewStatic("static", map[string]any{
		"token_map": map[string]any{
			"good-token": map[string]any{
				"subject": "google-sub-1",
				"email":   "carol@example.com",
				"name":    "Carol",
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.svc.verifier = verifier

	first, err := f.svc.FederatedLogin(context.Background(), FederatedLoginRequest{IDToken: "good-token"})
	if err != nil {
		t.Fatal(err)
	}
	if !first.IsNewUser {
		t.Fatal("expected first federated login to create the subject")
	}
	if first.Subject.Email != "carol@example.com" {
		t.Fatalf("expected carol, got %q", first.Subject.Email)
	}

	second, err := f.svc.FederatedLogin(context.Background(), FederatedLoginRequest{IDToken: "good-token"})
	if err != nil {
		t.Fatal(err)
	}
	if second.IsNewUser {
		t.Fatal("expected second federated login to reuse the subject")
	}

	_, err = f.svc.FederatedLogin(context.Background(), FederatedLoginRequest{IDToken: "bad-token"})
	wantCode(t, err, auth.CodeInvalidCredential)

	// password login on a federated-only account points at the other method
	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email: "carol@example.com", Password: "Whatever1",
	})
	wantCode(t, err, auth.CodeBadRequest)
	if !strings.Contains(err.Error(), "federated") {
		t.Fatalf("expected federated hint, got %q", err.Error())
	}
}

func TestLogoutRevokesCredential(t *testing.T) {
	f := newFixture(t)

	reg, err := f.svc.Register(context.Background(), RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "Passw0rd",
	})
	if err != nil {
		t.Fatal(err)
	}

	validator := auth.NewCredentialValidator(f.issuer, f.store, f.store)
	identity, err := validator.Validate(context.Background(), reg.Token)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Logout(context.Background(), identity.CredentialID); err != nil {
		t.Fatal(err)
	}

	_, err = validator.Validate(context.Background(), reg.Token)
	wantCode(t, err, auth.CodeCredentialRevoked)

	// logging out twice is fine
	if err := f.svc.Logout(context.Background(), identity.CredentialID); err != nil {
		t.Fatal(err)
	}
}

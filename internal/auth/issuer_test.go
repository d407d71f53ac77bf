package auth

import (
	"errors"
	"testing"
	"time"
)

func TestNewIssuerRequiresKey(t *testing.T) {
	if _, err := NewIssuer(nil); err == nil {
		t.Fatal("expected error for empty signing key")
	}

	var authErr *Error
	_, err := NewIssuer([]byte{})
	if !errors.As(err, &authErr) || authErr.Code != CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewIssuer([]byte("test-key"))
	if err != nil {
		t.Fatal(err)
	}
	issuer.now = func() time.Time { return now }

	token, expiresAt, err := issuer.Issue("subject-1", 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if want := now.Add(24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, expiresAt)
	}

	sub, err := issuer.parse(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sub != "subject-1" {
		t.Fatalf("expected subject-1, got %q", sub)
	}
}

func TestParseRejections(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	issuer, _ := NewIssuer([]byte("test-key"))
	issuer.now = func() time.Time { return now }

	otherIssuer, _ := NewIssuer([]byte("other-key"))
	otherIssuer.now = func() time.Time { return now }

	valid, _, _ := issuer.Issue("subject-1", time.Hour)
	foreign, _, _ := otherIssuer.Issue("subject-1", time.Hour)

	tests := []struct {
		name     string
		token    string
		advance  time.Duration
		wantCode Code
	}{
		{
			name:     "garbage token",
			token:    "not-a-jwt",
			wantCode: CodeInvalidCredential,
		},
		{
			name:     "wrong signing key",
			token:    foreign,
			wantCode: CodeInvalidCredential,
		},
		{
			name:     "expired claims",
			token:    valid,
			advance:  2 * time.Hour,
			wantCode: CodeCredentialExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := now.Add(tt.advance)
			issuer.now = func() time.Time { return at }
			defer func() { issuer.now = func() time.Time { return now } }()

			_, err := issuer.parse(tt.token)
			var authErr *Error
			if !errors.As(err, &authErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if authErr.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, authErr.Code)
			}
		})
	}
}

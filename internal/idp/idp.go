// Package idp verifies federated login ID tokens (the mobile app sends a
// Google ID token; we never see the user's Google credentials).
package idp

import "context"

// Claims are the fields we extract from a verified ID token.
type Claims struct {
	// Subject is the provider's stable account identifier (the "sub" claim).
	Subject string

	Email   string
	Name    string
	Picture string
}

// Verifier validates a raw ID token and returns its claims.
type Verifier interface {
	// Name returns the identifier of this verifier (as used in config).
	Name() string

	// Verify validates the raw ID token and extracts the claims.
	Verify(ctx context.Context, rawIDToken string) (*Claims, error)
}

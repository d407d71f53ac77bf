package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints signed bearer tokens. Signing is HMAC (HS256) with a
// process-wide key; the token embeds the subject and an expiry claim and
// is otherwise self-describing. Storage is not the issuer's concern.
type Issuer struct {
	signingKey []byte
	now        func() time.Time
}

// NewIssuer returns an issuer for the given key. An empty key is a fatal
// misconfiguration.
func NewIssuer(signingKey []byte) (*Issuer, error) {
	if len(signingKey) == 0 {
		return nil, ConfigurationError("no token signing key configured")
	}
	return &Issuer{
		signingKey: signingKey,
		now:        time.Now,
	}, nil
}

// Issue mints a token for the subject, valid for ttl from now.
// It returns the signed token and its absolute expiry.
func (i *Issuer) Issue(subjectID string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subjectID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// parse verifies signature and structure of a raw token. It distinguishes
// a claims-level expiry (the token is ours but stale) from everything else.
func (i *Issuer) parse(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.signingKey, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrCredentialExpired
		}
		return "", &Error{
			Code:    CodeInvalidCredential,
			Status:  ErrInvalidCredential.Status,
			Message: "invalid token format",
			Wrapped: err,
		}
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", &Error{
			Code:    CodeInvalidCredential,
			Status:  ErrInvalidCredential.Status,
			Message: "invalid token claims",
			Wrapped: err,
		}
	}
	return sub, nil
}

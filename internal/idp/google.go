package idp

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mitchellh/mapstructure"
)

const GoogleIssuerURL = "https://accounts.google.com"

type GoogleVerifier struct {
	name     string
	verifier *oidc.IDTokenVerifier
}

type GoogleConfig struct {
	// ClientID is the OAuth client the ID token must be issued for.
	// Both the web and the mobile app share this audience.
	ClientID string `mapstructure:"client_id"`

	// IssuerURL overrides the Google issuer, for tests only.
	IssuerURL string `mapstructure:"issuer_url"`
}

func NewGoogle(ctx context.Context, name string, rawConfig map[string]any) (*GoogleVerifier, error) {
	var conf GoogleConfig
	if err := mapstructure.Decode(rawConfig, &conf); err != nil {
		return nil, fmt.Errorf("decoding config for google verifier '%s': %w", name, err)
	}
	if conf.ClientID == "" {
		return nil, fmt.Errorf("google verifier '%s': client_id is required", name)
	}
	issuerURL := conf.IssuerURL
	if issuerURL == "" {
		issuerURL = GoogleIssuerURL
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering issuer for google verifier '%s': %w", name, err)
	}

	return &GoogleVerifier{
		name:     name,
		verifier: provider.Verifier(&oidc.Config{ClientID: conf.ClientID}),
	}, nil
}

func (g *GoogleVerifier) Name() string {
	return g.name
}

func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verifying ID token: %w", err)
	}

	var raw struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("extracting ID token claims: %w", err)
	}
	if raw.Email == "" {
		return nil, fmt.Errorf("ID token carries no email claim")
	}

	name := raw.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", raw.GivenName, raw.FamilyName)
	}

	return &Claims{
		Subject: idToken.Subject,
		Email:   raw.Email,
		Name:    name,
		Picture: raw.Picture,
	}, nil
}

package idp

import (
	"context"
	"fmt"
)

// StaticVerifier maps fixed token strings to claims. Dev/test only; it
// performs no cryptographic verification.
type StaticVerifier struct {
	name     string
	tokenMap map[string]Claims
}

func NewStatic(name string, rawConfig map[string]any) (*StaticVerifier, error) {
	tokenMap := make(map[string]Claims)
	rawMap, ok := rawConfig["token_map"].(map[string]any)
	if ok {
		for token, claimsRaw := range rawMap {
			attrs, ok := claimsRaw.(map[string]any)
			if !ok {
				continue
			}
			tokenMap[token] = Claims{
				Subject: fmt.Sprint(attrs["subject"]),
				Email:   fmt.Sprint(attrs["email"]),
				Name:    fmt.Sprint(attrs["name"]),
			}
		}
	}
	return &StaticVerifier{name: name, tokenMap: tokenMap}, nil
}

func (s *StaticVerifier) Name() string {
	return s.name
}

func (s *StaticVerifier) Verify(_ context.Context, rawIDToken string) (*Claims, error) {
	claims, ok := s.tokenMap[rawIDToken]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return &claims, nil
}

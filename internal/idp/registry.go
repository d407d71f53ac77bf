package idp

import (
	"context"
	"fmt"

	"github.com/bottlecrm/authd/internal/config"
)

// BuildRegistry constructs the configured identity-provider verifiers.
func BuildRegistry(ctx context.Context, cfgs []config.IdentityProviderConfig) (map[string]Verifier, error) {
	verifiers := make(map[string]Verifier, len(cfgs))
	for _, cfg := range cfgs {
		var (
			v   Verifier
			err error
		)
		switch cfg.Type {
		case "google":
			v, err = NewGoogle(ctx, cfg.Name, cfg.Config)
		case "static":
			v, err = NewStatic(cfg.Name, cfg.Config)
		default:
			return nil, fmt.Errorf("unknown identity provider type %q", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("building identity provider '%s': %w", cfg.Name, err)
		}
		verifiers[cfg.Name] = v
	}
	return verifiers, nil
}

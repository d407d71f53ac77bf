package audit

import (
	"fmt"

	"github.com/bottlecrm/authd/internal/config"
	"github.com/bottlecrm/authd/internal/core"
)

// NoopAuditor discards everything. Used when auditing is disabled.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor { return &NoopAuditor{} }

func (n *NoopAuditor) Log(core.AuditEntry) error { return nil }
func (n *NoopAuditor) Close() error              { return nil }

// FromConfig builds the configured auditor. Auditing disabled means noop.
func FromConfig(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "", "memory":
		return NewInMemoryAuditor(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("audit.path is required for the file auditor")
		}
		return NewFileAuditor(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown auditor type %q", cfg.Type)
	}
}

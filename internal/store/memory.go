package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bottlecrm/authd/internal/core"
)

var _ core.Store = (*Memory)(nil)

// Memory is an in-memory implementation of core.Store. It backs tests and
// single-node development mode; production deployments use Postgres.
type Memory struct {
	mu           sync.RWMutex
	credentials  map[string]*core.Credential   // by id
	credByToken  map[string]string             // token -> id
	sessions     map[string]*core.AgentSession // by id
	sessByHandle map[string]string             // handle -> id
	subjects     map[string]*core.Subject      // by id
}

func NewMemory() *Memory {
	return &Memory{
		credentials:  make(map[string]*core.Credential),
		credByToken:  make(map[string]string),
		sessions:     make(map[string]*core.AgentSession),
		sessByHandle: make(map[string]string),
		subjects:     make(map[string]*core.Subject),
	}
}

func (m *Memory) CreateCredential(_ context.Context, cred core.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := cred
	m.credentials[c.ID] = &c
	m.credByToken[c.Token] = c.ID
	return nil
}

func (m *Memory) FindCredentialByToken(_ context.Context, token string) (*core.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.credByToken[token]
	if !ok {
		return nil, nil
	}
	c := *m.credentials[id]
	return &c, nil
}

func (m *Memory) RevokeCredential(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.credentials[id]; ok {
		c.Revoked = true
	}
	return nil
}

func (m *Memory) RevokeCredentialsForSubject(_ context.Context, subjectID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, c := range m.credentials {
		if c.SubjectID == subjectID && !c.Revoked {
			c.Revoked = true
			count++
		}
	}
	return count, nil
}

func (m *Memory) ExpireCredentialIfPast(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.credentials[id]
	if !ok || c.Revoked || now.Before(c.ExpiresAt) {
		return false, nil
	}
	c.Revoked = true
	return true, nil
}

func (m *Memory) TouchCredential(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.credentials[id]; ok {
		c.LastUsedAt = now
	}
	return nil
}

func (m *Memory) CreateSession(_ context.Context, sess core.AgentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := sess
	m.sessions[s.ID] = &s
	m.sessByHandle[s.Handle] = s.ID
	return nil
}

func (m *Memory) FindActiveSession(_ context.Context, handle string, now time.Time) (*core.AgentSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.sessByHandle[handle]
	if !ok {
		return nil, nil
	}
	s := m.sessions[id]
	if s.Revoked || !s.ExpiresAt.After(now) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) FindSession(_ context.Context, handle string) (*core.AgentSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.sessByHandle[handle]
	if !ok {
		return nil, nil
	}
	cp := *m.sessions[id]
	return &cp, nil
}

func (m *Memory) RevokeSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.Revoked = true
	}
	return nil
}

func (m *Memory) RevokeSessionsForSubject(_ context.Context, subjectID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, s := range m.sessions {
		if s.SubjectID == subjectID && !s.Revoked {
			s.Revoked = true
			count++
		}
	}
	return count, nil
}

func (m *Memory) TouchSession(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.LastUsedAt = now
	}
	return nil
}

func (m *Memory) FindSubjectByID(_ context.Context, id string) (*core.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subjects[id]
	if !ok {
		return nil, nil
	}
	return copySubject(s), nil
}

func (m *Memory) FindSubjectByEmail(_ context.Context, email string) (*core.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = strings.ToLower(email)
	for _, s := range m.subjects {
		if strings.ToLower(s.Email) == email {
			return copySubject(s), nil
		}
	}
	return nil, nil
}

func (m *Memory) FindSubjectByOpenID(_ context.Context, openID string) (*core.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.subjects {
		if s.OpenID != "" && s.OpenID == openID {
			return copySubject(s), nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateSubject(_ context.Context, sub *core.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subjects[sub.ID] = copySubject(sub)
	return nil
}

func (m *Memory) UpdateSubject(_ context.Context, sub *core.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.subjects[sub.ID]
	if !ok {
		return nil
	}
	cp := copySubject(sub)
	cp.Memberships = existing.Memberships
	m.subjects[sub.ID] = cp
	return nil
}

// AddMembership is a dev/test helper; memberships are otherwise managed by
// the organization service, which is not part of the auth layer.
func (m *Memory) AddMembership(subjectID string, membership core.Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.subjects[subjectID]; ok {
		s.Memberships = append(s.Memberships, membership)
	}
}

func copySubject(s *core.Subject) *core.Subject {
	cp := *s
	cp.Memberships = make([]core.Membership, len(s.Memberships))
	copy(cp.Memberships, s.Memberships)
	return &cp
}

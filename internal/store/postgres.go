package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bottlecrm/authd/internal/core"
)

var _ core.Store = (*Postgres)(nil)

// Postgres is the durable core.Store backed by a pgx connection pool.
// Every mutation is a single-row conditional update, which is all the
// atomicity the validators need.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) CreateCredential(ctx context.Context, cred core.Credential) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO credentials (id, token, subject_id, issued_at, expires_at, revoked, device_info, source_addr)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7)`,
		cred.ID, cred.Token, cred.SubjectID, cred.IssuedAt, cred.ExpiresAt, cred.DeviceInfo, cred.SourceAddr)
	return err
}

func (p *Postgres) FindCredentialByToken(ctx context.Context, token string) (*core.Credential, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, token, subject_id, issued_at, expires_at, revoked,
		       COALESCE(last_used_at, 'epoch'::timestamptz),
		       COALESCE(device_info, ''), COALESCE(source_addr, '')
		FROM credentials WHERE token = $1`, token)

	var c core.Credential
	err := row.Scan(&c.ID, &c.Token, &c.SubjectID, &c.IssuedAt, &c.ExpiresAt,
		&c.Revoked, &c.LastUsedAt, &c.DeviceInfo, &c.SourceAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) RevokeCredential(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE credentials SET revoked = true WHERE id = $1`, id)
	return err
}

func (p *Postgres) RevokeCredentialsForSubject(ctx context.Context, subjectID string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE credentials SET revoked = true WHERE subject_id = $1 AND NOT revoked`, subjectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) ExpireCredentialIfPast(ctx context.Context, id string, now time.Time) (bool, error) {
	// Conditional single-row update: first writer wins, every later caller
	// sees revoked = true either way.
	tag, err := p.pool.Exec(ctx,
		`UPDATE credentials SET revoked = true WHERE id = $1 AND NOT revoked AND expires_at <= $2`,
		id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) TouchCredential(ctx context.Context, id string, now time.Time) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE credentials SET last_used_at = $2 WHERE id = $1`, id, now)
	return err
}

func (p *Postgres) CreateSession(ctx context.Context, sess core.AgentSession) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO agent_sessions (id, handle, subject_id, open_id, union_id, issued_at, expires_at, revoked, device_info, source_addr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)`,
		sess.ID, sess.Handle, sess.SubjectID, sess.OpenID, sess.UnionID,
		sess.IssuedAt, sess.ExpiresAt, sess.DeviceInfo, sess.SourceAddr)
	return err
}

const sessionColumns = `
	SELECT id, handle, subject_id, open_id, COALESCE(union_id, ''), issued_at, expires_at, revoked,
	       COALESCE(last_used_at, 'epoch'::timestamptz),
	       COALESCE(device_info, ''), COALESCE(source_addr, '')
	FROM agent_sessions`

func (p *Postgres) FindActiveSession(ctx context.Context, handle string, now time.Time) (*core.AgentSession, error) {
	row := p.pool.QueryRow(ctx,
		sessionColumns+` WHERE handle = $1 AND NOT revoked AND expires_at > $2`, handle, now)
	return scanSession(row)
}

func (p *Postgres) FindSession(ctx context.Context, handle string) (*core.AgentSession, error) {
	row := p.pool.QueryRow(ctx, sessionColumns+` WHERE handle = $1`, handle)
	return scanSession(row)
}

func scanSession(row pgx.Row) (*core.AgentSession, error) {
	var s core.AgentSession
	err := row.Scan(&s.ID, &s.Handle, &s.SubjectID, &s.OpenID, &s.UnionID,
		&s.IssuedAt, &s.ExpiresAt, &s.Revoked, &s.LastUsedAt, &s.DeviceInfo, &s.SourceAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) RevokeSession(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE agent_sessions SET revoked = true WHERE id = $1`, id)
	return err
}

func (p *Postgres) RevokeSessionsForSubject(ctx context.Context, subjectID string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE agent_sessions SET revoked = true WHERE subject_id = $1 AND NOT revoked`, subjectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) TouchSession(ctx context.Context, id string, now time.Time) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE agent_sessions SET last_used_at = $2 WHERE id = $1`, id, now)
	return err
}

func (p *Postgres) FindSubjectByID(ctx context.Context, id string) (*core.Subject, error) {
	return p.findSubject(ctx, `WHERE id = $1`, id)
}

func (p *Postgres) FindSubjectByEmail(ctx context.Context, email string) (*core.Subject, error) {
	return p.findSubject(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (p *Postgres) FindSubjectByOpenID(ctx context.Context, openID string) (*core.Subject, error) {
	return p.findSubject(ctx, `WHERE open_id = $1`, openID)
}

func (p *Postgres) findSubject(ctx context.Context, where string, arg any) (*core.Subject, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, email, name, COALESCE(password_hash, ''), COALESCE(phone, ''),
		       COALESCE(profile_image, ''), COALESCE(open_id, ''), COALESCE(union_id, ''),
		       active, COALESCE(last_login_at, 'epoch'::timestamptz)
		FROM subjects `+where, arg)

	var s core.Subject
	err := row.Scan(&s.ID, &s.Email, &s.Name, &s.PasswordHash, &s.Phone,
		&s.ProfileImage, &s.OpenID, &s.UnionID, &s.Active, &s.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	memberships, err := p.membershipsFor(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Memberships = memberships
	return &s, nil
}

func (p *Postgres) membershipsFor(ctx context.Context, subjectID string) ([]core.Membership, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT m.organization_id, m.role, o.name
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.subject_id = $1`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []core.Membership
	for rows.Next() {
		var m core.Membership
		if err := rows.Scan(&m.OrganizationID, &m.Role, &m.Organization.Name); err != nil {
			return nil, err
		}
		m.Organization.ID = m.OrganizationID
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (p *Postgres) CreateSubject(ctx context.Context, sub *core.Subject) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO subjects (id, email, name, password_hash, phone, profile_image, open_id, union_id, active, last_login_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
		sub.ID, sub.Email, sub.Name, sub.PasswordHash, sub.Phone, sub.ProfileImage,
		sub.OpenID, sub.UnionID, sub.Active, sub.LastLoginAt)
	return err
}

func (p *Postgres) UpdateSubject(ctx context.Context, sub *core.Subject) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE subjects
		SET name = $2, phone = NULLIF($3, ''), profile_image = NULLIF($4, ''),
		    union_id = NULLIF($5, ''), last_login_at = $6
		WHERE id = $1`,
		sub.ID, sub.Name, sub.Phone, sub.ProfileImage, sub.UnionID, sub.LastLoginAt)
	return err
}

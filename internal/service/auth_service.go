package service

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/bottlecrm/authd/internal/agentplatform"
	"github.com/bottlecrm/authd/internal/auth"
	"github.com/bottlecrm/authd/internal/core"
	"github.com/bottlecrm/authd/internal/idp"
)

const bcryptCost = 12

var (
	upperRe = regexp.MustCompile(`[A-Z]`)
	lowerRe = regexp.MustCompile(`[a-z]`)
	digitRe = regexp.MustCompile(`[0-9]`)
)

// AuthService owns the credential and session lifecycle: it creates the
// records the validators later consume, and revokes them on logout or
// deauthorization.
type AuthService struct {
	issuer    *auth.Issuer
	store     core.Store
	verifier  idp.Verifier            // nil when federated login is disabled
	exchanger agentplatform.Exchanger // nil when the agent channel is disabled
	auditor   core.Auditor

	tokenTTL   time.Duration
	sessionTTL time.Duration

	now func() time.Time
}

func NewAuthService(
	issuer *auth.Issuer,
	store core.Store,
	verifier idp.Verifier,
	exchanger agentplatform.Exchanger,
	auditor core.Auditor,
	tokenTTL, sessionTTL time.Duration,
) *AuthService {
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &AuthService{
		issuer:     issuer,
		store:      store,
		verifier:   verifier,
		exchanger:  exchanger,
		auditor:    auditor,
		tokenTTL:   tokenTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

type noopAuditor struct{}

func (noopAuditor) Log(core.AuditEntry) error { return nil }
func (noopAuditor) Close() error              { return nil }

// Register creates a subject with a password and issues its first
// credential.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	entry := s.newAuditEntry(ctx, "auth.register")
	defer s.logAudit(ctx, &entry)

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRegistration(req.Name, email, req.Password); err != nil {
		entry.Error = err.Error()
		return nil, err
	}

	existing, err := s.store.FindSubjectByEmail(ctx, email)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("looking up subject: %w", err))
	}
	if existing != nil {
		if existing.PasswordHash == "" {
			entry.Error = "email registered via federated login"
			return nil, auth.BadRequest("this email is registered via federated login; use that sign-in method")
		}
		entry.Error = "email already registered"
		return nil, auth.BadRequest("this email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("hashing password: %w", err))
	}

	subject := &core.Subject{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Active:       true,
		LastLoginAt:  s.now(),
	}
	if err := s.store.CreateSubject(ctx, subject); err != nil {
		return nil, auth.Internal(fmt.Errorf("creating subject: %w", err))
	}
	entry.SubjectID = subject.ID

	result, err := s.issueCredential(ctx, subject, req.Meta)
	if err != nil {
		entry.Error = err.Error()
		return nil, err
	}
	entry.Granted = true
	return result, nil
}

// Login verifies email/password and issues a credential. The failure
// message is identical for unknown email and wrong password.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	entry := s.newAuditEntry(ctx, "auth.login")
	defer s.logAudit(ctx, &entry)

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		entry.Error = "missing email or password"
		return nil, auth.BadRequest("email and password are required")
	}

	subject, err := s.store.FindSubjectByEmail(ctx, email)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("looking up subject: %w", err))
	}
	if subject == nil {
		entry.Error = "unknown email"
		return nil, auth.BadRequest("invalid email or password")
	}
	entry.SubjectID = subject.ID

	if subject.PasswordHash == "" {
		entry.Error = "federated-only account"
		return nil, auth.BadRequest("this account uses federated sign-in; use that sign-in method")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(subject.PasswordHash), []byte(req.Password)); err != nil {
		entry.Error = "wrong password"
		return nil, auth.BadRequest("invalid email or password")
	}

	if !subject.Active {
		entry.Error = "account disabled"
		return nil, auth.BadRequest("this account has been disabled; contact an administrator")
	}

	subject.LastLoginAt = s.now()
	if err := s.store.UpdateSubject(ctx, subject); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to update last login timestamp")
	}

	result, err := s.issueCredential(ctx, subject, req.Meta)
	if err != nil {
		entry.Error = err.Error()
		return nil, err
	}
	entry.Granted = true
	return result, nil
}

// FederatedLogin verifies an upstream ID token, upserts the subject, and
// issues a credential.
func (s *AuthService) FederatedLogin(ctx context.Context, req FederatedLoginRequest) (*LoginResult, error) {
	entry := s.newAuditEntry(ctx, "auth.login.federated")
	defer s.logAudit(ctx, &entry)

	if s.verifier == nil {
		return nil, auth.ConfigurationError("federated login is not configured")
	}
	if req.IDToken == "" {
		entry.Error = "missing ID token"
		return nil, auth.BadRequest("ID token is required")
	}

	claims, err := s.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		entry.Error = "ID token verification failed"
		return nil, &auth.Error{
			Code:    auth.CodeInvalidCredential,
			Status:  http.StatusBadRequest,
			Message: "invalid ID token",
			Wrapped: err,
		}
	}

	email := strings.ToLower(claims.Email)
	subject, err := s.store.FindSubjectByEmail(ctx, email)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("looking up subject: %w", err))
	}

	isNew := false
	if subject == nil {
		isNew = true
		subject = &core.Subject{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         claims.Name,
			ProfileImage: claims.Picture,
			Active:       true,
			LastLoginAt:  s.now(),
		}
		if err := s.store.CreateSubject(ctx, subject); err != nil {
			return nil, auth.Internal(fmt.Errorf("creating subject: %w", err))
		}
	} else {
		if claims.Name != "" {
			subject.Name = claims.Name
		}
		if claims.Picture != "" {
			subject.ProfileImage = claims.Picture
		}
		subject.LastLoginAt = s.now()
		if err := s.store.UpdateSubject(ctx, subject); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to update subject profile")
		}
	}
	entry.SubjectID = subject.ID

	result, err := s.issueCredential(ctx, subject, req.Meta)
	if err != nil {
		entry.Error = err.Error()
		return nil, err
	}
	result.IsNewUser = isNew
	entry.Granted = true
	return result, nil
}

// Logout revokes the presenting credential. Revoking twice is a no-op.
func (s *AuthService) Logout(ctx context.Context, credentialID string) error {
	entry := s.newAuditEntry(ctx, "auth.logout")
	defer s.logAudit(ctx, &entry)

	if err := s.store.RevokeCredential(ctx, credentialID); err != nil {
		entry.Error = err.Error()
		return auth.Internal(fmt.Errorf("revoking credential: %w", err))
	}
	entry.Granted = true
	return nil
}

// LogoutAll revokes every credential of the subject and returns the count.
func (s *AuthService) LogoutAll(ctx context.Context, subjectID string) (int64, error) {
	entry := s.newAuditEntry(ctx, "auth.logout_all")
	entry.SubjectID = subjectID
	defer s.logAudit(ctx, &entry)

	count, err := s.store.RevokeCredentialsForSubject(ctx, subjectID)
	if err != nil {
		entry.Error = err.Error()
		return 0, auth.Internal(fmt.Errorf("revoking credentials: %w", err))
	}
	entry.Granted = true
	entry.Metadata = map[string]any{"revoked_count": count}
	return count, nil
}

// AgentAuthorize exchanges the platform's authorization code, finds or
// creates the subject, supersedes any earlier session, and returns a fresh
// session handle.
func (s *AuthService) AgentAuthorize(ctx context.Context, req AgentAuthorizeRequest) (*AgentAuthorizeResult, error) {
	entry := s.newAuditEntry(ctx, "agent.authorize")
	entry.AuthKind = string(auth.KindExternalAgent)
	defer s.logAudit(ctx, &entry)

	subject, err := s.resolvePlatformSubject(ctx, req.AuthCode, &entry)
	if err != nil {
		return nil, err
	}

	// Single-active-session policy: every prior session dies before the
	// new one exists.
	revoked, err := s.store.RevokeSessionsForSubject(ctx, subject.ID)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("revoking prior sessions: %w", err))
	}
	if revoked > 0 {
		log.Ctx(ctx).Info().Int64("revoked", revoked).Str("subject_id", subject.ID).
			Msg("superseded prior agent sessions")
	}

	now := s.now()
	sess := core.AgentSession{
		ID:         uuid.NewString(),
		Handle:     uuid.NewString(),
		SubjectID:  subject.ID,
		OpenID:     subject.OpenID,
		UnionID:    subject.UnionID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.sessionTTL),
		DeviceInfo: req.Meta.DeviceInfo,
		SourceAddr: req.Meta.SourceAddr,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, auth.Internal(fmt.Errorf("creating agent session: %w", err))
	}

	entry.Granted = true
	entry.Metadata = map[string]any{"superseded": revoked}
	return &AgentAuthorizeResult{
		SessionHandle: sess.Handle,
		ExpiresAt:     sess.ExpiresAt,
		Subject:       subject,
	}, nil
}

// AgentDeauthorize revokes the session for the handle. Unknown handles are
// not an error; the platform retries the callback on failure and the end
// state is the same.
func (s *AuthService) AgentDeauthorize(ctx context.Context, handle string) error {
	entry := s.newAuditEntry(ctx, "agent.deauthorize")
	entry.AuthKind = string(auth.KindExternalAgent)
	defer s.logAudit(ctx, &entry)

	sess, err := s.store.FindSession(ctx, handle)
	if err != nil {
		entry.Error = err.Error()
		return auth.Internal(fmt.Errorf("looking up agent session: %w", err))
	}
	if sess != nil {
		if err := s.store.RevokeSession(ctx, sess.ID); err != nil {
			entry.Error = err.Error()
			return auth.Internal(fmt.Errorf("revoking agent session: %w", err))
		}
		entry.SubjectID = sess.SubjectID
	}
	entry.Granted = true
	return nil
}

// AgentLogin exchanges an authorization code for a regular bearer
// credential, so the platform's companion app can call the standard API.
func (s *AuthService) AgentLogin(ctx context.Context, req AgentAuthorizeRequest) (*LoginResult, error) {
	entry := s.newAuditEntry(ctx, "agent.login")
	defer s.logAudit(ctx, &entry)

	subject, err := s.resolvePlatformSubject(ctx, req.AuthCode, &entry)
	if err != nil {
		return nil, err
	}

	result, err := s.issueCredential(ctx, subject, req.Meta)
	if err != nil {
		entry.Error = err.Error()
		return nil, err
	}
	result.IsNewUser = entry.Metadata["is_new_user"] == true
	entry.Granted = true
	return result, nil
}

// resolvePlatformSubject runs the code exchange and maps the platform
// account to a subject, creating one with a placeholder email on first
// contact.
func (s *AuthService) resolvePlatformSubject(ctx context.Context, authCode string, entry *core.AuditEntry) (*core.Subject, error) {
	if s.exchanger == nil {
		return nil, auth.ConfigurationError("agent platform exchange is not configured")
	}
	if authCode == "" {
		entry.Error = "missing authCode"
		return nil, auth.BadRequest("authCode is required")
	}

	account, err := s.exchanger.Exchange(ctx, authCode)
	if err != nil {
		entry.Error = "platform exchange failed"
		return nil, auth.UpstreamUnavailable(err)
	}

	subject, err := s.store.FindSubjectByOpenID(ctx, account.OpenID)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("looking up subject: %w", err))
	}

	now := s.now()
	if subject == nil {
		subject = &core.Subject{
			ID:          uuid.NewString(),
			Email:       placeholderEmail(account.OpenID),
			Name:        platformDisplayName(account.Phone),
			Phone:       account.Phone,
			OpenID:      account.OpenID,
			UnionID:     account.UnionID,
			Active:      true,
			LastLoginAt: now,
		}
		if err := s.store.CreateSubject(ctx, subject); err != nil {
			return nil, auth.Internal(fmt.Errorf("creating subject: %w", err))
		}
		if entry.Metadata == nil {
			entry.Metadata = map[string]any{}
		}
		entry.Metadata["is_new_user"] = true
		log.Ctx(ctx).Info().Str("subject_id", subject.ID).
			Msg("created subject from platform account")
	} else {
		if account.UnionID != "" {
			subject.UnionID = account.UnionID
		}
		if account.Phone != "" {
			subject.Phone = account.Phone
		}
		subject.LastLoginAt = now
		if err := s.store.UpdateSubject(ctx, subject); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to update subject from platform account")
		}
	}
	entry.SubjectID = subject.ID
	return subject, nil
}

func (s *AuthService) issueCredential(ctx context.Context, subject *core.Subject, meta RequestMeta) (*LoginResult, error) {
	token, expiresAt, err := s.issuer.Issue(subject.ID, s.tokenTTL)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("issuing token: %w", err))
	}

	cred := core.Credential{
		ID:         uuid.NewString(),
		Token:      token,
		SubjectID:  subject.ID,
		IssuedAt:   s.now(),
		ExpiresAt:  expiresAt,
		DeviceInfo: meta.DeviceInfo,
		SourceAddr: meta.SourceAddr,
	}
	if err := s.store.CreateCredential(ctx, cred); err != nil {
		return nil, auth.Internal(fmt.Errorf("storing credential: %w", err))
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Subject:   subject,
	}, nil
}

func (s *AuthService) newAuditEntry(ctx context.Context, action string) core.AuditEntry {
	reqID, _ := ctx.Value("correlation_id").(string)
	return core.AuditEntry{
		ID:     reqID,
		Time:   s.now(),
		Action: action,
	}
}

func (s *AuthService) logAudit(ctx context.Context, entry *core.AuditEntry) {
	if err := s.auditor.Log(*entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("action", entry.Action).
			Msg("failed to write audit log entry")
	}
}

func validateRegistration(name, email, password string) error {
	if len(strings.TrimSpace(name)) < 2 || len(name) > 100 {
		return auth.BadRequest("name must be between 2 and 100 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return auth.BadRequest("a valid email address is required")
	}
	if len(password) < 8 {
		return auth.BadRequest("password must be at least 8 characters")
	}
	if !upperRe.MatchString(password) {
		return auth.BadRequest("password must contain at least one uppercase letter")
	}
	if !lowerRe.MatchString(password) {
		return auth.BadRequest("password must contain at least one lowercase letter")
	}
	if !digitRe.MatchString(password) {
		return auth.BadRequest("password must contain at least one digit")
	}
	return nil
}

func placeholderEmail(openID string) string {
	return fmt.Sprintf("agent_%s@agent.bottlecrm.com", openID)
}

func platformDisplayName(phone string) string {
	if len(phone) >= 4 {
		return "User " + phone[len(phone)-4:]
	}
	return "Platform User"
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bottlecrm/authd/internal/api/middleware"
	"github.com/bottlecrm/authd/internal/api/presenter"
	"github.com/bottlecrm/authd/internal/auth"
	"github.com/bottlecrm/authd/internal/core"
	"github.com/bottlecrm/authd/internal/service"
)

type RegisterPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FederatedLoginPayload struct {
	IDToken string `json:"id_token"`
}

type CredentialResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *core.Subject `json:"user"`
	IsNewUser bool          `json:"is_new_user,omitempty"`
}

type RevokeAllResponse struct {
	RevokedCount int64 `json:"revoked_count"`
}

type OrgContextResponse struct {
	SubjectID    string             `json:"subject_id"`
	Organization *core.Organization `json:"organization"`
	Role         core.Role          `json:"role"`
	AuthKind     auth.Kind          `json:"auth_kind"`
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		DeviceInfo: r.UserAgent(),
		SourceAddr: r.RemoteAddr,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.authService.Register(r.Context(), service.RegisterRequest{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Meta:     requestMeta(r),
	})
	if err != nil {
		presenter.Err(w, r, err)
		return
	}

	presenter.JSON(w, r, CredentialResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.Subject,
	}, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.authService.Login(r.Context(), service.LoginRequest{
		Email:    payload.Email,
		Password: payload.Password,
		Meta:     requestMeta(r),
	})
	if err != nil {
		presenter.Err(w, r, err)
		return
	}

	presenter.JSON(w, r, CredentialResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.Subject,
	}, http.StatusOK)
}

func (s *Server) handleFederatedLogin(w http.ResponseWriter, r *http.Request) {
	var payload FederatedLoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.authService.FederatedLogin(r.Context(), service.FederatedLoginRequest{
		IDToken: payload.IDToken,
		Meta:    requestMeta(r),
	})
	if err != nil {
		presenter.Err(w, r, err)
		return
	}

	presenter.JSON(w, r, CredentialResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.Subject,
		IsNewUser: result.IsNewUser,
	}, http.StatusOK)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityCtx(r.Context())
	presenter.JSON(w, r, identity.Subject, http.StatusOK)
}

// handleLogout revokes whatever credential authenticated the request.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityCtx(r.Context())

	var err error
	switch identity.Kind {
	case auth.KindBearer:
		err = s.authService.Logout(r.Context(), identity.CredentialID)
	case auth.KindExternalAgent:
		err = s.authService.AgentDeauthorize(r.Context(), identity.SessionHandle)
	}
	if err != nil {
		presenter.Err(w, r, err)
		return
	}

	presenter.JSON(w, r, map[string]bool{"success": true}, http.StatusOK)
}

func (s *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityCtx(r.Context())

	count, err := s.authService.LogoutAll(r.Context(), identity.Subject.ID)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}

	presenter.JSON(w, r, RevokeAllResponse{RevokedCount: count}, http.StatusOK)
}

// handleOrgContext runs behind the organization gate, so the identity
// already carries the resolved role and organization.
func (s *Server) handleOrgContext(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityCtx(r.Context())

	presenter.JSON(w, r, OrgContextResponse{
		SubjectID:    identity.Subject.ID,
		Organization: identity.Organization,
		Role:         identity.Role,
		AuthKind:     identity.Kind,
	}, http.StatusOK)
}

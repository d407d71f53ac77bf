package service

import (
	"time"

	"github.com/bottlecrm/authd/internal/core"
)

// RequestMeta carries the per-request audit fields captured at issuance.
type RequestMeta struct {
	DeviceInfo string
	SourceAddr string
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Meta     RequestMeta
}

type LoginRequest struct {
	Email    string
	Password string
	Meta     RequestMeta
}

type FederatedLoginRequest struct {
	// IDToken is the raw ID token from the mobile app's sign-in flow.
	IDToken string
	Meta    RequestMeta
}

type AgentAuthorizeRequest struct {
	// AuthCode is the authorization code the assistant obtained from the
	// platform's account service.
	AuthCode string
	Meta     RequestMeta
}

// LoginResult is the outcome of any flow that issues a bearer credential.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Subject   *core.Subject

	// IsNewUser is set by flows that may create the subject on the fly.
	IsNewUser bool
}

// AgentAuthorizeResult is the outcome of a successful agent authorization.
type AgentAuthorizeResult struct {
	SessionHandle string
	ExpiresAt     time.Time
	Subject       *core.Subject
}

package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/v1/about"

	RegisterRoute       = "/v1/auth/register"
	LoginRoute          = "/v1/auth/login"
	FederatedLoginRoute = "/v1/auth/google"
	MeRoute             = "/v1/auth/me"
	LogoutRoute         = "/v1/auth/logout"
	RevokeAllRoute      = "/v1/auth/revoke-all"
	OrgContextRoute     = "/v1/auth/context"

	AgentMessageRoute = "/v1/agent/message"
	AgentLoginRoute   = "/v1/agent/login"
)

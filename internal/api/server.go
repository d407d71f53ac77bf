package api

import (
	"net/http"

	"github.com/bottlecrm/authd/internal/api/middleware"
	"github.com/bottlecrm/authd/internal/auth"
	"github.com/bottlecrm/authd/internal/service"
)

type Server struct {
	authService    *service.AuthService
	dispatcher     *auth.Dispatcher
	gate           *auth.Gate
	agentValidator *auth.AgentSessionValidator

	apiKeyHeader string
	agentEnabled bool
}

func NewServer(
	authService *service.AuthService,
	dispatcher *auth.Dispatcher,
	gate *auth.Gate,
	agentValidator *auth.AgentSessionValidator,
	apiKeyHeader string,
	agentEnabled bool,
) *Server {
	return &Server{
		authService:    authService,
		dispatcher:     dispatcher,
		gate:           gate,
		agentValidator: agentValidator,
		apiKeyHeader:   apiKeyHeader,
		agentEnabled:   agentEnabled,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("POST "+RegisterRoute, s.handleRegister)
	mux.HandleFunc("POST "+LoginRoute, s.handleLogin)
	mux.HandleFunc("POST "+FederatedLoginRoute, s.handleFederatedLogin)

	// authenticated routes; the dispatcher accepts either credential kind
	authed := middleware.Authenticate(s.dispatcher)
	mux.Handle("GET "+MeRoute, authed(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST "+LogoutRoute, authed(http.HandlerFunc(s.handleLogout)))
	mux.Handle("POST "+RevokeAllRoute, authed(http.HandlerFunc(s.handleRevokeAll)))
	mux.Handle("GET "+OrgContextRoute,
		authed(middleware.RequireOrganization(s.gate)(http.HandlerFunc(s.handleOrgContext))))

	// external platform routes
	if s.agentEnabled {
		mux.Handle("POST "+AgentMessageRoute,
			middleware.OptionalAgentSession(s.agentValidator)(http.HandlerFunc(s.handleAgentMessage)))
		mux.HandleFunc("POST "+AgentLoginRoute, s.handleAgentLogin)
	}

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}

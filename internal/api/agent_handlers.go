package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bottlecrm/authd/internal/api/middleware"
	"github.com/bottlecrm/authd/internal/api/presenter"
	"github.com/bottlecrm/authd/internal/auth"
	"github.com/bottlecrm/authd/internal/core"
	"github.com/bottlecrm/authd/internal/service"
)

// Methods the platform gateway may call on the message channel.
const (
	agentMethodAuthorize   = "authorize"
	agentMethodDeauthorize = "deauthorize"
	agentMethodContext     = "context"
)

// agentMessageEnvelope mirrors the gateway's nested parameter shape, where
// the payload rides in message.parts[0].data instead of at the top of
// params. Both shapes are accepted; the flat fields win when present.
type agentMessageEnvelope struct {
	Parts []struct {
		Data agentMessageData `json:"data"`
	} `json:"parts"`
}

type agentMessageData struct {
	AuthCode            string `json:"authCode"`
	AgentLoginSessionID string `json:"agentLoginSessionId"`
}

func (m agentMessageEnvelope) firstData() agentMessageData {
	if len(m.Parts) == 0 {
		return agentMessageData{}
	}
	return m.Parts[0].Data
}

type agentAuthorizeParams struct {
	AuthCode string               `json:"authCode"`
	Message  agentMessageEnvelope `json:"message"`
}

func (p agentAuthorizeParams) authCode() string {
	if p.AuthCode != "" {
		return p.AuthCode
	}
	return p.Message.firstData().AuthCode
}

type agentDeauthorizeParams struct {
	SessionID string               `json:"sessionId"`
	Message   agentMessageEnvelope `json:"message"`
}

func (p agentDeauthorizeParams) sessionID() string {
	if p.SessionID != "" {
		return p.SessionID
	}
	return p.Message.firstData().AgentLoginSessionID
}

type AgentAuthorizeResponse struct {
	SessionID string        `json:"sessionId"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *core.Subject `json:"user"`
}

type AgentContextResponse struct {
	User    *core.Subject `json:"user"`
	OpenID  string        `json:"openId,omitempty"`
	UnionID string        `json:"unionId,omitempty"`
}

type AgentLoginPayload struct {
	AuthCode string `json:"authCode"`
}

// handleAgentMessage is the JSON-RPC entrypoint the external platform's
// gateway calls. The channel secret is mandatory here; per-conversation
// identity comes from the session header or the embedded handle that
// OptionalAgentSession may already have resolved.
func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	var req presenter.RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		presenter.RPCErr(w, r, nil, presenter.RPCInvalidRequest, "invalid JSON-RPC request")
		return
	}

	if req.JSONRPC != presenter.JSONRPCVersion {
		presenter.RPCErr(w, r, req.ID, presenter.RPCInvalidRequest,
			"unsupported JSON-RPC version")
		return
	}

	if err := s.agentValidator.RequireChannelSecret(r.Header.Get(s.apiKeyHeader)); err != nil {
		s.rpcError(w, r, req.ID, err)
		return
	}

	switch req.Method {
	case agentMethodAuthorize:
		s.handleAgentAuthorize(w, r, req)
	case agentMethodDeauthorize:
		s.handleAgentDeauthorize(w, r, req)
	case agentMethodContext:
		s.handleAgentContext(w, r, req)
	default:
		presenter.RPCErr(w, r, req.ID, presenter.RPCMethodNotFound,
			"method not found: "+req.Method)
	}
}

func (s *Server) handleAgentAuthorize(w http.ResponseWriter, r *http.Request, req presenter.RPCRequest) {
	var params agentAuthorizeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			presenter.RPCErr(w, r, req.ID, presenter.RPCInvalidParams, "invalid params")
			return
		}
	}
	code := params.authCode()
	if code == "" {
		presenter.RPCErr(w, r, req.ID, presenter.RPCInvalidParams,
			"missing required parameter: authCode")
		return
	}

	result, err := s.authService.AgentAuthorize(r.Context(), service.AgentAuthorizeRequest{
		AuthCode: code,
		Meta:     requestMeta(r),
	})
	if err != nil {
		s.rpcError(w, r, req.ID, err)
		return
	}

	presenter.RPCResult(w, r, req.ID, AgentAuthorizeResponse{
		SessionID: result.SessionHandle,
		ExpiresAt: result.ExpiresAt,
		User:      result.Subject,
	})
}

func (s *Server) handleAgentDeauthorize(w http.ResponseWriter, r *http.Request, req presenter.RPCRequest) {
	var params agentDeauthorizeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			presenter.RPCErr(w, r, req.ID, presenter.RPCInvalidParams, "invalid params")
			return
		}
	}
	handle := params.sessionID()
	if handle == "" {
		presenter.RPCErr(w, r, req.ID, presenter.RPCInvalidParams,
			"missing required parameter: sessionId")
		return
	}

	if err := s.authService.AgentDeauthorize(r.Context(), handle); err != nil {
		s.rpcError(w, r, req.ID, err)
		return
	}

	presenter.RPCResult(w, r, req.ID, map[string]bool{"success": true})
}

// handleAgentContext tells the platform who the conversation acts for. It
// requires a valid session, either embedded in the body or in the session
// header.
func (s *Server) handleAgentContext(w http.ResponseWriter, r *http.Request, req presenter.RPCRequest) {
	identity := middleware.IdentityCtx(r.Context())
	if identity == nil {
		handle := r.Header.Get(middleware.AgentSessionHeader)
		if handle == "" {
			presenter.RPCErr(w, r, req.ID, presenter.RPCMissingSession,
				"missing agent session")
			return
		}

		var err error
		identity, err = s.agentValidator.Validate(r.Context(), handle)
		if err != nil {
			s.rpcError(w, r, req.ID, err)
			return
		}
	}

	presenter.RPCResult(w, r, req.ID, AgentContextResponse{
		User:    identity.Subject,
		OpenID:  identity.OpenID,
		UnionID: identity.UnionID,
	})
}

// handleAgentLogin exchanges an authorization code for a regular bearer
// credential, for the platform's companion app. The channel secret is
// checked only when the platform sends it.
func (s *Server) handleAgentLogin(w http.ResponseWriter, r *http.Request) {
	if err := s.agentValidator.CheckChannelSecret(r.Header.Get(s.apiKeyHeader)); err != nil {
		presenter.Err(w, r, err)
		return
	}

	var payload AgentLoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.authService.AgentLogin(r.Context(), service.AgentAuthorizeRequest{
		AuthCode: payload.AuthCode,
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
		IsNewUser: result.IsNewUser,
	}, http.StatusOK)
}

// rpcError translates an auth failure into the JSON-RPC envelope.
func (s *Server) rpcError(w http.ResponseWriter, r *http.Request, id any, err error) {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		log.Ctx(r.Context()).Error().Err(err).Msg("unhandled error on agent channel")
		presenter.RPCErr(w, r, id, presenter.RPCInternalError, "internal error")
		return
	}

	code := presenter.RPCInternalError
	switch authErr.Code {
	case auth.CodeUpstreamUnavailable:
		code = presenter.RPCUpstreamError
	case auth.CodeInvalidAPIKey:
		code = presenter.RPCInvalidAPIKey
	case auth.CodeUnauthenticated:
		code = presenter.RPCMissingSession
	case auth.CodeSessionInvalid, auth.CodeSubjectNotFound:
		code = presenter.RPCSessionInvalid
	case auth.CodeBadRequest:
		code = presenter.RPCInvalidParams
	}

	if authErr.Wrapped != nil {
		log.Ctx(r.Context()).Warn().Err(authErr.Wrapped).
			Str("code", string(authErr.Code)).Msg("agent channel request failed")
	}
	presenter.RPCErr(w, r, id, code, authErr.Message)
}

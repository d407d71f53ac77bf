package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bottlecrm/authd/internal/auth"
)

// maxPeekBytes bounds how much of the body the opportunistic session
// extraction is willing to buffer.
const maxPeekBytes = 1 << 20

// embeddedSessionBody mirrors only the path of the embedded session handle
// inside the platform's JSON-RPC message body.
type embeddedSessionBody struct {
	Params struct {
		Message struct {
			Parts []struct {
				Data struct {
					AgentLoginSessionID string `json:"agentLoginSessionId"`
				} `json:"data"`
			} `json:"parts"`
		} `json:"message"`
	} `json:"params"`
}

// OptionalAgentSession peeks into the JSON-RPC body for an embedded session
// handle and attaches the identity when it validates. It never blocks the
// request: a missing, malformed or invalid handle just means no identity in
// the context, and the handler decides whether that matters.
func OptionalAgentSession(v auth.SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var peek embeddedSessionBody
			if err := json.Unmarshal(body, &peek); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			var handle string
			if parts := peek.Params.Message.Parts; len(parts) > 0 {
				handle = parts[0].Data.AgentLoginSessionID
			}
			if handle == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := v.Validate(r.Context(), handle)
			if err != nil {
				log.Ctx(r.Context()).Debug().Err(err).
					Msg("embedded agent session did not validate")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

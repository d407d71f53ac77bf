package presenter

import (
	"encoding/json"
	"net/http"
)

// JSON-RPC 2.0 envelope used on the agent message channel. The platform's
// gateway speaks this format; everything else on the server speaks plain
// REST.

const JSONRPCVersion = "2.0"

// Standard JSON-RPC error codes.
const (
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
)

// Application error codes in the implementation-defined range.
const (
	RPCUpstreamError  = -32001
	RPCInvalidAPIKey  = -32002
	RPCMissingSession = -32003
	RPCSessionInvalid = -32004
)

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type RPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCResult writes a successful JSON-RPC response.
func RPCResult(w http.ResponseWriter, r *http.Request, id, result any) {
	JSON(w, r, RPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}, http.StatusOK)
}

// RPCErr writes a JSON-RPC error response. The transport status stays 200;
// the envelope carries the failure.
func RPCErr(w http.ResponseWriter, r *http.Request, id any, code int, message string) {
	JSON(w, r, RPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}, http.StatusOK)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcErrorData struct {
	Kind string `json:"kind"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// paramsError marks a params object that does not decode.
type paramsError struct{ err error }

func (e *paramsError) Error() string { return "invalid params: " + e.err.Error() }
func (e *paramsError) Unwrap() error { return e.err }

// rpcMethod adapts an engine call to a JSON-RPC method whose params is a
// single object. Missing params decode as the zero request.
func rpcMethod[Req, Resp any](call func(context.Context, Req) (Resp, error)) rpcHandler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req Req
		if len(params) > 0 && string(params) != "null" {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, &paramsError{err: err}
			}
		}
		return call(ctx, req)
	}
}

// handleJSONRPC handles JSON-RPC 2.0 requests. Transport is always 200;
// failures are reported in the response's error member.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondWithError(w, r, nil, &rpcError{Code: codeParseError, Message: "Parse error"})
		return
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		s.respondWithError(w, r, req.ID, &rpcError{Code: codeInvalidRequest, Message: "Invalid Request"})
		return
	}

	h, ok := s.rpc[req.Method]
	if !ok {
		s.respondWithError(w, r, req.ID, &rpcError{Code: codeMethodNotFound, Message: "Method not found"})
		return
	}

	result, err := h(r.Context(), req.Params)
	var body []byte
	if err == nil {
		body, err = encode(result)
	}
	if err != nil {
		e := rpcErrorFor(err)
		if e.Code == codeInternalError {
			s.logUnexpected(r, "JSON-RPC request failed", err)
		}
		s.respondWithError(w, r, req.ID, e)
		return
	}

	s.respond(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: body})
}

// rpcErrorFor maps engine errors to JSON-RPC errors: validation failures
// are invalid params, other engine kinds are server errors carrying the
// kind in data.
func rpcErrorFor(err error) *rpcError {
	var perr *paramsError
	if errors.As(err, &perr) {
		return &rpcError{Code: codeInvalidParams, Message: perr.Error()}
	}
	kind, ok := optimization.KindOf(err)
	switch {
	case !ok:
		return &rpcError{Code: codeInternalError, Message: "Internal error"}
	case kind == optimization.KindValidation:
		return &rpcError{Code: codeInvalidParams, Message: err.Error(), Data: rpcErrorData{Kind: string(kind)}}
	default:
		return &rpcError{Code: codeServerError, Message: err.Error(), Data: rpcErrorData{Kind: string(kind)}}
	}
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, id json.RawMessage, e *rpcError) {
	s.requestLogger(r).Debug("JSON-RPC request rejected", map[string]interface{}{
		"code":    e.Code,
		"message": e.Message,
	})
	s.respond(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: e})
}

func (s *Server) respond(w http.ResponseWriter, resp rpcResponse) {
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

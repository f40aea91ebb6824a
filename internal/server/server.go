// Package server exposes the engine over REST and JSON-RPC 2.0.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/copyleftdev/stepwise/internal/engine"
	apperrors "github.com/copyleftdev/stepwise/internal/errors"
	"github.com/copyleftdev/stepwise/internal/logging"
	"github.com/copyleftdev/stepwise/internal/metrics"
	"github.com/copyleftdev/stepwise/internal/optimization"
)

// maxBodyBytes bounds request bodies; datasets are capped by the engine.
const maxBodyBytes = 8 << 20

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
}

// Server implements the HTTP and JSON-RPC handlers for the engine. It holds
// no per-request state.
type Server struct {
	engine *engine.Engine
	logger Logger

	solvers    map[string]http.HandlerFunc
	optimizers map[string]http.HandlerFunc
	rpc        map[string]rpcHandler
}

// NewServer creates a new server instance for eng.
func NewServer(eng *engine.Engine, logger Logger) *Server {
	s := &Server{
		engine: eng,
		logger: logger,
	}

	s.solvers = map[string]http.HandlerFunc{
		"bisection":      handle(s, eng.SolveBisection),
		"golden-section": handle(s, eng.SolveGoldenSection),
		"newton-raphson": handle(s, eng.SolveNewtonRaphson),
		"secant":         handle(s, eng.SolveSecant),
	}
	s.optimizers = map[string]http.HandlerFunc{
		"gradient-descent": handle(s, eng.GradientDescent),
		"newton":           handle(s, eng.Newton),
	}
	s.rpc = map[string]rpcHandler{
		"solve.bisection":          rpcMethod(eng.SolveBisection),
		"solve.goldenSection":      rpcMethod(eng.SolveGoldenSection),
		"solve.newtonRaphson":      rpcMethod(eng.SolveNewtonRaphson),
		"solve.secant":             rpcMethod(eng.SolveSecant),
		"optimize.gradientDescent": rpcMethod(eng.GradientDescent),
		"optimize.newton":          rpcMethod(eng.Newton),
		"gmm.fit":                  rpcMethod(eng.FitMixture),
		"expression.differentiate": rpcMethod(eng.Differentiate),
		"expression.surface":       rpcMethod(eng.Surface),
		"data.interpolate":         rpcMethod(eng.Interpolate),
	}
	return s
}

// RegisterRoutes mounts the REST API under /api/v1 and JSON-RPC on /rpc.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/solve/{method}", s.dispatch(s.solvers))
		r.Post("/optimize/{method}", s.dispatch(s.optimizers))
		r.Post("/gmm", handle(s, s.engine.FitMixture))
		r.Post("/derivative", handle(s, s.engine.Differentiate))
		r.Post("/interpolate", handle(s, s.engine.Interpolate))
		r.Post("/surface", handle(s, s.engine.Surface))
	})

	r.Post("/rpc", s.handleJSONRPC)
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// RequestTimeout cancels request contexts; zero disables it.
	RequestTimeout time.Duration
	Metrics        *metrics.Registry
}

// NewRouter builds the complete HTTP handler: request ids, logging,
// recovery, error logging, timeouts, /healthz, /metrics and the API.
func NewRouter(eng *engine.Engine, logger *logging.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(apperrors.RecoveryMiddleware(logger))
	r.Use(apperrors.ErrorHandler(logger))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", opts.Metrics.Handler())

	NewServer(eng, logger).RegisterRoutes(r)
	return r
}

func (s *Server) dispatch(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := chi.URLParam(r, "method")
		h, ok := handlers[method]
		if !ok {
			apperrors.WriteJSON(w, http.StatusNotFound, apperrors.Body{
				Message: fmt.Sprintf("unknown method %q", method),
			})
			return
		}
		h(w, r)
	}
}

// handle adapts an engine call to a REST handler: decode the JSON body
// into Req, call, encode the response.
func handle[Req, Resp any](s *Server, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			apperrors.WriteJSON(w, http.StatusBadRequest, apperrors.Body{
				Kind:    string(optimization.KindValidation),
				Message: fmt.Sprintf("invalid request body: %v", err),
			})
			return
		}

		resp, err := call(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		body, err := encode(resp)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// encode marshals v, reporting non-finite numbers in a trace as a
// divergence instead of a bare encoding failure.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) {
			return nil, optimization.WrapError(optimization.KindDivergence, err, "result contains non-finite numbers")
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// statusFor maps engine error kinds to HTTP statuses.
func statusFor(err error) int {
	if kind, ok := optimization.KindOf(err); ok {
		if kind == optimization.KindValidation {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := apperrors.Body{Message: err.Error()}
	if kind, ok := optimization.KindOf(err); ok {
		body.Kind = string(kind)
	}
	if status == http.StatusInternalServerError {
		s.logUnexpected(r, "Unexpected engine error", err)
		body.Message = "internal error"
	}
	apperrors.WriteJSON(w, status, body)
}

// logUnexpected logs an error that no engine kind accounts for, with the
// request and the stack where the server caught it.
func (s *Server) logUnexpected(r *http.Request, msg string, err error) {
	err = apperrors.Wrapf(err, "%s %s", r.Method, r.URL.Path)
	s.requestLogger(r).Error(msg, apperrors.Fields(err))
}

// requestLogger returns the logger Middleware attached to r, which
// carries the request id, or the server's logger outside the router.
func (s *Server) requestLogger(r *http.Request) Logger {
	if l, ok := logging.Lookup(r.Context()); ok {
		return l
	}
	return s.logger
}

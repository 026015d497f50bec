package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"hubswap/core/state"
	"hubswap/native/distribution"
	"hubswap/storage"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// RateLimit bounds JSON-RPC request rates per client source address. A zero
// RequestsPerMinute disables limiting.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

// Server hosts the distribution engine behind a JSON-RPC interface. All
// mutating operations run under a single mutex: the server is the execution
// environment that serializes read-modify-write cycles on contribution
// records.
type Server struct {
	db     storage.Database
	engine *distribution.Engine
	auth   *Authenticator
	stream *EventStream
	logger *slog.Logger

	mu sync.Mutex

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     RateLimit
}

func NewServer(db storage.Database, auth *Authenticator, limit RateLimit, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	stream := NewEventStream()
	engine := distribution.NewEngine()
	engine.SetEmitter(stream)
	return &Server{
		db:       db,
		engine:   engine,
		auth:     auth,
		stream:   stream,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Engine exposes the underlying engine, primarily for tests and for the
// daemon to adjust the clock source.
func (s *Server) Engine() *distribution.Engine { return s.engine }

// Handler returns the HTTP handler tree for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

// Start serves JSON-RPC requests until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

// withCommit runs fn against a buffered state overlay and flushes the
// buffered writes only when fn succeeds, so a failed operation leaves
// persisted state untouched. Engine events are held back the same way and
// reach the stream only once the overlay has committed.
func (s *Server) withCommit(fn func(mgr *state.Manager) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	overlay := storage.NewOverlay(s.db)
	mgr := state.NewManager(overlay)
	s.engine.SetState(mgr)
	buffer := &bufferedEmitter{}
	s.engine.SetEmitter(buffer)
	defer s.engine.SetEmitter(s.stream)
	if err := fn(mgr); err != nil {
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	buffer.flush(s.stream)
	return nil
}

// withRead runs fn against the backing store directly; fn must not mutate.
func (s *Server) withRead(fn func(mgr *state.Manager) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mgr := state.NewManager(s.db)
	s.engine.SetState(mgr)
	return fn(mgr)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	switch req.Method {
	case "hubswap_initialize":
		s.handleInitialize(w, r, &req)
	case "hubswap_updateRates":
		s.handleUpdateRates(w, r, &req)
	case "hubswap_terminate":
		s.handleTerminate(w, r, &req)
	case "hubswap_fundVault":
		s.handleFundVault(w, r, &req)
	case "hubswap_distribute":
		s.handleDistribute(w, r, &req)
	case "hubswap_claimReward":
		s.handleClaimReward(w, r, &req)
	case "hubswap_withdraw":
		s.handleWithdraw(w, r, &req)
	case "hubswap_position":
		s.handlePosition(w, r, &req)
	case "hubswap_config":
		s.handleConfig(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if err := s.auth.VerifyAdmin(r); err != nil {
		s.logger.Warn("admin auth rejected", slog.Any("error", err), slog.String("method", req.Method))
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return false
	}
	return true
}

func (s *Server) allow(client string) bool {
	if s.limit.RequestsPerMinute <= 0 {
		return true
	}
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[client]
	if !ok {
		perSecond := s.limit.RequestsPerMinute / 60.0
		burst := s.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		s.limiters[client] = limiter
	}
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	rpcErr := engineError(err)
	status := http.StatusBadRequest
	switch rpcErr.Code {
	case codeAuthz:
		status = http.StatusForbidden
	case codeExternalCall, codeServerError:
		status = http.StatusInternalServerError
	case codeState, codeTiming, codeValidation:
		status = http.StatusConflict
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// errorCategory labels an engine failure for metrics.
func errorCategory(err error) string {
	if err == nil {
		return ""
	}
	var tooEarly *distribution.TooEarlyError
	switch {
	case errors.As(err, &tooEarly):
		return "timing"
	case errors.Is(err, distribution.ErrInvalidAmount), errors.Is(err, distribution.ErrInvalidRates):
		return "validation"
	case errors.Is(err, distribution.ErrUnauthorized):
		return "authorization"
	case errors.Is(err, distribution.ErrLedgerCall), errors.Is(err, distribution.ErrMintCapability):
		return "external"
	default:
		return "state"
	}
}

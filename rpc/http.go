package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftmarket/core"
	"nftmarket/explorer"
	"nftmarket/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	shutdownTimeout = 5 * time.Second
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// History is the read side of the explorer indexer.
type History interface {
	ListingHistory(ctx context.Context, asset string) ([]explorer.ListingEvent, error)
	RecentSettlements(ctx context.Context, limit int) ([]explorer.Settlement, error)
}

// ServerConfig tunes the JSON-RPC server.
type ServerConfig struct {
	// AuthToken is the bearer token required by state-changing methods. When
	// empty those methods are refused.
	AuthToken          string
	RateLimitPerSecond float64
	Burst              int
	// TrustProxyHeaders makes the limiter key on X-Forwarded-For.
	TrustProxyHeaders bool
	// EnableFaucet exposes dev_credit.
	EnableFaucet      bool
	ReadHeaderTimeout time.Duration
	Logger            *slog.Logger
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type method struct {
	fn   handlerFunc
	auth bool
}

// Server exposes the node over JSON-RPC 2.0 along with the websocket event
// stream and Prometheus metrics.
type Server struct {
	node    *core.Node
	history History
	cfg     ServerConfig
	logger  *slog.Logger
	metrics *metrics.RPCMetrics
	limits  *clientLimiters
	methods map[string]method
	router  http.Handler

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer builds the RPC surface for node. history may be nil when the
// explorer is disabled.
func NewServer(node *core.Node, history History, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	s := &Server{
		node:    node,
		history: history,
		cfg:     cfg,
		logger:  logger.With("component", "rpc"),
		metrics: metrics.RPC(),
		limits:  newClientLimiters(cfg.RateLimitPerSecond, cfg.Burst),
	}
	s.methods = s.methodTable()
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) methodTable() map[string]method {
	table := map[string]method{
		"registry_mint":           {fn: s.handleMint, auth: true},
		"market_createOrder":      {fn: s.handleCreateOrder, auth: true},
		"market_cancelOrder":      {fn: s.handleCancelOrder, auth: true},
		"market_fillOrder":        {fn: s.handleFillOrder, auth: true},
		"market_createAuction":    {fn: s.handleCreateAuction, auth: true},
		"market_bid":              {fn: s.handleBid, auth: true},
		"market_cancelAuction":    {fn: s.handleCancelAuction, auth: true},
		"market_resolveAuction":   {fn: s.handleResolveAuction, auth: true},
		"market_setPause":         {fn: s.handleSetPause, auth: true},
		"market_getOrder":         {fn: s.handleGetOrder},
		"market_getAuction":       {fn: s.handleGetAuction},
		"market_getListing":       {fn: s.handleGetListing},
		"market_getBalance":       {fn: s.handleGetBalance},
		"market_getAsset":         {fn: s.handleGetAsset},
		"market_getPauses":        {fn: s.handleGetPauses},
		"explorer_listingHistory": {fn: s.handleListingHistory},
		"explorer_settlements":    {fn: s.handleRecentSettlements},
		"explorer_export":         {fn: s.handleExportSettlements},
	}
	if s.cfg.EnableFaucet {
		table["dev_credit"] = method{fn: s.handleCredit, auth: true}
	}
	return table
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.withRequestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(limited chi.Router) {
		limited.Use(s.withRateLimit)
		limited.Post("/", s.handle)
		limited.Get("/ws/events", s.handleEventsWS)
	})
	return otelhttp.NewHandler(r, "marketd.rpc")
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on listener until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	s.logger.Info("json-rpc server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

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

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	methodName := ""
	defer func() {
		outcome := "ok"
		if rec.status != http.StatusOK {
			outcome = "error"
		}
		elapsed := time.Since(start)
		s.metrics.Observe(methodName, outcome, elapsed.Seconds())
		s.logger.Info("rpc request",
			"method", methodName,
			"request_id", requestIDFrom(r.Context()),
			"status", rec.status,
			"outcome", outcome,
			"duration_ms", elapsed.Milliseconds(),
		)
	}()

	reader := http.MaxBytesReader(rec, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	rec.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(rec, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(rec, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(rec, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	methodName = req.Method
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(rec, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(rec, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(rec, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
		return
	}
	if m.auth {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(rec, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	m.fn(rec, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) clientSource(r *http.Request) string {
	if s.cfg.TrustProxyHeaders {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			if candidate := strings.TrimSpace(strings.Split(forwarded, ",")[0]); candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type ctxKey int

const requestIDKey ctxKey = iota

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

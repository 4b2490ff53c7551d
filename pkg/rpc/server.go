package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fortiblox/x1-tokenledger/pkg/bank"
	"github.com/fortiblox/x1-tokenledger/pkg/metrics"
)

// ServerConfig holds configuration for the RPC server.
type ServerConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration

	// MaxRequestSize is the maximum size of a request body in bytes.
	MaxRequestSize int64

	// AllowedOrigins for CORS. Empty allows all.
	AllowedOrigins []string

	// Metrics, when set, counts requests and is served at GET /metrics.
	Metrics *metrics.Metrics

	Logger zerolog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024,
		Logger:         zerolog.Nop(),
	}
}

// Server is a JSON-RPC 2.0 server over a bank.
type Server struct {
	config   ServerConfig
	handlers *Handlers
	router   chi.Router
}

// NewServer creates a server for b.
func NewServer(b *bank.Bank, config ServerConfig) *Server {
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = DefaultServerConfig().MaxRequestSize
	}
	s := &Server{
		config:   config,
		handlers: NewHandlers(b, config.Logger),
	}

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(config.Logger))
	r.Use(CORSMiddleware(config.AllowedOrigins))
	r.Post("/", s.handleRequest)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	})
	if config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", config.Metrics.Handler())
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info().Str("addr", ln.Addr().String()).Msg("rpc server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.config.Logger.Info().Msg("rpc server stopped")
		return nil
	}
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, errorResponse(nil, NewRPCError(ParseError, "failed to read request body")))
		return
	}

	if len(body) > 0 && body[0] == '[' {
		s.handleBatchRequest(r.Context(), w, body)
		return
	}
	response, ok := s.processRequest(r.Context(), body)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeResponse(w, response)
}

func (s *Server) handleBatchRequest(ctx context.Context, w http.ResponseWriter, body []byte) {
	var requests []json.RawMessage
	if err := json.Unmarshal(body, &requests); err != nil {
		s.writeResponse(w, errorResponse(nil, NewRPCError(ParseError, "invalid JSON")))
		return
	}
	if len(requests) == 0 {
		s.writeResponse(w, errorResponse(nil, NewRPCError(InvalidRequest, "empty batch")))
		return
	}

	responses := make([]RPCResponse, 0, len(requests))
	for _, reqBody := range requests {
		if response, ok := s.processRequest(ctx, reqBody); ok {
			responses = append(responses, response)
		}
	}
	if len(responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeResponse(w, responses)
}

// processRequest runs one request. It reports false for a notification,
// a well-formed request without an id, which never gets a response.
func (s *Server) processRequest(ctx context.Context, body []byte) (RPCResponse, bool) {
	var request RPCRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return errorResponse(nil, NewRPCError(ParseError, "invalid JSON")), true
	}
	if request.JSONRPC != JSONRPCVersion {
		return errorResponse(request.ID, NewRPCError(InvalidRequest, "invalid jsonrpc version")), true
	}
	notification := request.ID == nil

	handler := s.handlers.GetHandler(request.Method)
	if handler == nil {
		s.config.Metrics.RecordRPC("unknown", false)
		return errorResponse(request.ID, NewRPCError(MethodNotFound, fmt.Sprintf("method not found: %s", request.Method))), !notification
	}

	result, rpcErr := handler(ctx, request.Params)
	s.config.Metrics.RecordRPC(request.Method, rpcErr == nil)
	if rpcErr != nil {
		return errorResponse(request.ID, rpcErr), !notification
	}
	return RPCResponse{
		JSONRPC: JSONRPCVersion,
		Result:  result,
		ID:      request.ID,
	}, !notification
}

func errorResponse(id any, rpcErr *RPCError) RPCResponse {
	return RPCResponse{
		JSONRPC: JSONRPCVersion,
		Error:   rpcErr,
		ID:      id,
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, response any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.config.Logger.Error().Err(err).Msg("failed to write response")
	}
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calmcp/calmcp/internal/guard"
)

const (
	// DefaultHTTPAddr is the default bind address for the MCP endpoint.
	DefaultHTTPAddr = ":8000"

	mcpEndpointPath = "/mcp"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
)

// HTTPServer serves the MCP streamable HTTP transport behind the
// pre-shared key guard. Health endpoints stay outside the guard.
type HTTPServer struct {
	httpServer *http.Server
	addr       string
	logger     *slog.Logger
}

// NewHTTPServer wires the MCP server, guard and health checker into a
// single HTTP handler.
func NewHTTPServer(addr string, mcpSrv *mcpserver.MCPServer, g *guard.Guard, health *HealthChecker, logger *slog.Logger) *HTTPServer {
	if addr == "" {
		addr = DefaultHTTPAddr
	}
	if logger == nil {
		logger = slog.Default()
	}

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(mcpEndpointPath),
	)

	mux := http.NewServeMux()
	mux.Handle(mcpEndpointPath, streamable)
	if health != nil {
		health.Register(mux)
	}

	handler := http.Handler(mux)
	if g != nil {
		handler = g.Middleware(mux)
	}

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			IdleTimeout:       defaultIdleTimeout,
		},
		addr:   addr,
		logger: logger,
	}
}

// Start starts the server in a blocking manner.
func (s *HTTPServer) Start() error {
	s.logger.Info("starting MCP HTTP server", "addr", s.addr, "endpoint", mcpEndpointPath)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down MCP HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured bind address.
func (s *HTTPServer) Addr() string {
	return s.addr
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/calmcp/calmcp/internal/admin"
	"github.com/calmcp/calmcp/internal/config"
	"github.com/calmcp/calmcp/internal/credentials"
	"github.com/calmcp/calmcp/internal/enroll"
	"github.com/calmcp/calmcp/internal/google"
	"github.com/calmcp/calmcp/internal/guard"
	"github.com/calmcp/calmcp/internal/logging"
	"github.com/calmcp/calmcp/internal/metrics"
	"github.com/calmcp/calmcp/internal/postgres"
	"github.com/calmcp/calmcp/internal/server"
	"github.com/calmcp/calmcp/internal/tools/calendar_tools"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		httpAddr  string
		yolo      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Google Calendar
tools for AI assistants.

Supports multiple transport types:
  - streamable-http: Streamable HTTP transport (default), guarded by the
    pre-shared server key (MCP_SERVER_API_KEY)
  - stdio: Standard input/output for local single-client use

The admin interface for user enrollment starts alongside the MCP
transport and binds its own address (ADMIN_HTTP_ADDR).

Safety Mode:
  By default, the server operates in read-only mode, providing only safe
  operations. Use --yolo to enable write operations (event creation,
  update, deletion).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), transport, httpAddr, yolo)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "streamable-http", "Transport type (streamable-http or stdio)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides MCP_HTTP_ADDR)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (event creation, update, deletion). Default is read-only mode.")

	return cmd
}

func runServe(parentCtx context.Context, transport, httpAddr string, yolo bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if httpAddr == "" {
		httpAddr = cfg.Server.HTTPAddr
	}
	if transport == "streamable-http" {
		if err := cfg.ValidateGuard(); err != nil {
			return err
		}
	}

	logger := logging.New(slog.Level(cfg.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Credential store
	var store credentials.Store
	var pinger server.Pinger
	switch cfg.Database.StorageType {
	case config.StorageTypePostgres:
		db, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		repo := postgres.NewCredentialRepository(db)
		store, pinger = repo, repo
	case config.StorageTypeMemory:
		logger.Warn("using in-memory credential store, records are lost on restart")
		store = credentials.NewMemoryStore(logger)
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Database.StorageType)
	}

	// OAuth plumbing
	oauthConfig := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI)
	exchanger := google.NewExchanger(oauthConfig, nil)

	refresher := credentials.NewRefresher(store, exchanger, logger)

	var metricsProvider *metrics.Provider
	if cfg.Metrics.Enabled {
		metricsProvider = metrics.NewProvider()
		refresher.SetObserver(metricsProvider)
	}

	serverContext := server.NewServerContext(ctx, store, refresher)
	if metricsProvider != nil {
		serverContext.SetToolObserver(metricsProvider)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	// Enrollment and admin surface
	flowStore := enroll.NewFlowStore(logger)
	defer flowStore.Close()
	enroller := enroll.NewEnroller(flowStore, exchanger, store, logger)

	adminServer := admin.NewServer(admin.Config{
		Addr:          cfg.Admin.HTTPAddr,
		Username:      cfg.Admin.Username,
		Password:      cfg.Admin.Password,
		SessionSecret: cfg.Admin.SessionSecret,
	}, store, enroller, serverContext.DropClientForUser, logger)

	// MCP server and tools
	mcpSrv := mcpserver.NewMCPServer("calmcp", version,
		mcpserver.WithToolCapabilities(true),
	)

	readOnly := !yolo
	if readOnly {
		logger.Info("starting server in read-only mode (use --yolo to enable write operations)")
	} else {
		logger.Info("starting server with write operations enabled")
	}

	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext, readOnly); err != nil {
		return fmt.Errorf("register calendar tools: %w", err)
	}

	errCh := make(chan error, 3)

	go func() {
		if err := adminServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	var metricsServer *server.MetricsServer
	if metricsProvider != nil {
		metricsServer, err = server.NewMetricsServer(cfg.Metrics.Addr, metricsProvider)
		if err != nil {
			return fmt.Errorf("create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var httpServer *server.HTTPServer
	switch transport {
	case "streamable-http":
		g := guard.New(cfg.Server.APIKey, logger)
		if metricsProvider != nil {
			g.SetObserver(metricsProvider)
		}
		health := server.NewHealthChecker(pinger)
		httpServer = server.NewHTTPServer(httpAddr, mcpSrv, g, health, logger)
		go func() {
			if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("mcp server: %w", err)
			}
		}()
	case "stdio":
		go func() {
			if err := mcpserver.ServeStdio(mcpSrv); err != nil {
				errCh <- fmt.Errorf("stdio server: %w", err)
			}
		}()
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("mcp server shutdown failed", logging.Err(err))
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", logging.Err(err))
	}

	return nil
}

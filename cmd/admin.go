package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calmcp/calmcp/internal/admin"
	"github.com/calmcp/calmcp/internal/config"
	"github.com/calmcp/calmcp/internal/credentials"
	"github.com/calmcp/calmcp/internal/enroll"
	"github.com/calmcp/calmcp/internal/google"
	"github.com/calmcp/calmcp/internal/logging"
	"github.com/calmcp/calmcp/internal/postgres"
	"github.com/calmcp/calmcp/internal/server"
)

func newAdminCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Start the admin enrollment server standalone",
		Long: `Start the admin enrollment server as its own process, without the MCP
transport. It shares only the credential datastore with the serving
process, so the two can be deployed and restarted independently.

With memory storage the two processes cannot see each other's records;
use postgres storage when running them separately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd.Context(), httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides ADMIN_HTTP_ADDR)")

	return cmd
}

func runAdmin(parentCtx context.Context, httpAddr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if httpAddr == "" {
		httpAddr = cfg.Admin.HTTPAddr
	}

	logger := logging.New(slog.Level(cfg.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store credentials.Store
	switch cfg.Database.StorageType {
	case config.StorageTypePostgres:
		db, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		store = postgres.NewCredentialRepository(db)
	case config.StorageTypeMemory:
		logger.Warn("using in-memory credential store, records are invisible to other processes")
		store = credentials.NewMemoryStore(logger)
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Database.StorageType)
	}

	oauthConfig := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI)
	exchanger := google.NewExchanger(oauthConfig, nil)

	flowStore := enroll.NewFlowStore(logger)
	defer flowStore.Close()
	enroller := enroll.NewEnroller(flowStore, exchanger, store, logger)

	// No client-cache hook here: the serving process notices deleted
	// records on its next datastore read.
	adminServer := admin.NewServer(admin.Config{
		Addr:          httpAddr,
		Username:      cfg.Admin.Username,
		Password:      cfg.Admin.Password,
		SessionSecret: cfg.Admin.SessionSecret,
	}, store, enroller, nil, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := adminServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	logger.Info("admin server started", "addr", httpAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", logging.Err(err))
	}

	return nil
}

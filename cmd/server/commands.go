package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carimport/internal/adapters/storage"
	"carimport/internal/application/orchestrators"
	"carimport/internal/config"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 20 * time.Second

// setup loads and validates config and installs the logger.
func setup(configFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config:\n%w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate, seed the admin and serve HTTP with the outbox worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// serve runs the HTTP server, the outbox worker and the analytics queue until ctx is cancelled.
// POST: in-flight requests get shutdownTimeout to finish
func serve(ctx context.Context, cfg *config.Config) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.seedAdmin(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server_starting", "addr", cfg.Addr, "schema", storage.LatestVersion(), "dialect", string(a.db.Dialect()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if !cfg.Outbox.DisableWorker {
		g.Go(func() error {
			return orchestrators.RunOutboxWorker(gctx, a.outbox, cfg.Outbox.Interval)
		})
	}
	if a.tracker != nil {
		g.Go(func() error {
			return a.tracker.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("server_stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newMigrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return migrate(cmd.Context(), cfg)
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config) error {
	raw, dialect, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	db := storage.NewTimedDB(raw, dialect, nil, cfg.SlowQuery)
	defer db.Close()
	before, err := storage.SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}
	slog.Info("schema_up_to_date", "dialect", string(dialect), "from", before, "to", storage.LatestVersion())
	return nil
}

func newSeedAdminCmd(configFile *string) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the administrator account if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			if email != "" {
				cfg.Admin.Email = email
			}
			if password != "" {
				cfg.Admin.Password = password
			}
			if name != "" {
				cfg.Admin.Name = name
			}
			if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
				return errors.New("seed-admin needs --email and --password (or admin.email and admin.password)")
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.seedAdmin(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (min 12 characters)")
	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	return cmd
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/avissapr/reporthub/internal/config"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var restoreFromRemote bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard and JSON API",
	Long: `Start the HTTP server.

Startup seeds configured accounts, default UI texts and departments when the
tables are empty. With --restore (and SYNC_ENABLED) empty tables are first
filled from the remote snapshot.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&restoreFromRemote, "restore", false, "Fill empty tables from the remote snapshot before seeding")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := os.MkdirAll(cfg.UploadsDir(), 0o755); err != nil {
		return err
	}

	srv, err := newServer(cfg, pool, logger)
	if err != nil {
		return err
	}
	defer srv.limiters.Stop()

	if restoreFromRemote {
		if err := srv.seed.Restore(ctx, srv.mirror); err != nil {
			logger.Error("restore from remote failed", err)
		}
	}
	if err := srv.seed.Bootstrap(ctx, cfg.Seed); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.File != "" && srv.allowList != nil {
		if err := watchIdentity(gctx, g, cfg, srv.allowList, logger.Zerolog("config")); err != nil {
			logger.Error("config watcher disabled", err)
		}
	}

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		logger.Info("ReportHub listening on " + addr)
		if cfg.Server.TLSCert != "" {
			return srv.app.ListenTLS(addr, cfg.Server.TLSCert, cfg.Server.TLSKey)
		}
		return srv.app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return srv.app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout)
	})

	return g.Wait()
}

// watchIdentity reloads the allow-lists whenever the YAML file changes.
func watchIdentity(ctx context.Context, g *errgroup.Group, cfg *config.Config, authz *services.AllowListAuthorizer, log zerolog.Logger) error {
	w, err := config.NewWatcher(cfg, func(ic config.IdentityConfig) {
		authz.SetLists(ic.Admins, ic.DirectiveAuthors)
	}, log)
	if err != nil {
		return err
	}

	g.Go(func() error {
		w.Run(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		w.Stop()
		return nil
	})
	return nil
}

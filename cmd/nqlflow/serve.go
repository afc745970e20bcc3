package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	corecfg "github.com/aevon-lab/nqlflow/internal/core/config"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
	"github.com/aevon-lab/nqlflow/internal/core/storage"
	"github.com/aevon-lab/nqlflow/internal/core/storage/postgres"
	"github.com/aevon-lab/nqlflow/internal/ingestion"
	"github.com/aevon-lab/nqlflow/internal/migrations"
	"github.com/aevon-lab/nqlflow/internal/projection"
	"github.com/aevon-lab/nqlflow/internal/server"
	"github.com/aevon-lab/nqlflow/internal/sink"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion API and the stream runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, cmd)
		},
	}
}

func runServe(ctx context.Context, rootOpts *rootOptions, cmd *cobra.Command) error {
	cfg, err := corecfg.Load(rootOpts.ConfigPath)
	if err != nil {
		return err
	}
	slog.Info("Loaded config",
		"addr", cfg.Server.Addr(),
		"queries_dir", cfg.Queries.Dir,
		"queries", len(cfg.Repository.Runnable()),
		"database", cfg.Database.Enabled)

	out, closeOut, err := openOutput(cfg.Output.Path, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut()
	writer := sink.NewWriter(out)

	var (
		store  storage.ResultStore
		health server.HealthChecker
	)
	derived := sink.Multi{writer}
	if cfg.Database.Enabled {
		adapter, err := postgres.NewAdapter(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return err
		}
		defer adapter.Close()

		if err := migrations.Run(adapter.DB(), cfg.Database.AutoMigrate); err != nil {
			return err
		}
		store = adapter
		health = adapter.DB()
		derived = append(derived, sink.NewStore(adapter))
	}

	p := pipelineOptions{Derived: derived}
	if cfg.Output.Passthrough {
		p.Passthrough = writer
	}
	runner := newPipeline(cfg, cfg.Repository, p)

	ingestionSvc := ingestion.NewService(runner, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(cfg.Repository, nql.NewCache(cfg.Engine.CompileCacheSize), store, runner)
	srv := server.New(cfg.Server.Addr(), cfg.Server.Mode, health, runner.Done(), ingestionSvc, projectionSvc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Start(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	corecfg "github.com/aevon-lab/nqlflow/internal/core/config"
	"github.com/aevon-lab/nqlflow/internal/queries"
	"github.com/aevon-lab/nqlflow/internal/sink"
	"github.com/aevon-lab/nqlflow/internal/source"
)

type runOptions struct {
	*rootOptions
	Input       string
	Output      string
	Queries     []string
	Dir         string
	WallClock   bool
	Passthrough bool
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run queries over a JSON lines event file",
		Long: `Read one JSON event per line from --input (or stdin), run every query and
write derived events, plus the events matched by filter and show queries, as
JSON lines. Windows advance with event timestamps unless --wall-clock is set.
Open windows are flushed when the input ends.`,
		Example: `  nqlflow run --input events.jsonl -q 'status >= 500'
  nqlflow run -q 'aggregate count() by host window 1m' < events.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFile(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "-", "JSON lines input file, - for stdin")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (defaults to output.path from config)")
	cmd.Flags().StringArrayVarP(&opts.Queries, "query", "q", nil, "query to run (repeatable)")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "query definition directory (defaults to queries.dir from config)")
	cmd.Flags().BoolVar(&opts.WallClock, "wall-clock", false, "advance windows with wall-clock time")
	cmd.Flags().BoolVar(&opts.Passthrough, "passthrough", true, "write events matched by filter and show queries")
	return cmd
}

func runFile(ctx context.Context, opts *runOptions, stdin io.Reader, stdout io.Writer) error {
	cfg, err := corecfg.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	repo, err := runRepository(cfg, opts)
	if err != nil {
		return err
	}
	if len(repo.Runnable()) == 0 {
		return fmt.Errorf("no runnable queries")
	}
	for _, d := range repo.Runnable() {
		slog.Debug("Running query", "name", d.Name, "query", d.Compiled)
	}

	in := stdin
	if opts.Input != "" && opts.Input != "-" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	outPath := cfg.Output.Path
	if opts.Output != "" {
		outPath = opts.Output
	}
	out, closeOut, err := openOutput(outPath, stdout)
	if err != nil {
		return err
	}
	defer closeOut()
	writer := sink.NewWriter(out)

	p := pipelineOptions{Derived: writer, EventTime: !opts.WallClock}
	if opts.Passthrough {
		p.Passthrough = writer
	}
	runner := newPipeline(cfg, repo, p)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Start(runCtx) }()

	st, feedErr := source.Feed(ctx, source.NewReader(in, 0), runner.SubmitWait)
	cancel()
	if err := <-errCh; err != nil {
		return err
	}
	slog.Info("Input processed", "events", st.Events, "skipped", st.Skipped)
	return feedErr
}

// runRepository picks the queries for a run: --query texts and --dir
// definitions when given, otherwise the configured directory.
func runRepository(cfg *corecfg.Config, opts *runOptions) (queries.Repository, error) {
	if len(opts.Queries) == 0 && opts.Dir == "" {
		return cfg.Repository, nil
	}

	var defs []queries.Definition
	if opts.Dir != "" {
		dirRepo, err := queries.LoadDir(opts.Dir)
		if err != nil {
			return nil, err
		}
		list, err := dirRepo.List(context.Background())
		if err != nil {
			return nil, err
		}
		for _, d := range list {
			if d.CompileErr != nil {
				slog.Warn("Skipping query that failed to compile", "name", d.Name, "error", d.CompileErr)
			}
			defs = append(defs, queries.Definition{
				Name: d.Name, Query: d.Query, Description: d.Description,
				Enabled: d.Enabled, Path: d.Path, Fingerprint: d.Fingerprint,
			})
		}
	}
	for i, text := range opts.Queries {
		defs = append(defs, queries.Definition{Name: fmt.Sprintf("query-%d", i+1), Query: text, Enabled: true})
	}
	return queries.NewMemoryRepository(defs)
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aevon-lab/nqlflow/internal/core/aggregation"
	corecfg "github.com/aevon-lab/nqlflow/internal/core/config"
	"github.com/aevon-lab/nqlflow/internal/core/correlation"
	"github.com/aevon-lab/nqlflow/internal/executor"
	"github.com/aevon-lab/nqlflow/internal/queries"
	"github.com/aevon-lab/nqlflow/internal/sink"
	"github.com/aevon-lab/nqlflow/internal/stream"
)

// worldOptions maps engine configuration onto the executor.
func worldOptions(e corecfg.EngineConfig) executor.Options {
	return executor.Options{
		CacheSize: e.CompileCacheSize,
		Aggregation: aggregation.Options{
			MaxSlidingWindows: e.MaxSlidingWindows,
			FlushFloor:        e.FlushFloor,
		},
		Correlation: correlation.Options{
			BufferCap:  e.CorrelationBufferCap,
			EvictFloor: e.FlushFloor,
		},
		FlushOnClose: e.FlushOnClose,
	}
}

func runnerOptions(e corecfg.EngineConfig) stream.Options {
	return stream.Options{
		TickInterval:  e.TickInterval,
		BacklogSize:   e.BacklogSize,
		ShutdownGrace: e.ShutdownGrace,
	}
}

// openOutput returns the JSON lines destination for path; "-" and "" mean
// stdout. The returned closer is a no-op for stdout.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	return f, f.Close, nil
}

// pipelineOptions selects where the runner's output goes.
type pipelineOptions struct {
	Derived     sink.Sink // aggregation and correlation results
	Passthrough sink.Sink // events matched by filter and show queries; nil drops them
	EventTime   bool
}

// newPipeline wires a World and a Runner over the runnable queries of repo.
func newPipeline(cfg *corecfg.Config, repo queries.Repository, p pipelineOptions) *stream.Runner {
	world := executor.NewWorld(p.Derived, worldOptions(cfg.Engine))
	ropts := runnerOptions(cfg.Engine)
	ropts.EventTime = p.EventTime
	return stream.NewRunner(world, repo.Runnable(), p.Passthrough, ropts)
}

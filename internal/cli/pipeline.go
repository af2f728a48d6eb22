package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/corpusfork/internal/config"
	"github.com/rshade/corpusfork/internal/engine"
	"github.com/rshade/corpusfork/internal/engine/merge"
	"github.com/rshade/corpusfork/internal/logging"
	"github.com/rshade/corpusfork/internal/metrics"
)

// stdinArg selects stdin as input.
const stdinArg = "-"

// pipelineRun describes one invocation of a pipeline subcommand.
type pipelineRun struct {
	name   string
	input  string
	work   engine.WorkFunc
	policy merge.Policy
}

// openInput opens the named file, or stdin for "" and "-". An input that
// cannot be opened is a configuration error: the pipeline never starts.
func openInput(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "" || name == stdinArg {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, configError(fmt.Errorf("opening input: %w", err))
	}
	return f, nil
}

// inputArg returns the optional positional input argument.
func inputArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// runPipeline runs the engine over the input and prints the run summary to
// stderr. Batch failures do not hide successful output: the summary is
// returned together with an ExitFailure error so callers can still emit
// accumulated results.
func runPipeline(cmd *cobra.Command, run pipelineRun) (*engine.Summary, error) {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)
	cfg := config.GetGlobalConfig()

	in, err := openInput(cmd, run.input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	reg := prometheus.NewRegistry()
	pipelineMetrics, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	eng, err := engine.New(cfg.ToEngineConfig(),
		engine.WithLogger(logging.ComponentLogger(*log, "engine")),
		engine.WithMetrics(pipelineMetrics),
	)
	if err != nil {
		return nil, configError(err)
	}

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	var g errgroup.Group
	if addr := cfg.Metrics.Addr; addr != "" {
		log.Info().Ctx(ctx).Str("addr", addr).Msg("serving metrics")
		g.Go(func() error {
			return metrics.Serve(srvCtx, addr, reg)
		})
	}

	summary, runErr := eng.Run(ctx, in, run.work, run.policy)

	stopServer()
	if serveErr := g.Wait(); serveErr != nil {
		log.Warn().Ctx(ctx).Err(serveErr).Msg("metrics server failed")
	}

	if summary != nil {
		printSummary(cmd.ErrOrStderr(), run.name, summary)
	}
	if runErr != nil {
		log.Error().Ctx(ctx).Err(runErr).Str("command", run.name).Msg("pipeline finished with errors")
		return summary, &ExitError{Code: ExitFailure, Err: describeRunError(runErr)}
	}

	log.Info().Ctx(ctx).Str("command", run.name).Msg("pipeline finished")
	return summary, nil
}

// logEmitted records how many lines an emit pipeline wrote to stdout.
func logEmitted(cmd *cobra.Command, policy *merge.EmitPolicy) {
	ctx := cmd.Context()
	logging.FromContext(ctx).Debug().Ctx(ctx).Int("lines_written", policy.LinesWritten()).Msg("output written")
}

// describeRunError puts the most actionable cause first.
func describeRunError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("interrupted: %w", err)
	case errors.Is(err, engine.ErrBatchFailed):
		return fmt.Errorf("some batches failed: %w", err)
	default:
		return err
	}
}

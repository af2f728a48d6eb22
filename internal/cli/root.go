package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/corpusfork/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger = zerolog.Nop() //nolint:gochecknoglobals // Required for zerolog context integration

// Persistent flag names shared by the pipeline commands.
const (
	flagConfig          = "config"
	flagDebug           = "debug"
	flagWorkers         = "workers"
	flagBatchSize       = "batch-size"
	flagQueueCapacity   = "queue-capacity"
	flagChannelCapacity = "channel-capacity"
	flagOrdered         = "ordered"
	flagMetricsAddr     = "metrics-addr"
)

// annotationSkipConfig marks commands that must run even when the config
// file is broken; they load the config themselves if they need it.
const annotationSkipConfig = "corpusfork/skip-config"

// NewRootCmd creates the root Cobra command for the corpusfork CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithArgs(ver, os.LookupEnv)
}

// NewRootCmdWithArgs creates the root command with an explicit env lookup for testability.
func NewRootCmdWithArgs(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:   "corpusfork",
		Short: "Parallel line-oriented corpus preprocessing",
		Long: `corpusfork reads a text corpus line by line, splits it into batches,
processes the batches on a fixed pool of workers and merges the results
on a single goroutine. Output goes to stdout; logs and the run summary
go to stderr.`,
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationSkipConfig] == "" {
				if _, err := loadConfig(cmd, ver, lookupEnv); err != nil {
					return err
				}
			}
			logResult = setupLogging(cmd)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagConfig, "", "config file (default $CORPUSFORK_HOME/config.yaml or ~/.corpusfork/config.yaml)")
	flags.Bool(flagDebug, false, "enable debug logging to stderr")
	flags.Int(flagWorkers, 0, "number of worker goroutines (default: number of CPUs)")
	flags.Int(flagBatchSize, 0, "lines per batch (default 10000)")
	flags.Int(flagQueueCapacity, 0, "job queue capacity (default 2 x workers)")
	flags.Int(flagChannelCapacity, 0, "result channel capacity (default 8)")
	flags.Bool(flagOrdered, false, "write results in input order")
	flags.String(flagMetricsAddr, "", "serve Prometheus metrics on this address during the run")

	cmd.AddCommand(
		NewCleanCmd(), NewSubstituteCmd(), NewCountCmd(),
		newConfigCmd(), NewVersionCmd(ver),
	)

	return cmd
}

const rootCmdExample = `  # Keep only whitelisted characters (built-in whitelist)
  corpusfork clean corpus.txt > clean.txt

  # Use a custom whitelist and 8 workers
  corpusfork clean --whitelist chars.dat --workers 8 corpus.txt

  # Normalize typographic characters, keeping input order
  corpusfork substitute --ordered corpus.txt

  # Count words seen at least 10 times, most frequent first
  corpusfork count --min-count 10 --sort count corpus.txt

  # Read from stdin
  zcat corpus.txt.gz | corpusfork count -

  # Initialize configuration
  corpusfork config init`

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd(), NewConfigShowCmd())
	return cmd
}

// NewVersionCmd prints the version.
func NewVersionCmd(ver string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the corpusfork version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), ver)
		},
	}
}

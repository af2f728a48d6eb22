package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/corpusfork/internal/config"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the configuration file for syntax and semantic correctness.

This includes:
- YAML syntax and field types
- Pipeline sizing (workers, batch size, queue and channel capacity)
- Logging level and format
- The requires: version constraint against this binary`,
		Example: `  # Validate current configuration
  corpusfork config validate

  # Validate and show detailed information
  corpusfork config validate --verbose`,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	path, err := configPathFromFlags(cmd)
	if err != nil {
		return configError(err)
	}

	cfg := config.New()
	if _, statErr := os.Stat(path); statErr == nil {
		if cfg, err = config.Load(path); err != nil {
			return configError(err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return configError(fmt.Errorf("cannot access config path %s: %w", path, statErr))
	} else {
		cmd.Printf("No configuration file at %s, validating defaults\n", path)
	}

	if err = cfg.Validate(); err != nil {
		return configError(fmt.Errorf("configuration validation failed: %w", err))
	}
	if err = cfg.CheckCompatibility(cmd.Root().Version); err != nil {
		return configError(err)
	}

	cmd.Printf("✅ Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints the effective pipeline sizing.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	ec := cfg.ToEngineConfig()
	cmd.Println()
	cmd.Printf("Workers:          %d\n", ec.Workers)
	cmd.Printf("Batch size:       %d\n", ec.BatchSize)
	if ec.QueueCapacity == 0 {
		cmd.Printf("Queue capacity:   %d (2 x workers)\n", 2*ec.Workers)
	} else {
		cmd.Printf("Queue capacity:   %d\n", ec.QueueCapacity)
	}
	cmd.Printf("Channel capacity: %d\n", ec.ChannelCapacity)
	cmd.Printf("Ordered:          %t\n", ec.Ordered)
	cmd.Printf("Idle timeout:     %s\n", ec.IdleTimeout)
	if cfg.Requires != "" {
		cmd.Printf("Requires:         %s\n", cfg.Requires)
	}
}

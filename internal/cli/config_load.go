package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/corpusfork/internal/config"
)

// loadConfig resolves the effective configuration with precedence
// flags > environment > config file > defaults, validates it and installs it
// as the global config. Every failure is an ExitConfig error.
func loadConfig(cmd *cobra.Command, ver string, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	cfg, err := readConfigFile(cmd, lookupEnv)
	if err != nil {
		return nil, configError(err)
	}
	if err = cfg.ApplyEnv(lookupEnv); err != nil {
		return nil, configError(err)
	}
	applyFlagOverrides(cmd, cfg)

	if err = cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	if err = cfg.CheckCompatibility(ver); err != nil {
		return nil, configError(err)
	}

	config.SetGlobalConfig(cfg)
	return cfg, nil
}

// readConfigFile loads --config, else the file in the config directory.
// An explicitly named file must exist; the default one may be absent.
func readConfigFile(cmd *cobra.Command, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		return config.Load(path)
	}

	dir, err := configDir(lookupEnv)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, config.ConfigFileName)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := config.New()
		cfg.SetConfigPath(path)
		return cfg, nil
	}
	return config.Load(path)
}

// configDir mirrors config.GetConfigDir but honors the injected env lookup.
func configDir(lookupEnv func(string) (string, bool)) (string, error) {
	if home, ok := lookupEnv(config.EnvHome); ok && home != "" {
		return home, nil
	}
	return config.GetConfigDir()
}

// applyFlagOverrides copies explicitly set flags onto cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	ints := []struct {
		name   string
		target *int
	}{
		{flagWorkers, &cfg.Pipeline.Workers},
		{flagBatchSize, &cfg.Pipeline.BatchSize},
		{flagQueueCapacity, &cfg.Pipeline.QueueCapacity},
		{flagChannelCapacity, &cfg.Pipeline.ChannelCapacity},
	}
	for _, f := range ints {
		if flags.Changed(f.name) {
			*f.target, _ = flags.GetInt(f.name)
		}
	}
	if flags.Changed(flagOrdered) {
		cfg.Pipeline.Ordered, _ = flags.GetBool(flagOrdered)
	}
	if flags.Changed(flagMetricsAddr) {
		cfg.Metrics.Addr, _ = flags.GetString(flagMetricsAddr)
	}
}

func configError(err error) error {
	return &ExitError{Code: ExitConfig, Err: fmt.Errorf("configuration error: %w", err)}
}

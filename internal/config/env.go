package config

import (
	"fmt"
	"strconv"
)

// Environment variables read by ApplyEnv.
const (
	EnvHome            = "CORPUSFORK_HOME"
	EnvWorkers         = "CORPUSFORK_WORKERS"
	EnvBatchSize       = "CORPUSFORK_BATCH_SIZE"
	EnvQueueCapacity   = "CORPUSFORK_QUEUE_CAPACITY"
	EnvChannelCapacity = "CORPUSFORK_CHANNEL_CAPACITY"
	EnvOrdered         = "CORPUSFORK_ORDERED"
	EnvLogLevel        = "CORPUSFORK_LOG_LEVEL"
	EnvLogFormat       = "CORPUSFORK_LOG_FORMAT"
	EnvMetricsAddr     = "CORPUSFORK_METRICS_ADDR"
)

// LookupEnvFunc matches os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto c. Empty values are ignored.
func (c *Config) ApplyEnv(lookup LookupEnvFunc) error {
	ints := []struct {
		key    string
		target *int
	}{
		{EnvWorkers, &c.Pipeline.Workers},
		{EnvBatchSize, &c.Pipeline.BatchSize},
		{EnvQueueCapacity, &c.Pipeline.QueueCapacity},
		{EnvChannelCapacity, &c.Pipeline.ChannelCapacity},
	}
	for _, v := range ints {
		raw, ok := lookup(v.key)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, v.key, raw)
		}
		*v.target = n
	}

	if raw, ok := lookup(EnvOrdered); ok && raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, EnvOrdered, raw)
		}
		c.Pipeline.Ordered = b
	}

	strs := []struct {
		key    string
		target *string
	}{
		{EnvLogLevel, &c.Logging.Level},
		{EnvLogFormat, &c.Logging.Format},
		{EnvMetricsAddr, &c.Metrics.Addr},
	}
	for _, v := range strs {
		if raw, ok := lookup(v.key); ok && raw != "" {
			*v.target = raw
		}
	}
	return nil
}

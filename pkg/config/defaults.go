package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/objectloader/internal/bytesize"
	"github.com/marmos91/objectloader/pkg/cache"
	"github.com/marmos91/objectloader/pkg/deferment"
	"github.com/marmos91/objectloader/pkg/downloader"
	"github.com/marmos91/objectloader/pkg/worker"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyLoaderDefaults(&cfg.Loader)
	applyCacheDefaults(&cfg.Cache)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_space",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = downloader.DefaultRequestTimeout
	}
	if cfg.MaxBatchWait == 0 {
		cfg.MaxBatchWait = downloader.DefaultMaxBatchWait
	}
	if cfg.MaxLineSize == 0 {
		cfg.MaxLineSize = bytesize.ByteSize(downloader.DefaultMaxLineSize)
	}
}

// applyLoaderDefaults mirrors the package defaults of cache, deferment and
// worker so that `config show` prints the effective values.
func applyLoaderDefaults(cfg *LoaderConfig) {
	if cfg.ReadBatchSize == 0 {
		cfg.ReadBatchSize = cache.DefaultReadBatchSize
	}
	if cfg.ReadMaxWait == 0 {
		cfg.ReadMaxWait = cache.DefaultReadMaxWait
	}
	if cfg.WriteBatchSize == 0 {
		cfg.WriteBatchSize = cache.DefaultWriteBatchSize
	}
	if cfg.WriteMaxWait == 0 {
		cfg.WriteMaxWait = cache.DefaultWriteMaxWait
	}

	if cfg.Deferment.TTL == 0 {
		cfg.Deferment.TTL = deferment.DefaultTTL
	}
	if cfg.Deferment.MaxEntries == 0 {
		cfg.Deferment.MaxEntries = deferment.DefaultMaxEntries
	}
	if cfg.Deferment.MemoryCacheSize == 0 {
		cfg.Deferment.MemoryCacheSize = bytesize.ByteSize(deferment.DefaultMemoryCacheSize)
	}

	if cfg.Worker.Capacity == 0 {
		cfg.Worker.Capacity = bytesize.ByteSize(worker.DefaultCapacity)
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = worker.DefaultTimeout
	}
}

// applyCacheDefaults selects badger under the data directory when nothing
// else is configured.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Type == "badger" {
		if cfg.Badger == nil {
			cfg.Badger = make(map[string]any)
		}
		inMemory, _ := cfg.Badger["in_memory"].(bool)
		if _, ok := cfg.Badger["path"]; !ok && !inMemory {
			cfg.Badger["path"] = filepath.Join(getDataDir(), "cache")
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

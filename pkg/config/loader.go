package config

import (
	"net/http"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/cache"
	"github.com/marmos91/objectloader/pkg/deferment"
	"github.com/marmos91/objectloader/pkg/downloader"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/worker"
)

// ReaderConfig returns the cache reader settings.
func (c *Config) ReaderConfig(m metrics.LoaderMetrics) cache.ReaderConfig {
	return cache.ReaderConfig{
		BatchSize: c.Loader.ReadBatchSize,
		MaxWait:   c.Loader.ReadMaxWait,
		Metrics:   m,
	}
}

// WriterConfig returns the cache writer settings.
func (c *Config) WriterConfig(m metrics.LoaderMetrics) cache.WriterConfig {
	return cache.WriterConfig{
		BatchSize: c.Loader.WriteBatchSize,
		MaxWait:   c.Loader.WriteMaxWait,
		Metrics:   m,
	}
}

// DefermentConfig returns the deferment manager settings.
func (c *Config) DefermentConfig(m metrics.LoaderMetrics) deferment.Config {
	return deferment.Config{
		TTL:             c.Loader.Deferment.TTL,
		MaxEntries:      c.Loader.Deferment.MaxEntries,
		MemoryCacheSize: c.Loader.Deferment.MemoryCacheSize.Int64(),
		Metrics:         m,
	}
}

// WorkerConfig returns the worker transport settings.
func (c *Config) WorkerConfig(m metrics.LoaderMetrics) worker.Config {
	return worker.Config{
		Capacity: c.Loader.Worker.Capacity.Int(),
		Timeout:  c.Loader.Worker.Timeout,
		Metrics:  m,
	}
}

// DownloadOptions returns the HTTP downloader settings. The identity of the
// root object (stream and object ids) is left to the caller.
func (s ServerConfig) DownloadOptions(m metrics.LoaderMetrics) downloader.ServerOptions {
	return downloader.ServerOptions{
		ServerURL:         s.URL,
		Token:             s.Token,
		Headers:           s.Headers,
		HTTPClient:        &http.Client{Timeout: s.RequestTimeout},
		RequestsPerSecond: s.RequestsPerSecond,
		MaxBatchWait:      s.MaxBatchWait,
		MaxLineSize:       s.MaxLineSize.Int(),
		Metrics:           m,
	}
}

// LoggerConfig returns the logger settings.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Format: l.Format, Output: l.Output}
}

// TracingConfig returns the OpenTelemetry settings for the given build version.
func (t TelemetryConfig) TracingConfig(version string) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = t.Enabled
	cfg.Endpoint = t.Endpoint
	cfg.Insecure = t.Insecure
	cfg.SampleRate = t.SampleRate
	cfg.ServiceVersion = version
	return cfg
}

// ProfilingConfig returns the Pyroscope settings for the given build version.
func (t TelemetryConfig) ProfilingConfig(version string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        t.Profiling.Enabled,
		ServiceName:    "objectloader",
		ServiceVersion: version,
		Endpoint:       t.Profiling.Endpoint,
		ProfileTypes:   t.Profiling.ProfileTypes,
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/config"
	"github.com/marmos91/objectloader/pkg/loader"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/metrics/prometheus"
	"github.com/spf13/cobra"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// session holds what every loading command sets up before it creates a
// loader: configuration, logging, tracing, profiling and metrics.
type session struct {
	cfg *config.Config
	ctx context.Context

	loaderMetrics metrics.LoaderMetrics
	storeMetrics  metrics.StoreMetrics

	cleanup []func()
}

// startSession loads the configuration and starts the ambient services.
// The returned context is canceled on SIGINT or SIGTERM.
func startSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	s := &session{cfg: cfg, ctx: ctx}
	s.onClose(stop)

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry.TracingConfig(Version))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.onClose(func() {
		// The signal context may already be canceled; flushing spans still needs time.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	})

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.ProfilingConfig(Version))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}
	s.onClose(func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	})

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		s.loaderMetrics = prometheus.NewLoaderMetrics()
		s.storeMetrics = prometheus.NewStoreMetrics()
		s.startMetricsServer()
	}

	logger.Debug("Session started",
		"telemetry", telemetry.IsEnabled(),
		"profiling", telemetry.IsProfilingEnabled(),
		"metrics", cfg.Metrics.Enabled,
		logger.KeyStore, cfg.Cache.Type)
	return s, nil
}

func (s *session) onClose(f func()) {
	s.cleanup = append(s.cleanup, f)
}

// close runs the cleanup functions in reverse order.
func (s *session) close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
}

// startMetricsServer serves /metrics until the session is closed.
func (s *session) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", logger.Err(err))
		}
	}()
	logger.Info("Metrics enabled", "port", s.cfg.Metrics.Port)

	s.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// loaderOptions opens the configured cache and returns the options shared
// by every loader the CLI creates. The cache is disposed with the loader.
func (s *session) loaderOptions(useCache bool) ([]loader.Option, error) {
	opts := []loader.Option{
		loader.WithMetrics(s.loaderMetrics),
		loader.WithReaderConfig(s.cfg.ReaderConfig(s.loaderMetrics)),
		loader.WithWriterConfig(s.cfg.WriterConfig(s.loaderMetrics)),
	}
	if !useCache {
		return opts, nil
	}

	db, err := config.OpenDatabase(s.ctx, s.cfg, s.storeMetrics, s.loaderMetrics)
	if err != nil {
		return nil, err
	}
	return append(opts, loader.WithDatabase(db)), nil
}

// disposeLoader disposes l within the configured shutdown timeout.
func (s *session) disposeLoader(l *loader.Loader) {
	done := make(chan error, 1)
	go func() { done <- l.Dispose() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("Loader dispose failed", logger.Err(err))
		}
	case <-time.After(s.cfg.ShutdownTimeout):
		logger.Warn("Loader dispose timed out", "timeout", s.cfg.ShutdownTimeout)
	}
}

// parseHeaders parses repeated "key=value" flags.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q (expected key=value)", v)
		}
		headers[k] = strings.TrimSpace(val)
	}
	return headers, nil
}

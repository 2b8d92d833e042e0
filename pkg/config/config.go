package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/objectloader/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the objectloader configuration.
//
// It covers everything that is not specific to a single load:
//   - Logging, tracing, profiling and metrics
//   - The Speckle server to download from
//   - Batching, deferment and worker tuning of the loader
//   - The persistent cache backend
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (OBJECTLOADER_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server identifies the Speckle server objects are downloaded from
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Loader tunes batching, deferment and the worker transport
	Loader LoaderConfig `mapstructure:"loader" yaml:"loader"`

	// Cache selects the persistent cache backend
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// ShutdownTimeout bounds how long Dispose may take on interrupt
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path.
	// Default: stderr, so that stdout stays free for object output
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "alloc_space", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ServerConfig identifies a Speckle server and tunes the HTTP downloader.
type ServerConfig struct {
	// URL is the server base URL, e.g. https://app.speckle.systems
	URL string `mapstructure:"url" validate:"omitempty,url" yaml:"url"`

	// Token is forwarded as a bearer token. Prefer OBJECTLOADER_SERVER_TOKEN
	// over writing it to the file.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// Headers are added to every request
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`

	// RequestTimeout bounds one HTTP request
	// Default: 5m
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0" yaml:"request_timeout"`

	// RequestsPerSecond paces batch downloads. 0 means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0" yaml:"requests_per_second"`

	// MaxBatchWait is how long a download worker waits for its batch to fill
	// Default: 200ms
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait" validate:"gte=0" yaml:"max_batch_wait"`

	// MaxLineSize bounds one object of a batch response
	// Default: 256Mi
	MaxLineSize bytesize.ByteSize `mapstructure:"max_line_size" yaml:"max_line_size"`
}

// LoaderConfig tunes the loader pipeline.
type LoaderConfig struct {
	// ReadBatchSize is the number of ids per cache lookup
	// Default: 10000
	ReadBatchSize int `mapstructure:"read_batch_size" validate:"gte=0" yaml:"read_batch_size"`

	// ReadMaxWait is how long a partial lookup batch may wait
	// Default: 50ms
	ReadMaxWait time.Duration `mapstructure:"read_max_wait" validate:"gte=0" yaml:"read_max_wait"`

	// WriteBatchSize is the number of objects per cache save
	// Default: 10000
	WriteBatchSize int `mapstructure:"write_batch_size" validate:"gte=0" yaml:"write_batch_size"`

	// WriteMaxWait is how long a partial save batch may wait
	// Default: 1s
	WriteMaxWait time.Duration `mapstructure:"write_max_wait" validate:"gte=0" yaml:"write_max_wait"`

	// Deferment tunes the tracking of individually requested objects
	Deferment DefermentConfig `mapstructure:"deferment" yaml:"deferment"`

	// UseWorker moves cache reads to a background worker that talks to the
	// loader over ring buffers
	UseWorker bool `mapstructure:"use_worker" yaml:"use_worker"`

	// Worker tunes the worker transport
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`
}

// DefermentConfig tunes the deferment manager.
type DefermentConfig struct {
	// TTL is how long an entry may go unaccessed
	// Default: 60s
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0" yaml:"ttl"`

	// MaxEntries caps tracked ids
	// Default: 50000
	MaxEntries int `mapstructure:"max_entries" validate:"gte=0" yaml:"max_entries"`

	// MemoryCacheSize is the budget of the decoded object cache
	// Default: 200Mi
	MemoryCacheSize bytesize.ByteSize `mapstructure:"memory_cache_size" yaml:"memory_cache_size"`
}

// WorkerConfig tunes the worker transport.
type WorkerConfig struct {
	// Capacity is the byte capacity of each ring buffer
	// Default: 1Mi
	Capacity bytesize.ByteSize `mapstructure:"capacity" yaml:"capacity"`

	// Timeout bounds every wait on the transport
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`
}

// CacheConfig selects the persistent cache backend.
//
// Only the section matching Type is read. Sections are decoded into the
// backend's own configuration type, so they accept the same keys:
//
//	cache:
//	  type: badger
//	  badger:
//	    path: /var/lib/objectloader/cache
type CacheConfig struct {
	// Type is one of memory, badger, redis, s3
	// Default: badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger redis s3" yaml:"type"`

	// Badger options (path, in_memory, sync_writes)
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// Redis options (addr, password, db, key_prefix, ttl, pool_size, ...)
	Redis map[string]any `mapstructure:"redis" yaml:"redis,omitempty"`

	// S3 options (bucket, region, endpoint, key_prefix, force_path_style, ...)
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (OBJECTLOADER_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches the default location. A missing file yields
// the default configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		applyEnvOverrides(v, cfg)
		ApplyDefaults(cfg)
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, failing with instructions when an
// explicitly requested file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  objectloader config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry a server token.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the OBJECTLOADER_ prefix and underscores
	// Example: OBJECTLOADER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("OBJECTLOADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/objectloader/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// applyEnvOverrides applies the environment variables that matter most when
// no config file exists. AutomaticEnv only covers keys viper knows about.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString("logging.format"); s != "" {
		cfg.Logging.Format = s
	}
	if s := v.GetString("server.url"); s != "" {
		cfg.Server.URL = s
	}
	if s := v.GetString("server.token"); s != "" {
		cfg.Server.Token = s
	}
	if s := v.GetString("cache.type"); s != "" {
		cfg.Cache.Type = s
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use human-readable
// sizes like "1Gi", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "objectloader")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "objectloader")
}

// getDataDir returns where the default on-disk cache lives.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "objectloader")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "objectloader")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

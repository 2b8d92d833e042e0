package config

import (
	"strings"
	"testing"

	"github.com/marmos91/objectloader/internal/bytesize"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("Expected field path in error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_NegativePort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative port")
	}
}

func TestValidate_UnknownCacheType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Type = "postgres"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unknown cache type")
	}
	if !strings.Contains(err.Error(), "cache.type") {
		t.Errorf("Expected field path in error, got: %v", err)
	}
}

func TestValidate_InvalidServerURL(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.URL = "not a url"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for malformed server url")
	}
}

func TestValidate_NegativeRequestRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.RequestsPerSecond = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for negative request rate")
	}
	if !strings.Contains(err.Error(), "server.requests_per_second") {
		t.Errorf("Expected field path in error, got: %v", err)
	}
}

func TestValidate_SampleRateOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate above 1")
	}
}

func TestValidate_TelemetryEndpointRequired(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for enabled telemetry without endpoint")
	}
	if !strings.Contains(err.Error(), "telemetry.endpoint") {
		t.Errorf("Expected telemetry endpoint error, got: %v", err)
	}
}

func TestValidate_UnknownProfileType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "heap"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for an unknown profile type")
	}
	if !strings.Contains(err.Error(), "telemetry.profiling.profile_types") {
		t.Errorf("Expected profile types error, got: %v", err)
	}
}

func TestValidate_WorkerCapacityTooSmall(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Loader.UseWorker = true
	cfg.Loader.Worker.Capacity = 16 * bytesize.B

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for a tiny ring buffer")
	}
}

func TestValidate_ZeroShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.ShutdownTimeout = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
	if !strings.Contains(err.Error(), "shutdown_timeout") {
		t.Errorf("Expected field path in error, got: %v", err)
	}
}

func TestFieldPath(t *testing.T) {
	tests := map[string]string{
		"Config.Logging.Level":                "logging.level",
		"Config.Server.RequestsPerSecond":     "server.requests_per_second",
		"Config.Telemetry.Profiling.Endpoint": "telemetry.profiling.endpoint",
		"Config.ShutdownTimeout":              "shutdown_timeout",
		"Config.Server.URL":                   "server.url",
	}
	for in, want := range tests {
		if got := fieldPath(in); got != want {
			t.Errorf("fieldPath(%q) = %q, want %q", in, got, want)
		}
	}
}

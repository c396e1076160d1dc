package observability

import (
	"testing"

	"github.com/smallbiznis/entitlements/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{AppName: "", Environment: "production", AppVersion: "1.2.3"})

	if cfg.ServiceName != "entitlements" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.OtelEnabled {
		t.Fatalf("otel export should be opt-in")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected log defaults %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Debug() {
		t.Fatalf("production info logging should not be debug")
	}
	if cfg.Version != "1.2.3" {
		t.Fatalf("expected version from app config, got %q", cfg.Version)
	}
}

func TestLoadConfigNormalizes(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		Observability: config.ObservabilityConfig{
			LogLevel:      " WARNING ",
			LogFormat:     "Console",
			OTLPProtocol:  "http/protobuf",
			SamplingRatio: 4,
		},
	})

	if cfg.LogLevel != "warn" {
		t.Fatalf("expected warn, got %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "console" {
		t.Fatalf("expected console, got %q", cfg.LogFormat)
	}
	if cfg.OtelExporterProtocol != ProtocolHTTP {
		t.Fatalf("expected http exporter, got %q", cfg.OtelExporterProtocol)
	}
	if cfg.OtelSamplingRatio != 1 {
		t.Fatalf("expected ratio clamped to 1, got %v", cfg.OtelSamplingRatio)
	}
}

func TestDebugInDevelopment(t *testing.T) {
	cfg := Config{Environment: "local", LogLevel: "info"}
	if !cfg.Debug() {
		t.Fatalf("local environment should enable debug")
	}
	if !(Config{Environment: "production", LogLevel: "debug"}).Debug() {
		t.Fatalf("debug level should enable debug")
	}
}

package observability

import (
	"strings"

	"github.com/smallbiznis/entitlements/internal/config"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// Config is the normalized view of config.ObservabilityConfig plus the
// service identity every log line, span and metric is tagged with.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "entitlements"
	}
	obs := cfg.Observability

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             normalizeLevel(obs.LogLevel),
		LogFormat:            normalizeFormat(obs.LogFormat),
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(obs.OTLPEndpoint),
		OtelExporterProtocol: normalizeProtocol(obs.OTLPProtocol),
		OtelSamplingRatio:    clampRatio(obs.SamplingRatio),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	}
	return "info"
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

// normalizeProtocol folds the OTLP spellings ("http/protobuf", "HTTP") onto
// the two exporters the providers know how to build.
func normalizeProtocol(protocol string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(protocol)), ProtocolHTTP) {
		return ProtocolHTTP
	}
	return ProtocolGRPC
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}

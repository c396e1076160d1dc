package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes request-path instruments for entitlement resolution.
type Metrics struct {
	featureChecks   metric.Int64Counter
	limitChecks     metric.Int64Counter
	usageIncrements metric.Int64Counter
	overrideWrites  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "entitlements"
	}
	meter := provider.Meter(name)

	featureChecks, err := meter.Int64Counter("entitlements_feature_checks_total")
	if err != nil {
		return nil, err
	}
	limitChecks, err := meter.Int64Counter("entitlements_limit_checks_total")
	if err != nil {
		return nil, err
	}
	usageIncrements, err := meter.Int64Counter("entitlements_usage_increments_total")
	if err != nil {
		return nil, err
	}
	overrideWrites, err := meter.Int64Counter("entitlements_override_writes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		featureChecks:   featureChecks,
		limitChecks:     limitChecks,
		usageIncrements: usageIncrements,
		overrideWrites:  overrideWrites,
	}, nil
}

// RecordFeatureCheck counts a HasFeature resolution by outcome and the tier
// that decided it (override, snapshot, addon, none).
func (m *Metrics) RecordFeatureCheck(ctx context.Context, featureKey string, granted bool, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature_key", strings.TrimSpace(featureKey)),
		attribute.String("result", grantResult(granted)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.featureChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLimitCheck counts CheckLimit outcomes: allowed, exceeded or unlimited.
func (m *Metrics) RecordLimitCheck(ctx context.Context, limitKey, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("limit_key", strings.TrimSpace(limitKey)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.limitChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUsageIncrement counts TryIncrement outcomes: ok, denied or conflict.
func (m *Metrics) RecordUsageIncrement(ctx context.Context, limitKey, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("limit_key", strings.TrimSpace(limitKey)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.usageIncrements.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordOverrideWrite(ctx context.Context, overrideType, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("type", strings.TrimSpace(overrideType)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.overrideWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func grantResult(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// team_id is deliberately absent: it is unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"feature_key": {},
	"limit_key":   {},
	"result":      {},
	"source":      {},
	"type":        {},
	"action":      {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

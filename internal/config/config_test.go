package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SNAPSHOT_WORKERS", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SCHEDULER_ENABLED", "")
	t.Setenv("SCHEDULER_INTERVAL", "")

	cfg := Load()

	assert.Equal(t, 4, cfg.Snapshot.Workers)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SNAPSHOT_WORKERS", "12")
	t.Setenv("CACHE_TTL", "250ms")
	t.Setenv("CACHE_ENABLED", "off")
	t.Setenv("SNAPSHOT_LOCK_TTL", "45")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()

	assert.Equal(t, 12, cfg.Snapshot.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Snapshot.LockTTL)
	assert.True(t, cfg.Redis.Enabled())
}

func TestGetenvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getenvDuration("SOME_DURATION", time.Minute))
}

func TestLoadObservability(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg := Load()

	assert.True(t, cfg.Observability.OtelEnabled)
	assert.Equal(t, "http/protobuf", cfg.Observability.OTLPProtocol, "traces protocol wins")
	assert.Equal(t, 0.5, cfg.Observability.SamplingRatio)
}

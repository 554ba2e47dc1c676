package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/events"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SNAPSHOT_TTL", "")
	t.Setenv("GRADING_WORKERS", "")
	t.Setenv("GRADING_TIMEOUT", "")
	t.Setenv("RETAIN_SUBMITTED", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 6*time.Hour, cfg.SnapshotTTL)
	assert.Equal(t, 3, cfg.GradingWorkers)
	assert.Equal(t, 5*time.Minute, cfg.GradingTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RetainSubmitted)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SNAPSHOT_TTL", "30m")
	t.Setenv("GRADING_WORKERS", "not-a-number")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RETAIN_SUBMITTED", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 30*time.Minute, cfg.SnapshotTTL)
	assert.Equal(t, 3, cfg.GradingWorkers)
	assert.Equal(t, 90*time.Second, cfg.RetainSubmitted)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Brokers())
}

func TestCreateEventPublisher_FallsBackToMock(t *testing.T) {
	logger := slog.Default()

	for _, c := range []EventConfig{{Enabled: false}, {Enabled: true, Publisher: "mock"}, {Enabled: true, Publisher: "nats"}} {
		pub, err := c.CreateEventPublisher(logger)
		require.NoError(t, err)
		_, ok := pub.(*events.MockEventPublisher)
		assert.True(t, ok)
	}
}

package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	l, err := New("debug", "console")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestContextWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := (&Logger{zap.New(core)}).Named("schedule_runner")

	ctx := ContextWithFields(context.Background(), StringField("request_id", "req-1"))
	ctx = ContextWithFields(ctx, StringField("route", "/api/v1/tenants/:tenant_id/tick"))
	l.InfoContext(ctx, "Tick evaluated", IntField("evaluated", 3))
	l.InfoContext(context.Background(), "No request")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "schedule_runner", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/api/v1/tenants/:tenant_id/tick", fields["route"])
	assert.Equal(t, int64(3), fields["evaluated"])
	assert.Empty(t, entries[1].ContextMap())
}

func TestErrorContextWithAlert_AddsFlag(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{zap.New(core)}

	l.ErrorContextWithAlert(context.Background(), "boom")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, true, logs.All()[0].ContextMap()["send_alert"])
}

func TestFieldHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{zap.New(core)}
	at := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	l.Info("Execution started", TimeField("started_at", at), Int64Field("duration_ms", 1500), BoolField("dry_run", true))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	started, ok := fields["started_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, at.Equal(started))
	assert.Equal(t, int64(1500), fields["duration_ms"])
	assert.Equal(t, true, fields["dry_run"])
}

package utils

import (
	"context"
	"golang-alerting/pkg/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{Logger: zap.New(core)}, logs
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"tenant-a", true},
		{"acme_corp.eu", true},
		{"", false},
		{"../etc/passwd", false},
		{"a..b", false},
		{"tenant/a", false},
		{"-leading", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidIdentifier(tt.id), tt.id)
	}
}

type sample struct {
	TenantID string `json:"tenantId" validate:"required"`
	Owner    string `json:"owner" validate:"omitempty,notblank"`
	Kind     string `json:"kind" validate:"oneof=a b"`
	Nested   struct {
		Count int `json:"count" validate:"gte=1"`
	} `json:"nested"`
}

func TestValidationMessages(t *testing.T) {
	v := NewValidator()
	err := v.Struct(sample{Kind: "c", Owner: "  \t"})

	msgs := ValidationMessages(err)
	assert.ElementsMatch(t, []string{
		"tenantId: is required",
		"owner: must not be blank",
		"kind: must be one of [a b]",
		"nested.count: must be greater than or equal to 1",
	}, msgs)

	assert.Nil(t, ValidationMessages(nil))
}

func TestToPointer(t *testing.T) {
	p := ToPointer(42)
	assert.Equal(t, 42, *p)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]int{0, 6}, 6))
	assert.False(t, Contains([]int{0, 6}, 3))
	assert.False(t, Contains(nil, 1))
	assert.True(t, Contains([]string{"a", "b"}, "b"))
}

func TestShouldContinue(t *testing.T) {
	log, logs := observedLogger()

	assert.True(t, ShouldContinue(context.Background(), log))
	assert.Zero(t, logs.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, ShouldContinue(ctx, log))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].ContextMap()["caller"], "TestShouldContinue")
}

func TestGoSafe_RecoversPanic(t *testing.T) {
	log, logs := observedLogger()
	done := make(chan struct{})

	GoSafe(log, "worker", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
	assert.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "worker", fields["goroutine"])
	assert.Equal(t, "boom", fields["panic"])
}

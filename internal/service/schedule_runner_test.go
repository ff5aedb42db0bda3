package service

import (
	"context"
	"errors"
	"fmt"
	"golang-alerting/config"
	"golang-alerting/internal/model"
	"golang-alerting/internal/repository"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/metrics"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(schedules repository.ScheduleProvider, history repository.HistoryRepository) ScheduleRunner {
	return NewScheduleRunner(config.Runner{}, logger.NewNop(), schedules, history, nil)
}

func TestScheduleRunner_DeterministicAcrossTicks(t *testing.T) {
	last := baseNow.Add(-5 * time.Minute)
	history := repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{})
	require.NoError(t, history.Record(context.Background(), historyRecord("tenant-a", "h1", last), baseNow))

	schedules := repository.NewMemoryScheduleProvider(
		intervalSchedule("tenant-a", "s3", model.SchedulePolicy{}),
		intervalSchedule("tenant-a", "s1", model.SchedulePolicy{CooldownPeriodMs: (10 * time.Minute).Milliseconds()}),
		intervalSchedule("tenant-a", "s2", model.SchedulePolicy{MaxExecutionsPerWindow: 1}),
	)
	runner := newRunner(schedules, history)

	first := runner.TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{})
	for i := 0; i < 2; i++ {
		assert.Equal(t, first, runner.TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{}))
	}

	require.Len(t, first.Decisions, 3)
	assert.Equal(t, "s1", first.Decisions[0].ScheduleID)
	assert.Equal(t, model.BlockedByCooldown, first.Decisions[0].BlockedBy)
	assert.Equal(t, model.BlockedByLimit, first.Decisions[1].BlockedBy)
	assert.True(t, first.Decisions[2].ShouldTrigger)
	assert.Equal(t, 3, first.EvaluatedCount)
	assert.Equal(t, 1, first.TriggeredCount)
}

func TestScheduleRunner_CooldownExactness(t *testing.T) {
	t0 := baseNow.Add(-time.Hour)
	cooldown := 10 * time.Minute
	history := repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{})
	require.NoError(t, history.Record(context.Background(), historyRecord("tenant-a", "h1", t0), t0))
	runner := newRunner(repository.NewMemoryScheduleProvider(
		intervalSchedule("tenant-a", "s1", model.SchedulePolicy{CooldownPeriodMs: cooldown.Milliseconds()}),
	), history)

	blocked := runner.TickTenant(context.Background(), "tenant-a", t0.Add(cooldown/2), TickOptions{})
	require.Len(t, blocked.Decisions, 1)
	d := blocked.Decisions[0]
	assert.False(t, d.ShouldTrigger)
	assert.Equal(t, model.BlockedByCooldown, d.BlockedBy)
	require.NotNil(t, d.NextEligibleAt)
	assert.Equal(t, "2025-06-02T11:10:00.000Z", d.NextEligibleAt.UTC().Format("2006-01-02T15:04:05.000Z"))
	assert.Contains(t, d.Reason, "2025-06-02T11:10:00.000Z")
	assert.Empty(t, blocked.TriggerCandidates)

	open := runner.TickTenant(context.Background(), "tenant-a", t0.Add(cooldown), TickOptions{})
	assert.True(t, open.Decisions[0].ShouldTrigger)
}

func TestScheduleRunner_RateLimitBoundary(t *testing.T) {
	ctx := context.Background()
	history := repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{})
	runner := newRunner(repository.NewMemoryScheduleProvider(
		intervalSchedule("tenant-a", "s1", model.SchedulePolicy{MaxExecutionsPerWindow: 3, ExecutionWindowMs: time.Hour.Milliseconds()}),
	), history)

	for i := 0; i < 2; i++ {
		require.NoError(t, history.Record(ctx, historyRecord("tenant-a", fmt.Sprintf("h%d", i), baseNow.Add(-time.Duration(i+1)*time.Minute)), baseNow))
	}
	below := runner.TickTenant(ctx, "tenant-a", baseNow, TickOptions{})
	assert.True(t, below.Decisions[0].ShouldTrigger)

	require.NoError(t, history.Record(ctx, historyRecord("tenant-a", "h2", baseNow.Add(-10*time.Minute)), baseNow))
	at := runner.TickTenant(ctx, "tenant-a", baseNow, TickOptions{})
	assert.False(t, at.Decisions[0].ShouldTrigger)
	assert.Equal(t, model.BlockedByLimit, at.Decisions[0].BlockedBy)
	assert.Nil(t, at.Decisions[0].NextEligibleAt)

	// records outside the window no longer count
	later := runner.TickTenant(ctx, "tenant-a", baseNow.Add(time.Hour), TickOptions{})
	assert.True(t, later.Decisions[0].ShouldTrigger)
}

func TestScheduleRunner_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	history := repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{})
	for i := 0; i < 50; i++ {
		require.NoError(t, history.Record(ctx, historyRecord("tenant-b", fmt.Sprintf("b%d", i), baseNow.Add(-time.Duration(i)*time.Second)), baseNow))
	}
	pol := model.SchedulePolicy{CooldownPeriodMs: time.Hour.Milliseconds(), MaxExecutionsPerWindow: 1}
	runner := newRunner(repository.NewMemoryScheduleProvider(
		intervalSchedule("tenant-a", "a1", pol),
		intervalSchedule("tenant-b", "b1", pol),
	), history)

	a := runner.TickTenant(ctx, "tenant-a", baseNow, TickOptions{})
	require.Len(t, a.Decisions, 1)
	assert.True(t, a.Decisions[0].ShouldTrigger)
	require.Len(t, a.TriggerCandidates, 1)
	assert.Equal(t, "tenant-a", a.TriggerCandidates[0].TenantID)

	b := runner.TickTenant(ctx, "tenant-b", baseNow, TickOptions{})
	assert.Equal(t, model.BlockedByCooldown, b.Decisions[0].BlockedBy)
}

func TestScheduleRunner_CandidatesAndOptions(t *testing.T) {
	dry := intervalSchedule("tenant-a", "s2", model.SchedulePolicy{})
	dry.DryRun = true
	disabled := intervalSchedule("tenant-a", "s0", model.SchedulePolicy{})
	disabled.Schedule.Enabled = false
	schedules := repository.NewMemoryScheduleProvider(
		intervalSchedule("tenant-a", "s1", model.SchedulePolicy{}),
		dry,
		intervalSchedule("tenant-a", "s3", model.SchedulePolicy{}),
		disabled,
	)
	history := repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{})

	t.Run("defaults", func(t *testing.T) {
		res := newRunner(schedules, history).TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{})
		assert.Equal(t, 3, res.EvaluatedCount)
		require.Len(t, res.TriggerCandidates, 3)
		c := res.TriggerCandidates[0]
		assert.Equal(t, "s1", c.ScheduleID)
		assert.Equal(t, model.TriggerTypeProgrammatic, c.Request.TriggerType)
		assert.Equal(t, DefaultRequestedBy, c.Request.RequestedBy)
		assert.False(t, c.Request.DryRun)
		assert.True(t, res.TriggerCandidates[1].Request.DryRun)
	})

	t.Run("max triggers caps candidates but not decisions", func(t *testing.T) {
		res := newRunner(schedules, history).TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{MaxTriggers: 2, RequestedBy: "cron-job"})
		assert.Len(t, res.Decisions, 3)
		for _, d := range res.Decisions {
			assert.True(t, d.ShouldTrigger)
		}
		require.Len(t, res.TriggerCandidates, 2)
		assert.Equal(t, 2, res.TriggeredCount)
		assert.Equal(t, "cron-job", res.TriggerCandidates[0].Request.RequestedBy)
	})

	t.Run("dry run option applies to every candidate", func(t *testing.T) {
		res := newRunner(schedules, history).TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{DryRun: true})
		for _, c := range res.TriggerCandidates {
			assert.True(t, c.Request.DryRun)
		}
	})

	t.Run("config defaults", func(t *testing.T) {
		r := NewScheduleRunner(config.Runner{MaxTriggers: 1, RequestedBy: "runner-x"}, logger.NewNop(), schedules, history, nil)
		res := r.TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{})
		require.Len(t, res.TriggerCandidates, 1)
		assert.Equal(t, "runner-x", res.TriggerCandidates[0].Request.RequestedBy)
	})
}

func TestScheduleRunner_FailuresYieldEmptyResult(t *testing.T) {
	collector := metrics.NewCollector()
	history := repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{})

	tests := []struct {
		name      string
		schedules repository.ScheduleProvider
	}{
		{"provider error", failingSchedules{err: errors.New("fixture invalid")}},
		{"provider panic", failingSchedules{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewScheduleRunner(config.Runner{}, logger.NewNop(), tt.schedules, history, collector)
			res := r.TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{})

			assert.Equal(t, "tenant-a", res.TenantID)
			assert.Equal(t, baseNow, res.EvaluatedAt)
			assert.Equal(t, 0, res.EvaluatedCount)
			assert.NotNil(t, res.Decisions)
			assert.Empty(t, res.Decisions)
			assert.NotNil(t, res.TriggerCandidates)
			assert.Empty(t, res.TriggerCandidates)
		})
	}
	expected := `
# HELP scheduler_tick_failures_total Ticks that aborted and returned an empty result
# TYPE scheduler_tick_failures_total counter
scheduler_tick_failures_total{tenant_id="tenant-a"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "scheduler_tick_failures_total"))
}

func TestScheduleRunner_ConfiguredDefaultWindow(t *testing.T) {
	ctx := context.Background()
	history := repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{})
	require.NoError(t, history.Record(ctx, historyRecord("tenant-a", "h1", baseNow.Add(-2*time.Hour)), baseNow))
	schedules := repository.NewMemoryScheduleProvider(
		intervalSchedule("tenant-a", "s1", model.SchedulePolicy{MaxExecutionsPerWindow: 1}),
	)

	tests := []struct {
		name    string
		window  time.Duration
		trigger bool
		reason  string
	}{
		{"unset falls back to 24h", 0, false, "in the last 24h0m0s"},
		{"wider window counts the record", 3 * time.Hour, false, "in the last 3h0m0s"},
		{"narrower window excludes the record", time.Hour, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewScheduleRunner(config.Runner{DefaultWindow: tt.window}, logger.NewNop(), schedules, history, nil)
			res := runner.TickTenant(ctx, "tenant-a", baseNow, TickOptions{})
			require.Len(t, res.Decisions, 1)
			assert.Equal(t, tt.trigger, res.Decisions[0].ShouldTrigger)
			if tt.reason != "" {
				assert.Contains(t, res.Decisions[0].Reason, tt.reason)
			}
		})
	}
}

func TestScheduleRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(repository.NewMemoryScheduleProvider(intervalSchedule("tenant-a", "s1", model.SchedulePolicy{})),
		repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{}))

	res := r.TickTenant(ctx, "tenant-a", baseNow, TickOptions{})
	assert.Equal(t, 0, res.EvaluatedCount)
}

func TestScheduleRunner_HistoryFailureUsesNeutralSummary(t *testing.T) {
	r := newRunner(repository.NewMemoryScheduleProvider(
		intervalSchedule("tenant-a", "s1", model.SchedulePolicy{CooldownPeriodMs: time.Hour.Milliseconds(), MaxExecutionsPerWindow: 1}),
	), brokenHistory{})

	res := r.TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{})
	require.Len(t, res.Decisions, 1)
	assert.True(t, res.Decisions[0].ShouldTrigger)
	assert.Equal(t, 1, res.EvaluatedCount)
}

func TestScheduleRunner_InvalidScheduleBlocksWithError(t *testing.T) {
	bad := intervalSchedule("tenant-a", "s1", model.SchedulePolicy{})
	bad.Schedule.Timezone = "Atlantis/Capital"
	r := newRunner(repository.NewMemoryScheduleProvider(bad, intervalSchedule("tenant-a", "s2", model.SchedulePolicy{})),
		repository.NewMemoryHistoryRepository(repository.MemoryHistoryOptions{}))

	res := r.TickTenant(context.Background(), "tenant-a", baseNow, TickOptions{})
	require.Len(t, res.Decisions, 2)
	assert.Equal(t, model.BlockedByError, res.Decisions[0].BlockedBy)
	assert.True(t, res.Decisions[1].ShouldTrigger)
}

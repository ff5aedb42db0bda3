package repository

import (
	"context"
	"errors"
	"fmt"
	"golang-alerting/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newRecord(tenantID, id string, finishedAt time.Time, status model.ExecutionStatus) model.ExecutionHistoryRecord {
	return model.ExecutionHistoryRecord{
		ExecutionID: id,
		TenantID:    tenantID,
		TriggerType: model.TriggerTypeProgrammatic,
		RequestedBy: "test",
		Status:      status,
		StartedAt:   finishedAt.Add(-2 * time.Second),
		FinishedAt:  finishedAt,
	}
}

func seed(t *testing.T, repo HistoryRepository, now time.Time, recs ...model.ExecutionHistoryRecord) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, repo.Record(context.Background(), rec, now))
	}
}

func TestMemoryHistory_RecordRejectsInvalid(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{})
	rec := newRecord("tenant-a", "e1", baseNow, model.ExecutionStatusCompleted)
	rec.StartedAt = baseNow.Add(time.Second)

	err := repo.Record(context.Background(), rec, baseNow)

	var perr *HistoryPersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "e1", perr.ExecutionID)
	assert.ErrorIs(t, err, model.ErrInvalidHistoryRecord)
}

func TestMemoryHistory_EvictsByAgeRelativeToInjectedNow(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{MaxRecordAge: 7 * 24 * time.Hour})
	ctx := context.Background()

	old := newRecord("tenant-a", "old", baseNow.Add(-8*24*time.Hour), model.ExecutionStatusCompleted)
	fresh := newRecord("tenant-a", "fresh", baseNow.Add(-6*24*time.Hour), model.ExecutionStatusCompleted)

	// replaying history with the old "now" must not evict anything
	seed(t, repo, baseNow.Add(-8*24*time.Hour), old)
	page, err := repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)

	seed(t, repo, baseNow, fresh)

	page, err = repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "fresh", page.Records[0].ExecutionID)

	count, err := repo.CountExecutionsInWindow(ctx, "tenant-a", 30*24*time.Hour, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryHistory_EvictsOverflowOldestFirst(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{MaxRecordsPerTenant: 3})
	for i := 0; i < 5; i++ {
		seed(t, repo, baseNow, newRecord("tenant-a", fmt.Sprintf("e%d", i), baseNow.Add(time.Duration(i-10)*time.Minute), model.ExecutionStatusCompleted))
	}

	page, err := repo.FindRecentByTenant(context.Background(), "tenant-a", HistoryQuery{Order: SortAsc})
	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	assert.Equal(t, "e2", page.Records[0].ExecutionID)
	assert.Equal(t, "e4", page.Records[2].ExecutionID)
}

func TestMemoryHistory_TenantIsolation(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{})
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		seed(t, repo, baseNow, newRecord("tenant-b", fmt.Sprintf("b%d", i), baseNow.Add(-time.Duration(i)*time.Minute), model.ExecutionStatusCompleted))
	}
	seed(t, repo, baseNow, newRecord("tenant-a", "a0", baseNow.Add(-3*time.Hour), model.ExecutionStatusFailed))

	count, err := repo.CountExecutionsInWindow(ctx, "tenant-a", 24*time.Hour, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recent, err := repo.GetMostRecent(ctx, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, "a0", recent.ExecutionID)

	missing, err := repo.GetMostRecent(ctx, "tenant-c")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, []string{"tenant-a", "tenant-b"}, repo.TenantIDs())
}

func TestMemoryHistory_FindRecentByTenant(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{})
	ctx := context.Background()
	dry := newRecord("tenant-a", "dry", baseNow.Add(-1*time.Minute), model.ExecutionStatusCompleted)
	dry.DryRun = true
	seed(t, repo, baseNow,
		newRecord("tenant-a", "e1", baseNow.Add(-4*time.Minute), model.ExecutionStatusCompleted),
		newRecord("tenant-a", "e2", baseNow.Add(-3*time.Minute), model.ExecutionStatusFailed),
		newRecord("tenant-a", "e3", baseNow.Add(-2*time.Minute), model.ExecutionStatusCompleted),
		dry,
	)

	t.Run("default order is newest first", func(t *testing.T) {
		page, err := repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, page.TotalCount)
		assert.True(t, page.HasMore)
		require.Len(t, page.Records, 2)
		assert.Equal(t, "dry", page.Records[0].ExecutionID)
		assert.Equal(t, "e3", page.Records[1].ExecutionID)
	})

	t.Run("offset past the end", func(t *testing.T) {
		page, err := repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Records)
		assert.False(t, page.HasMore)
	})

	t.Run("status and dry run filters", func(t *testing.T) {
		notDry := false
		page, err := repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{Status: model.ExecutionStatusCompleted, DryRun: &notDry})
		require.NoError(t, err)
		require.Len(t, page.Records, 2)
		assert.Equal(t, "e3", page.Records[0].ExecutionID)
		assert.Equal(t, "e1", page.Records[1].ExecutionID)
	})

	t.Run("time range", func(t *testing.T) {
		start := baseNow.Add(-3 * time.Minute)
		end := baseNow.Add(-2 * time.Minute)
		page, err := repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{StartTime: &start, EndTime: &end, Order: SortAsc})
		require.NoError(t, err)
		require.Len(t, page.Records, 2)
		assert.Equal(t, "e2", page.Records[0].ExecutionID)
	})

	t.Run("limit above maximum", func(t *testing.T) {
		_, err := repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{Limit: MaxHistoryQueryLimit + 1})
		var qerr *HistoryQueryError
		assert.True(t, errors.As(err, &qerr))
	})

	t.Run("limit at maximum", func(t *testing.T) {
		_, err := repo.FindRecentByTenant(ctx, "tenant-a", HistoryQuery{Limit: MaxHistoryQueryLimit})
		assert.NoError(t, err)
	})
}

func TestMemoryHistory_CountWindowBoundary(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{})
	seed(t, repo, baseNow,
		newRecord("tenant-a", "edge", baseNow.Add(-time.Hour), model.ExecutionStatusCompleted),
		newRecord("tenant-a", "outside", baseNow.Add(-time.Hour-time.Millisecond), model.ExecutionStatusCompleted),
	)

	count, err := repo.CountExecutionsInWindow(context.Background(), "tenant-a", time.Hour, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "finishedAt == now-window is inside the window")
}

func TestMemoryHistory_GetExecutionSummary(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{})
	completed := newRecord("tenant-a", "e1", baseNow.Add(-10*time.Minute), model.ExecutionStatusCompleted)
	completed.StartedAt = completed.FinishedAt.Add(-1000 * time.Millisecond)
	failed := newRecord("tenant-a", "e2", baseNow.Add(-5*time.Minute), model.ExecutionStatusFailed)
	failed.StartedAt = failed.FinishedAt.Add(-2001 * time.Millisecond)
	cancelled := newRecord("tenant-a", "e3", baseNow.Add(-2*time.Hour), model.ExecutionStatusCancelled)
	seed(t, repo, baseNow, completed, failed, cancelled)

	summary, err := repo.GetExecutionSummary(context.Background(), "tenant-a", time.Hour, baseNow)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalExecutions)
	assert.Equal(t, 1, summary.CompletedCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 0, summary.CancelledCount)
	assert.Equal(t, int64(1501), summary.AverageDurationMs)
	require.NotNil(t, summary.LastExecutionAt)
	assert.Equal(t, failed.FinishedAt, *summary.LastExecutionAt)
	assert.Equal(t, baseNow.Add(-time.Hour), summary.WindowStart)
	assert.Equal(t, baseNow, summary.WindowEnd)

	empty, err := repo.GetExecutionSummary(context.Background(), "tenant-z", time.Hour, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalExecutions)
	assert.Nil(t, empty.LastExecutionAt)
}

func TestMemoryHistory_OutOfOrderInsertKeepsOrder(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{})
	seed(t, repo, baseNow,
		newRecord("tenant-a", "late", baseNow.Add(-time.Minute), model.ExecutionStatusCompleted),
		newRecord("tenant-a", "early", baseNow.Add(-time.Hour), model.ExecutionStatusCompleted),
	)

	recent, err := repo.GetMostRecent(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "late", recent.ExecutionID)
}

func TestMemoryHistory_Clear(t *testing.T) {
	repo := NewMemoryHistoryRepository(MemoryHistoryOptions{})
	seed(t, repo, baseNow, newRecord("tenant-a", "e1", baseNow, model.ExecutionStatusCompleted))
	repo.Clear()
	assert.Empty(t, repo.TenantIDs())
}

package repository

import (
	"context"
	"errors"
	"golang-alerting/internal/model"
	"time"

	"gorm.io/gorm"
)

type postgresHistoryRepository struct {
	db                  *gorm.DB
	uow                 UnitOfWork
	maxRecordAge        time.Duration
	maxRecordsPerTenant int
}

// NewPostgresHistoryRepository stores history in the execution_history table.
// Eviction runs in the same transaction as the insert.
func NewPostgresHistoryRepository(db *gorm.DB, uow UnitOfWork, opts MemoryHistoryOptions) HistoryRepository {
	if opts.MaxRecordAge <= 0 {
		opts.MaxRecordAge = DefaultMaxRecordAge
	}
	if opts.MaxRecordsPerTenant <= 0 {
		opts.MaxRecordsPerTenant = DefaultMaxRecordsPerTenant
	}
	return &postgresHistoryRepository{
		db:                  db,
		uow:                 uow,
		maxRecordAge:        opts.MaxRecordAge,
		maxRecordsPerTenant: opts.MaxRecordsPerTenant,
	}
}

func (r *postgresHistoryRepository) Record(ctx context.Context, rec model.ExecutionHistoryRecord, now time.Time) error {
	normalized, err := model.NewExecutionHistoryRecord(rec)
	if err != nil {
		return &HistoryPersistenceError{ExecutionID: rec.ExecutionID, Cause: err}
	}

	err = r.uow.Run(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&normalized).Error; err != nil {
			return err
		}
		return r.evict(tx, normalized.TenantID, now)
	})
	if err != nil {
		return &HistoryPersistenceError{ExecutionID: rec.ExecutionID, Cause: err}
	}
	return nil
}

func (r *postgresHistoryRepository) evict(tx *gorm.DB, tenantID string, now time.Time) error {
	cutoff := now.Add(-r.maxRecordAge)
	if err := tx.Where("tenant_id = ? AND finished_at < ?", tenantID, cutoff).
		Delete(&model.ExecutionHistoryRecord{}).Error; err != nil {
		return err
	}

	overflow := tx.Model(&model.ExecutionHistoryRecord{}).
		Select("execution_id").
		Where("tenant_id = ?", tenantID).
		Order("finished_at DESC").
		Offset(r.maxRecordsPerTenant)
	return tx.Where("tenant_id = ? AND execution_id IN (?)", tenantID, overflow).
		Delete(&model.ExecutionHistoryRecord{}).Error
}

func (r *postgresHistoryRepository) scoped(ctx context.Context, tenantID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.ExecutionHistoryRecord{}).Where("tenant_id = ?", tenantID)
}

func (r *postgresHistoryRepository) FindRecentByTenant(ctx context.Context, tenantID string, q HistoryQuery) (HistoryPage, error) {
	q, err := normalizeQuery(tenantID, q)
	if err != nil {
		return HistoryPage{}, err
	}

	db := r.scoped(ctx, tenantID)
	if q.StartTime != nil {
		db = db.Where("finished_at >= ?", *q.StartTime)
	}
	if q.EndTime != nil {
		db = db.Where("finished_at <= ?", *q.EndTime)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.DryRun != nil {
		db = db.Where("dry_run = ?", *q.DryRun)
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return HistoryPage{}, &HistoryQueryError{TenantID: tenantID, Message: "count failed", Cause: err}
	}

	order := "finished_at DESC"
	if q.Order == SortAsc {
		order = "finished_at ASC"
	}
	var records []model.ExecutionHistoryRecord
	if err := db.Order(order).Offset(q.Offset).Limit(q.Limit).Find(&records).Error; err != nil {
		return HistoryPage{}, &HistoryQueryError{TenantID: tenantID, Message: "find failed", Cause: err}
	}

	return HistoryPage{
		Records:    records,
		TotalCount: int(total),
		HasMore:    int64(q.Offset+len(records)) < total,
	}, nil
}

func (r *postgresHistoryRepository) CountExecutionsInWindow(ctx context.Context, tenantID string, window time.Duration, now time.Time) (int, error) {
	var count int64
	err := r.scoped(ctx, tenantID).Where("finished_at >= ?", now.Add(-window)).Count(&count).Error
	if err != nil {
		return 0, &HistoryQueryError{TenantID: tenantID, Message: "count in window failed", Cause: err}
	}
	return int(count), nil
}

func (r *postgresHistoryRepository) GetMostRecent(ctx context.Context, tenantID string) (*model.ExecutionHistoryRecord, error) {
	var rec model.ExecutionHistoryRecord
	err := r.scoped(ctx, tenantID).Order("finished_at DESC").First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &HistoryQueryError{TenantID: tenantID, Message: "most recent lookup failed", Cause: err}
	}
	return &rec, nil
}

type statusAggregate struct {
	Status       model.ExecutionStatus
	Total        int64
	DurationSum  int64
	LastFinished *time.Time
}

func (r *postgresHistoryRepository) GetExecutionSummary(ctx context.Context, tenantID string, window time.Duration, now time.Time) (model.ExecutionHistorySummary, error) {
	windowStart := now.Add(-window)

	var rows []statusAggregate
	err := r.scoped(ctx, tenantID).
		Select("status, COUNT(*) AS total, COALESCE(SUM(duration_ms), 0) AS duration_sum, MAX(finished_at) AS last_finished").
		Where("finished_at >= ?", windowStart).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return model.ExecutionHistorySummary{}, &HistoryQueryError{TenantID: tenantID, Message: "summary failed", Cause: err}
	}

	summary := model.ExecutionHistorySummary{WindowStart: windowStart.UTC(), WindowEnd: now.UTC()}
	var durationSum int64
	for _, row := range rows {
		n := int(row.Total)
		summary.TotalExecutions += n
		durationSum += row.DurationSum
		switch row.Status {
		case model.ExecutionStatusCompleted:
			summary.CompletedCount += n
		case model.ExecutionStatusFailed:
			summary.FailedCount += n
		case model.ExecutionStatusCancelled:
			summary.CancelledCount += n
		}
		if row.LastFinished != nil && (summary.LastExecutionAt == nil || row.LastFinished.After(*summary.LastExecutionAt)) {
			last := row.LastFinished.UTC()
			summary.LastExecutionAt = &last
		}
	}
	if summary.TotalExecutions > 0 {
		summary.AverageDurationMs = roundDiv(durationSum, int64(summary.TotalExecutions))
	}
	return summary, nil
}

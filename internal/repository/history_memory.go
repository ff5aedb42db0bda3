package repository

import (
	"context"
	"golang-alerting/internal/model"
	"sort"
	"sync"
	"time"
)

// MemoryHistoryOptions bounds the in-memory store. Zero values fall back to
// the package defaults.
type MemoryHistoryOptions struct {
	MaxRecordAge        time.Duration
	MaxRecordsPerTenant int
}

// MemoryHistoryRepository is the reference HistoryRepository. It keeps one
// slice per tenant ordered by FinishedAt, oldest first.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	tenants map[string][]model.ExecutionHistoryRecord

	maxRecordAge        time.Duration
	maxRecordsPerTenant int
}

func NewMemoryHistoryRepository(opts MemoryHistoryOptions) *MemoryHistoryRepository {
	if opts.MaxRecordAge <= 0 {
		opts.MaxRecordAge = DefaultMaxRecordAge
	}
	if opts.MaxRecordsPerTenant <= 0 {
		opts.MaxRecordsPerTenant = DefaultMaxRecordsPerTenant
	}
	return &MemoryHistoryRepository{
		tenants:             make(map[string][]model.ExecutionHistoryRecord),
		maxRecordAge:        opts.MaxRecordAge,
		maxRecordsPerTenant: opts.MaxRecordsPerTenant,
	}
}

// Record appends rec and evicts relative to now, never the wall clock.
func (r *MemoryHistoryRepository) Record(ctx context.Context, rec model.ExecutionHistoryRecord, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return &HistoryPersistenceError{ExecutionID: rec.ExecutionID, Cause: err}
	}
	normalized, err := model.NewExecutionHistoryRecord(rec)
	if err != nil {
		return &HistoryPersistenceError{ExecutionID: rec.ExecutionID, Cause: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.tenants[normalized.TenantID]
	// insert after every record finishing at or before this one so that equal
	// timestamps keep arrival order
	idx := sort.Search(len(records), func(i int) bool {
		return records[i].FinishedAt.After(normalized.FinishedAt)
	})
	records = append(records, model.ExecutionHistoryRecord{})
	copy(records[idx+1:], records[idx:])
	records[idx] = normalized

	r.tenants[normalized.TenantID] = r.evict(records, now)
	if len(r.tenants[normalized.TenantID]) == 0 {
		delete(r.tenants, normalized.TenantID)
	}
	return nil
}

// evict drops the prefix older than maxRecordAge, then the oldest overflow.
func (r *MemoryHistoryRepository) evict(records []model.ExecutionHistoryRecord, now time.Time) []model.ExecutionHistoryRecord {
	cutoff := now.Add(-r.maxRecordAge)
	firstFresh := sort.Search(len(records), func(i int) bool {
		return !records[i].FinishedAt.Before(cutoff)
	})
	dropped := firstFresh
	if overflow := len(records) - firstFresh - r.maxRecordsPerTenant; overflow > 0 {
		dropped += overflow
	}
	if dropped == 0 {
		return records
	}
	// copy instead of reslicing so the evicted prefix can be collected
	return append([]model.ExecutionHistoryRecord(nil), records[dropped:]...)
}

func (r *MemoryHistoryRepository) FindRecentByTenant(ctx context.Context, tenantID string, q HistoryQuery) (HistoryPage, error) {
	q, err := normalizeQuery(tenantID, q)
	if err != nil {
		return HistoryPage{}, err
	}

	r.mu.RLock()
	records := r.tenants[tenantID]
	matched := make([]model.ExecutionHistoryRecord, 0, len(records))
	for _, rec := range records {
		if q.matches(rec) {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	if q.Order == SortDesc {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return HistoryPage{
		Records:    append([]model.ExecutionHistoryRecord{}, matched[start:end]...),
		TotalCount: total,
		HasMore:    end < total,
	}, nil
}

func (r *MemoryHistoryRepository) CountExecutionsInWindow(ctx context.Context, tenantID string, window time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-window)

	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.tenants[tenantID]
	idx := sort.Search(len(records), func(i int) bool {
		return !records[i].FinishedAt.Before(cutoff)
	})
	return len(records) - idx, nil
}

func (r *MemoryHistoryRepository) GetMostRecent(ctx context.Context, tenantID string) (*model.ExecutionHistoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.tenants[tenantID]
	if len(records) == 0 {
		return nil, nil
	}
	rec := records[len(records)-1]
	return &rec, nil
}

func (r *MemoryHistoryRepository) GetExecutionSummary(ctx context.Context, tenantID string, window time.Duration, now time.Time) (model.ExecutionHistorySummary, error) {
	windowStart := now.Add(-window)

	r.mu.RLock()
	records := r.tenants[tenantID]
	idx := sort.Search(len(records), func(i int) bool {
		return !records[i].FinishedAt.Before(windowStart)
	})
	inWindow := append([]model.ExecutionHistoryRecord(nil), records[idx:]...)
	r.mu.RUnlock()

	return summarize(inWindow, windowStart, now), nil
}

// TenantIDs lists tenants that currently hold records, sorted.
func (r *MemoryHistoryRepository) TenantIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops every record for every tenant.
func (r *MemoryHistoryRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = make(map[string][]model.ExecutionHistoryRecord)
}

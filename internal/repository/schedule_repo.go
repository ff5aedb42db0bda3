package repository

import (
	"context"
	"fmt"
	"golang-alerting/internal/model"
	"golang-alerting/internal/policy"
	"golang-alerting/pkg/cache"
	"golang-alerting/pkg/common"
	"golang-alerting/pkg/logger"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type ScheduleProvider interface {
	// GetSchedulesForTenant returns the tenant's schedules ordered by ID.
	// A tenant without a fixture has no schedules.
	GetSchedulesForTenant(ctx context.Context, tenantID string) ([]model.ScheduledExecution, error)
}

// FixtureScheduleProvider reads schedules from <dir>/schedules/<tenant>.json.
type FixtureScheduleProvider struct {
	loader *fixtureLoader
}

func NewFixtureScheduleProvider(dir string, c cache.Cache, ttl time.Duration, v *validator.Validate, log *logger.Logger) *FixtureScheduleProvider {
	return &FixtureScheduleProvider{
		loader: &fixtureLoader{
			dir:      dir,
			kind:     "schedules",
			keyFmt:   common.KEY_FIXTURE_SCHEDULES,
			ttl:      ttl,
			cache:    c,
			validate: v,
			log:      log.Named("schedule_fixture"),
		},
	}
}

func (p *FixtureScheduleProvider) GetSchedulesForTenant(ctx context.Context, tenantID string) ([]model.ScheduledExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	schedules, err := loadFixture(p.loader, tenantID, func(path string) ([]model.ScheduledExecution, error) {
		var fixture model.ScheduleFixture
		found, err := decodeFixture(path, p.loader.validate, &fixture)
		if err != nil {
			return nil, err
		}
		if !found {
			return []model.ScheduledExecution{}, nil
		}
		if problems := checkSchedules(tenantID, fixture.Schedules); len(problems) > 0 {
			return nil, &FixtureError{Path: path, Problems: problems}
		}
		return sortSchedules(fixture.Schedules), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]model.ScheduledExecution{}, schedules...), nil
}

// ClearCache forgets cached fixtures so the next read hits disk. With no
// arguments every cached fixture is dropped.
func (p *FixtureScheduleProvider) ClearCache(tenantIDs ...string) {
	p.loader.clear(tenantIDs...)
}

func checkSchedules(tenantID string, schedules []model.ScheduledExecution) []string {
	var problems []string
	seen := make(map[string]bool, len(schedules))
	for i, s := range schedules {
		prefix := fmt.Sprintf("schedules[%d]", i)
		if s.TenantID != tenantID {
			problems = append(problems, fmt.Sprintf("%s.tenantId: %q does not match fixture tenant %q", prefix, s.TenantID, tenantID))
		}
		if seen[s.ID] {
			problems = append(problems, fmt.Sprintf("%s.id: duplicate id %q", prefix, s.ID))
		}
		seen[s.ID] = true
		for _, p := range policy.ValidateSchedule(s) {
			problems = append(problems, prefix+"."+p)
		}
	}
	return problems
}

func sortSchedules(schedules []model.ScheduledExecution) []model.ScheduledExecution {
	out := append([]model.ScheduledExecution{}, schedules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MemoryScheduleProvider serves schedules registered in code.
type MemoryScheduleProvider struct {
	mu        sync.RWMutex
	schedules map[string][]model.ScheduledExecution
}

func NewMemoryScheduleProvider(schedules ...model.ScheduledExecution) *MemoryScheduleProvider {
	p := &MemoryScheduleProvider{schedules: make(map[string][]model.ScheduledExecution)}
	for _, s := range schedules {
		p.schedules[s.TenantID] = append(p.schedules[s.TenantID], s)
	}
	for tenantID, list := range p.schedules {
		p.schedules[tenantID] = sortSchedules(list)
	}
	return p
}

// SetSchedules replaces the tenant's schedules.
func (p *MemoryScheduleProvider) SetSchedules(tenantID string, schedules []model.ScheduledExecution) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schedules[tenantID] = sortSchedules(schedules)
}

func (p *MemoryScheduleProvider) GetSchedulesForTenant(ctx context.Context, tenantID string) ([]model.ScheduledExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.ScheduledExecution{}, p.schedules[tenantID]...), nil
}

package repository

import (
	"context"
	"fmt"
	"golang-alerting/internal/model"
	"golang-alerting/pkg/cache"
	"golang-alerting/pkg/common"
	"golang-alerting/pkg/logger"
	"time"

	"github.com/go-playground/validator/v10"
)

type RuleProvider interface {
	// GetRulesForTenant returns the tenant's enabled rules.
	GetRulesForTenant(ctx context.Context, tenantID string) ([]model.Rule, error)
}

// FixtureRuleProvider reads rules from <dir>/rules/<tenant>.json.
type FixtureRuleProvider struct {
	loader *fixtureLoader
}

func NewFixtureRuleProvider(dir string, c cache.Cache, ttl time.Duration, v *validator.Validate, log *logger.Logger) *FixtureRuleProvider {
	return &FixtureRuleProvider{
		loader: &fixtureLoader{
			dir:      dir,
			kind:     "rules",
			keyFmt:   common.KEY_FIXTURE_RULES,
			ttl:      ttl,
			cache:    c,
			validate: v,
			log:      log.Named("rule_fixture"),
		},
	}
}

func (p *FixtureRuleProvider) GetRulesForTenant(ctx context.Context, tenantID string) ([]model.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rules, err := loadFixture(p.loader, tenantID, func(path string) ([]model.Rule, error) {
		var fixture model.RuleFixture
		found, err := decodeFixture(path, p.loader.validate, &fixture)
		if err != nil {
			return nil, err
		}
		if !found {
			return []model.Rule{}, nil
		}
		var problems []string
		enabled := make([]model.Rule, 0, len(fixture.Rules))
		for i, r := range fixture.Rules {
			if r.TenantID != tenantID {
				problems = append(problems, fmt.Sprintf("rules[%d].tenantId: %q does not match fixture tenant %q", i, r.TenantID, tenantID))
				continue
			}
			if r.Enabled {
				enabled = append(enabled, r)
			}
		}
		if len(problems) > 0 {
			return nil, &FixtureError{Path: path, Problems: problems}
		}
		return enabled, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Rule{}, rules...), nil
}

func (p *FixtureRuleProvider) ClearCache(tenantIDs ...string) {
	p.loader.clear(tenantIDs...)
}

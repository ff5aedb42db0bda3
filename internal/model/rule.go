package model

import "gorm.io/datatypes"

// Rule is an alert rule as loaded from the rules fixture. Its conditions are
// opaque here; the external executor interprets them.
type Rule struct {
	ID         string            `json:"id" validate:"required"`
	TenantID   string            `json:"tenantId" validate:"required"`
	Name       string            `json:"name" validate:"required"`
	Enabled    bool              `json:"enabled"`
	Severity   string            `json:"severity,omitempty" validate:"omitempty,oneof=info warning critical"`
	Metrics    []string          `json:"metrics,omitempty"`
	Conditions datatypes.JSON    `json:"conditions,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

type RuleFixture struct {
	Version string `json:"version" validate:"required,eq=1.0"`
	Rules   []Rule `json:"rules" validate:"dive"`
}

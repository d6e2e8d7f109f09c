package service

import (
	"ascend/internal/logger"
	"ascend/internal/plan"
	"ascend/internal/repository"
)

// PlanProvider resolves the plan in force: configuration plus admin overrides.
type PlanProvider struct {
	base     plan.Plan
	settings *repository.SettingRepository
}

func NewPlanProvider(base plan.Plan, settings *repository.SettingRepository) *PlanProvider {
	return &PlanProvider{base: base, settings: settings}
}

// Current returns a fresh plan snapshot. Invalid overrides fall back to the
// configured plan. Must not be called inside an open transaction.
func (p *PlanProvider) Current() plan.Plan {
	if p.settings == nil {
		return p.base
	}
	overrides, err := p.settings.Map()
	if err != nil {
		logger.Warn("[plan] loading overrides failed, using configured plan: %v", err)
		return p.base
	}
	if len(overrides) == 0 {
		return p.base
	}
	out := p.base.WithOverrides(overrides)
	if err := out.Validate(); err != nil {
		logger.Error("[plan] overrides rejected: %v", err)
		return p.base
	}
	return out
}

// Base returns the configured plan without overrides.
func (p *PlanProvider) Base() plan.Plan { return p.base }

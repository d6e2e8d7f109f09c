package plan

import (
	"errors"
	"testing"

	"ascend/config"
	"ascend/internal/domain"

	"github.com/shopspring/decimal"
)

func defaults() Plan {
	return FromConfig(config.PlanConfig{
		DirectPercent: 20,
		Binary:        config.BinaryConfig{Percent: 10, MinPV: 10000, CapCents: 500000, MaxCarryCycles: 4, Period: domain.PeriodWeekly},
		Multilevel:    config.MultilevelConfig{Levels: config.DefaultLevels()},
		Rank:          config.RankConfig{ActiveDirectMinPV: 10000, EvaluateUplineDepth: 20, RecurringPeriod: domain.PeriodMonthly, Tiers: config.DefaultRankTiers()},
		Withdrawal:    config.WithdrawalConfig{MinCents: 5000, FeePercent: 2, FeeFloorCents: 100},
	})
}

func TestDefaultPlanIsValid(t *testing.T) {
	p := defaults()
	if err := p.Validate(); err != nil {
		t.Fatalf("Expected default plan to validate, got %v", err)
	}
	if len(p.Levels) != 10 || len(p.Rank.Tiers) != 4 {
		t.Errorf("Expected 10 levels and 4 tiers, got %d and %d", len(p.Levels), len(p.Rank.Tiers))
	}
	if !p.Levels[8].Percent.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("Expected level 9 at 0.5%%, got %s", p.Levels[8].Percent)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan)
	}{
		{"direct over 100", func(p *Plan) { p.DirectPercent = decimal.NewFromInt(101) }},
		{"negative level", func(p *Plan) { p.Levels[0].Percent = decimal.NewFromInt(-1) }},
		{"negative minimum", func(p *Plan) { p.Withdrawal.MinCents = -1 }},
		{"duplicate level", func(p *Plan) { p.Rank.Tiers[1].Level = p.Rank.Tiers[0].Level }},
		{"decreasing threshold", func(p *Plan) { p.Rank.Tiers[2].MinGroupVolume = 1 }},
		{"level zero rank", func(p *Plan) { p.Rank.Tiers[0].Level = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaults()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, domain.ErrInvalidPlan) {
				t.Errorf("Expected ErrInvalidPlan, got %v", err)
			}
		})
	}
}

func TestWithOverrides(t *testing.T) {
	base := defaults()
	p := base.WithOverrides(map[string]string{
		domain.SettingDirectPercent:        "15.5",
		domain.SettingBinaryCapCents:       "0",
		domain.SettingBinaryMaxCarryCycles: "not-a-number",
		"unknown.key":                      "1",
	})
	if !p.DirectPercent.Equal(decimal.NewFromFloat(15.5)) {
		t.Errorf("Expected direct 15.5, got %s", p.DirectPercent)
	}
	if p.Binary.CapCents != 0 {
		t.Errorf("Expected cap disabled, got %d", p.Binary.CapCents)
	}
	if p.Binary.MaxCarryCycles != base.Binary.MaxCarryCycles {
		t.Errorf("Expected unparsable override ignored, got %d", p.Binary.MaxCarryCycles)
	}

	p.Levels[0].Percent = decimal.NewFromInt(99)
	if base.Levels[0].Percent.Equal(decimal.NewFromInt(99)) {
		t.Error("Expected overrides to copy the level table")
	}
}

func TestPercentAndFee(t *testing.T) {
	if got := Percent(10000, decimal.NewFromInt(20)); got != 2000 {
		t.Errorf("Expected 2000, got %d", got)
	}
	if got := Percent(333, decimal.NewFromFloat(0.5)); got != 2 {
		t.Errorf("Expected 1.665 to round to 2, got %d", got)
	}
	w := Withdrawal{FeePercent: decimal.NewFromInt(2), FeeFloorCents: 100}
	tests := []struct {
		amount int64
		fee    int64
	}{
		{5000, 100},
		{3000, 100},
		{10000, 200},
		{12345, 247},
	}
	for _, tt := range tests {
		if got := w.Fee(tt.amount); got != tt.fee {
			t.Errorf("Fee(%d): expected %d, got %d", tt.amount, tt.fee, got)
		}
	}
}

func TestCheckOverride(t *testing.T) {
	tests := []struct {
		key, value string
		ok         bool
	}{
		{domain.SettingDirectPercent, "12.5", true},
		{domain.SettingBinaryCapCents, "0", true},
		{domain.SettingBinaryMaxCarryCycles, "3", true},
		{domain.SettingBinaryMinPV, "ten", false},
		{domain.SettingWithdrawalFeePercent, "", false},
		{"plan.unknown", "1", false},
	}
	for _, tt := range tests {
		err := CheckOverride(tt.key, tt.value)
		if tt.ok && err != nil {
			t.Errorf("%s=%q: unexpected error %v", tt.key, tt.value, err)
		}
		if !tt.ok && domain.CodeOf(err) != "InvalidPlan" {
			t.Errorf("%s=%q: expected InvalidPlan, got %v", tt.key, tt.value, err)
		}
	}
}

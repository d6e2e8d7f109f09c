// Package plan holds the compensation plan as an immutable value that is
// passed explicitly into every calculator.
package plan

import (
	"fmt"
	"sort"
	"strconv"

	"ascend/config"
	"ascend/internal/domain"

	"github.com/shopspring/decimal"
)

type Plan struct {
	DirectPercent decimal.Decimal
	Binary        Binary
	Levels        []Level
	Rank          Rank
	Withdrawal    Withdrawal
}

type Binary struct {
	Percent        decimal.Decimal
	MinPV          int64
	CapCents       int64 // <= 0 disables the cap
	MaxCarryCycles int   // <= 0 disables forfeiture
	Period         string
}

// Level is one multilevel generation; index 0 is the buyer's sponsor.
type Level struct {
	Percent decimal.Decimal
	MinPV   int64
}

type Rank struct {
	ActiveDirectMinPV   int64
	EvaluateUplineDepth int
	RecurringPeriod     string
	Tiers               []Tier
}

// Tier mirrors a configured rank; it is seeded into the ranks table.
type Tier struct {
	Name              string
	Level             int
	MinPV             int64
	MinLeftVolume     int64
	MinRightVolume    int64
	MinGroupVolume    int64
	MinActiveDirects  int
	OnetimeBonusCents int64
	RecurringCents    int64
}

type Withdrawal struct {
	MinCents      int64
	FeePercent    decimal.Decimal
	FeeFloorCents int64
}

func FromConfig(c config.PlanConfig) Plan {
	p := Plan{
		DirectPercent: decimal.NewFromFloat(c.DirectPercent),
		Binary: Binary{
			Percent:        decimal.NewFromFloat(c.Binary.Percent),
			MinPV:          c.Binary.MinPV,
			CapCents:       c.Binary.CapCents,
			MaxCarryCycles: c.Binary.MaxCarryCycles,
			Period:         c.Binary.Period,
		},
		Rank: Rank{
			ActiveDirectMinPV:   c.Rank.ActiveDirectMinPV,
			EvaluateUplineDepth: c.Rank.EvaluateUplineDepth,
			RecurringPeriod:     c.Rank.RecurringPeriod,
		},
		Withdrawal: Withdrawal{
			MinCents:      c.Withdrawal.MinCents,
			FeePercent:    decimal.NewFromFloat(c.Withdrawal.FeePercent),
			FeeFloorCents: c.Withdrawal.FeeFloorCents,
		},
	}
	for _, l := range c.Multilevel.Levels {
		p.Levels = append(p.Levels, Level{Percent: decimal.NewFromFloat(l.Percent), MinPV: l.MinPV})
	}
	for _, t := range c.Rank.Tiers {
		p.Rank.Tiers = append(p.Rank.Tiers, Tier{
			Name:              t.Name,
			Level:             t.Level,
			MinPV:             t.MinPV,
			MinLeftVolume:     t.MinLeftVolume,
			MinRightVolume:    t.MinRightVolume,
			MinGroupVolume:    t.MinGroupVolume,
			MinActiveDirects:  t.MinActiveDirects,
			OnetimeBonusCents: t.OnetimeBonusCents,
			RecurringCents:    t.RecurringCents,
		})
	}
	sort.Slice(p.Rank.Tiers, func(i, j int) bool { return p.Rank.Tiers[i].Level < p.Rank.Tiers[j].Level })
	return p
}

// Validate checks percent ranges and that rank levels are strictly ordered
// with non-decreasing thresholds.
func (p Plan) Validate() error {
	hundred := decimal.NewFromInt(100)
	pcts := []decimal.Decimal{p.DirectPercent, p.Binary.Percent, p.Withdrawal.FeePercent}
	for _, l := range p.Levels {
		pcts = append(pcts, l.Percent)
	}
	for _, pct := range pcts {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage %s out of range", domain.ErrInvalidPlan, pct)
		}
	}
	if p.Binary.MinPV < 0 || p.Withdrawal.MinCents < 0 || p.Withdrawal.FeeFloorCents < 0 {
		return fmt.Errorf("%w: negative threshold", domain.ErrInvalidPlan)
	}
	for i := 1; i < len(p.Rank.Tiers); i++ {
		prev, cur := p.Rank.Tiers[i-1], p.Rank.Tiers[i]
		if cur.Level <= prev.Level {
			return fmt.Errorf("%w: rank levels must be strictly increasing (%s)", domain.ErrInvalidPlan, cur.Name)
		}
		if cur.MinPV < prev.MinPV || cur.MinLeftVolume < prev.MinLeftVolume || cur.MinRightVolume < prev.MinRightVolume ||
			cur.MinGroupVolume < prev.MinGroupVolume || cur.MinActiveDirects < prev.MinActiveDirects {
			return fmt.Errorf("%w: rank %s thresholds below %s", domain.ErrInvalidPlan, cur.Name, prev.Name)
		}
	}
	if len(p.Rank.Tiers) > 0 && p.Rank.Tiers[0].Level <= 0 {
		return fmt.Errorf("%w: level 0 is reserved for unranked", domain.ErrInvalidPlan)
	}
	return nil
}

// WithOverrides returns a copy of p with admin settings applied. Unknown keys
// and unparsable values are ignored.
func (p Plan) WithOverrides(settings map[string]string) Plan {
	out := p
	out.Levels = append([]Level(nil), p.Levels...)
	out.Rank.Tiers = append([]Tier(nil), p.Rank.Tiers...)
	for k, v := range settings {
		switch k {
		case domain.SettingDirectPercent:
			if d, err := decimal.NewFromString(v); err == nil {
				out.DirectPercent = d
			}
		case domain.SettingBinaryPercent:
			if d, err := decimal.NewFromString(v); err == nil {
				out.Binary.Percent = d
			}
		case domain.SettingBinaryMinPV:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out.Binary.MinPV = n
			}
		case domain.SettingBinaryCapCents:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out.Binary.CapCents = n
			}
		case domain.SettingBinaryMaxCarryCycles:
			if n, err := strconv.Atoi(v); err == nil {
				out.Binary.MaxCarryCycles = n
			}
		case domain.SettingWithdrawalMinCents:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out.Withdrawal.MinCents = n
			}
		case domain.SettingWithdrawalFeePercent:
			if d, err := decimal.NewFromString(v); err == nil {
				out.Withdrawal.FeePercent = d
			}
		case domain.SettingWithdrawalFeeFloor:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out.Withdrawal.FeeFloorCents = n
			}
		}
	}
	return out
}

// CheckOverride reports whether key is an overridable setting and value
// parses as its type.
func CheckOverride(key, value string) error {
	var err error
	switch key {
	case domain.SettingDirectPercent, domain.SettingBinaryPercent, domain.SettingWithdrawalFeePercent:
		_, err = decimal.NewFromString(value)
	case domain.SettingBinaryMinPV, domain.SettingBinaryCapCents,
		domain.SettingWithdrawalMinCents, domain.SettingWithdrawalFeeFloor:
		_, err = strconv.ParseInt(value, 10, 64)
	case domain.SettingBinaryMaxCarryCycles:
		_, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidPlan, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q", domain.ErrInvalidPlan, key, value)
	}
	return nil
}

// Percent returns base*pct/100 in cents, rounded half away from zero.
func Percent(base int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(base).Mul(pct).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Fee is the percentage fee raised to the configured floor.
func (w Withdrawal) Fee(amount int64) int64 {
	fee := Percent(amount, w.FeePercent)
	if fee < w.FeeFloorCents {
		fee = w.FeeFloorCents
	}
	return fee
}

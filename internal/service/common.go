package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"ascend/internal/metrics"
	"ascend/internal/models"
	"ascend/internal/repository"

	"gorm.io/gorm"
)

// Outcome reports whether a calculator produced a commission. Ineligibility
// is an expected result, not an error.
type Outcome struct {
	Applied       bool               `json:"applied"`
	Reason        string             `json:"reason,omitempty"`
	BeneficiaryID uint               `json:"beneficiary_id,omitempty"`
	Level         int                `json:"level,omitempty"`
	Commission    *models.Commission `json:"commission,omitempty"`
}

const (
	ReasonNotFirstOrder   = "not_first_order"
	ReasonNoSponsor       = "no_sponsor"
	ReasonSponsorInactive = "sponsor_inactive"
	ReasonInactive        = "inactive"
	ReasonBelowPV         = "below_min_pv"
	ReasonNotPlaced       = "not_placed"
	ReasonZeroAmount      = "zero_amount"
	ReasonDuplicate       = "already_recorded"
	ReasonUnranked        = "unranked"
)

func skipped(reason string) Outcome { return Outcome{Reason: reason} }

// Actor identifies who triggered an administrative operation.
type Actor struct {
	UserID    uint
	IP        string
	UserAgent string
}

func (a Actor) id() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

func audit(tx *gorm.DB, actor Actor, action, resource string, resourceID interface{}, meta interface{}) error {
	var raw string
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	return repository.NewAuditLogRepository(tx).Create(&models.AuditLog{
		ActorID:    actor.id(),
		Action:     action,
		Resource:   resource,
		ResourceID: fmt.Sprint(resourceID),
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
		Metadata:   raw,
	})
}

// notFound maps gorm's missing-row error to a domain sentinel.
func notFound(err error, sentinel error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
	}
	return err
}

func observeCommissions(list ...*models.Commission) {
	for _, c := range list {
		if c == nil {
			continue
		}
		metrics.CommissionsTotal.WithLabelValues(c.Type).Inc()
		metrics.CommissionCentsTotal.WithLabelValues(c.Type).Add(float64(c.AmountCents))
	}
}

func pageArgs(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

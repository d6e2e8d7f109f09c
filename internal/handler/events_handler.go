package handler

import (
	"net/http"
	"time"

	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/service"

	"github.com/gin-gonic/gin"
)

// EventsHandler ingests events pushed by the checkout, auth and KYC systems.
type EventsHandler struct {
	orders     *service.OrderService
	activation *service.ActivationService
	wallet     *service.WalletService
	sweeps     *service.SweepService
	plans      *service.PlanProvider
	now        func() time.Time
}

func NewEventsHandler(
	orders *service.OrderService,
	activation *service.ActivationService,
	wallet *service.WalletService,
	sweeps *service.SweepService,
	plans *service.PlanProvider,
) *EventsHandler {
	return &EventsHandler{
		orders:     orders,
		activation: activation,
		wallet:     wallet,
		sweeps:     sweeps,
		plans:      plans,
		now:        time.Now,
	}
}

// OrderCompleted handles POST /events/order-completed.
func (h *EventsHandler) OrderCompleted(c *gin.Context) {
	var ev service.OrderCompleted
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.orders.Complete(c.Request.Context(), ev)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// UserActivated handles POST /events/user-activated.
func (h *EventsHandler) UserActivated(c *gin.Context) {
	var ev service.UserActivated
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.activation.Activate(c.Request.Context(), ev)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

type kycEvent struct {
	UserID uint   `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// KycApproved handles POST /events/kyc-approved.
func (h *EventsHandler) KycApproved(c *gin.Context) {
	var ev kycEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	released, err := h.wallet.OnKycApproved(c.Request.Context(), ev.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": ev.UserID, "released_cents": released})
}

// KycRejected handles POST /events/kyc-rejected.
func (h *EventsHandler) KycRejected(c *gin.Context) {
	var ev kycEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.wallet.OnKycRejected(c.Request.Context(), ev.UserID); err != nil {
		respondError(c, err)
		return
	}
	logger.Info("[events] KYC rejected for user %d: %s", ev.UserID, ev.Reason)
	c.JSON(http.StatusOK, gin.H{"user_id": ev.UserID, "kyc": false})
}

type periodBoundary struct {
	Job   string     `json:"job" binding:"required,oneof=binary rank_recurring"`
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// PeriodBoundary handles POST /events/period-boundary. Without explicit
// bounds the last closed period of the job's configured length is swept.
func (h *EventsHandler) PeriodBoundary(c *gin.Context) {
	var ev periodBoundary
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var period service.Period
	switch {
	case ev.Start != nil && ev.End != nil:
		period = service.Period{Start: ev.Start.UTC(), End: ev.End.UTC()}
	case ev.Start != nil || ev.End != nil:
		respondError(c, domain.ErrInvalidPeriod)
		return
	default:
		p := h.plans.Current()
		length := p.Binary.Period
		if ev.Job == service.JobRecurring {
			length = p.Rank.RecurringPeriod
		}
		var err error
		if period, err = service.LastClosedPeriod(length, h.now()); err != nil {
			respondError(c, err)
			return
		}
	}

	var (
		res *service.SweepResult
		err error
	)
	if ev.Job == service.JobBinary {
		res, err = h.sweeps.RunBinary(c.Request.Context(), period)
	} else {
		res, err = h.sweeps.RunRecurring(c.Request.Context(), period)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PayoutCallback is the payout provider's final report for one withdrawal.
type PayoutCallback struct {
	Reference         string `json:"reference" binding:"required"`
	Status            string `json:"status" binding:"required"`
	StatusDescription string `json:"status_description"`
	ReceiptNumber     string `json:"receipt_number"`
}

type WithdrawalWebhookHandler struct {
	wallet *service.WalletService
}

func NewWithdrawalWebhookHandler(wallet *service.WalletService) *WithdrawalWebhookHandler {
	return &WithdrawalWebhookHandler{wallet: wallet}
}

// Handle processes POST /webhooks/payout. COMPLETED settles the withdrawal;
// any other status rejects it and refunds the reservation. Unknown
// references and repeated callbacks are acknowledged so the provider stops
// retrying.
func (h *WithdrawalWebhookHandler) Handle(c *gin.Context) {
	var payload PayoutCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	paid := strings.EqualFold(payload.Status, "COMPLETED")
	wd, err := h.wallet.SettlePayout(c.Request.Context(), payload.Reference, paid, payload.StatusDescription)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		logger.Warn("[payout callback] no withdrawal for ref=%s", payload.Reference)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.Warn("[payout callback] ref=%s status=%s ignored: %v", payload.Reference, payload.Status, err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case err != nil:
		respondError(c, err)
		return
	}
	logger.Info("[payout callback] withdrawal %d %s receipt=%s", wd.ID, wd.Status, payload.ReceiptNumber)
	c.JSON(http.StatusOK, gin.H{"received": true, "status": wd.Status})
}

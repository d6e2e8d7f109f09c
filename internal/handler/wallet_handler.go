package handler

import (
	"net/http"

	"ascend/internal/middleware"
	"ascend/internal/repository"
	"ascend/internal/service"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	wallet      *service.WalletService
	commissions *service.CommissionService
}

func NewWalletHandler(wallet *service.WalletService, commissions *service.CommissionService) *WalletHandler {
	return &WalletHandler{wallet: wallet, commissions: commissions}
}

// GetBalance handles GET /me/wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	w, err := h.wallet.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available_cents":       w.AvailableCents,
		"pending_cents":         w.PendingCents,
		"total_earned_cents":    w.TotalEarnedCents,
		"total_withdrawn_cents": w.TotalWithdrawnCents,
		"earned_by_type": gin.H{
			"direct":     w.DirectEarnedCents,
			"binary":     w.BinaryEarnedCents,
			"multilevel": w.MultilevelEarnedCents,
			"rank_bonus": w.RankBonusEarnedCents,
		},
		"currency": w.Currency,
	})
}

// Transactions handles GET /me/wallet/transactions?type=COMMISSION.
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	list, total, err := h.wallet.Transactions(c.Request.Context(), userID, c.Query("type"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// Commissions handles GET /me/commissions?type=&status=.
func (h *WalletHandler) Commissions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	f := repository.CommissionFilter{
		BeneficiaryID: userID,
		Type:          c.Query("type"),
		Status:        c.Query("status"),
	}
	list, total, err := h.commissions.List(c.Request.Context(), f, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	totals, err := h.commissions.Totals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "totals": totals, "total": total, "page": page, "limit": limit})
}

package handler

import (
	"net/http"
	"strings"

	"ascend/internal/middleware"
	"ascend/internal/service"

	"github.com/gin-gonic/gin"
)

type WithdrawalHandler struct {
	wallet *service.WalletService
}

func NewWithdrawalHandler(wallet *service.WalletService) *WithdrawalHandler {
	return &WithdrawalHandler{wallet: wallet}
}

// Create handles POST /me/withdraw. The amount is reserved immediately and
// paid out after admin approval.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		AmountCents int64  `json:"amount_cents" binding:"required"`
		Method      string `json:"method" binding:"required"`
		Destination string `json:"destination"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wd, err := h.wallet.RequestWithdrawal(c.Request.Context(), service.WithdrawalInput{
		UserID:      userID,
		AmountCents: req.AmountCents,
		Method:      strings.TrimSpace(req.Method),
		Destination: strings.TrimSpace(req.Destination),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wd)
}

// List handles GET /me/withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	list, total, err := h.wallet.Withdrawals(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

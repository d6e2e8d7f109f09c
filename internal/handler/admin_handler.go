package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ascend/internal/logger"
	"ascend/internal/models"
	"ascend/internal/plan"
	"ascend/internal/repository"
	"ascend/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminRepo   *repository.AdminRepository
	settingRepo *repository.SettingRepository
	auditRepo   *repository.AuditLogRepository
	commissions *service.CommissionService
	wallet      *service.WalletService
	rank        *service.RankService
	plans       *service.PlanProvider
}

func NewAdminHandler(
	adminRepo *repository.AdminRepository,
	settingRepo *repository.SettingRepository,
	auditRepo *repository.AuditLogRepository,
	commissions *service.CommissionService,
	wallet *service.WalletService,
	rank *service.RankService,
	plans *service.PlanProvider,
) *AdminHandler {
	return &AdminHandler{
		adminRepo:   adminRepo,
		settingRepo: settingRepo,
		auditRepo:   auditRepo,
		commissions: commissions,
		wallet:      wallet,
		rank:        rank,
		plans:       plans,
	}
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.adminRepo.GetDashboardStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	totals, err := h.commissions.Totals(c.Request.Context(), 0)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "commissions": totals})
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, limit := parsePagination(c)
	users, total, err := h.adminRepo.ListUsers(c.Query("search"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "total": total, "page": page, "limit": limit})
}

// ListTransactions handles GET /admin/transactions.
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.adminRepo.ListTransactions(c.Query("type"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// Analytics handles GET /admin/analytics?days=30.
func (h *AdminHandler) Analytics(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 || days > 365 {
		days = 30
	}
	activations, err := h.adminRepo.ActivationsByDay(days)
	if err != nil {
		logger.Warn("[admin] activations by day: %v", err)
	}
	commissions, err := h.adminRepo.CommissionsByDay(days)
	if err != nil {
		logger.Warn("[admin] commissions by day: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"activations": activations,
		"commissions": commissions,
		"days":        days,
	})
}

// ListCommissions handles GET /admin/commissions?beneficiary_id=&type=&status=&order_id=.
func (h *AdminHandler) ListCommissions(c *gin.Context) {
	page, limit := parsePagination(c)
	beneficiary, _ := strconv.ParseUint(c.Query("beneficiary_id"), 10, 64)
	f := repository.CommissionFilter{
		BeneficiaryID: uint(beneficiary),
		Type:          c.Query("type"),
		Status:        c.Query("status"),
		OrderID:       c.Query("order_id"),
	}
	list, total, err := h.commissions.List(c.Request.Context(), f, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// UpdateCommissionStatus handles PATCH /admin/commissions/:id/status.
func (h *AdminHandler) UpdateCommissionStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required,oneof=cancelled paid"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	com, err := h.commissions.SetStatus(c.Request.Context(), id, req.Status, req.Note, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, com)
}

// ListWithdrawals handles GET /admin/withdrawals?status=.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.wallet.ListWithdrawals(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// ApproveWithdrawal handles POST /admin/withdrawals/:id/approve.
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	h.respondWithdrawal(c)(h.wallet.ApproveWithdrawal(c.Request.Context(), id, actor(c)))
}

// CompleteWithdrawal handles POST /admin/withdrawals/:id/complete.
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	h.respondWithdrawal(c)(h.wallet.CompleteWithdrawal(c.Request.Context(), id, actor(c)))
}

// RejectWithdrawal handles POST /admin/withdrawals/:id/reject.
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithdrawal(c)(h.wallet.RejectWithdrawal(c.Request.Context(), id, req.Reason, actor(c)))
}

func (h *AdminHandler) respondWithdrawal(c *gin.Context) func(*models.Withdrawal, error) {
	return func(wd *models.Withdrawal, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, wd)
	}
}

// RecalculateRank handles POST /admin/users/:id/rank/recalculate.
func (h *AdminHandler) RecalculateRank(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a := actor(c)
	res, err := h.rank.Evaluate(c.Request.Context(), id, h.plans.Current(), "admin:"+strconv.FormatUint(uint64(a.UserID), 10))
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(a, "rank.recalculate", "user", strconv.FormatUint(uint64(id), 10), res)
	c.JSON(http.StatusOK, res)
}

// Reconcile handles GET /admin/users/:id/reconcile.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	r, err := h.wallet.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetSettings handles GET /admin/settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingRepo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// UpdateSettings handles PUT /admin/settings. The whole batch is refused if
// any key is unknown or the resulting plan would be invalid.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		Settings map[string]string `json:"settings" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	current, err := h.settingRepo.Map()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	for k, v := range req.Settings {
		if err := plan.CheckOverride(k, v); err != nil {
			respondError(c, err)
			return
		}
		current[k] = v
	}
	if err := h.plans.Base().WithOverrides(current).Validate(); err != nil {
		respondError(c, err)
		return
	}
	a := actor(c)
	for k, v := range req.Settings {
		if err := h.settingRepo.Set(k, v, &a.UserID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting: " + k})
			return
		}
	}
	h.record(a, "settings.update", "system_setting", "", req.Settings)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AuditLogs handles GET /admin/audit-logs?action=.
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.auditRepo.List(c.Query("action"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// record writes an audit entry for actions the services do not audit themselves.
func (h *AdminHandler) record(a service.Actor, action, resource, resourceID string, meta interface{}) {
	raw, _ := json.Marshal(meta)
	entry := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         a.IP,
		UserAgent:  a.UserAgent,
		Metadata:   string(raw),
	}
	if a.UserID != 0 {
		uid := a.UserID
		entry.ActorID = &uid
	}
	if err := h.auditRepo.Create(entry); err != nil {
		logger.Error("[admin] audit %s: %v", action, err)
	}
}

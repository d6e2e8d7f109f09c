package handler

import (
	"errors"
	"net/http"
	"strconv"

	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/middleware"
	"ascend/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrKycNotApproved):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrWithdrawalInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrBelowMinimum):
		return http.StatusBadRequest
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindEligibility:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its stable code. Internal failures are logged
// and reported without detail.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if code := domain.CodeOf(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// actor identifies the authenticated admin for the audit log.
func actor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID:    middleware.GetUserID(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ascend/internal/domain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidLeg), http.StatusBadRequest},
		{domain.ErrDuplicateSponsor, http.StatusUnprocessableEntity},
		{domain.ErrPeriodAlreadyProcessed, http.StatusUnprocessableEntity},
		{domain.ErrPeriodOutOfOrder, http.StatusUnprocessableEntity},
		{domain.ErrKycNotApproved, http.StatusForbidden},
		{domain.ErrWithdrawalInFlight, http.StatusConflict},
		{domain.ErrInsufficientBalance, http.StatusBadRequest},
		{domain.ErrBelowMinimum, http.StatusBadRequest},
		{domain.ErrSweepBusy, http.StatusConflict},
		{fmt.Errorf("%w: retries", domain.ErrConflict), http.StatusConflict},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: user 7", domain.ErrUserNotFound), http.StatusNotFound},
		{domain.ErrNegativeBalance, http.StatusInternalServerError},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/fail", func(c *gin.Context) { respondError(c, errors.New("dsn password=secret")) })
	r.GET("/kyc", func(c *gin.Context) { respondError(c, domain.ErrKycNotApproved) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusInternalServerError || body["error"] != "internal error" {
		t.Errorf("Expected opaque 500, got %d %v", w.Code, body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kyc", nil))
	body = nil
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusForbidden || body["code"] != "KycNotApproved" {
		t.Errorf("Expected 403 KycNotApproved, got %d %v", w.Code, body)
	}
}

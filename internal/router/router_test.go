package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ascend/config"
	"ascend/internal/auth"
	"ascend/internal/domain"
	"ascend/internal/lock"
	"ascend/internal/middleware"
	"ascend/internal/testutil"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const integrationKey = "checkout-shared-key"

type api struct {
	engine *gin.Engine
	cfg    *config.Config
	svc    *Services
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte(integrationKey), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Server:      config.ServerConfig{Env: "test", CORSOrigins: []string{"*"}, RateLimit: 1000},
		Database:    config.DatabaseConfig{RetryAttempts: 3},
		JWT:         config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "ascend"},
		Integration: config.IntegrationConfig{KeyHash: string(hash)},
		Schedule:    config.ScheduleConfig{SweepWorkers: 2, LockTTL: time.Minute},
	}
	db := testutil.NewDB(t)
	p := testutil.Plan()
	testutil.SeedRanks(t, db, p)
	svc := NewServices(cfg, db, p, lock.NewLocalLocker())
	return &api{engine: Setup(cfg, svc), cfg: cfg, svc: svc}
}

func (a *api) token(t *testing.T, userID uint, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&a.cfg.JWT, userID, role)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// call performs a request. auth is a bearer token, the integration key
// marker "key", or "".
func (a *api) call(t *testing.T, method, path, auth string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	switch {
	case auth == "key":
		req.Header.Set(middleware.IntegrationKeyHeader, integrationKey)
	case auth != "":
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	out := map[string]interface{}{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decoding %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func (a *api) must(t *testing.T, want int, method, path, auth string, body interface{}) map[string]interface{} {
	t.Helper()
	code, out := a.call(t, method, path, auth, body)
	if code != want {
		t.Fatalf("%s %s: expected %d, got %d %v", method, path, want, code, out)
	}
	return out
}

func TestOpsEndpoints(t *testing.T) {
	a := newAPI(t)
	a.must(t, http.StatusOK, http.MethodGet, "/healthz", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("http_requests_total")) {
		t.Errorf("Expected prometheus exposition, got %d", w.Code)
	}
}

func TestEventToPayoutFlow(t *testing.T) {
	a := newAPI(t)
	member := a.token(t, 1, domain.RoleMember)
	recruit := a.token(t, 2, domain.RoleMember)
	admin := a.token(t, 900, domain.RoleAdmin)

	// ============================================================
	// Activation and order events
	// ============================================================
	a.must(t, http.StatusUnauthorized, http.MethodPost, "/api/v1/events/user-activated", "", gin.H{"user_id": 1})
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 1, "username": "root"})
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 2, "sponsor_id": 1, "preferred_leg": "auto"})
	replay := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 2, "sponsor_id": 1})
	if replay["replayed"] != true {
		t.Errorf("Expected replayed activation, got %v", replay)
	}
	if code, out := a.call(t, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 3, "sponsor_id": 1, "preferred_leg": "middle"}); code != http.StatusBadRequest || out["code"] != "InvalidLeg" {
		t.Errorf("Expected 400 InvalidLeg, got %d %v", code, out)
	}

	order := gin.H{"order_id": "o-1", "buyer_id": 2, "commissionable_amount": 100000, "is_first_order": true}
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/order-completed", "key", order)
	dup := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/events/order-completed", "key", order)
	if dup["duplicate"] != true {
		t.Errorf("Expected duplicate order, got %v", dup)
	}
	if code, out := a.call(t, http.MethodPost, "/api/v1/events/order-completed", "key", gin.H{"order_id": "o-2", "buyer_id": 2}); code != http.StatusBadRequest || out["code"] != "InvalidAmount" {
		t.Errorf("Expected 400 InvalidAmount, got %d %v", code, out)
	}

	// ============================================================
	// Member views
	// ============================================================
	a.must(t, http.StatusUnauthorized, http.MethodGet, "/api/v1/me/wallet", "", nil)
	wallet := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/wallet", member, nil)
	if wallet["pending_cents"] != float64(30000) || wallet["available_cents"] != float64(0) {
		t.Errorf("Expected 30000 pending, got %v", wallet)
	}
	coms := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/commissions", member, nil)
	if coms["total"] != float64(2) {
		t.Errorf("Expected 2 commissions, got %v", coms["total"])
	}
	up := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/upline", recruit, nil)
	if rows, _ := up["data"].([]interface{}); len(rows) != 1 {
		t.Errorf("Expected one ancestor, got %v", up["data"])
	}
	down := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/downline", member, nil)
	if down["total"] != float64(1) {
		t.Errorf("Expected one descendant, got %v", down["total"])
	}
	placement := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/placement", member, nil)
	if node, _ := placement["node"].(map[string]interface{}); node["left_volume"] != float64(100000) {
		t.Errorf("Expected left volume 100000, got %v", placement["node"])
	}
	rank := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/rank", member, nil)
	if rank["next_rank"] == nil {
		t.Error("Expected a next rank for an unranked member")
	}

	// ============================================================
	// Withdrawal through KYC, admin approval and payout callback
	// ============================================================
	wd := gin.H{"amount_cents": 10000, "method": "bank_transfer", "destination": "DE89 3704"}
	if code, out := a.call(t, http.MethodPost, "/api/v1/me/withdraw", member, wd); code != http.StatusForbidden || out["code"] != "KycNotApproved" {
		t.Fatalf("Expected 403 KycNotApproved, got %d %v", code, out)
	}
	released := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/events/kyc-approved", "key", gin.H{"user_id": 1})
	if released["released_cents"] != float64(30000) {
		t.Errorf("Expected 30000 released, got %v", released)
	}
	if code, out := a.call(t, http.MethodPost, "/api/v1/me/withdraw", member, gin.H{"amount_cents": 1000, "method": "bank_transfer"}); code != http.StatusBadRequest || out["code"] != "BelowMinimum" {
		t.Errorf("Expected 400 BelowMinimum, got %d %v", code, out)
	}
	created := a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/me/withdraw", member, wd)
	if code, out := a.call(t, http.MethodPost, "/api/v1/me/withdraw", member, wd); code != http.StatusConflict || out["code"] != "WithdrawalInFlight" {
		t.Errorf("Expected 409 WithdrawalInFlight, got %d %v", code, out)
	}
	id := uint(created["id"].(float64))
	ref := created["reference"].(string)

	a.must(t, http.StatusForbidden, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/approve", id), member, nil)
	approved := a.must(t, http.StatusOK, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/approve", id), admin, nil)
	if approved["status"] != domain.WithdrawalStatusProcessing {
		t.Errorf("Expected processing, got %v", approved["status"])
	}
	paid := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/webhooks/payout", "key", gin.H{"reference": ref, "status": "COMPLETED", "receipt_number": "R-1"})
	if paid["status"] != domain.WithdrawalStatusCompleted {
		t.Errorf("Expected completed, got %v", paid)
	}
	// A repeated callback is acknowledged without effect.
	a.must(t, http.StatusOK, http.MethodPost, "/api/v1/webhooks/payout", "key", gin.H{"reference": ref, "status": "FAILED"})

	wallet = a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/wallet", member, nil)
	if wallet["available_cents"] != float64(20000) || wallet["total_withdrawn_cents"] != float64(10000) {
		t.Errorf("Unexpected wallet after payout %v", wallet)
	}
	rec := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/admin/users/1/reconcile", admin, nil)
	if rec["balanced"] != true {
		t.Errorf("Expected balanced wallet, got %v", rec)
	}
	mine := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/me/withdrawals", member, nil)
	if mine["total"] != float64(1) {
		t.Errorf("Expected one withdrawal, got %v", mine["total"])
	}
}

func TestAdminCommissionOverride(t *testing.T) {
	a := newAPI(t)
	admin := a.token(t, 900, domain.RoleAdmin)
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 1})
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 2, "sponsor_id": 1})
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/order-completed", "key",
		gin.H{"order_id": "o-1", "buyer_id": 2, "commissionable_amount": 50000, "is_first_order": true})

	list := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/admin/commissions?type=direct", admin, nil)
	rows := list["data"].([]interface{})
	if len(rows) != 1 {
		t.Fatalf("Expected one direct commission, got %d", len(rows))
	}
	id := uint(rows[0].(map[string]interface{})["id"].(float64))
	path := fmt.Sprintf("/api/v1/admin/commissions/%d/status", id)

	a.must(t, http.StatusBadRequest, http.MethodPatch, path, admin, gin.H{"status": "approved"})
	if code, out := a.call(t, http.MethodPatch, path, admin, gin.H{"status": "paid"}); code != http.StatusBadRequest || out["code"] != "InvalidTransition" {
		t.Errorf("Expected pending -> paid refused, got %d %v", code, out)
	}
	cancelled := a.must(t, http.StatusOK, http.MethodPatch, path, admin, gin.H{"status": "cancelled", "note": "chargeback"})
	if cancelled["status"] != domain.CommissionStatusCancelled {
		t.Errorf("Expected cancelled, got %v", cancelled["status"])
	}
	a.must(t, http.StatusNotFound, http.MethodPatch, "/api/v1/admin/commissions/9999/status", admin, gin.H{"status": "cancelled"})

	rec := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/admin/users/1/reconcile", admin, nil)
	if rec["balanced"] != true || rec["pending_cents"] != float64(5000) {
		t.Errorf("Expected only the multilevel commission left pending, got %v", rec)
	}
	dash := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/admin/dashboard", admin, nil)
	if stats, _ := dash["stats"].(map[string]interface{}); stats["total_users"] != float64(2) {
		t.Errorf("Expected 2 users on the dashboard, got %v", dash["stats"])
	}
	recalc := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/admin/users/1/rank/recalculate", admin, nil)
	if recalc["changed"] == true {
		t.Errorf("Expected no rank change, got %v", recalc)
	}
	a.must(t, http.StatusNotFound, http.MethodPost, "/api/v1/admin/users/77/rank/recalculate", admin, nil)
}

func TestAdminSettings(t *testing.T) {
	a := newAPI(t)
	admin := a.token(t, 900, domain.RoleAdmin)

	tests := []struct {
		name     string
		settings map[string]string
		want     int
	}{
		{"unknown key", map[string]string{"plan.bogus": "1"}, http.StatusBadRequest},
		{"unparsable", map[string]string{domain.SettingBinaryMinPV: "lots"}, http.StatusBadRequest},
		{"plan invalid", map[string]string{domain.SettingWithdrawalFeePercent: "150"}, http.StatusBadRequest},
		{"accepted", map[string]string{domain.SettingWithdrawalMinCents: "8000", domain.SettingDirectPercent: "15"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.must(t, tt.want, http.MethodPut, "/api/v1/admin/settings", admin, gin.H{"settings": tt.settings})
		})
	}

	got := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/admin/settings", admin, nil)
	if rows, _ := got["data"].([]interface{}); len(rows) != 2 {
		t.Errorf("Expected 2 stored settings, got %v", got["data"])
	}
	if p := a.svc.Plans.Current(); p.Withdrawal.MinCents != 8000 {
		t.Errorf("Expected override in force, got min %d", p.Withdrawal.MinCents)
	}
	logs := a.must(t, http.StatusOK, http.MethodGet, "/api/v1/admin/audit-logs?action=settings.update", admin, nil)
	if logs["total"] != float64(1) {
		t.Errorf("Expected one settings audit entry, got %v", logs["total"])
	}
}

func TestPeriodBoundaryEvent(t *testing.T) {
	a := newAPI(t)
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 1})
	a.must(t, http.StatusCreated, http.MethodPost, "/api/v1/events/user-activated", "key", gin.H{"user_id": 2, "sponsor_id": 1})

	a.must(t, http.StatusBadRequest, http.MethodPost, "/api/v1/events/period-boundary", "key", gin.H{"job": "payroll"})
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if code, out := a.call(t, http.MethodPost, "/api/v1/events/period-boundary", "key", gin.H{"job": "binary", "start": start}); code != http.StatusBadRequest || out["code"] != "InvalidPeriod" {
		t.Errorf("Expected 400 InvalidPeriod, got %d %v", code, out)
	}

	body := gin.H{"job": "binary", "start": start, "end": start.AddDate(0, 0, 7)}
	first := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/events/period-boundary", "key", body)
	if first["processed"] != float64(2) {
		t.Errorf("Expected 2 users processed, got %v", first)
	}
	again := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/events/period-boundary", "key", body)
	if again["paid"] != float64(0) || again["skipped"] != float64(2) {
		t.Errorf("Expected rerun to skip everyone, got %v", again)
	}

	recurring := a.must(t, http.StatusOK, http.MethodPost, "/api/v1/events/period-boundary", "key", gin.H{"job": "rank_recurring"})
	if recurring["processed"] != float64(0) {
		t.Errorf("Expected no ranked users, got %v", recurring)
	}
}

package router

import (
	"net/http"
	"time"

	"ascend/config"
	"ascend/internal/handler"
	"ascend/internal/lock"
	"ascend/internal/middleware"
	"ascend/internal/plan"
	"ascend/internal/repository"
	"ascend/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Services is the wired engine. main reaches the sweeps through it for the scheduler.
type Services struct {
	DB          *gorm.DB
	Plans       *service.PlanProvider
	Genealogy   *service.GenealogyService
	Placement   *service.PlacementService
	Volume      *service.VolumeService
	Wallet      *service.WalletService
	Commissions *service.CommissionService
	Binary      *service.BinaryService
	Rank        *service.RankService
	Activation  *service.ActivationService
	Orders      *service.OrderService
	Sweeps      *service.SweepService

	AdminRepo   *repository.AdminRepository
	SettingRepo *repository.SettingRepository
	AuditRepo   *repository.AuditLogRepository
}

func NewServices(cfg *config.Config, db *gorm.DB, base plan.Plan, locker lock.Locker) *Services {
	retries := cfg.Database.RetryAttempts

	// Repositories
	userRepo := repository.NewUserRepository(db)
	genealogyRepo := repository.NewGenealogyRepository(db)
	placementRepo := repository.NewPlacementRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	s := &Services{
		DB:          db,
		Plans:       service.NewPlanProvider(base, settingRepo),
		AdminRepo:   repository.NewAdminRepository(db),
		SettingRepo: settingRepo,
		AuditRepo:   repository.NewAuditLogRepository(db),
	}
	s.Genealogy = service.NewGenealogyService(db, genealogyRepo, userRepo)
	s.Volume = service.NewVolumeService(db, userRepo, placementRepo)
	s.Placement = service.NewPlacementService(db, placementRepo, userRepo, s.Volume, retries)
	s.Wallet = service.NewWalletService(db, walletRepo, withdrawalRepo, commissionRepo, userRepo, s.Plans, retries)
	s.Commissions = service.NewCommissionService(db, commissionRepo, genealogyRepo, userRepo, s.Wallet, retries)
	s.Binary = service.NewBinaryService(db, userRepo, placementRepo,
		repository.NewCarryoverRepository(db), repository.NewBinaryRunRepository(db), s.Commissions, retries)
	s.Rank = service.NewRankService(db, userRepo, placementRepo, repository.NewRankRepository(db), s.Commissions, retries)
	s.Activation = service.NewActivationService(db, userRepo, s.Genealogy, s.Placement, placementRepo, retries)
	s.Orders = service.NewOrderService(db, repository.NewOrderEventRepository(db), userRepo,
		s.Volume, s.Commissions, s.Placement, s.Rank, s.Plans, retries)
	s.Sweeps = service.NewSweepService(userRepo, s.Binary, s.Rank, s.Plans, locker,
		cfg.Schedule.SweepWorkers, cfg.Schedule.LockTTL)
	return s
}

func Setup(cfg *config.Config, s *Services) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) == 0 || (len(cfg.Server.CORSOrigins) == 1 && cfg.Server.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.IntegrationKeyHeader}
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	limit := cfg.Server.RateLimit
	if limit <= 0 {
		limit = 300
	}
	limiter := middleware.NewInMemoryRateLimiter(limit, time.Minute)

	// Handlers
	eventsHandler := handler.NewEventsHandler(s.Orders, s.Activation, s.Wallet, s.Sweeps, s.Plans)
	walletHandler := handler.NewWalletHandler(s.Wallet, s.Commissions)
	withdrawalHandler := handler.NewWithdrawalHandler(s.Wallet)
	withdrawalWebhookHandler := handler.NewWithdrawalWebhookHandler(s.Wallet)
	networkHandler := handler.NewNetworkHandler(s.Genealogy, s.Placement, s.Binary, s.Rank, s.Plans)
	adminHandler := handler.NewAdminHandler(s.AdminRepo, s.SettingRepo, s.AuditRepo, s.Commissions, s.Wallet, s.Rank, s.Plans)

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := s.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// Inbound events from the checkout, auth and KYC systems
	events := api.Group("/events")
	events.Use(middleware.IntegrationKey(cfg.Integration.KeyHash))
	{
		events.POST("/order-completed", eventsHandler.OrderCompleted)
		events.POST("/user-activated", eventsHandler.UserActivated)
		events.POST("/kyc-approved", eventsHandler.KycApproved)
		events.POST("/kyc-rejected", eventsHandler.KycRejected)
		events.POST("/period-boundary", eventsHandler.PeriodBoundary)
	}

	// Payout provider callbacks
	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.IntegrationKey(cfg.Integration.KeyHash))
	{
		webhooks.POST("/payout", withdrawalWebhookHandler.Handle)
	}

	// Authenticated member routes
	me := api.Group("/me")
	me.Use(middleware.AuthRequired(&cfg.JWT), middleware.RateLimit(limiter))
	{
		me.GET("/wallet", walletHandler.GetBalance)
		me.GET("/wallet/transactions", walletHandler.Transactions)
		me.GET("/commissions", walletHandler.Commissions)
		me.GET("/withdrawals", withdrawalHandler.List)
		me.POST("/withdraw", withdrawalHandler.Create)
		me.GET("/upline", networkHandler.Upline)
		me.GET("/downline", networkHandler.Downline)
		me.GET("/placement", networkHandler.Placement)
		me.GET("/rank", networkHandler.Rank)
	}

	// Admin
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(&cfg.JWT), middleware.AdminRequired())
	{
		admin.GET("/dashboard", adminHandler.Dashboard)
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/transactions", adminHandler.ListTransactions)
		admin.GET("/analytics", adminHandler.Analytics)
		admin.GET("/commissions", adminHandler.ListCommissions)
		admin.PATCH("/commissions/:id/status", adminHandler.UpdateCommissionStatus)
		admin.GET("/withdrawals", adminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/complete", adminHandler.CompleteWithdrawal)
		admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
		admin.POST("/users/:id/rank/recalculate", adminHandler.RecalculateRank)
		admin.GET("/users/:id/reconcile", adminHandler.Reconcile)
		admin.GET("/settings", adminHandler.GetSettings)
		admin.PUT("/settings", adminHandler.UpdateSettings)
		admin.GET("/audit-logs", adminHandler.AuditLogs)
	}

	return r
}

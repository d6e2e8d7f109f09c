package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ascend/config"
	"ascend/internal/database"
	"ascend/internal/lock"
	"ascend/internal/logger"
	"ascend/internal/plan"
	"ascend/internal/router"
	"ascend/internal/scheduler"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Output, cfg.Log.File); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	base := plan.FromConfig(cfg.Plan)
	if err := base.Validate(); err != nil {
		logger.Fatal("[main] plan: %v", err)
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("[main] database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("[main] migrate: %v", err)
	}
	if err := database.SeedRanks(db, base.Rank.Tiers); err != nil {
		logger.Fatal("[main] seed ranks: %v", err)
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("[main] redis: %v", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, "ascend:lock:")
		logger.Info("[main] sweep lock backed by redis at %s", cfg.Redis.Address)
	}

	svc := router.NewServices(cfg, db, base, locker)

	var sched *scheduler.Manager
	if cfg.Schedule.Enabled {
		sched, err = scheduler.NewManager(scheduler.Jobs(cfg.Schedule, svc.Sweeps, base.Binary.Period, base.Rank.RecurringPeriod)...)
		if err != nil {
			logger.Fatal("[main] scheduler: %v", err)
		}
		if err := sched.Start(); err != nil {
			logger.Fatal("[main] scheduler start: %v", err)
		}
	}

	engine := router.Setup(cfg, svc)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("[main] server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[main] listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[main] shutting down...")
	if sched != nil {
		sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("[main] server shutdown: %v", err)
	}
	logger.Info("[main] server stopped")
}

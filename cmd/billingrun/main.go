package main

import (
	"context"

	"dairy_billing/internal/billing"
	"dairy_billing/internal/config"
	"dairy_billing/internal/notify"
	"dairy_billing/internal/wallet"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// One-shot billing pass for cron-style deployments. Shares the Redis day
// marker with the in-server scheduler, so running both is harmless.
func main() {
	cfg := config.LoadConfig()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
	}

	loc := cfg.Location()
	wallets := wallet.NewService(gdb, redisClient)
	cycle := billing.NewCycle(gdb, wallets, notify.LogNotifier{}, loc, cfg.GracePeriodDay)
	scheduler := billing.NewScheduler(cycle, redisClient, loc, cfg.BillingHour)

	scheduler.RunOnce(context.Background())
}

package main

import (
	"context"
	"log"

	"dairy_billing/internal/api"
	"dairy_billing/internal/audit"
	"dairy_billing/internal/billing"
	"dairy_billing/internal/config"
	"dairy_billing/internal/delivery"
	"dairy_billing/internal/gateway"
	"dairy_billing/internal/middleware"
	"dairy_billing/internal/notify"
	"dairy_billing/internal/payments"
	"dairy_billing/internal/penalty"
	"dairy_billing/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	// Redis is the cache and scheduler day-marker store; the system degrades
	// without it but a configured address that fails to answer is fatal.
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
	} else {
		logrus.Warn("REDIS_ADDR not set, running without cache")
	}

	loc := cfg.Location()

	wallets := wallet.NewService(gdb, redisClient)
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout)
	reconciler := payments.NewReconciler(gdb, gw, wallets, cfg.ReturnURL, cfg.NotifyURL)
	recorder := audit.NewRecorder(gdb)
	penalties := penalty.NewEngine(gdb, wallets, recorder)
	deliveries := delivery.NewService(gdb, wallets, loc, cfg.DepositEveryN, cfg.DepositAmount)
	cycle := billing.NewCycle(gdb, wallets, notify.LogNotifier{}, loc, cfg.GracePeriodDay)
	scheduler := billing.NewScheduler(cycle, redisClient, loc, cfg.BillingHour)

	go scheduler.Start(context.Background())

	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	r.POST("/auth/register", api.RegisterHandler(gdb))
	r.POST("/auth/login", api.LoginHandler(gdb, cfg.JWTSecret))

	// Gateway webhook: authenticated by signature, not by session.
	r.POST("/webhooks/payment", api.PaymentWebhookHandler(reconciler, gw))

	// Customer routes (protected by JWT)
	authed := r.Group("/")
	authed.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	authed.GET("/wallet", api.GetWalletHandler(gdb, redisClient))
	authed.GET("/wallet/transactions", api.GetTransactionHistoryHandler(gdb, redisClient))
	authed.POST("/wallet/topup", api.TopupHandler(reconciler))
	authed.POST("/wallet/topup/verify", api.VerifyTopupHandler(reconciler))
	authed.GET("/billing/monthly", api.GetMonthlyPaymentsHandler(gdb))
	authed.GET("/deliveries", api.GetDeliveriesHandler(deliveries))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(gdb))
	adminGroup.GET("/customers", api.ListCustomersHandler(gdb, redisClient))
	adminGroup.POST("/customers/:id/approve", api.ApproveCustomerHandler(gdb, recorder))
	adminGroup.PUT("/customers/:id/subscription", api.SetSubscriptionHandler(gdb, recorder))
	adminGroup.POST("/penalties", api.PenaltyHandler(penalties))
	adminGroup.POST("/adjustments", api.AdjustmentHandler(penalties))
	adminGroup.POST("/refunds", api.RefundHandler(penalties))
	adminGroup.POST("/deliveries", api.RecordDeliveryHandler(deliveries, loc))
	adminGroup.POST("/billing/run", api.RunBillingHandler(cycle))
	adminGroup.GET("/transactions", api.ListTransactionsHandler(gdb, redisClient))
	adminGroup.GET("/billing/monthly", api.ListMonthlyPaymentsHandler(gdb))

	log.Println("Server running on " + cfg.AppPort)
	r.Run(":" + cfg.AppPort)
}

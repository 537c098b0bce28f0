package db

import (
	"dairy_billing/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Models returns every table the application owns, in creation order.
func Models() []any {
	return []any{
		&domain.Route{},
		&domain.Customer{},
		&domain.Subscription{},
		&domain.Wallet{},
		&domain.WalletTransaction{},
		&domain.PaymentOrder{},
		&domain.MonthlyPayment{},
		&domain.Delivery{},
		&domain.AuditLog{},
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	logrus.Info("Migration completed.")
}

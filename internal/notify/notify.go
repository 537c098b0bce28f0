package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier is the outbound customer-notification sink. Calls are
// fire-and-forget: implementations absorb their own failures and nothing in
// a financial path ever blocks on them.
type Notifier interface {
	CustomerSuspended(ctx context.Context, customerID uint, balance int64)
}

// LogNotifier writes notifications to the application log. It stands in
// until an SMS/push provider is wired up.
type LogNotifier struct{}

func (LogNotifier) CustomerSuspended(_ context.Context, customerID uint, balance int64) {
	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"balance":     balance,
	}).Info("Notify: delivery suspended until wallet is topped up")
}

package billing

import (
	"context"
	"errors"
	"time"

	"dairy_billing/internal/domain"
	"dairy_billing/internal/notify"
	"dairy_billing/internal/wallet"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Cycle is one day's worth of billing work: generate the month's payment
// records, and once the grace day has passed, mark stragglers overdue and
// suspend customers whose wallet cannot fund even the next delivery. Every
// step is idempotent, so running the cycle twice on the same day converges
// to the same state.
type Cycle struct {
	db       *gorm.DB
	wallets  *wallet.Service
	notifier notify.Notifier
	loc      *time.Location
	graceDay int
	nowFn    func() time.Time
}

// NewCycle builds the daily cycle. graceDay is the day of month after which
// pending monthly payments are enforced.
func NewCycle(gdb *gorm.DB, wallets *wallet.Service, notifier notify.Notifier, loc *time.Location, graceDay int) *Cycle {
	return &Cycle{
		db:       gdb,
		wallets:  wallets,
		notifier: notifier,
		loc:      loc,
		graceDay: graceDay,
		nowFn:    time.Now,
	}
}

// billableRow is the projection record generation works from: one row per
// customer who has a route and a live (active or paused) subscription.
type billableRow struct {
	CustomerID    uint
	DailyQuantity int
	DailyPrice    int64
}

func (c *Cycle) billable(ctx context.Context, subStatuses []domain.SubscriptionStatus) ([]billableRow, error) {
	var rows []billableRow
	err := c.db.WithContext(ctx).
		Table("customers").
		Select("customers.id AS customer_id, subscriptions.daily_quantity, subscriptions.daily_price").
		Joins("JOIN subscriptions ON subscriptions.customer_id = customers.id").
		Where("customers.route_id IS NOT NULL").
		Where("subscriptions.status IN ?", subStatuses).
		Scan(&rows).Error
	return rows, err
}

// GenerateMonthlyRecords creates this month's MonthlyPayment for every
// billable customer that does not have one yet. Safe to run every day, not
// just on the 1st, so customers approved mid-month get picked up. The record
// is tracking only: when the wallet already covers the month it is created
// pre-marked PAID, and in no case does generation move money.
func (c *Cycle) GenerateMonthlyRecords(ctx context.Context) (int, error) {
	now := c.nowFn().In(c.loc)
	year, month := now.Year(), int(now.Month())
	days := daysInMonth(year, month)
	dueDate := time.Date(year, time.Month(month), c.graceDay, 0, 0, 0, 0, c.loc)

	rows, err := c.billable(ctx, []domain.SubscriptionStatus{domain.SubscriptionActive, domain.SubscriptionPaused})
	if err != nil {
		return 0, err
	}

	created := 0
	for _, row := range rows {
		var existing domain.MonthlyPayment
		err := c.db.WithContext(ctx).
			Where("customer_id = ? AND year = ? AND month = ?", row.CustomerID, year, month).
			First(&existing).Error
		if err == nil {
			continue // already generated for this period
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.logCustomerError("monthly record lookup", row.CustomerID, err)
			continue
		}

		balance, err := c.wallets.Balance(ctx, row.CustomerID)
		if err != nil {
			c.logCustomerError("balance read", row.CustomerID, err)
			continue
		}

		dailyRate := int64(row.DailyQuantity) * row.DailyPrice
		totalCost := dailyRate * int64(days)
		amountDue := totalCost - balance
		if amountDue < 0 {
			amountDue = 0
		}
		mp := domain.MonthlyPayment{
			CustomerID: row.CustomerID,
			Year:       year,
			Month:      month,
			TotalCost:  totalCost,
			AmountDue:  amountDue,
			Status:     domain.MonthlyPending,
			DueDate:    dueDate,
		}
		if balance >= totalCost {
			paidAt := now
			mp.Status = domain.MonthlyPaid
			mp.AmountPaid = totalCost
			mp.AmountDue = 0
			mp.PaidAt = &paidAt
		}
		if err := c.db.WithContext(ctx).Create(&mp).Error; err != nil {
			// A concurrent run can win the insert race; the composite unique
			// index keeps the period single-recorded either way.
			c.logCustomerError("monthly record create", row.CustomerID, err)
			continue
		}
		created++
	}
	if created > 0 {
		logrus.WithFields(logrus.Fields{
			"year":    year,
			"month":   month,
			"created": created,
		}).Info("Monthly payment records generated")
	}
	return created, nil
}

// MarkOverdue bulk-flips this period's still-PENDING monthly payments to
// OVERDUE. Metadata only: it has no effect on delivery eligibility, which
// the wallet sweep owns.
func (c *Cycle) MarkOverdue(ctx context.Context) (int64, error) {
	now := c.nowFn().In(c.loc)
	if now.Day() <= c.graceDay {
		return 0, nil
	}
	res := c.db.WithContext(ctx).Model(&domain.MonthlyPayment{}).
		Where("year = ? AND month = ? AND status = ?", now.Year(), int(now.Month()), domain.MonthlyPending).
		Update("status", domain.MonthlyOverdue)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logrus.WithField("count", res.RowsAffected).Info("Monthly payments marked overdue")
	}
	return res.RowsAffected, nil
}

// SweepWallets suspends every active, routed customer whose balance cannot
// cover one day's delivery. The threshold is deliberately a single day, not
// the month: the wallet balance is the sole source of truth for whether
// tomorrow's delivery runs.
func (c *Cycle) SweepWallets(ctx context.Context) (int, error) {
	rows, err := c.billable(ctx, []domain.SubscriptionStatus{domain.SubscriptionActive})
	if err != nil {
		return 0, err
	}

	suspended := 0
	for _, row := range rows {
		balance, err := c.wallets.Balance(ctx, row.CustomerID)
		if err != nil {
			c.logCustomerError("sweep balance read", row.CustomerID, err)
			continue
		}
		dailyRate := int64(row.DailyQuantity) * row.DailyPrice
		if balance >= dailyRate {
			continue
		}
		res := c.db.WithContext(ctx).Model(&domain.Customer{}).
			Where("id = ? AND status = ?", row.CustomerID, domain.CustomerActive).
			Update("status", domain.CustomerInactive)
		if res.Error != nil {
			c.logCustomerError("suspend", row.CustomerID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue // already inactive or pending approval
		}
		suspended++
		logrus.WithFields(logrus.Fields{
			"customer_id": row.CustomerID,
			"balance":     balance,
			"daily_rate":  dailyRate,
		}).Warn("Customer suspended by wallet sweep")
		c.notifier.CustomerSuspended(ctx, row.CustomerID, balance)
	}
	return suspended, nil
}

// RunDaily executes the whole cycle: record generation every day, and grace
// enforcement only once the grace day has passed for the current month.
func (c *Cycle) RunDaily(ctx context.Context) error {
	if _, err := c.GenerateMonthlyRecords(ctx); err != nil {
		return err
	}
	now := c.nowFn().In(c.loc)
	if now.Day() <= c.graceDay {
		return nil
	}
	if _, err := c.MarkOverdue(ctx); err != nil {
		return err
	}
	if _, err := c.SweepWallets(ctx); err != nil {
		return err
	}
	return nil
}

func (c *Cycle) logCustomerError(step string, customerID uint, err error) {
	// One bad record must not abort the batch; log per customer and move on.
	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"step":        step,
		"error":       err.Error(),
	}).Error("Billing cycle: customer skipped")
}

// daysInMonth returns the calendar length of the month; day 0 of the next
// month normalizes to this month's last day.
func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

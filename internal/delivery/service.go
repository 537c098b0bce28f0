// Package delivery books daily milk deliveries and charges them against the
// customer wallet in the same transaction, so a recorded delivery always has
// its ledger entry and vice versa.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dairy_billing/internal/db"
	"dairy_billing/internal/domain"
	"dairy_billing/internal/wallet"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service records deliveries. depositEveryN and depositAmount drive the
// periodic bottle-deposit charge; a zero depositEveryN disables it.
type Service struct {
	db            *gorm.DB
	wallets       *wallet.Service
	loc           *time.Location
	depositEveryN int
	depositAmount int64
	nowFn         func() time.Time
}

func NewService(gdb *gorm.DB, wallets *wallet.Service, loc *time.Location, depositEveryN int, depositAmount int64) *Service {
	return &Service{
		db:            gdb,
		wallets:       wallets,
		loc:           loc,
		depositEveryN: depositEveryN,
		depositAmount: depositAmount,
		nowFn:         time.Now,
	}
}

// Record books one delivery for the customer on the given date (business
// timezone; zero time means today) and debits the day's charge. At most one
// delivery per customer per day: repeats return ErrConflict and charge
// nothing. Every depositEveryN-th delivery additionally debits the bottle
// deposit.
func (s *Service) Record(ctx context.Context, customerID uint, on time.Time) (*domain.Delivery, error) {
	if on.IsZero() {
		on = s.nowFn()
	}
	day := on.In(s.loc).Format("2006-01-02")

	var created domain.Delivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer domain.Customer
		if err := tx.First(&customer, customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer %d", domain.ErrNotFound, customerID)
			}
			return err
		}
		if customer.Status != domain.CustomerActive {
			return fmt.Errorf("%w: customer %d is %s", domain.ErrConflict, customerID, customer.Status)
		}

		// Lock the subscription row so concurrent recordings serialize on
		// the delivery counter.
		var sub domain.Subscription
		if err := db.LockForUpdate(tx).Where("customer_id = ?", customerID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer %d has no subscription", domain.ErrNotFound, customerID)
			}
			return err
		}
		if sub.Status != domain.SubscriptionActive {
			return fmt.Errorf("%w: subscription for customer %d is %s", domain.ErrConflict, customerID, sub.Status)
		}

		var existing int64
		if err := tx.Model(&domain.Delivery{}).
			Where("customer_id = ? AND delivered_on = ?", customerID, day).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: delivery for customer %d on %s already recorded", domain.ErrConflict, customerID, day)
		}

		amount := sub.DailyRate()
		newCount := sub.DeliveryCount + 1
		depositDue := s.depositEveryN > 0 && newCount%s.depositEveryN == 0

		created = domain.Delivery{
			CustomerID:    customerID,
			DeliveredOn:   day,
			Quantity:      sub.DailyQuantity,
			AmountCharged: amount,
		}
		if depositDue {
			created.DepositCharged = s.depositAmount
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		ref := &wallet.Ref{ID: strconv.FormatUint(uint64(created.ID), 10), Type: domain.RefDelivery}
		if amount > 0 {
			desc := fmt.Sprintf("Daily milk charge for %s", day)
			if _, err := s.wallets.DebitTx(tx, customerID, amount, domain.TxDailyCharge, ref, desc); err != nil {
				return err
			}
		}
		if depositDue && s.depositAmount > 0 {
			desc := fmt.Sprintf("Bottle deposit on delivery #%d", newCount)
			if _, err := s.wallets.DebitTx(tx, customerID, s.depositAmount, domain.TxDepositCharge, ref, desc); err != nil {
				return err
			}
		}

		return tx.Model(&domain.Subscription{}).Where("id = ?", sub.ID).
			Update("delivery_count", newCount).Error
	})
	if err != nil {
		return nil, err
	}

	s.wallets.InvalidateCache(ctx, customerID)
	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"delivery_id": created.ID,
		"date":        day,
		"amount":      created.AmountCharged,
		"deposit":     created.DepositCharged,
	}).Info("Delivery recorded")
	return &created, nil
}

// ListForCustomer returns a customer's deliveries, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID uint, limit int) ([]domain.Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 31
	}
	var rows []domain.Delivery
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("delivered_on DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

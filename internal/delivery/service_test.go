package delivery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dairy_billing/internal/domain"
	"dairy_billing/internal/testutil"
	"dairy_billing/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	wallets *wallet.Service
	svc     *Service
}

// newFixture wires a service that owes a bottle deposit on every third
// delivery, which keeps the deposit path reachable in short tests.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.OpenDB(t)
	wallets := wallet.NewService(gdb, nil)
	svc := NewService(gdb, wallets, time.UTC, 3, 3500)
	return &fixture{db: gdb, wallets: wallets, svc: svc}
}

func (f *fixture) seedCustomer(t *testing.T, custStatus domain.CustomerStatus, subStatus domain.SubscriptionStatus) uint {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.Customer{}).Count(&count).Error)
	customer := domain.Customer{
		Name:     fmt.Sprintf("Customer %d", count+1),
		Phone:    fmt.Sprintf("90000000%02d", count+1),
		Password: "irrelevant",
		Role:     domain.RoleCustomer,
		Status:   custStatus,
	}
	require.NoError(t, f.db.Create(&customer).Error)
	if subStatus != "" {
		sub := domain.Subscription{
			CustomerID:    customer.ID,
			DailyQuantity: 2,
			DailyPrice:    3000,
			Status:        subStatus,
		}
		require.NoError(t, f.db.Create(&sub).Error)
	}
	return customer.ID
}

func (f *fixture) balance(t *testing.T, customerID uint) int64 {
	t.Helper()
	balance, err := f.wallets.Balance(context.Background(), customerID)
	require.NoError(t, err)
	return balance
}

func (f *fixture) entries(t *testing.T, customerID uint, txType domain.TransactionType) []domain.WalletTransaction {
	t.Helper()
	var w domain.Wallet
	require.NoError(t, f.db.Where("customer_id = ?", customerID).First(&w).Error)
	var rows []domain.WalletTransaction
	require.NoError(t, f.db.Where("wallet_id = ? AND type = ?", w.ID, txType).Order("id ASC").Find(&rows).Error)
	return rows
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 6, 30, 0, 0, time.UTC)
}

func TestRecordChargesDailyRate(t *testing.T) {
	f := newFixture(t)
	id := f.seedCustomer(t, domain.CustomerActive, domain.SubscriptionActive)
	_, err := f.wallets.Credit(context.Background(), id, 50000, domain.TxTopup, nil, "")
	require.NoError(t, err)

	dl, err := f.svc.Record(context.Background(), id, day(5))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", dl.DeliveredOn)
	assert.Equal(t, 2, dl.Quantity)
	assert.Equal(t, int64(6000), dl.AmountCharged)
	assert.Zero(t, dl.DepositCharged)

	assert.Equal(t, int64(44000), f.balance(t, id))

	charges := f.entries(t, id, domain.TxDailyCharge)
	require.Len(t, charges, 1)
	assert.Equal(t, int64(-6000), charges[0].Amount)
	require.NotNil(t, charges[0].ReferenceID)
	assert.Equal(t, fmt.Sprint(dl.ID), *charges[0].ReferenceID)
	require.NotNil(t, charges[0].ReferenceType)
	assert.Equal(t, domain.RefDelivery, *charges[0].ReferenceType)

	var sub domain.Subscription
	require.NoError(t, f.db.Where("customer_id = ?", id).First(&sub).Error)
	assert.Equal(t, 1, sub.DeliveryCount)
}

func TestRecordSameDayTwiceChargesOnce(t *testing.T) {
	f := newFixture(t)
	id := f.seedCustomer(t, domain.CustomerActive, domain.SubscriptionActive)
	_, err := f.wallets.Credit(context.Background(), id, 50000, domain.TxTopup, nil, "")
	require.NoError(t, err)

	_, err = f.svc.Record(context.Background(), id, day(5))
	require.NoError(t, err)
	_, err = f.svc.Record(context.Background(), id, day(5))
	require.ErrorIs(t, err, domain.ErrConflict)

	assert.Equal(t, int64(44000), f.balance(t, id), "the repeat charges nothing")

	var deliveries int64
	require.NoError(t, f.db.Model(&domain.Delivery{}).Where("customer_id = ?", id).Count(&deliveries).Error)
	assert.Equal(t, int64(1), deliveries)
}

func TestRecordChargesDepositEveryThird(t *testing.T) {
	f := newFixture(t)
	id := f.seedCustomer(t, domain.CustomerActive, domain.SubscriptionActive)
	_, err := f.wallets.Credit(context.Background(), id, 100000, domain.TxTopup, nil, "")
	require.NoError(t, err)

	for d := 1; d <= 3; d++ {
		dl, err := f.svc.Record(context.Background(), id, day(d))
		require.NoError(t, err)
		if d == 3 {
			assert.Equal(t, int64(3500), dl.DepositCharged)
		} else {
			assert.Zero(t, dl.DepositCharged)
		}
	}

	assert.Equal(t, int64(100000-3*6000-3500), f.balance(t, id))

	deposits := f.entries(t, id, domain.TxDepositCharge)
	require.Len(t, deposits, 1)
	assert.Equal(t, int64(-3500), deposits[0].Amount)
	assert.Contains(t, deposits[0].Description, "delivery #3")
}

func TestRecordZeroTimeUsesClock(t *testing.T) {
	f := newFixture(t)
	id := f.seedCustomer(t, domain.CustomerActive, domain.SubscriptionActive)
	f.svc.nowFn = func() time.Time { return day(17) }

	dl, err := f.svc.Record(context.Background(), id, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-17", dl.DeliveredOn)
}

func TestRecordAllowsOverdraft(t *testing.T) {
	f := newFixture(t)
	id := f.seedCustomer(t, domain.CustomerActive, domain.SubscriptionActive)

	// No top-up at all. The delivery still happens; the wallet goes negative.
	_, err := f.svc.Record(context.Background(), id, day(5))
	require.NoError(t, err)
	assert.Equal(t, int64(-6000), f.balance(t, id))

	var w domain.Wallet
	require.NoError(t, f.db.Where("customer_id = ?", id).First(&w).Error)
	assert.NotNil(t, w.NegativeSince)
}

func TestRecordRejectsBadStates(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown customer", func(t *testing.T) {
		_, err := f.svc.Record(context.Background(), 9999, day(5))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("suspended customer", func(t *testing.T) {
		id := f.seedCustomer(t, domain.CustomerInactive, domain.SubscriptionActive)
		_, err := f.svc.Record(context.Background(), id, day(5))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("no subscription", func(t *testing.T) {
		id := f.seedCustomer(t, domain.CustomerActive, "")
		_, err := f.svc.Record(context.Background(), id, day(5))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("paused subscription", func(t *testing.T) {
		id := f.seedCustomer(t, domain.CustomerActive, domain.SubscriptionPaused)
		_, err := f.svc.Record(context.Background(), id, day(5))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestListForCustomerNewestFirst(t *testing.T) {
	f := newFixture(t)
	id := f.seedCustomer(t, domain.CustomerActive, domain.SubscriptionActive)

	for _, d := range []int{3, 1, 2} {
		_, err := f.svc.Record(context.Background(), id, day(d))
		require.NoError(t, err)
	}

	rows, err := f.svc.ListForCustomer(context.Background(), id, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-03-03", rows[0].DeliveredOn)
	assert.Equal(t, "2026-03-02", rows[1].DeliveredOn)
}

package wallet

import (
	"context"
	"sync"
	"testing"

	"dairy_billing/internal/domain"
	"dairy_billing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.OpenDB(t), nil)
}

func TestCreditCreatesWalletAndLedgerEntry(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	entry, err := s.Credit(ctx, 1, 50000, domain.TxTopup, nil, "first top-up")
	require.NoError(t, err)
	require.Equal(t, int64(50000), entry.Amount)
	require.Equal(t, int64(50000), entry.BalanceAfter)

	w, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), w.Balance)
	assert.Nil(t, w.NegativeSince)
}

func TestDebitAllowsOverdraft(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Credit(ctx, 7, 1000, domain.TxTopup, nil, "top-up")
	require.NoError(t, err)

	entry, err := s.Debit(ctx, 7, 2500, domain.TxPenaltyCharge, nil, "penalty")
	require.NoError(t, err)
	require.Equal(t, int64(-2500), entry.Amount)
	require.Equal(t, int64(-1500), entry.BalanceAfter)

	w, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(-1500), w.Balance)
	require.NotNil(t, w.NegativeSince, "first dip below zero must be timestamped")

	firstNegative := *w.NegativeSince
	_, err = s.Debit(ctx, 7, 100, domain.TxDailyCharge, nil, "charge")
	require.NoError(t, err)
	w, err = s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, firstNegative.Unix(), w.NegativeSince.Unix(), "staying negative must not move the marker")

	_, err = s.Credit(ctx, 7, 5000, domain.TxTopup, nil, "recovery")
	require.NoError(t, err)
	w, err = s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2400), w.Balance)
	assert.Nil(t, w.NegativeSince, "returning to non-negative clears the marker")
}

func TestBalanceEqualsSumOfEntries(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	amounts := []struct {
		credit bool
		paise  int64
	}{
		{true, 10000}, {false, 6000}, {false, 3500}, {true, 2000}, {false, 9500},
	}
	var want int64
	for _, a := range amounts {
		if a.credit {
			_, err := s.Credit(ctx, 3, a.paise, domain.TxTopup, nil, "")
			require.NoError(t, err)
			want += a.paise
		} else {
			_, err := s.Debit(ctx, 3, a.paise, domain.TxDailyCharge, nil, "")
			require.NoError(t, err)
			want -= a.paise
		}
	}

	balance, err := s.Balance(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, want, balance)

	// Replaying the ledger in entry order reproduces every snapshot.
	var entries []domain.WalletTransaction
	require.NoError(t, s.db.Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, len(amounts))
	var running int64
	for _, e := range entries {
		running += e.Amount
		assert.Equal(t, running, e.BalanceAfter)
	}
	assert.Equal(t, want, running)
}

func TestBalanceOfMissingWalletIsZero(t *testing.T) {
	s := newTestService(t)

	balance, err := s.Balance(context.Background(), 999)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = s.Get(context.Background(), 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRejectsNonPositiveAmounts(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Credit(ctx, 1, 0, domain.TxTopup, nil, "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = s.Debit(ctx, 1, -500, domain.TxDailyCharge, nil, "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	balance, err := s.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestConcurrentCreditsAllPost(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Credit(ctx, 42, 100, domain.TxTopup, nil, "concurrent")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := s.Balance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*100), balance)

	var count int64
	require.NoError(t, s.db.Model(&domain.WalletTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(workers), count)
}

func TestRefIsStoredOnEntry(t *testing.T) {
	s := newTestService(t)

	entry, err := s.Credit(context.Background(), 5, 2000, domain.TxTopup,
		&Ref{ID: "order_123", Type: domain.RefPaymentOrder}, "gateway top-up")
	require.NoError(t, err)
	require.NotNil(t, entry.ReferenceID)
	require.NotNil(t, entry.ReferenceType)
	assert.Equal(t, "order_123", *entry.ReferenceID)
	assert.Equal(t, domain.RefPaymentOrder, *entry.ReferenceType)
}

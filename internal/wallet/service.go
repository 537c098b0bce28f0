package wallet

import (
	"context"
	"errors"
	"strconv"
	"time"

	"dairy_billing/internal/db"
	"dairy_billing/internal/domain"
	"dairy_billing/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Ref links a ledger entry back to the row that caused it.
type Ref struct {
	ID   string
	Type string
}

// Service owns the wallet ledger: every balance change goes through Credit or
// Debit, which append an immutable WalletTransaction and update the wallet row
// inside one database transaction. Mutations to the same wallet serialize on a
// row lock; different wallets never share a lock.
type Service struct {
	db    *gorm.DB
	cache *redis.Client
}

// NewService wires the ledger over the given connection pool. The cache
// client is optional.
func NewService(gdb *gorm.DB, cache *redis.Client) *Service {
	return &Service{db: gdb, cache: cache}
}

// Credit adds amount paise to the customer's wallet, creating the wallet on
// first use. Returns the committed ledger entry.
func (s *Service) Credit(ctx context.Context, customerID uint, amount int64, txType domain.TransactionType, ref *Ref, description string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	entry, err := s.apply(ctx, customerID, amount, txType, ref, description)
	s.logOutcome("credit", customerID, amount, txType, err)
	if err != nil {
		return nil, err
	}
	s.InvalidateCache(ctx, customerID)
	return entry, nil
}

// Debit removes amount paise from the customer's wallet. Overdraft is
// allowed: daily charges and penalties must post even when they push the
// balance negative, and NegativeSince records when that first happened so the
// sweep can act on duration, not just sign.
func (s *Service) Debit(ctx context.Context, customerID uint, amount int64, txType domain.TransactionType, ref *Ref, description string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	entry, err := s.apply(ctx, customerID, -amount, txType, ref, description)
	s.logOutcome("debit", customerID, amount, txType, err)
	if err != nil {
		return nil, err
	}
	s.InvalidateCache(ctx, customerID)
	return entry, nil
}

// CreditTx applies a credit inside a transaction the caller already owns, so
// the caller can commit the credit atomically with its own writes (the
// payment reconciler flips the order row and credits in one commit). The
// caller is responsible for cache invalidation after its commit.
func (s *Service) CreditTx(tx *gorm.DB, customerID uint, amount int64, txType domain.TransactionType, ref *Ref, description string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	return applyEntry(tx, customerID, amount, txType, ref, description)
}

// DebitTx is the debit counterpart of CreditTx.
func (s *Service) DebitTx(tx *gorm.DB, customerID uint, amount int64, txType domain.TransactionType, ref *Ref, description string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	return applyEntry(tx, customerID, -amount, txType, ref, description)
}

// Balance returns the current balance in paise. Customers who never touched
// their wallet have balance zero.
func (s *Service) Balance(ctx context.Context, customerID uint) (int64, error) {
	var w domain.Wallet
	err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// Get returns the wallet row, or ErrNotFound when none exists yet.
func (s *Service) Get(ctx context.Context, customerID uint) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// InvalidateCache drops the cached wallet and the first transaction-history
// pages for a customer after a committed money write.
func (s *Service) InvalidateCache(ctx context.Context, customerID uint) {
	id := strconv.Itoa(int(customerID))
	_ = utils.DeleteCache(ctx, s.cache, "wallet:customer:"+id)
	for i := 1; i <= 5; i++ {
		_ = utils.DeleteCache(ctx, s.cache, "txhistory:customer:"+id+":page:"+strconv.Itoa(i)+":size:20")
	}
}

func (s *Service) apply(ctx context.Context, customerID uint, signedAmount int64, txType domain.TransactionType, ref *Ref, description string) (*domain.WalletTransaction, error) {
	var entry *domain.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = applyEntry(tx, customerID, signedAmount, txType, ref, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// applyEntry is the single write path for the ledger. It must run inside a
// transaction: the wallet row lock it takes is what serializes concurrent
// mutations to the same wallet.
func applyEntry(tx *gorm.DB, customerID uint, signedAmount int64, txType domain.TransactionType, ref *Ref, description string) (*domain.WalletTransaction, error) {
	var w domain.Wallet
	err := db.LockForUpdate(tx).Where("customer_id = ?", customerID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w = domain.Wallet{CustomerID: customerID}
		if err := tx.Create(&w).Error; err != nil {
			// Lost a creation race: the unique index on customer_id makes
			// this loud rather than silently double-creating.
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	newBalance := w.Balance + signedAmount
	entry := domain.WalletTransaction{
		WalletID:     w.ID,
		Type:         txType,
		Amount:       signedAmount,
		BalanceAfter: newBalance,
		Description:  description,
	}
	if ref != nil {
		entry.ReferenceID = &ref.ID
		entry.ReferenceType = &ref.Type
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	updates := map[string]any{"balance": newBalance}
	switch {
	case newBalance < 0 && w.NegativeSince == nil:
		updates["negative_since"] = time.Now()
	case newBalance >= 0 && w.NegativeSince != nil:
		updates["negative_since"] = nil
	}
	if err := tx.Model(&domain.Wallet{}).Where("id = ?", w.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) logOutcome(op string, customerID uint, amount int64, txType domain.TransactionType, err error) {
	fields := logrus.Fields{
		"customer_id": customerID,
		"amount":      amount,
		"type":        txType,
	}
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Error("Wallet " + op + " failed")
		return
	}
	logrus.WithFields(fields).Info("Wallet " + op)
}

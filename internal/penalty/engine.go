// Package penalty implements the audited admin-side wallet mutations:
// bottle penalties, manual adjustments and deposit refunds. Every operation
// debits or credits through the wallet ledger first and records an audit
// entry after the commit, so a broken audit trail can never claw back money.
package penalty

import (
	"context"
	"fmt"
	"strconv"

	"dairy_billing/internal/audit"
	"dairy_billing/internal/domain"
	"dairy_billing/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Engine coordinates ledger writes with the audit recorder.
type Engine struct {
	db      *gorm.DB
	wallets *wallet.Service
	audit   *audit.Recorder
}

func NewEngine(gdb *gorm.DB, wallets *wallet.Service, recorder *audit.Recorder) *Engine {
	return &Engine{db: gdb, wallets: wallets, audit: recorder}
}

// Input is what the admin submits when charging for unreturned bottles.
// Prices arrive in rupees and are converted to paise before touching the
// ledger.
type Input struct {
	CustomerID uint
	LargeCount int
	SmallCount int
	PriceLarge decimal.Decimal
	PriceSmall decimal.Decimal
}

// Impose charges the customer for unreturned bottles. The debit is
// authoritative once committed; the audit entry is written afterwards and
// its failure only logs.
func (e *Engine) Impose(ctx context.Context, in Input, actorID uint, meta audit.Meta) (*domain.WalletTransaction, error) {
	if in.LargeCount < 0 || in.SmallCount < 0 {
		return nil, fmt.Errorf("%w: bottle counts must not be negative", domain.ErrInvalidInput)
	}
	if in.LargeCount == 0 && in.SmallCount == 0 {
		return nil, fmt.Errorf("%w: at least one bottle must be charged", domain.ErrInvalidInput)
	}
	if in.PriceLarge.IsNegative() || in.PriceSmall.IsNegative() {
		return nil, fmt.Errorf("%w: bottle prices must not be negative", domain.ErrInvalidInput)
	}

	total := in.PriceLarge.Mul(decimal.NewFromInt(int64(in.LargeCount))).
		Add(in.PriceSmall.Mul(decimal.NewFromInt(int64(in.SmallCount))))
	paise, err := domain.RupeesToPaise(total)
	if err != nil {
		return nil, err
	}
	if paise <= 0 {
		return nil, fmt.Errorf("%w: penalty amount must be positive", domain.ErrInvalidInput)
	}

	before, err := e.wallets.Balance(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Penalty for %d large and %d small unreturned bottles", in.LargeCount, in.SmallCount)
	entry, err := e.wallets.Debit(ctx, in.CustomerID, paise, domain.TxPenaltyCharge, nil, desc)
	if err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "penalty.impose",
		EntityType: "customer",
		EntityID:   strconv.FormatUint(uint64(in.CustomerID), 10),
		Old:        map[string]any{"balance": before},
		New: map[string]any{
			"balance":     entry.BalanceAfter,
			"amount":      paise,
			"large_count": in.LargeCount,
			"small_count": in.SmallCount,
			"large_price": in.PriceLarge.String(),
			"small_price": in.PriceSmall.String(),
		},
		Meta: meta,
	})

	logrus.WithFields(logrus.Fields{
		"customer_id": in.CustomerID,
		"actor_id":    actorID,
		"amount":      paise,
	}).Info("Penalty imposed")
	return entry, nil
}

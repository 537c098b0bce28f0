package penalty

import (
	"context"
	"fmt"
	"strconv"

	"dairy_billing/internal/audit"
	"dairy_billing/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Direction selects whether a manual adjustment adds or removes money.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Adjust applies a manual correction to a customer's wallet. Used for
// billing disputes, delivery complaints and data-entry fixes. The reason is
// mandatory and lands in both the ledger row and the audit trail.
func (e *Engine) Adjust(ctx context.Context, customerID uint, amountRupees decimal.Decimal, dir Direction, reason string, actorID uint, meta audit.Meta) (*domain.WalletTransaction, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: adjustment reason is required", domain.ErrInvalidInput)
	}
	paise, err := domain.RupeesToPaise(amountRupees)
	if err != nil {
		return nil, err
	}
	if paise <= 0 {
		return nil, fmt.Errorf("%w: adjustment amount must be positive", domain.ErrInvalidInput)
	}

	before, err := e.wallets.Balance(ctx, customerID)
	if err != nil {
		return nil, err
	}

	desc := "Manual adjustment: " + reason
	var entry *domain.WalletTransaction
	switch dir {
	case DirectionCredit:
		entry, err = e.wallets.Credit(ctx, customerID, paise, domain.TxAdjustmentCredit, nil, desc)
	case DirectionDebit:
		entry, err = e.wallets.Debit(ctx, customerID, paise, domain.TxAdjustmentDebit, nil, desc)
	default:
		return nil, fmt.Errorf("%w: unknown adjustment direction %q", domain.ErrInvalidInput, dir)
	}
	if err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "wallet.adjust",
		EntityType: "customer",
		EntityID:   strconv.FormatUint(uint64(customerID), 10),
		Old:        map[string]any{"balance": before},
		New: map[string]any{
			"balance":   entry.BalanceAfter,
			"amount":    paise,
			"direction": string(dir),
			"reason":    reason,
		},
		Meta: meta,
	})

	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"actor_id":    actorID,
		"amount":      paise,
		"direction":   dir,
	}).Info("Wallet adjusted")
	return entry, nil
}

// RefundDeposit returns collected bottle-deposit money to a leaving
// customer's wallet.
func (e *Engine) RefundDeposit(ctx context.Context, customerID uint, amountRupees decimal.Decimal, reason string, actorID uint, meta audit.Meta) (*domain.WalletTransaction, error) {
	paise, err := domain.RupeesToPaise(amountRupees)
	if err != nil {
		return nil, err
	}
	if paise <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidInput)
	}

	before, err := e.wallets.Balance(ctx, customerID)
	if err != nil {
		return nil, err
	}

	desc := "Deposit refund"
	if reason != "" {
		desc += ": " + reason
	}
	entry, err := e.wallets.Credit(ctx, customerID, paise, domain.TxRefund, nil, desc)
	if err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "deposit.refund",
		EntityType: "customer",
		EntityID:   strconv.FormatUint(uint64(customerID), 10),
		Old:        map[string]any{"balance": before},
		New: map[string]any{
			"balance": entry.BalanceAfter,
			"amount":  paise,
			"reason":  reason,
		},
		Meta: meta,
	})

	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"actor_id":    actorID,
		"amount":      paise,
	}).Info("Deposit refunded")
	return entry, nil
}

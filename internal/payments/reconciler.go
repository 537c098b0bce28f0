package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"dairy_billing/internal/db"
	"dairy_billing/internal/domain"
	"dairy_billing/internal/gateway"
	"dairy_billing/internal/wallet"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reconciler owns the payment-order state machine. Orders are created
// PENDING, and Verify reconciles them into the wallet ledger exactly once no
// matter how many times it is triggered: client polls, gateway webhooks and
// manual retries all funnel through the same locked path.
type Reconciler struct {
	db        *gorm.DB
	gw        gateway.Gateway
	wallets   *wallet.Service
	returnURL string
	notifyURL string
	nowFn     func() time.Time
}

// NewReconciler wires the state machine over the shared connection pool.
func NewReconciler(gdb *gorm.DB, gw gateway.Gateway, wallets *wallet.Service, returnURL, notifyURL string) *Reconciler {
	return &Reconciler{
		db:        gdb,
		gw:        gw,
		wallets:   wallets,
		returnURL: returnURL,
		notifyURL: notifyURL,
		nowFn:     time.Now,
	}
}

// CreateOrderResult is returned to the client so it can complete payment
// out-of-band with the session token.
type CreateOrderResult struct {
	Order        *domain.PaymentOrder
	SessionToken string
}

// CreateOrder opens a gateway session for a fresh, locally generated order id
// and persists the PENDING order. The id doubles as the webhook correlation
// key, so it carries a cryptographically random suffix.
func (r *Reconciler) CreateOrder(ctx context.Context, customerID uint, amount int64, purpose string) (*CreateOrderResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	var customer domain.Customer
	if err := r.db.WithContext(ctx).First(&customer, customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if purpose == "" {
		purpose = domain.PurposeWalletTopup
	}

	orderID := newOrderID(r.nowFn())
	token, err := r.gw.OpenSession(ctx, orderID, amount, gateway.CustomerInfo{
		Name:  customer.Name,
		Phone: customer.Phone,
	}, r.returnURL, r.notifyURL)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"customer_id": customerID,
			"order_id":    orderID,
			"error":       err.Error(),
		}).Error("Gateway session failed")
		return nil, err
	}

	order := domain.PaymentOrder{
		GatewayOrderID: orderID,
		CustomerID:     customerID,
		Amount:         amount,
		Purpose:        purpose,
		Status:         domain.OrderPending,
	}
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"order_id":    orderID,
		"amount":      amount,
	}).Info("Payment order created")
	return &CreateOrderResult{Order: &order, SessionToken: token}, nil
}

// VerifyResult is the structured outcome of a verification attempt.
// AlreadyVerified marks the idempotency fast path: the order was SUCCESS
// before this call and the ledger was not touched.
type VerifyResult struct {
	Success         bool
	AlreadyVerified bool
	AmountCredited  int64
	Status          domain.PaymentOrderStatus
}

// Verify reconciles one order against the gateway's authoritative status.
// The order row is locked for the whole transaction, through the wallet
// credit, so two concurrent calls for the same order serialize and only the
// first can credit. A transient gateway failure rolls everything back and
// leaves the order PENDING for a later retry.
func (r *Reconciler) Verify(ctx context.Context, orderID string) (*VerifyResult, error) {
	var (
		res        VerifyResult
		creditedTo uint
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order domain.PaymentOrder
		if err := db.LockForUpdate(tx).Where("gateway_order_id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		// Idempotency fast path: duplicate webhooks and double-clicked
		// verifies land here and must not reach the gateway again.
		if order.Status == domain.OrderSuccess {
			res = VerifyResult{
				Success:         true,
				AlreadyVerified: true,
				AmountCredited:  order.Amount,
				Status:          domain.OrderSuccess,
			}
			return nil
		}

		st, err := r.gw.FetchPaymentStatus(ctx, orderID)
		if err != nil {
			return err
		}

		switch st.State {
		case gateway.StateSuccess:
			now := r.nowFn()
			updates := map[string]any{
				"status":       domain.OrderSuccess,
				"completed_at": now,
			}
			if st.GatewayPaymentID != "" {
				updates["gateway_payment_id"] = st.GatewayPaymentID
			}
			if st.PaymentMethod != "" {
				updates["payment_method"] = st.PaymentMethod
			}
			if len(st.Raw) > 0 {
				updates["metadata"] = []byte(st.Raw)
			}
			if err := tx.Model(&domain.PaymentOrder{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
				return err
			}
			ref := &wallet.Ref{ID: order.GatewayOrderID, Type: domain.RefPaymentOrder}
			if _, err := r.wallets.CreditTx(tx, order.CustomerID, order.Amount, domain.TxTopup, ref, "Wallet top-up via payment gateway"); err != nil {
				return err
			}
			creditedTo = order.CustomerID
			res = VerifyResult{Success: true, AmountCredited: order.Amount, Status: domain.OrderSuccess}
			return nil

		case gateway.StateFailed:
			if order.Status != domain.OrderFailed {
				if err := tx.Model(&domain.PaymentOrder{}).Where("id = ?", order.ID).
					Update("status", domain.OrderFailed).Error; err != nil {
					return err
				}
			}
			res = VerifyResult{Status: domain.OrderFailed}
			return nil

		default:
			// No definitive outcome yet: leave the order PENDING so a later
			// verify can settle it.
			res = VerifyResult{Status: order.Status}
			return nil
		}
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		}).Error("Payment verification failed")
		return nil, err
	}
	if creditedTo != 0 {
		r.wallets.InvalidateCache(ctx, creditedTo)
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"amount":   res.AmountCredited,
		}).Info("Payment order settled")
	}
	return &res, nil
}

// Event is the parsed webhook payload.
type Event struct {
	Type  string `json:"type"`
	Order struct {
		OrderID string `json:"order_id"`
	} `json:"order"`
}

// Webhook event types.
const (
	EventPaymentSuccess = "PAYMENT_SUCCESS"
	EventPaymentFailed  = "PAYMENT_FAILED"
)

// HandleNotification processes an authenticated webhook event. Success events
// reuse Verify so duplicates hit the idempotency fast path instead of a
// second credit path. Failure events are a single conditional update that
// never overwrites SUCCESS and touches zero rows on repeats.
func (r *Reconciler) HandleNotification(ctx context.Context, evt Event) error {
	switch evt.Type {
	case EventPaymentSuccess:
		res, err := r.Verify(ctx, evt.Order.OrderID)
		if err != nil {
			return err
		}
		if !res.Success {
			// The gateway notified success but does not confirm it when
			// polled. Refusing the event keeps it queued for redelivery
			// instead of acking a credit that never happened.
			return fmt.Errorf("order %s unconfirmed after success event: %w", evt.Order.OrderID, domain.ErrTransient)
		}
		return nil

	case EventPaymentFailed:
		tx := r.db.WithContext(ctx).Model(&domain.PaymentOrder{}).
			Where("gateway_order_id = ? AND status = ?", evt.Order.OrderID, domain.OrderPending).
			Update("status", domain.OrderFailed)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			logrus.WithField("order_id", evt.Order.OrderID).Debug("Failure event ignored, order not pending")
		}
		return nil

	default:
		logrus.WithField("type", evt.Type).Warn("Unknown webhook event type")
		return nil
	}
}

// newOrderID builds the local order id: millisecond timestamp plus eight
// random bytes, hex encoded. The suffix keeps webhook correlation keys
// unguessable.
func newOrderID(now time.Time) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process has no entropy source;
		// refusing to mint guessable ids is the only safe reaction.
		panic(fmt.Sprintf("payments: entropy unavailable: %v", err))
	}
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}

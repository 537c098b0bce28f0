package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dairy_billing/internal/domain"
)

// State is the gateway's authoritative answer for an order.
type State string

const (
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
	StatePending State = "PENDING"
)

// PaymentStatus carries the gateway's view of one order. Raw holds the full
// response body so the reconciler can persist it on the order without
// trusting unparsed fields.
type PaymentStatus struct {
	State            State
	GatewayPaymentID string
	PaymentMethod    string
	Raw              json.RawMessage
}

// CustomerInfo is the payer identity forwarded when opening a session.
type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Gateway is the adapter surface the payment reconciler consumes. The tests
// substitute a stub; Client is the HTTP implementation.
type Gateway interface {
	OpenSession(ctx context.Context, orderID string, amount int64, customer CustomerInfo, returnURL, notifyURL string) (string, error)
	FetchPaymentStatus(ctx context.Context, orderID string) (*PaymentStatus, error)
}

// Client talks to the payment provider over HTTP. It is stateless apart from
// configuration; every call carries the client-level timeout so a hung
// gateway can never hold a database transaction open indefinitely.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	httpc     *http.Client
}

// NewClient builds a gateway client. The timeout applies per call.
func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		httpc:     &http.Client{Timeout: timeout},
	}
}

type openSessionRequest struct {
	OrderID   string       `json:"order_id"`
	Amount    int64        `json:"amount"`
	Currency  string       `json:"currency"`
	Customer  CustomerInfo `json:"customer"`
	ReturnURL string       `json:"return_url"`
	NotifyURL string       `json:"notify_url"`
}

type openSessionResponse struct {
	SessionToken string `json:"session_token"`
	Message      string `json:"message"`
}

// OpenSession registers the locally generated order with the gateway and
// returns the session token the client app completes payment with.
func (c *Client) OpenSession(ctx context.Context, orderID string, amount int64, customer CustomerInfo, returnURL, notifyURL string) (string, error) {
	body, err := json.Marshal(openSessionRequest{
		OrderID:   orderID,
		Amount:    amount,
		Currency:  "INR",
		Customer:  customer,
		ReturnURL: returnURL,
		NotifyURL: notifyURL,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: open session: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: open session read: %v", domain.ErrTransient, err)
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: open session status %d", domain.ErrTransient, resp.StatusCode)
	}
	var out openSessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: open session decode: %v", domain.ErrTransient, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("gateway rejected session for %s: %s", orderID, out.Message)
	}
	return out.SessionToken, nil
}

type orderStatusResponse struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Method    string `json:"method"`
}

// FetchPaymentStatus polls the gateway for the order outcome. Network
// failures, 5xx answers and undecodable bodies all map to ErrTransient: the
// caller keeps the order PENDING and retries later.
func (c *Client) FetchPaymentStatus(ctx context.Context, orderID string) (*PaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch status: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch status read: %v", domain.ErrTransient, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: fetch status %d", domain.ErrTransient, resp.StatusCode)
	}
	var out orderStatusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: fetch status decode: %v", domain.ErrTransient, err)
	}

	st := &PaymentStatus{
		GatewayPaymentID: out.PaymentID,
		PaymentMethod:    out.Method,
		Raw:              raw,
	}
	switch out.Status {
	case "SUCCESS", "PAID":
		st.State = StateSuccess
	case "FAILED", "CANCELLED", "EXPIRED":
		st.State = StateFailed
	default:
		// Anything else is not a definitive outcome.
		st.State = StatePending
	}
	return st, nil
}

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dairy_billing/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPaymentStatusMapsStates(t *testing.T) {
	cases := []struct {
		gatewayStatus string
		want          State
	}{
		{"SUCCESS", StateSuccess},
		{"PAID", StateSuccess},
		{"FAILED", StateFailed},
		{"CANCELLED", StateFailed},
		{"EXPIRED", StateFailed},
		{"CREATED", StatePending},
		{"AUTHORIZED", StatePending},
	}
	for _, tc := range cases {
		t.Run(tc.gatewayStatus, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/orders/order_1", r.URL.Path)
				user, pass, ok := r.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, "key", user)
				assert.Equal(t, "secret", pass)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"order_id":   "order_1",
					"status":     tc.gatewayStatus,
					"payment_id": "pay_9",
					"method":     "upi",
				})
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "key", "secret", time.Second)
			st, err := c.FetchPaymentStatus(context.Background(), "order_1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, st.State)
			assert.Equal(t, "pay_9", st.GatewayPaymentID)
			assert.Equal(t, "upi", st.PaymentMethod)
			assert.NotEmpty(t, st.Raw, "raw body must be kept for the order record")
		})
	}
}

func TestFetchPaymentStatusErrors(t *testing.T) {
	t.Run("unknown order", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such order", http.StatusNotFound)
		}))
		defer srv.Close()
		c := NewClient(srv.URL, "key", "secret", time.Second)
		_, err := c.FetchPaymentStatus(context.Background(), "order_x")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("gateway 5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()
		c := NewClient(srv.URL, "key", "secret", time.Second)
		_, err := c.FetchPaymentStatus(context.Background(), "order_x")
		require.ErrorIs(t, err, domain.ErrTransient)
	})

	t.Run("network failure is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		c := NewClient(srv.URL, "key", "secret", time.Second)
		_, err := c.FetchPaymentStatus(context.Background(), "order_x")
		require.ErrorIs(t, err, domain.ErrTransient)
	})

	t.Run("undecodable body is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer srv.Close()
		c := NewClient(srv.URL, "key", "secret", time.Second)
		_, err := c.FetchPaymentStatus(context.Background(), "order_x")
		require.ErrorIs(t, err, domain.ErrTransient)
	})
}

func TestOpenSessionReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sessions", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "INR", req["currency"])
		assert.EqualValues(t, 20000, req["amount"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"session_token": "sess_abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", time.Second)
	token, err := c.OpenSession(context.Background(), "order_1", 20000,
		CustomerInfo{Name: "Asha", Phone: "9876543210"}, "http://return", "http://notify")
	require.NoError(t, err)
	assert.Equal(t, "sess_abc", token)
}

func TestOpenSessionRejectionIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "amount too small"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", time.Second)
	_, err := c.OpenSession(context.Background(), "order_1", 1,
		CustomerInfo{}, "", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransient, "a definitive rejection must not be retried")
}

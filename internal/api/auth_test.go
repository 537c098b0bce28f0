package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dairy_billing/internal/domain"
	"dairy_billing/internal/testutil"
	"dairy_billing/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

func newAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := testutil.OpenDB(t)
	r := gin.New()
	r.POST("/auth/register", RegisterHandler(gdb))
	r.POST("/auth/login", LoginHandler(gdb, testJWTSecret))
	return r, gdb
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterCreatesPendingCustomer(t *testing.T) {
	r, gdb := newAuthRouter(t)

	w := postJSON(t, r, "/auth/register", gin.H{
		"name": "Asha", "phone": "9876543210", "password": "secret-pw",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var customer domain.Customer
	require.NoError(t, gdb.Where("phone = ?", "9876543210").First(&customer).Error)
	assert.Equal(t, domain.CustomerPendingApproval, customer.Status)
	assert.Equal(t, domain.RoleCustomer, customer.Role)
	assert.NotEqual(t, "secret-pw", customer.Password, "password is stored hashed")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte("secret-pw")))
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newAuthRouter(t)

	cases := map[string]gin.H{
		"short phone":    {"name": "A", "phone": "98765", "password": "secret-pw"},
		"letters":        {"name": "A", "phone": "98765abcde", "password": "secret-pw"},
		"short password": {"name": "A", "phone": "9876543210", "password": "short"},
		"missing name":   {"phone": "9876543210", "password": "secret-pw"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := postJSON(t, r, "/auth/register", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegisterDuplicatePhone(t *testing.T) {
	r, _ := newAuthRouter(t)
	body := gin.H{"name": "Asha", "phone": "9876543210", "password": "secret-pw"}

	require.Equal(t, http.StatusCreated, postJSON(t, r, "/auth/register", body).Code)
	assert.Equal(t, http.StatusConflict, postJSON(t, r, "/auth/register", body).Code)
}

func TestLoginIssuesToken(t *testing.T) {
	r, gdb := newAuthRouter(t)
	require.Equal(t, http.StatusCreated, postJSON(t, r, "/auth/register", gin.H{
		"name": "Asha", "phone": "9876543210", "password": "secret-pw",
	}).Code)

	w := postJSON(t, r, "/auth/login", gin.H{"phone": "9876543210", "password": "secret-pw"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := utils.ParseJWT(resp.Token, testJWTSecret)
	require.NoError(t, err)

	var customer domain.Customer
	require.NoError(t, gdb.Where("phone = ?", "9876543210").First(&customer).Error)
	assert.Equal(t, customer.ID, claims.CustomerID)
	assert.Equal(t, domain.RoleCustomer, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, _ := newAuthRouter(t)
	require.Equal(t, http.StatusCreated, postJSON(t, r, "/auth/register", gin.H{
		"name": "Asha", "phone": "9876543210", "password": "secret-pw",
	}).Code)

	w := postJSON(t, r, "/auth/login", gin.H{"phone": "9876543210", "password": "wrong-pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(t, r, "/auth/login", gin.H{"phone": "9999999999", "password": "secret-pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSuspendedCustomerCanStillLogin(t *testing.T) {
	r, gdb := newAuthRouter(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&domain.Customer{
		Name:     "Suspended",
		Phone:    "9876500000",
		Password: string(hash),
		Role:     domain.RoleCustomer,
		Status:   domain.CustomerInactive,
	}).Error)

	// A suspended customer needs the session to top up and recover.
	w := postJSON(t, r, "/auth/login", gin.H{"phone": "9876500000", "password": "secret-pw"})
	assert.Equal(t, http.StatusOK, w.Code)
}

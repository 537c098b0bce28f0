package api

import (
	"net/http"
	"regexp"

	"dairy_billing/internal/domain"
	"dairy_billing/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the JWT issued on login.
type AuthResponse struct {
	Token string `json:"token"`
}

var phoneRe = regexp.MustCompile(`^[0-9]{10}$`)

// isValidPassword bounds the password length; the upper bound is bcrypt's
// 72-byte input limit.
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// RegisterHandler creates a customer account in PENDING_APPROVAL state.
// An admin must approve the account and assign a route before deliveries
// and billing start.
func RegisterHandler(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !phoneRe.MatchString(req.Phone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Phone must be a 10-digit number"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-72 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		customer := domain.Customer{
			Name:     req.Name,
			Phone:    req.Phone,
			Password: string(hash),
			Role:     domain.RoleCustomer,
			Status:   domain.CustomerPendingApproval,
		}
		if err := gdb.Create(&customer).Error; err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Phone number already registered"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"customer_id": customer.ID,
			"phone":       customer.Phone,
		}).Info("Customer registered")
		c.JSON(http.StatusCreated, gin.H{"message": "Registration received, awaiting approval"})
	}
}

// LoginHandler authenticates by phone and password and returns a JWT.
// Suspended customers may still log in so they can top up their wallet.
func LoginHandler(gdb *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var customer domain.Customer
		if err := gdb.Where("phone = ?", req.Phone).First(&customer).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := utils.GenerateJWT(customer.ID, customer.Role, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}

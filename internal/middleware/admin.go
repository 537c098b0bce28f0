package middleware

import (
	"net/http"

	"dairy_billing/internal/domain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminOnlyMiddleware re-checks the caller's role against the database on
// every request, so a demoted admin loses access immediately rather than
// when the token expires.
func AdminOnlyMiddleware(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, exists := c.Get("customerID")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var customer domain.Customer
		if err := gdb.First(&customer, customerID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		if customer.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

package api

import (
	"net/http"
	"strconv"

	"dairy_billing/internal/delivery"
	"dairy_billing/internal/domain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetMonthlyPaymentsHandler returns the authenticated customer's monthly
// billing records, newest period first.
func GetMonthlyPaymentsHandler(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, ok := currentCustomerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var records []domain.MonthlyPayment
		if err := gdb.Where("customer_id = ?", customerID).
			Order("year DESC, month DESC").
			Limit(24).
			Find(&records).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch billing records"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	}
}

// GetDeliveriesHandler returns the authenticated customer's recent
// deliveries.
func GetDeliveriesHandler(svc *delivery.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, ok := currentCustomerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		limit := 0
		if l := c.Query("limit"); l != "" {
			if v, err := strconv.Atoi(l); err == nil {
				limit = v
			}
		}
		deliveries, err := svc.ListForCustomer(c.Request.Context(), customerID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch deliveries"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
	}
}

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"dairy_billing/internal/domain"
	"dairy_billing/internal/payments"
	"dairy_billing/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GetWalletHandler returns the authenticated customer's wallet. A customer
// who has never moved money reads as a zero balance rather than a 404.
func GetWalletHandler(gdb *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, ok := currentCustomerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()
		cacheKey := "wallet:customer:" + strconv.Itoa(int(customerID))
		var w domain.Wallet
		found, err := utils.GetCache(ctx, rdb, cacheKey, &w)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": true})
			return
		}
		if err := gdb.Where("customer_id = ?", customerID).First(&w).Error; err != nil {
			w = domain.Wallet{CustomerID: customerID, Balance: 0}
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, w, 60*time.Second)
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": false})
	}
}

// GetTransactionHistoryHandler returns the customer's ledger entries,
// newest first, paginated and cached.
func GetTransactionHistoryHandler(gdb *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, ok := currentCustomerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := 1
		pageSize := 20
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v
			}
		}
		offset := (page - 1) * pageSize

		ctx := context.Background()
		cacheKey := "txhistory:customer:" + strconv.Itoa(int(customerID)) +
			":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		var cached struct {
			Transactions []domain.WalletTransaction `json:"transactions"`
			Page         int                        `json:"page"`
			PageSize     int                        `json:"page_size"`
			Total        int64                      `json:"total"`
			TotalPages   int                        `json:"total_pages"`
		}
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions,
				"page":         cached.Page,
				"page_size":    cached.PageSize,
				"total":        cached.Total,
				"total_pages":  cached.TotalPages,
				"cached":       true,
			})
			return
		}

		var w domain.Wallet
		if err := gdb.Where("customer_id = ?", customerID).First(&w).Error; err != nil {
			// No wallet yet means no history.
			c.JSON(http.StatusOK, gin.H{
				"transactions": []domain.WalletTransaction{},
				"page":         page,
				"page_size":    pageSize,
				"total":        0,
				"total_pages":  0,
				"cached":       false,
			})
			return
		}
		var total int64
		if err := gdb.Model(&domain.WalletTransaction{}).
			Where("wallet_id = ?", w.ID).
			Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var transactions []domain.WalletTransaction
		if err := gdb.Where("wallet_id = ?", w.ID).
			Order("created_at DESC, id DESC").
			Offset(offset).
			Limit(pageSize).
			Find(&transactions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := gin.H{
			"transactions": transactions,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages,
			"cached":       false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp)
	}
}

// TopupRequest starts a wallet top-up. Amount is in rupees; it is converted
// to paise before anything touches the gateway or the ledger.
type TopupRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// TopupHandler opens a payment session for the authenticated customer and
// returns the PENDING order plus the session token the client hands to the
// gateway checkout.
func TopupHandler(rec *payments.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, ok := currentCustomerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req TopupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		paise, err := domain.RupeesToPaise(req.Amount)
		if err != nil || paise <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be a positive rupee value"})
			return
		}
		result, err := rec.CreateOrder(c.Request.Context(), customerID, paise, domain.PurposeWalletTopup)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"customer_id": customerID,
				"amount":      paise,
				"error":       err.Error(),
			}).Error("Top-up order creation failed")
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"order":         result.Order,
			"session_token": result.SessionToken,
		})
	}
}

// VerifyTopupRequest identifies the order to reconcile.
type VerifyTopupRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// VerifyTopupHandler reconciles an order against the gateway and reports
// the settled state. Safe to call any number of times.
func VerifyTopupHandler(rec *payments.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentCustomerID(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req VerifyTopupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := rec.Verify(c.Request.Context(), req.OrderID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":           res.Status,
			"success":          res.Success,
			"already_verified": res.AlreadyVerified,
			"amount_credited":  res.AmountCredited,
		})
	}
}

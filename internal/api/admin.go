package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dairy_billing/internal/audit"
	"dairy_billing/internal/billing"
	"dairy_billing/internal/delivery"
	"dairy_billing/internal/domain"
	"dairy_billing/internal/penalty"
	"dairy_billing/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// requestMeta captures the request context for the audit trail.
func requestMeta(c *gin.Context) audit.Meta {
	return audit.Meta{
		RequestID: c.GetHeader("X-Request-ID"),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// actorID returns the authenticated admin's customer id.
func actorID(c *gin.Context) uint {
	id, _ := currentCustomerID(c)
	return id
}

// CustomerAdminResponse is the customer view returned to admins. The
// password hash never leaves the database layer.
type CustomerAdminResponse struct {
	ID           uint                  `json:"id"`
	Name         string                `json:"name"`
	Phone        string                `json:"phone"`
	Role         string                `json:"role"`
	Status       domain.CustomerStatus `json:"status"`
	RouteID      *uint                 `json:"route_id"`
	Wallet       *domain.Wallet        `json:"wallet"`
	Subscription *domain.Subscription  `json:"subscription"`
}

// ListCustomersHandler returns all customers with wallet and subscription
// info, paginated and cached.
func ListCustomersHandler(gdb *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		cacheKey := "admin:customers:page=" + c.DefaultQuery("page", "1") + ":size=" + c.DefaultQuery("page_size", "20")
		var cached struct {
			Customers  []CustomerAdminResponse `json:"customers"`
			Page       int                     `json:"page"`
			PageSize   int                     `json:"page_size"`
			Total      int64                   `json:"total"`
			TotalPages int                     `json:"total_pages"`
		}
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"customers":   cached.Customers,
				"page":        cached.Page,
				"page_size":   cached.PageSize,
				"total":       cached.Total,
				"total_pages": cached.TotalPages,
				"cached":      true,
			})
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
		var total int64
		if err := gdb.Model(&domain.Customer{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count customers"})
			return
		}
		var customers []domain.Customer
		if err := gdb.Preload("Wallet").Preload("Subscription").
			Offset(offset).Limit(pageSize).Find(&customers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch customers"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := make([]CustomerAdminResponse, len(customers))
		for i, cu := range customers {
			resp[i] = CustomerAdminResponse{
				ID:           cu.ID,
				Name:         cu.Name,
				Phone:        cu.Phone,
				Role:         cu.Role,
				Status:       cu.Status,
				RouteID:      cu.RouteID,
				Wallet:       cu.Wallet,
				Subscription: cu.Subscription,
			}
		}
		respData := gin.H{
			"customers":   resp,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages,
			"cached":      false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, 60*time.Second)
		c.JSON(http.StatusOK, respData)
	}
}

// ApproveCustomerRequest optionally (re)assigns the delivery route. A route
// is mandatory for the first activation.
type ApproveCustomerRequest struct {
	RouteID *uint `json:"route_id"`
}

// ApproveCustomerHandler activates a customer: PENDING_APPROVAL after
// registration, or INACTIVE after a balance suspension once they have
// topped up.
func ApproveCustomerHandler(gdb *gorm.DB, recorder *audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer id"})
			return
		}
		var req ApproveCustomerRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var customer domain.Customer
		if err := gdb.First(&customer, uint(id)).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}

		routeID := customer.RouteID
		if req.RouteID != nil {
			var route domain.Route
			if err := gdb.First(&route, *req.RouteID).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
				return
			}
			routeID = req.RouteID
		}
		if routeID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Route assignment required for activation"})
			return
		}
		sameRoute := customer.RouteID != nil && *customer.RouteID == *routeID
		if customer.Status == domain.CustomerActive && sameRoute {
			c.JSON(http.StatusOK, gin.H{"message": "Customer already active"})
			return
		}

		oldStatus, oldRoute := customer.Status, customer.RouteID
		updates := map[string]any{"status": domain.CustomerActive, "route_id": *routeID}
		if err := gdb.Model(&domain.Customer{}).Where("id = ?", customer.ID).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate customer"})
			return
		}
		recorder.Record(c.Request.Context(), audit.Entry{
			ActorID:    actorID(c),
			Action:     "customer.approve",
			EntityType: "customer",
			EntityID:   strconv.FormatUint(id, 10),
			Old:        map[string]any{"status": oldStatus, "route_id": oldRoute},
			New:        map[string]any{"status": domain.CustomerActive, "route_id": *routeID},
			Meta:       requestMeta(c),
		})
		c.JSON(http.StatusOK, gin.H{"message": "Customer activated"})
	}
}

// SetSubscriptionRequest creates or updates a customer's daily plan.
// DailyPrice is rupees per unit.
type SetSubscriptionRequest struct {
	DailyQuantity int             `json:"daily_quantity" binding:"required,gt=0"`
	DailyPrice    decimal.Decimal `json:"daily_price" binding:"required"`
	Status        string          `json:"status"`
}

// SetSubscriptionHandler upserts the customer's subscription.
func SetSubscriptionHandler(gdb *gorm.DB, recorder *audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer id"})
			return
		}
		var req SetSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		pricePaise, err := domain.RupeesToPaise(req.DailyPrice)
		if err != nil || pricePaise <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Daily price must be a positive rupee value"})
			return
		}
		status := domain.SubscriptionStatus(req.Status)
		if status == "" {
			status = domain.SubscriptionActive
		}
		if status != domain.SubscriptionActive && status != domain.SubscriptionPaused {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be ACTIVE or PAUSED"})
			return
		}
		var customer domain.Customer
		if err := gdb.First(&customer, uint(id)).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}

		var sub domain.Subscription
		var old map[string]any
		err = gdb.Where("customer_id = ?", uint(id)).First(&sub).Error
		switch {
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
			return
		case err == nil:
			old = map[string]any{
				"daily_quantity": sub.DailyQuantity,
				"daily_price":    sub.DailyPrice,
				"status":         sub.Status,
			}
			updates := map[string]any{
				"daily_quantity": req.DailyQuantity,
				"daily_price":    pricePaise,
				"status":         status,
			}
			if err := gdb.Model(&domain.Subscription{}).Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
				return
			}
			sub.DailyQuantity = req.DailyQuantity
			sub.DailyPrice = pricePaise
			sub.Status = status
		default:
			sub = domain.Subscription{
				CustomerID:    uint(id),
				DailyQuantity: req.DailyQuantity,
				DailyPrice:    pricePaise,
				Status:        status,
			}
			if err := gdb.Create(&sub).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
				return
			}
		}
		recorder.Record(c.Request.Context(), audit.Entry{
			ActorID:    actorID(c),
			Action:     "subscription.set",
			EntityType: "customer",
			EntityID:   strconv.FormatUint(id, 10),
			Old:        old,
			New: map[string]any{
				"daily_quantity": sub.DailyQuantity,
				"daily_price":    sub.DailyPrice,
				"status":         sub.Status,
			},
			Meta: requestMeta(c),
		})
		c.JSON(http.StatusOK, gin.H{"subscription": sub})
	}
}

// PenaltyRequest charges for unreturned bottles. Prices are rupees per
// bottle.
type PenaltyRequest struct {
	CustomerID uint            `json:"customer_id" binding:"required"`
	LargeCount int             `json:"large_count"`
	SmallCount int             `json:"small_count"`
	PriceLarge decimal.Decimal `json:"price_large"`
	PriceSmall decimal.Decimal `json:"price_small"`
}

func PenaltyHandler(engine *penalty.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PenaltyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		entry, err := engine.Impose(c.Request.Context(), penalty.Input{
			CustomerID: req.CustomerID,
			LargeCount: req.LargeCount,
			SmallCount: req.SmallCount,
			PriceLarge: req.PriceLarge,
			PriceSmall: req.PriceSmall,
		}, actorID(c), requestMeta(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"transaction": entry})
	}
}

// AdjustmentRequest is a manual wallet correction in rupees.
type AdjustmentRequest struct {
	CustomerID uint            `json:"customer_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Direction  string          `json:"direction" binding:"required"`
	Reason     string          `json:"reason" binding:"required"`
}

func AdjustmentHandler(engine *penalty.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		entry, err := engine.Adjust(c.Request.Context(), req.CustomerID, req.Amount,
			penalty.Direction(strings.ToUpper(req.Direction)), req.Reason, actorID(c), requestMeta(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"transaction": entry})
	}
}

// RefundRequest returns deposit money to a customer's wallet, in rupees.
type RefundRequest struct {
	CustomerID uint            `json:"customer_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Reason     string          `json:"reason"`
}

func RefundHandler(engine *penalty.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		entry, err := engine.RefundDeposit(c.Request.Context(), req.CustomerID, req.Amount,
			req.Reason, actorID(c), requestMeta(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"transaction": entry})
	}
}

// RecordDeliveryRequest books a delivery. Date is YYYY-MM-DD in the
// business timezone; empty means today.
type RecordDeliveryRequest struct {
	CustomerID uint   `json:"customer_id" binding:"required"`
	Date       string `json:"date"`
}

func RecordDeliveryHandler(svc *delivery.Service, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecordDeliveryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var on time.Time
		if req.Date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", req.Date, loc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Date must be YYYY-MM-DD"})
				return
			}
			on = parsed
		}
		d, err := svc.Record(c.Request.Context(), req.CustomerID, on)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"delivery": d})
	}
}

// RunBillingHandler triggers a full billing pass immediately. The pass is
// idempotent, so running it alongside the scheduler is safe.
func RunBillingHandler(cycle *billing.Cycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cycle.RunDaily(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Billing run completed"})
	}
}

// ListTransactionsHandler returns ledger entries across all wallets, with
// optional filtering by customer, type, or date range.
func ListTransactionsHandler(gdb *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		var keyParts []string
		for _, k := range []string{"customer_id", "type", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, ""))
		}
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
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
		query := gdb.Model(&domain.WalletTransaction{})
		if customerID := c.Query("customer_id"); customerID != "" {
			query = query.Where("wallet_id IN (?)",
				gdb.Model(&domain.Wallet{}).Select("id").Where("customer_id = ?", customerID))
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType)
		}
		if from := c.Query("from"); from != "" {
			query = query.Where("created_at >= ?", from)
		}
		if to := c.Query("to"); to != "" {
			query = query.Where("created_at <= ?", to)
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var txs []domain.WalletTransaction
		if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize
		respData := gin.H{
			"transactions": txs,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages,
			"cached":       false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, 60*time.Second)
		c.JSON(http.StatusOK, respData)
	}
}

// ListMonthlyPaymentsHandler returns monthly billing records, filterable by
// period and status.
func ListMonthlyPaymentsHandler(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := gdb.Model(&domain.MonthlyPayment{})
		if year := c.Query("year"); year != "" {
			query = query.Where("year = ?", year)
		}
		if month := c.Query("month"); month != "" {
			query = query.Where("month = ?", month)
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		page := 1
		pageSize := 50
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 200 {
				pageSize = v
			}
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count records"})
			return
		}
		var records []domain.MonthlyPayment
		if err := query.Order("year DESC, month DESC, customer_id ASC").
			Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch records"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"records":   records,
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		})
	}
}

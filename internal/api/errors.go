package api

import (
	"errors"
	"net/http"

	"dairy_billing/internal/domain"

	"github.com/gin-gonic/gin"
)

// httpStatus maps the domain error taxonomy onto HTTP status codes.
// Anything unrecognized is an internal error.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error as the standard {"error": ...} payload.
// Internal errors are masked so database details never leak to clients.
func respondError(c *gin.Context, err error) {
	status := httpStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// currentCustomerID pulls the authenticated customer id set by the JWT
// middleware.
func currentCustomerID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("customerID")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// internal/interfaces/http/handlers/response.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
	"github.com/your-org/bookstore-backend/internal/domain/delivery"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/reports"
	"github.com/your-org/bookstore-backend/internal/domain/user"
	"github.com/your-org/bookstore-backend/internal/domain/wishlist"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/pkg/storage"
	"gorm.io/gorm"
)

var (
	notFoundErrors = []error{
		user.ErrUserNotFound,
		catalog.ErrBookNotFound,
		catalog.ErrCategoryNotFound,
		catalog.ErrReviewNotFound,
		cart.ErrItemNotFound,
		coupon.ErrCouponNotFound,
		order.ErrOrderNotFound,
		order.ErrPaymentNotFound,
		delivery.ErrDeliveryNotFound,
		delivery.ErrFileMissing,
		wishlist.ErrItemNotFound,
		storage.ErrObjectNotFound,
	}

	conflictErrors = []error{
		user.ErrEmailTaken,
		user.ErrUsernameTaken,
		catalog.ErrDuplicateReview,
		catalog.ErrCategoryExists,
		catalog.ErrISBNExists,
		catalog.ErrBookPurchased,
		coupon.ErrCouponExists,
		gorm.ErrDuplicatedKey,
		gorm.ErrForeignKeyViolated,
	}

	badRequestErrors = []error{
		auth.ErrWeakPassword,
		user.ErrPasswordMismatch,
		user.ErrWrongPassword,
		user.ErrInvalidRole,
		user.ErrSelfModification,
		catalog.ErrInvalidFormat,
		cart.ErrCartEmpty,
		cart.ErrInvalidAction,
		cart.ErrSessionIDRequired,
		coupon.ErrCouponInvalid,
		coupon.ErrInvalidDiscount,
		coupon.ErrInvalidWindow,
		coupon.ErrInvalidPercentage,
		order.ErrInvalidStatus,
		order.ErrInvalidTransition,
		order.ErrNotCancellable,
		order.ErrInvoiceUnavailable,
		order.ErrBookUnavailable,
		order.ErrInvalidPaymentMethod,
		payment.ErrInvalidSignature,
		payment.ErrInvalidPayload,
		reports.ErrInvalidDateRange,
	}
)

// statusFor maps a domain error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, delivery.ErrNotOwner), errors.Is(err, delivery.ErrDownloadUnavailable):
		return http.StatusForbidden
	case errors.Is(err, payment.ErrGatewayFailure):
		return http.StatusBadGateway
	}
	if isAny(err, notFoundErrors) {
		return http.StatusNotFound
	}
	if isAny(err, conflictErrors) {
		return http.StatusConflict
	}
	if isAny(err, badRequestErrors) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondWithError writes the error envelope. Unmapped errors are logged and
// reported with fallback so internals do not leak.
func respondWithError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).WithError(err).Error(fallback)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondWithBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

// requireUser returns the authenticated user ID or writes 401
func requireUser(c *gin.Context) (uint, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return 0, false
	}
	return userID, true
}

// optionalUser returns the user ID when the request carries a valid token
func optionalUser(c *gin.Context) *uint {
	if userID, exists := middleware.GetUserIDFromContext(c); exists {
		return &userID
	}
	return nil
}

// uintParam parses a positive numeric path parameter or writes 400
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return uint(id), true
}

// queryInt reads an integer query parameter with a default
func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}

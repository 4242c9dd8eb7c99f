// internal/interfaces/http/handlers/coupon.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
)

// CouponHandler handles back-office coupon management
type CouponHandler struct {
	couponService *coupon.Service
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(couponService *coupon.Service) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
	}
}

// AdminGetCoupons handles GET /admin/coupons
func (h *CouponHandler) AdminGetCoupons(c *gin.Context) {
	var req coupon.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	response, err := h.couponService.List(&req)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve coupons")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupons retrieved successfully",
		"data":    response,
	})
}

// AdminGetCoupon handles GET /admin/coupons/:id
func (h *CouponHandler) AdminGetCoupon(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	cp, err := h.couponService.Get(id)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve coupon")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon retrieved successfully",
		"data":    cp,
	})
}

// AdminCreateCoupon handles POST /admin/coupons
func (h *CouponHandler) AdminCreateCoupon(c *gin.Context) {
	var req coupon.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	cp, err := h.couponService.Create(&req)
	if err != nil {
		respondWithError(c, err, "Failed to create coupon")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Coupon created successfully",
		"data":    cp,
	})
}

// AdminUpdateCoupon handles PUT /admin/coupons/:id
func (h *CouponHandler) AdminUpdateCoupon(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req coupon.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	cp, err := h.couponService.Update(id, &req)
	if err != nil {
		respondWithError(c, err, "Failed to update coupon")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon updated successfully",
		"data":    cp,
	})
}

// AdminDeleteCoupon handles DELETE /admin/coupons/:id
func (h *CouponHandler) AdminDeleteCoupon(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.couponService.Delete(id); err != nil {
		respondWithError(c, err, "Failed to delete coupon")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon deleted successfully",
	})
}

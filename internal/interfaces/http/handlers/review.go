// internal/interfaces/http/handlers/review.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
)

// ReviewHandler handles review-related HTTP requests
type ReviewHandler struct {
	reviewService *catalog.ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *catalog.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// GetReviews handles GET /books/:slug/reviews
func (h *ReviewHandler) GetReviews(c *gin.Context) {
	reviews, summary, err := h.reviewService.ListApproved(c.Param("slug"))
	if err != nil {
		respondWithError(c, err, "Failed to retrieve reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reviews retrieved successfully",
		"data": gin.H{
			"reviews": reviews,
			"rating":  summary,
		},
	})
}

// CreateReview handles POST /books/:slug/reviews. The review stays hidden
// until approved.
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req catalog.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	review, err := h.reviewService.CreateReview(userID, c.Param("slug"), &req)
	if err != nil {
		respondWithError(c, err, "Failed to create review")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review submitted for moderation",
		"data":    review,
	})
}

// AdminGetReviews handles GET /admin/reviews
func (h *ReviewHandler) AdminGetReviews(c *gin.Context) {
	var req catalog.AdminReviewListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	response, err := h.reviewService.AdminListReviews(&req)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reviews retrieved successfully",
		"data":    response,
	})
}

// AdminApproveReview handles POST /admin/reviews/:id/approve
func (h *ReviewHandler) AdminApproveReview(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.reviewService.ApproveReview(id); err != nil {
		respondWithError(c, err, "Failed to approve review")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review approved successfully",
	})
}

// AdminDeleteReview handles DELETE /admin/reviews/:id
func (h *ReviewHandler) AdminDeleteReview(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.reviewService.DeleteReview(id); err != nil {
		respondWithError(c, err, "Failed to delete review")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review deleted successfully",
	})
}

// internal/domain/catalog/review_service.go
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/your-org/bookstore-backend/internal/pkg/pagination"
	"gorm.io/gorm"
)

// ReviewService handles review business logic
type ReviewService struct {
	db *gorm.DB
}

// NewReviewService creates a new review service
func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{
		db: db,
	}
}

// CreateReviewRequest represents a new review
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required,max=2000"`
}

// AdminReviewListRequest filters the moderation queue
type AdminReviewListRequest struct {
	Page     int   `form:"page"`
	Limit    int   `form:"limit"`
	Approved *bool `form:"approved"`
}

// ReviewListResponse represents a page of reviews
type ReviewListResponse struct {
	Reviews    []Review              `json:"reviews"`
	Pagination pagination.Pagination `json:"pagination"`
}

// ReviewSummary aggregates the approved ratings of a book
type ReviewSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// CreateReview stores a review pending moderation. A user reviews a book once.
func (s *ReviewService) CreateReview(userID uint, slug string, req *CreateReviewRequest) (*Review, error) {
	var book Book
	if err := s.db.Where("slug = ? AND is_active = ?", slug, true).First(&book).Error; err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}

	var count int64
	if err := s.db.Model(&Review{}).Where("book_id = ? AND user_id = ?", book.ID, userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check review: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateReview
	}

	review := Review{
		BookID:  book.ID,
		UserID:  userID,
		Rating:  req.Rating,
		Comment: strings.TrimSpace(req.Comment),
	}

	if err := s.db.Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateReview
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	return &review, nil
}

// ListApproved returns the public reviews of a book with their summary
func (s *ReviewService) ListApproved(slug string) ([]Review, ReviewSummary, error) {
	var book Book
	if err := s.db.Where("slug = ? AND is_active = ?", slug, true).First(&book).Error; err != nil {
		return nil, ReviewSummary{}, notFound(err, ErrBookNotFound)
	}

	var reviews []Review
	if err := s.db.Where("book_id = ? AND approved = ?", book.ID, true).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, ReviewSummary{}, fmt.Errorf("failed to retrieve reviews: %w", err)
	}

	return reviews, summarize(reviews), nil
}

// AdminListReviews returns reviews newest first, optionally filtered by approval
func (s *ReviewService) AdminListReviews(req *AdminReviewListRequest) (*ReviewListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit, 20)

	query := s.db.Model(&Review{})
	if req.Approved != nil {
		query = query.Where("approved = ?", *req.Approved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []Review
	if err := query.Preload("Book").Order("created_at DESC").Scopes(pagination.Scope(page, limit)).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve reviews: %w", err)
	}

	return &ReviewListResponse{
		Reviews:    reviews,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// ApproveReview publishes a review
func (s *ReviewService) ApproveReview(id uint) error {
	res := s.db.Model(&Review{}).Where("id = ?", id).Update("approved", true)
	if res.Error != nil {
		return fmt.Errorf("failed to approve review: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// DeleteReview removes a review
func (s *ReviewService) DeleteReview(id uint) error {
	res := s.db.Delete(&Review{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete review: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func summarize(reviews []Review) ReviewSummary {
	if len(reviews) == 0 {
		return ReviewSummary{}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return ReviewSummary{
		Count:   len(reviews),
		Average: math.Round(avg*10) / 10,
	}
}

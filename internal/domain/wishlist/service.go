package wishlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"gorm.io/gorm"
)

// Service handles wishlist business logic
type Service struct {
	db *gorm.DB
}

// NewService creates a new wishlist service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WishlistItemResponse is a wishlist entry with its book
type WishlistItemResponse struct {
	ID           uint          `json:"id"`
	BookID       uint          `json:"book_id"`
	Book         *catalog.Book `json:"book,omitempty"`
	AddedAt      time.Time     `json:"added_at"`
	IsAvailable  bool          `json:"is_available"`
	CurrentPrice int64         `json:"current_price"`
}

// WishlistResponse represents a wishlist with items
type WishlistResponse struct {
	Items   []WishlistItemResponse `json:"items"`
	Count   int                    `json:"count"`
	Summary WishlistSummary        `json:"summary"`
}

// WishlistSummary provides summary information
type WishlistSummary struct {
	TotalItems       int   `json:"total_items"`
	AvailableItems   int   `json:"available_items"`
	UnavailableItems int   `json:"unavailable_items"`
	TotalValue       int64 `json:"total_value"`
	RecentlyAdded    int   `json:"recently_added"` // added in the last 7 days
}

// AddToWishlistRequest represents add to wishlist request
type AddToWishlistRequest struct {
	BookID uint `json:"book_id" binding:"required"`
}

// GetWishlist returns a user's wishlist, newest first
func (s *Service) GetWishlist(userID uint) (*WishlistResponse, error) {
	var items []WishlistItem
	if err := s.db.Preload("Book").Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve wishlist: %w", err)
	}

	responses := make([]WishlistItemResponse, len(items))
	for i, item := range items {
		responses[i] = toResponse(item)
	}

	return &WishlistResponse{
		Items:   responses,
		Count:   len(responses),
		Summary: summarize(responses, time.Now()),
	}, nil
}

// AddToWishlist saves a book for the user. Adding a book twice returns the
// existing entry.
func (s *Service) AddToWishlist(userID uint, req *AddToWishlistRequest) (*WishlistItemResponse, error) {
	var book catalog.Book
	if err := s.db.Where("id = ? AND is_active = ?", req.BookID, true).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}

	item := WishlistItem{UserID: userID, BookID: book.ID}
	if err := s.db.Where(WishlistItem{UserID: userID, BookID: book.ID}).FirstOrCreate(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to add item to wishlist: %w", err)
	}
	item.Book = &book

	resp := toResponse(item)
	return &resp, nil
}

// RemoveFromWishlist removes a book from the wishlist
func (s *Service) RemoveFromWishlist(userID, bookID uint) error {
	result := s.db.Where("user_id = ? AND book_id = ?", userID, bookID).Delete(&WishlistItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove item from wishlist: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetWishlistCount returns the number of items in wishlist
func (s *Service) GetWishlistCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&WishlistItem{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// MoveToCart adds the wishlist item's book to the cart and removes the item
func (s *Service) MoveToCart(userID, itemID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var item WishlistItem
		if err := tx.Preload("Book").Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to load wishlist item: %w", err)
		}
		if item.Book == nil || !item.Book.IsActive {
			return catalog.ErrBookNotFound
		}

		if err := cart.Upsert(tx, userID, item.BookID, 1); err != nil {
			return fmt.Errorf("failed to add item to cart: %w", err)
		}
		if err := tx.Delete(&item).Error; err != nil {
			return fmt.Errorf("failed to remove item from wishlist: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"book_id": item.BookID,
		}).Debug("Wishlist item moved to cart")
		return nil
	})
}

// Private helper methods

func toResponse(item WishlistItem) WishlistItemResponse {
	resp := WishlistItemResponse{
		ID:      item.ID,
		BookID:  item.BookID,
		Book:    item.Book,
		AddedAt: item.CreatedAt,
	}
	if item.Book != nil {
		resp.IsAvailable = item.Book.IsActive
		resp.CurrentPrice = item.Book.CurrentPrice()
	}
	return resp
}

func summarize(items []WishlistItemResponse, now time.Time) WishlistSummary {
	summary := WishlistSummary{TotalItems: len(items)}
	recentThreshold := now.AddDate(0, 0, -7)

	for _, item := range items {
		if item.IsAvailable {
			summary.AvailableItems++
			summary.TotalValue += item.CurrentPrice
		} else {
			summary.UnavailableItems++
		}
		if item.AddedAt.After(recentThreshold) {
			summary.RecentlyAdded++
		}
	}
	return summary
}

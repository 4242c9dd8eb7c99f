package wishlist

import (
	"errors"
	"time"

	"github.com/your-org/bookstore-backend/internal/domain/catalog"
)

var ErrItemNotFound = errors.New("item not found in wishlist")

// WishlistItem is a book a user saved for later
type WishlistItem struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UserID    uint          `gorm:"not null;uniqueIndex:idx_wishlist_user_book" json:"user_id"`
	BookID    uint          `gorm:"not null;uniqueIndex:idx_wishlist_user_book;index" json:"book_id"`
	Book      *catalog.Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"book,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// TableName overrides the table name
func (WishlistItem) TableName() string {
	return "wishlist_items"
}

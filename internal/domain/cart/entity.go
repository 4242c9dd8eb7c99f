// internal/domain/cart/entity.go
package cart

import (
	"errors"
	"time"

	"github.com/your-org/bookstore-backend/internal/domain/catalog"
)

var (
	ErrCartEmpty         = errors.New("cart is empty")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrInvalidAction     = errors.New("action must be increment, decrement or remove")
	ErrSessionIDRequired = errors.New("X-Session-ID header required for guest cart")
)

// Action is a quantity change requested on a cart line
type Action string

const (
	ActionIncrement Action = "increment"
	ActionDecrement Action = "decrement"
	ActionRemove    Action = "remove"
)

// CartItem is one book in a user's cart. There is at most one row per (user, book).
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_user_book" json:"user_id"`
	BookID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_user_book;index" json:"book_id"`
	Quantity  int       `gorm:"not null;default:1;check:quantity >= 1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Book *catalog.Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE;" json:"book,omitempty"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// Subtotal is the current price of the book times the quantity
func (i *CartItem) Subtotal() int64 {
	if i.Book == nil {
		return 0
	}
	return i.Book.CurrentPrice() * int64(i.Quantity)
}

// SessionCart is a guest cart kept in Redis
type SessionCart struct {
	SessionID string            `json:"session_id"`
	Items     []SessionCartItem `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SessionCartItem is one book in a guest cart
type SessionCartItem struct {
	BookID   uint      `json:"book_id"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

// Totals are the computed amounts of a cart, in cents
type Totals struct {
	ItemCount int   `json:"item_count"` // sum of quantities
	Subtotal  int64 `json:"subtotal"`
	Tax       int64 `json:"tax"`
	Total     int64 `json:"total"`
}

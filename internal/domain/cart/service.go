// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/infrastructure/database/redis"
	"github.com/your-org/bookstore-backend/internal/pkg/money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const guestCartTTL = 24 * time.Hour

// Service handles cart business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	BookID   uint `json:"book_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"omitempty,min=1,max=99"`
}

// UpdateCartItemRequest represents a quantity change on a cart line
type UpdateCartItemRequest struct {
	Action Action `json:"action" binding:"required"`
}

// CartLine is a cart item with its book and line subtotal
type CartLine struct {
	ID       uint          `json:"id,omitempty"`
	BookID   uint          `json:"book_id"`
	Quantity int           `json:"quantity"`
	Subtotal int64         `json:"subtotal"`
	Book     *catalog.Book `json:"book,omitempty"`
}

// CartResponse represents a shopping cart with items and totals
type CartResponse struct {
	SessionID string     `json:"session_id,omitempty"`
	UserID    *uint      `json:"user_id,omitempty"`
	Items     []CartLine `json:"items"`
	Totals
}

// UpdateResult is returned after a quantity change
type UpdateResult struct {
	Cart    *CartResponse `json:"cart"`
	Removed bool          `json:"removed"`
}

// LoadItems returns the user's cart items with their books, oldest first
func LoadItems(db *gorm.DB, userID uint) ([]CartItem, error) {
	var items []CartItem
	if err := db.Preload("Book").Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	return items, nil
}

// Upsert adds quantity of a book to a user's cart in a single statement,
// incrementing the existing row on conflict.
func Upsert(db *gorm.DB, userID, bookID uint, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	item := CartItem{UserID: userID, BookID: bookID, Quantity: quantity}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + EXCLUDED.quantity"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(&item).Error
}

// Clear deletes every item of a user's cart
func Clear(db *gorm.DB, userID uint) error {
	return db.Where("user_id = ?", userID).Delete(&CartItem{}).Error
}

// ComputeTotals sums lines and applies tax at basisPoints
func ComputeTotals(lines []CartLine, basisPoints int64) Totals {
	var t Totals
	for _, l := range lines {
		t.ItemCount += l.Quantity
		t.Subtotal += l.Subtotal
	}
	t.Tax = money.Tax(t.Subtotal, basisPoints)
	t.Total = t.Subtotal + t.Tax
	return t
}

// GetCart returns the user's cart with totals
func (s *Service) GetCart(userID uint) (*CartResponse, error) {
	items, err := LoadItems(s.db, userID)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, 0, len(items))
	for i := range items {
		lines = append(lines, CartLine{
			ID:       items[i].ID,
			BookID:   items[i].BookID,
			Quantity: items[i].Quantity,
			Subtotal: items[i].Subtotal(),
			Book:     items[i].Book,
		})
	}

	return &CartResponse{
		UserID: &userID,
		Items:  lines,
		Totals: ComputeTotals(lines, s.config.Store.TaxRateBasisPoints),
	}, nil
}

// AddToCart adds an active book to the user's cart
func (s *Service) AddToCart(userID uint, req *AddToCartRequest) (*CartResponse, error) {
	if err := s.checkBook(req.BookID); err != nil {
		return nil, err
	}

	if err := Upsert(s.db, userID, req.BookID, req.Quantity); err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	return s.GetCart(userID)
}

// UpdateCartItem increments, decrements or removes a line. Decrementing a
// line at quantity one removes it.
func (s *Service) UpdateCartItem(userID, itemID uint, req *UpdateCartItemRequest) (*UpdateResult, error) {
	var item CartItem
	if err := s.db.Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}

	removed := false
	var err error
	switch req.Action {
	case ActionIncrement:
		err = s.db.Model(&item).Update("quantity", gorm.Expr("quantity + 1")).Error
	case ActionDecrement:
		if item.Quantity <= 1 {
			err = s.db.Delete(&item).Error
			removed = true
		} else {
			err = s.db.Model(&item).Update("quantity", gorm.Expr("quantity - 1")).Error
		}
	case ActionRemove:
		err = s.db.Delete(&item).Error
		removed = true
	default:
		return nil, ErrInvalidAction
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	cart, err := s.GetCart(userID)
	if err != nil {
		return nil, err
	}

	return &UpdateResult{Cart: cart, Removed: removed}, nil
}

// RemoveFromCart deletes one line of the user's cart
func (s *Service) RemoveFromCart(userID, itemID uint) (*CartResponse, error) {
	res := s.db.Where("id = ? AND user_id = ?", itemID, userID).Delete(&CartItem{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}
	return s.GetCart(userID)
}

// ClearCart removes all items from the user's cart
func (s *Service) ClearCart(userID uint) error {
	if err := Clear(s.db, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// GetCartItemCount returns the total quantity in the user's cart
func (s *Service) GetCartItemCount(userID uint) (int, error) {
	var count int64
	err := s.db.Model(&CartItem{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(quantity), 0)").Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return int(count), nil
}

// GetGuestCart returns the Redis cart of an anonymous session
func (s *Service) GetGuestCart(ctx context.Context, sessionID string) (*CartResponse, error) {
	sessionCart, err := s.getGuestCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.guestResponse(sessionCart)
}

// AddToGuestCart adds an active book to an anonymous session's cart
func (s *Service) AddToGuestCart(ctx context.Context, sessionID string, req *AddToCartRequest) (*CartResponse, error) {
	if err := s.checkBook(req.BookID); err != nil {
		return nil, err
	}

	sessionCart, err := s.getGuestCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	found := false
	for i := range sessionCart.Items {
		if sessionCart.Items[i].BookID == req.BookID {
			sessionCart.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		sessionCart.Items = append(sessionCart.Items, SessionCartItem{
			BookID:   req.BookID,
			Quantity: quantity,
			AddedAt:  time.Now().UTC(),
		})
	}

	if err := s.saveGuestCart(ctx, sessionCart); err != nil {
		return nil, err
	}
	return s.guestResponse(sessionCart)
}

// RemoveFromGuestCart drops a book from an anonymous session's cart
func (s *Service) RemoveFromGuestCart(ctx context.Context, sessionID string, bookID uint) (*CartResponse, error) {
	sessionCart, err := s.getGuestCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	kept := sessionCart.Items[:0]
	for _, item := range sessionCart.Items {
		if item.BookID != bookID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(sessionCart.Items) {
		return nil, ErrItemNotFound
	}
	sessionCart.Items = kept

	if err := s.saveGuestCart(ctx, sessionCart); err != nil {
		return nil, err
	}
	return s.guestResponse(sessionCart)
}

// MergeGuestCart folds an anonymous session's cart into the user's cart and
// deletes the session cart. Books that are no longer active are skipped.
func (s *Service) MergeGuestCart(ctx context.Context, userID uint, sessionID string) (*CartResponse, error) {
	sessionCart, err := s.getGuestCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(sessionCart.Items) > 0 {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			for _, item := range sessionCart.Items {
				var count int64
				if err := tx.Model(&catalog.Book{}).Where("id = ? AND is_active = ?", item.BookID, true).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					continue
				}
				if err := Upsert(tx, userID, item.BookID, item.Quantity); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to merge guest cart: %w", err)
		}
	}

	if err := s.redisClient.Del(ctx, guestCartKey(sessionID)); err != nil {
		return nil, fmt.Errorf("failed to clear guest cart: %w", err)
	}

	return s.GetCart(userID)
}

// Private helper methods

func (s *Service) checkBook(bookID uint) error {
	var count int64
	if err := s.db.Model(&catalog.Book{}).Where("id = ? AND is_active = ?", bookID, true).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check book: %w", err)
	}
	if count == 0 {
		return catalog.ErrBookNotFound
	}
	return nil
}

func guestCartKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}

func (s *Service) getGuestCart(ctx context.Context, sessionID string) (*SessionCart, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	var sessionCart SessionCart
	err := s.redisClient.GetJSON(ctx, guestCartKey(sessionID), &sessionCart)
	if errors.Is(err, redis.ErrCacheMiss) {
		now := time.Now().UTC()
		return &SessionCart{
			SessionID: sessionID,
			Items:     []SessionCartItem{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guest cart: %w", err)
	}

	return &sessionCart, nil
}

func (s *Service) saveGuestCart(ctx context.Context, cart *SessionCart) error {
	cart.UpdatedAt = time.Now().UTC()
	if err := s.redisClient.SetJSON(ctx, guestCartKey(cart.SessionID), cart, guestCartTTL); err != nil {
		return fmt.Errorf("failed to save guest cart: %w", err)
	}
	return nil
}

func (s *Service) guestResponse(cart *SessionCart) (*CartResponse, error) {
	lines := make([]CartLine, 0, len(cart.Items))

	if len(cart.Items) > 0 {
		ids := make([]uint, 0, len(cart.Items))
		for _, item := range cart.Items {
			ids = append(ids, item.BookID)
		}

		var books []catalog.Book
		if err := s.db.Where("id IN ? AND is_active = ?", ids, true).Find(&books).Error; err != nil {
			return nil, fmt.Errorf("failed to load cart books: %w", err)
		}
		byID := make(map[uint]*catalog.Book, len(books))
		for i := range books {
			byID[books[i].ID] = &books[i]
		}

		for _, item := range cart.Items {
			book, ok := byID[item.BookID]
			if !ok {
				continue
			}
			lines = append(lines, CartLine{
				BookID:   item.BookID,
				Quantity: item.Quantity,
				Subtotal: book.CurrentPrice() * int64(item.Quantity),
				Book:     book,
			})
		}
	}

	return &CartResponse{
		SessionID: cart.SessionID,
		Items:     lines,
		Totals:    ComputeTotals(lines, s.config.Store.TaxRateBasisPoints),
	}, nil
}

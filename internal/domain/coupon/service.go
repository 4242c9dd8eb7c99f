// internal/domain/coupon/service.go
package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/pkg/pagination"
	"gorm.io/gorm"
)

// Service handles coupon business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new coupon service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// ValidateRequest asks for a discount preview
type ValidateRequest struct {
	Code     string `json:"code" binding:"required"`
	Subtotal *int64 `json:"subtotal" binding:"omitempty,min=0"`
}

// Preview describes what a coupon would take off a subtotal
type Preview struct {
	Code         string       `json:"code"`
	Description  string       `json:"description"`
	DiscountType DiscountType `json:"discount_type"`
	Value        int64        `json:"value"`
	Subtotal     int64        `json:"subtotal"`
	Discount     int64        `json:"discount"`
	EndsAt       time.Time    `json:"ends_at"`
}

// CreateRequest represents coupon creation data
type CreateRequest struct {
	Code         string       `json:"code" binding:"required,max=50"`
	Description  string       `json:"description" binding:"max=255"`
	DiscountType DiscountType `json:"discount_type" binding:"required"`
	Value        int64        `json:"value" binding:"required,min=1"`
	MaxUses      int          `json:"max_uses" binding:"omitempty,min=1"`
	StartsAt     time.Time    `json:"starts_at" binding:"required"`
	EndsAt       time.Time    `json:"ends_at" binding:"required"`
	IsActive     *bool        `json:"is_active"`
}

// UpdateRequest represents coupon update data
type UpdateRequest struct {
	Description  *string       `json:"description" binding:"omitempty,max=255"`
	DiscountType *DiscountType `json:"discount_type"`
	Value        *int64        `json:"value" binding:"omitempty,min=1"`
	MaxUses      *int          `json:"max_uses" binding:"omitempty,min=1"`
	StartsAt     *time.Time    `json:"starts_at"`
	EndsAt       *time.Time    `json:"ends_at"`
	IsActive     *bool         `json:"is_active"`
}

// ListRequest filters the back-office coupon list
type ListRequest struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Query  string `form:"q"`
	Active *bool  `form:"active"`
}

// ListResponse represents a page of coupons
type ListResponse struct {
	Coupons    []Coupon              `json:"coupons"`
	Pagination pagination.Pagination `json:"pagination"`
}

// Redeem consumes one use of a coupon inside tx. The check and the increment
// are one conditional UPDATE, so concurrent checkouts cannot exceed max_uses.
func Redeem(tx *gorm.DB, code string, now time.Time) (*Coupon, error) {
	code = NormalizeCode(code)

	res := tx.Model(&Coupon{}).
		Where("code = ? AND is_active = ? AND used_count < max_uses AND starts_at <= ? AND ends_at >= ?", code, true, now, now).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to redeem coupon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrCouponInvalid
	}

	var c Coupon
	if err := tx.Where("code = ?", code).First(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return &c, nil
}

// Release gives back one use of code inside tx, for an order cancelled
// before payment.
func Release(tx *gorm.DB, code string) error {
	err := tx.Model(&Coupon{}).
		Where("code = ? AND used_count > 0", NormalizeCode(code)).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error
	if err != nil {
		return fmt.Errorf("failed to release coupon: %w", err)
	}
	return nil
}

// DeactivateExpired switches off active coupons whose window has closed and
// returns how many were changed.
func DeactivateExpired(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Model(&Coupon{}).Where("is_active = ? AND ends_at < ?", true, now).Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deactivate coupons: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Validate previews the discount of code against subtotal without consuming it
func (s *Service) Validate(req *ValidateRequest, cartSubtotal int64) (*Preview, error) {
	c, err := s.GetByCode(req.Code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponInvalid
		}
		return nil, err
	}

	if !c.IsValidAt(time.Now().UTC()) {
		return nil, ErrCouponInvalid
	}

	subtotal := cartSubtotal
	if req.Subtotal != nil {
		subtotal = *req.Subtotal
	}

	return &Preview{
		Code:         c.Code,
		Description:  c.Description,
		DiscountType: c.DiscountType,
		Value:        c.Value,
		Subtotal:     subtotal,
		Discount:     c.Discount(subtotal),
		EndsAt:       c.EndsAt,
	}, nil
}

// GetByCode looks a coupon up case-insensitively
func (s *Service) GetByCode(code string) (*Coupon, error) {
	var c Coupon
	if err := s.db.Where("code = ?", NormalizeCode(code)).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return &c, nil
}

// Get returns a coupon by ID
func (s *Service) Get(id uint) (*Coupon, error) {
	var c Coupon
	if err := s.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return &c, nil
}

// List returns coupons newest first
func (s *Service) List(req *ListRequest) (*ListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit, s.config.Store.AdminPageSize)

	query := s.db.Model(&Coupon{})
	if q := strings.TrimSpace(req.Query); q != "" {
		query = query.Where("code LIKE ?", "%"+NormalizeCode(q)+"%")
	}
	if req.Active != nil {
		query = query.Where("is_active = ?", *req.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count coupons: %w", err)
	}

	var coupons []Coupon
	if err := query.Order("created_at DESC").Scopes(pagination.Scope(page, limit)).Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	return &ListResponse{
		Coupons:    coupons,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// Create creates a new coupon
func (s *Service) Create(req *CreateRequest) (*Coupon, error) {
	c := Coupon{
		Code:         NormalizeCode(req.Code),
		Description:  req.Description,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		MaxUses:      req.MaxUses,
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
		IsActive:     true,
	}
	if c.MaxUses == 0 {
		c.MaxUses = 1
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	if err := validateCoupon(&c); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&Coupon{}).Where("code = ?", c.Code).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check coupon code: %w", err)
	}
	if count > 0 {
		return nil, ErrCouponExists
	}

	if err := s.db.Create(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCouponExists
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	return &c, nil
}

// Update applies the non-nil fields of req
func (s *Service) Update(id uint, req *UpdateRequest) (*Coupon, error) {
	c, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.DiscountType != nil {
		c.DiscountType = *req.DiscountType
	}
	if req.Value != nil {
		c.Value = *req.Value
	}
	if req.MaxUses != nil {
		c.MaxUses = *req.MaxUses
	}
	if req.StartsAt != nil {
		c.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		c.EndsAt = req.EndsAt.UTC()
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	if err := validateCoupon(c); err != nil {
		return nil, err
	}

	if err := s.db.Save(c).Error; err != nil {
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}

	return c, nil
}

// Delete removes a coupon. Orders keep the code they were placed with.
func (s *Service) Delete(id uint) error {
	res := s.db.Delete(&Coupon{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete coupon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func validateCoupon(c *Coupon) error {
	switch c.DiscountType {
	case DiscountPercentage:
		if c.Value < 1 || c.Value > 100 {
			return ErrInvalidPercentage
		}
	case DiscountFixed:
	default:
		return ErrInvalidDiscount
	}
	if !c.EndsAt.After(c.StartsAt) {
		return ErrInvalidWindow
	}
	return nil
}

// internal/domain/coupon/entity.go
package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/your-org/bookstore-backend/internal/pkg/money"
	"gorm.io/gorm"
)

// DiscountType is how a coupon value is interpreted
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponInvalid     = errors.New("coupon is not valid or has been used up")
	ErrCouponExists      = errors.New("coupon code already exists")
	ErrInvalidDiscount   = errors.New("discount_type must be percentage or fixed")
	ErrInvalidWindow     = errors.New("ends_at must be after starts_at")
	ErrInvalidPercentage = errors.New("percentage value must be between 1 and 100")
)

// Coupon is a discount code with a usage cap and a validity window
type Coupon struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Code         string       `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Description  string       `gorm:"size:255" json:"description"`
	DiscountType DiscountType `gorm:"size:20;not null" json:"discount_type"`
	Value        int64        `gorm:"not null;check:value >= 0" json:"value"` // whole percent or cents
	MaxUses      int          `gorm:"not null;default:1" json:"max_uses"`
	UsedCount    int          `gorm:"not null;default:0" json:"used_count"`
	StartsAt     time.Time    `gorm:"not null" json:"starts_at"`
	EndsAt       time.Time    `gorm:"not null;index" json:"ends_at"`
	IsActive     bool         `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName overrides the table name
func (Coupon) TableName() string {
	return "coupons"
}

// NormalizeCode trims and upper-cases a coupon code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// BeforeSave stores the code upper-case
func (c *Coupon) BeforeSave(tx *gorm.DB) error {
	c.Code = NormalizeCode(c.Code)
	return nil
}

// IsValidAt reports whether the coupon can be redeemed at t. Both window
// bounds are inclusive.
func (c *Coupon) IsValidAt(t time.Time) bool {
	return c.IsActive &&
		c.UsedCount < c.MaxUses &&
		!t.Before(c.StartsAt) &&
		!t.After(c.EndsAt)
}

// Discount is the amount taken off subtotal, never more than subtotal
func (c *Coupon) Discount(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}

	var d int64
	switch c.DiscountType {
	case DiscountPercentage:
		d = money.Percent(subtotal, c.Value)
	case DiscountFixed:
		d = c.Value
	}

	if d < 0 {
		return 0
	}
	if d > subtotal {
		return subtotal
	}
	return d
}

// RemainingUses is how many more times the coupon can be redeemed
func (c *Coupon) RemainingUses() int {
	if c.UsedCount >= c.MaxUses {
		return 0
	}
	return c.MaxUses - c.UsedCount
}

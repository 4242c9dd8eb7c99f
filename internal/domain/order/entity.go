// internal/domain/order/entity.go
package order

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/domain/user"
	"github.com/your-org/bookstore-backend/internal/pkg/money"
	"gorm.io/datatypes"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotCancellable       = errors.New("only orders awaiting payment can be cancelled")
	ErrInvoiceUnavailable   = errors.New("invoice is only available for paid orders")
	ErrBookUnavailable      = errors.New("a book in the cart is no longer available")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrPaymentNotFound      = errors.New("payment not found")
)

// Status represents the order status
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusRefunded       Status = "refunded"
	StatusCancelled      Status = "cancelled"
)

// PaymentMethod is how an order is paid
type PaymentMethod string

const (
	PaymentMethodSimulated PaymentMethod = "simulated"
	PaymentMethodStripe    PaymentMethod = "stripe"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// HistoryAction labels an audit row
type HistoryAction string

const (
	ActionCreated         HistoryAction = "created"
	ActionStatusChanged   HistoryAction = "status_changed"
	ActionPaid            HistoryAction = "paid"
	ActionCancelled       HistoryAction = "cancelled"
	ActionRefunded        HistoryAction = "refunded"
	ActionPaidAfterCancel HistoryAction = "paid_after_cancel"
)

// SettledStatuses are the states in which the customer owns the books
var SettledStatuses = []Status{StatusPaid, StatusProcessing, StatusCompleted}

var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusPaid, StatusCancelled},
	StatusPaid:           {StatusProcessing, StatusCompleted, StatusRefunded, StatusCancelled},
	StatusProcessing:     {StatusCompleted, StatusRefunded, StatusCancelled},
	StatusCompleted:      {StatusRefunded},
}

// Order represents the order entity
type Order struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	OrderNumber   string        `gorm:"uniqueIndex;not null;size:64" json:"order_number"`
	UserID        uint          `gorm:"not null;index" json:"user_id"`
	Status        Status        `gorm:"size:20;not null;default:'pending_payment';index" json:"status"`
	PaymentMethod PaymentMethod `gorm:"size:20;not null;default:'simulated'" json:"payment_method"`

	// Amounts in cents
	Subtotal       int64  `gorm:"not null;default:0" json:"subtotal"`
	DiscountAmount int64  `gorm:"not null;default:0" json:"discount_amount"`
	CouponCode     string `gorm:"size:50" json:"coupon_code,omitempty"`
	TaxAmount      int64  `gorm:"not null;default:0" json:"tax_amount"`
	Total          int64  `gorm:"not null;default:0" json:"total"`

	Paid   bool       `gorm:"not null;default:false" json:"paid"`
	PaidAt *time.Time `json:"paid_at"`

	StripeSessionID       *string `gorm:"uniqueIndex;size:255" json:"-"`
	StripePaymentIntentID string  `gorm:"size:255" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User     *user.User     `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	Lines    []OrderLine    `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"lines"`
	History  []OrderHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"history,omitempty"`
	Payments []Payment      `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"payments,omitempty"`
}

// OrderLine is a book snapshot taken at purchase time
type OrderLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	BookID    uint      `gorm:"not null;index" json:"book_id"`
	BookTitle string    `gorm:"size:200;not null" json:"book_title"`
	Quantity  int       `gorm:"not null;check:quantity >= 1" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	LineTotal int64     `gorm:"not null" json:"line_total"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Book *catalog.Book `gorm:"foreignKey:BookID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"book,omitempty"`
}

// OrderHistory is the audit log of an order
type OrderHistory struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	OrderID     uint          `gorm:"not null;index" json:"order_id"`
	UserID      *uint         `gorm:"index" json:"user_id"`
	Action      HistoryAction `gorm:"size:30;not null" json:"action"`
	Description string        `gorm:"type:text" json:"description"`
	CreatedAt   time.Time     `gorm:"index" json:"created_at"`
}

// Payment represents one payment attempt
type Payment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OrderID         uint           `gorm:"not null;index" json:"order_id"`
	Method          PaymentMethod  `gorm:"size:20;not null" json:"method"`
	ProviderRef     string         `gorm:"size:255;index" json:"provider_ref"`
	Amount          int64          `gorm:"not null" json:"amount"`
	Currency        string         `gorm:"size:3" json:"currency"`
	Status          PaymentStatus  `gorm:"size:20;not null;default:'pending'" json:"status"`
	GatewayResponse datatypes.JSON `json:"gateway_response,omitempty"`
	ProcessedAt     *time.Time     `json:"processed_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName overrides
func (Order) TableName() string        { return "orders" }
func (OrderLine) TableName() string    { return "order_lines" }
func (OrderHistory) TableName() string { return "order_history" }
func (Payment) TableName() string      { return "payments" }

// ParseStatus validates a status name
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPendingPayment, StatusPaid, StatusProcessing, StatusCompleted, StatusRefunded, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsSettled reports whether the order is paid and not reversed
func (o *Order) IsSettled() bool {
	for _, s := range SettledStatuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

// BookIDs returns the books of the order in line order
func (o *Order) BookIDs() []uint {
	ids := make([]uint, 0, len(o.Lines))
	for _, l := range o.Lines {
		ids = append(ids, l.BookID)
	}
	return ids
}

// RecalculateTotals derives every amount from the lines. The discount is
// kept but capped at the subtotal and tax applies after it.
func (o *Order) RecalculateTotals(taxBasisPoints int64) {
	var subtotal int64
	for i := range o.Lines {
		o.Lines[i].LineTotal = o.Lines[i].UnitPrice * int64(o.Lines[i].Quantity)
		subtotal += o.Lines[i].LineTotal
	}

	discount := o.DiscountAmount
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	o.Subtotal = subtotal
	o.DiscountAmount = discount
	o.TaxAmount = money.Tax(subtotal-discount, taxBasisPoints)
	o.Total = subtotal - discount + o.TaxAmount
}

// GenerateOrderNumber builds ORD-<timestamp><micros>-<user>-<random>
func GenerateOrderNumber(userID uint, now time.Time) string {
	return fmt.Sprintf("ORD-%s%06d-%04d-%d",
		now.Format("20060102150405"),
		now.Nanosecond()/1000,
		userID,
		1000+rand.Intn(9000),
	)
}

func historyActionFor(to Status) HistoryAction {
	switch to {
	case StatusPaid:
		return ActionPaid
	case StatusCancelled:
		return ActionCancelled
	case StatusRefunded:
		return ActionRefunded
	default:
		return ActionStatusChanged
	}
}

// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
	"github.com/your-org/bookstore-backend/internal/domain/delivery"
	"github.com/your-org/bookstore-backend/internal/domain/user"
	"github.com/your-org/bookstore-backend/internal/pkg/email"
	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
	"github.com/your-org/bookstore-backend/internal/pkg/money"
	"github.com/your-org/bookstore-backend/internal/pkg/pagination"
	"gorm.io/gorm"
)

// Notifier delivers order emails
type Notifier interface {
	SendOrderConfirmationEmail(ctx context.Context, data email.OrderConfirmationData) error
	SendOrderStatusUpdateEmail(ctx context.Context, data email.OrderStatusUpdateData) error
}

// Service handles order business logic
type Service struct {
	db       *gorm.DB
	config   *config.Config
	notifier Notifier
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, notifier Notifier) *Service {
	return &Service{
		db:       db,
		config:   cfg,
		notifier: notifier,
	}
}

// CheckoutRequest represents checkout data
type CheckoutRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
	CouponCode    string        `json:"coupon_code" binding:"omitempty,max=50"`
}

// ListRequest represents order list query parameters
type ListRequest struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Query  string `form:"q"`
	Status string `form:"status"`
}

// ListResponse represents a page of orders
type ListResponse struct {
	Orders     []Order               `json:"orders"`
	Pagination pagination.Pagination `json:"pagination"`
}

// UpdateStatusRequest is a back-office status change
type UpdateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment" binding:"max=500"`
}

// Detail is an order with the deliveries it granted
type Detail struct {
	Order
	Deliveries []delivery.DigitalDelivery `json:"deliveries,omitempty"`
}

// Checkout turns the user's cart into an order awaiting payment. Line
// snapshot, coupon redemption, order creation and cart removal share one
// transaction.
func (s *Service) Checkout(userID uint, req *CheckoutRequest) (*Order, error) {
	now := time.Now().UTC()

	o := Order{
		OrderNumber:   GenerateOrderNumber(userID, now),
		UserID:        userID,
		Status:        StatusPendingPayment,
		PaymentMethod: req.PaymentMethod,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		items, err := cart.LoadItems(tx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return cart.ErrCartEmpty
		}

		o.Lines = make([]OrderLine, 0, len(items))
		for _, item := range items {
			if item.Book == nil || !item.Book.IsActive {
				return ErrBookUnavailable
			}
			o.Lines = append(o.Lines, OrderLine{
				BookID:    item.BookID,
				BookTitle: item.Book.Title,
				Quantity:  item.Quantity,
				UnitPrice: item.Book.CurrentPrice(),
			})
		}
		o.RecalculateTotals(s.config.Store.TaxRateBasisPoints)

		if code := strings.TrimSpace(req.CouponCode); code != "" {
			c, err := coupon.Redeem(tx, code, now)
			if err != nil {
				return err
			}
			o.CouponCode = c.Code
			o.DiscountAmount = c.Discount(o.Subtotal)
			o.RecalculateTotals(s.config.Store.TaxRateBasisPoints)
		}

		if err := tx.Create(&o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if err := addHistory(tx, o.ID, &userID, ActionCreated, "Order placed"); err != nil {
			return err
		}

		if err := cart.Clear(tx, userID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderCreated(string(o.PaymentMethod))
	logrus.WithFields(logrus.Fields{
		"order_number": o.OrderNumber,
		"user_id":      userID,
		"total":        o.Total,
		"coupon":       o.CouponCode,
	}).Info("Order created")

	return &o, nil
}

// MarkPaid moves a pending order to paid and issues its deliveries in the
// same transaction. It reports whether this call made the change; an order
// that already left pending_payment is returned untouched.
func (s *Service) MarkPaid(ctx context.Context, orderID uint, actorID *uint) (*Order, bool, error) {
	var o Order
	var issued []delivery.DigitalDelivery
	changed := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&Order{}).
			Where("id = ? AND status = ?", orderID, StatusPendingPayment).
			UpdateColumns(map[string]interface{}{
				"status":     StatusPaid,
				"paid":       true,
				"paid_at":    now,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark order paid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true

		if err := tx.Preload("Lines").First(&o, orderID).Error; err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}

		if err := addHistory(tx, o.ID, actorID, ActionPaid, "Payment confirmed"); err != nil {
			return err
		}

		expiresAt := now.AddDate(0, 0, s.config.Store.DeliveryExpiryDays)
		var err error
		issued, err = delivery.Issue(tx, o.ID, o.UserID, o.BookIDs(), expiresAt, s.config.Store.DeliveryMaxDownloads)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if !changed {
		current, err := s.getByID(orderID)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}

	metrics.OrderTransition(string(StatusPaid))
	logrus.WithFields(logrus.Fields{
		"order_number": o.OrderNumber,
		"deliveries":   len(issued),
	}).Info("Order paid")

	s.sendConfirmation(ctx, &o, issued)

	return &o, true, nil
}

// NotePaymentAfterCancel records on the order's history that payment ref
// settled after the order was cancelled, so staff can refund it.
func (s *Service) NotePaymentAfterCancel(ctx context.Context, o *Order, ref string) error {
	description := fmt.Sprintf("Payment %s received after cancellation; refund required", ref)
	return addHistory(s.db.WithContext(ctx), o.ID, nil, ActionPaidAfterCancel, description)
}

// CancelPending cancels an order still awaiting payment. It reports whether
// the order was changed.
func (s *Service) CancelPending(ctx context.Context, orderID uint, actorID *uint, reason string) (bool, error) {
	var o Order
	if err := s.db.WithContext(ctx).First(&o, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrOrderNotFound
		}
		return false, fmt.Errorf("failed to load order: %w", err)
	}
	if o.Status != StatusPendingPayment {
		return false, nil
	}

	if err := s.transition(ctx, &o, StatusCancelled, actorID, reason); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CancelMine lets a customer cancel an order they have not paid yet
func (s *Service) CancelMine(ctx context.Context, userID uint, orderNumber string) (*Order, error) {
	o, err := s.findMine(userID, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingPayment {
		return nil, ErrNotCancellable
	}

	if err := s.transition(ctx, o, StatusCancelled, &userID, "Cancelled by customer"); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, ErrNotCancellable
		}
		return nil, err
	}

	return o, nil
}

// UpdateStatus applies a back-office status change. Moving to paid goes
// through MarkPaid so deliveries are issued.
func (s *Service) UpdateStatus(ctx context.Context, orderNumber string, req *UpdateStatusRequest, actorID uint) (*Order, error) {
	to, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	o, err := s.getByNumber(orderNumber)
	if err != nil {
		return nil, err
	}

	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, to)
	}

	if to == StatusPaid {
		paid, changed, err := s.MarkPaid(ctx, o.ID, &actorID)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, paid.Status, to)
		}
		return s.GetOrder(orderNumber)
	}

	description := fmt.Sprintf("Status changed from %s to %s", o.Status, to)
	if c := strings.TrimSpace(req.Comment); c != "" {
		description += ": " + c
	}

	if err := s.transition(ctx, o, to, &actorID, description); err != nil {
		return nil, err
	}

	s.sendStatusUpdate(ctx, o, req.Comment)

	return s.GetOrder(orderNumber)
}

// ExpireStalePending cancels orders left awaiting payment for longer than ttl
func (s *Service) ExpireStalePending(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&Order{}).
		Where("status = ? AND created_at < ?", StatusPendingPayment, cutoff).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find stale orders: %w", err)
	}

	expired := 0
	for _, id := range ids {
		changed, err := s.CancelPending(ctx, id, nil, "Payment window expired")
		if err != nil {
			return expired, err
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// ListMine returns the customer's orders newest first
func (s *Service) ListMine(userID uint, page, limit int) (*ListResponse, error) {
	page, limit = pagination.Normalize(page, limit, s.config.Store.AdminPageSize)

	query := s.db.Model(&Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	if err := query.Preload("Lines").Order("created_at DESC").Scopes(pagination.Scope(page, limit)).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return &ListResponse{
		Orders:     orders,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// Recent returns the user's n latest orders
func (s *Service) Recent(userID uint, n int) ([]Order, error) {
	var orders []Order
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(n).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}
	return orders, nil
}

// GetMine returns one of the customer's orders. Orders of other users are
// reported as missing.
func (s *Service) GetMine(userID uint, orderNumber string) (*Detail, error) {
	var o Order
	err := s.db.
		Preload("Lines").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Where("order_number = ? AND user_id = ?", orderNumber, userID).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}

	return s.withDeliveries(&o)
}

// InvoiceOrder loads an order for invoicing. Non-admin callers only see
// their own orders.
func (s *Service) InvoiceOrder(userID uint, orderNumber string, admin bool) (*Order, error) {
	query := s.db.Preload("Lines").Preload("User").Where("order_number = ?", orderNumber)
	if !admin {
		query = query.Where("user_id = ?", userID)
	}

	var o Order
	if err := query.First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	if !o.IsSettled() {
		return nil, ErrInvoiceUnavailable
	}
	return &o, nil
}

// List is the back-office order search
func (s *Service) List(req *ListRequest) (*ListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit, s.config.Store.AdminPageSize)

	query := s.db.Model(&Order{}).Joins("LEFT JOIN users ON users.id = orders.user_id")
	if q := strings.TrimSpace(req.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where(
			"orders.order_number ILIKE ? OR users.first_name ILIKE ? OR users.last_name ILIKE ? OR users.email ILIKE ?",
			like, like, like, like,
		)
	}
	if req.Status != "" {
		st, err := ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		query = query.Where("orders.status = ?", st)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	err := query.Preload("User").
		Order("orders.created_at DESC").
		Scopes(pagination.Scope(page, limit)).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return &ListResponse{
		Orders:     orders,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// GetOrder is the back-office order detail
func (s *Service) GetOrder(orderNumber string) (*Order, error) {
	var o Order
	err := s.db.
		Preload("User").
		Preload("Lines").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Where("order_number = ?", orderNumber).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// GetByID returns an order with its lines
func (s *Service) GetByID(id uint) (*Order, error) {
	return s.getByID(id)
}

// Private helper methods

// transition moves o to the given status with a conditional update on the
// current status and writes history. Reversals revoke deliveries and an
// unpaid cancellation gives the coupon use back.
func (s *Service) transition(ctx context.Context, o *Order, to Status, actorID *uint, description string) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, to)
	}

	from := o.Status
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, from).
			UpdateColumns(map[string]interface{}{
				"status":     to,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update order status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}

		if err := addHistory(tx, o.ID, actorID, historyActionFor(to), description); err != nil {
			return err
		}

		if (to == StatusRefunded || to == StatusCancelled) && o.Paid {
			if _, err := delivery.Revoke(tx, o.ID, now); err != nil {
				return err
			}
		}

		if from == StatusPendingPayment && to == StatusCancelled && o.CouponCode != "" {
			if err := coupon.Release(tx, o.CouponCode); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.Status = to
	o.UpdatedAt = now
	if to == StatusCancelled && from == StatusPendingPayment {
		s.markPendingPaymentsFailed(ctx, o.ID)
	}

	metrics.OrderTransition(string(to))
	logrus.WithFields(logrus.Fields{
		"order_number": o.OrderNumber,
		"from":         from,
		"to":           to,
	}).Info("Order status changed")

	return nil
}

func (s *Service) markPendingPaymentsFailed(ctx context.Context, orderID uint) {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ? AND status = ?", orderID, PaymentStatusPending).
		UpdateColumns(map[string]interface{}{
			"status":       PaymentStatusFailed,
			"processed_at": now,
			"updated_at":   now,
		}).Error
	if err != nil {
		logrus.WithField("order_id", orderID).WithError(err).Error("Failed to close pending payments")
	}
}

func (s *Service) findMine(userID uint, orderNumber string) (*Order, error) {
	var o Order
	if err := s.db.Where("order_number = ? AND user_id = ?", orderNumber, userID).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Service) getByNumber(orderNumber string) (*Order, error) {
	var o Order
	if err := s.db.Where("order_number = ?", orderNumber).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Service) getByID(id uint) (*Order, error) {
	var o Order
	if err := s.db.Preload("Lines").First(&o, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Service) withDeliveries(o *Order) (*Detail, error) {
	detail := &Detail{Order: *o}
	if !o.IsSettled() {
		return detail, nil
	}
	deliveries, err := delivery.ListForOrder(s.db, o.ID)
	if err != nil {
		return nil, err
	}
	detail.Deliveries = deliveries
	return detail, nil
}

// sendConfirmation emails the download links. Failures are logged only.
func (s *Service) sendConfirmation(ctx context.Context, o *Order, issued []delivery.DigitalDelivery) {
	if s.notifier == nil {
		return
	}

	var u user.User
	if err := s.db.First(&u, o.UserID).Error; err != nil {
		logrus.WithField("order_number", o.OrderNumber).WithError(err).Error("Failed to load customer for confirmation email")
		return
	}

	data := email.OrderConfirmationData{
		EmailTemplateData: email.EmailTemplateData{UserName: u.GetDisplayName(), UserEmail: u.Email},
		OrderNumber:       o.OrderNumber,
		OrderDate:         o.CreatedAt.Format("2006-01-02"),
		PaymentMethod:     string(o.PaymentMethod),
		Subtotal:          money.Format(o.Subtotal),
		Tax:               money.Format(o.TaxAmount),
		Total:             money.Format(o.Total),
		CouponCode:        o.CouponCode,
	}
	if o.DiscountAmount > 0 {
		data.Discount = money.Format(o.DiscountAmount)
	}
	for _, l := range o.Lines {
		data.Items = append(data.Items, email.OrderItem{
			Title:     l.BookTitle,
			Quantity:  l.Quantity,
			UnitPrice: money.Format(l.UnitPrice),
			Total:     money.Format(l.LineTotal),
		})
	}
	for _, d := range issued {
		link := email.DownloadLink{
			URL:          d.DownloadURL(s.config.App.BaseURL),
			ExpiresAt:    d.ExpiresAt.Format("2006-01-02"),
			MaxDownloads: d.MaxDownloads,
		}
		if d.Book != nil {
			link.Title = d.Book.Title
			link.Format = string(d.Book.Format)
		}
		data.Downloads = append(data.Downloads, link)
	}

	if err := s.notifier.SendOrderConfirmationEmail(ctx, data); err != nil {
		logrus.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"email":        u.Email,
		}).WithError(err).Error("Failed to send order confirmation email")
	}
}

func (s *Service) sendStatusUpdate(ctx context.Context, o *Order, comment string) {
	if s.notifier == nil {
		return
	}

	var u user.User
	if err := s.db.First(&u, o.UserID).Error; err != nil {
		logrus.WithField("order_number", o.OrderNumber).WithError(err).Error("Failed to load customer for status email")
		return
	}

	err := s.notifier.SendOrderStatusUpdateEmail(ctx, email.OrderStatusUpdateData{
		EmailTemplateData: email.EmailTemplateData{UserName: u.GetDisplayName(), UserEmail: u.Email},
		OrderNumber:       o.OrderNumber,
		Status:            string(o.Status),
		Comment:           strings.TrimSpace(comment),
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"status":       o.Status,
		}).WithError(err).Error("Failed to send order status email")
	}
}

func addHistory(tx *gorm.DB, orderID uint, actorID *uint, action HistoryAction, description string) error {
	h := OrderHistory{
		OrderID:     orderID,
		UserID:      actorID,
		Action:      action,
		Description: description,
	}
	if err := tx.Create(&h).Error; err != nil {
		return fmt.Errorf("failed to write order history: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound
	}
	return fmt.Errorf("failed to retrieve order: %w", err)
}

// internal/domain/payment/service.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/user"
	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service runs checkout payments and processes gateway webhooks
type Service struct {
	db       *gorm.DB
	config   *config.Config
	orders   *order.Service
	gateways map[order.PaymentMethod]Gateway
}

// NewService creates a payment service with the given gateways
func NewService(db *gorm.DB, cfg *config.Config, orders *order.Service, gateways ...Gateway) *Service {
	s := &Service{
		db:       db,
		config:   cfg,
		orders:   orders,
		gateways: make(map[order.PaymentMethod]Gateway, len(gateways)),
	}
	for _, g := range gateways {
		s.gateways[g.Method()] = g
	}
	return s
}

// DefaultGateways returns the gateways enabled by configuration. The
// simulated gateway is always available outside production.
func DefaultGateways(cfg *config.Config) []Gateway {
	var out []Gateway
	if cfg.Store.PaymentProvider == string(order.PaymentMethodSimulated) || !cfg.IsProduction() {
		out = append(out, SimulatedGateway{})
	}
	if cfg.External.Stripe.SecretKey != "" {
		out = append(out, NewStripeGateway(cfg))
	}
	return out
}

// CheckoutResult is returned to the customer after checkout
type CheckoutResult struct {
	Order       *order.Order   `json:"order"`
	Payment     *order.Payment `json:"payment"`
	CheckoutURL string         `json:"checkout_url,omitempty"`
	Paid        bool           `json:"paid"`
}

// Checkout places the order and starts its payment. A simulated payment
// marks the order paid before returning; a hosted payment returns the URL
// the customer must visit.
func (s *Service) Checkout(ctx context.Context, userID uint, req *order.CheckoutRequest) (*CheckoutResult, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = order.PaymentMethod(s.config.Store.PaymentProvider)
	}
	gateway, ok := s.gateways[req.PaymentMethod]
	if !ok {
		return nil, order.ErrInvalidPaymentMethod
	}

	var customer user.User
	if err := s.db.First(&customer, userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	o, err := s.orders.Checkout(userID, req)
	if err != nil {
		return nil, err
	}

	if err := s.attachBooks(o); err != nil {
		return nil, err
	}

	session, err := gateway.Start(ctx, o, &customer)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"method":       req.PaymentMethod,
		}).WithError(err).Error("Payment could not be started")

		if _, cancelErr := s.orders.CancelPending(context.WithoutCancel(ctx), o.ID, nil, "Payment could not be started"); cancelErr != nil {
			logrus.WithField("order_number", o.OrderNumber).WithError(cancelErr).Error("Failed to cancel order after gateway error")
		}
		if errors.Is(err, ErrGatewayFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	p := order.Payment{
		OrderID:         o.ID,
		Method:          req.PaymentMethod,
		ProviderRef:     session.ProviderRef,
		Amount:          o.Total,
		Currency:        s.config.Store.Currency,
		Status:          order.PaymentStatusPending,
		GatewayResponse: datatypes.JSON(session.Response),
	}
	if session.Settled {
		now := time.Now().UTC()
		p.Status = order.PaymentStatusSucceeded
		p.ProcessedAt = &now
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if req.PaymentMethod == order.PaymentMethodStripe {
			if err := tx.Model(&order.Order{}).Where("id = ?", o.ID).
				UpdateColumn("stripe_session_id", session.ProviderRef).Error; err != nil {
				return fmt.Errorf("failed to store checkout session: %w", err)
			}
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{
		Order:       o,
		Payment:     &p,
		CheckoutURL: session.CheckoutURL,
	}

	if session.Settled {
		paid, _, err := s.orders.MarkPaid(ctx, o.ID, nil)
		if err != nil {
			return nil, err
		}
		metrics.PaymentConfirmed(string(req.PaymentMethod))
		result.Order = paid
		result.Paid = true
	}

	return result, nil
}

// HandleStripeWebhook verifies and applies a Stripe event
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	cfg := s.config.External.Stripe
	if err := VerifySignature(payload, signature, cfg.WebhookSecret, cfg.WebhookTolerance, time.Now()); err != nil {
		metrics.WebhookEvent("unknown", "bad_signature")
		return err
	}

	event, err := ParseEvent(payload)
	if err != nil {
		metrics.WebhookEvent("unknown", "bad_payload")
		return err
	}

	log := logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	var outcome string
	switch event.Type {
	case EventCheckoutCompleted:
		outcome, err = s.checkoutCompleted(ctx, event)
	case EventCheckoutExpired:
		outcome, err = s.checkoutExpired(ctx, event)
	default:
		outcome = "ignored"
	}
	if err != nil {
		metrics.WebhookEvent(event.Type, "error")
		log.WithError(err).Error("Webhook event failed")
		return err
	}

	metrics.WebhookEvent(event.Type, outcome)
	log.WithField("outcome", outcome).Info("Webhook event processed")
	return nil
}

func (s *Service) checkoutCompleted(ctx context.Context, event *Event) (string, error) {
	session, err := event.CheckoutSession()
	if err != nil {
		return "", err
	}

	o, err := s.orderBySession(session.ID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return "unknown_session", nil
		}
		return "", err
	}

	now := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if session.PaymentIntent != "" {
			if err := tx.Model(&order.Order{}).Where("id = ?", o.ID).
				UpdateColumn("stripe_payment_intent_id", session.PaymentIntent).Error; err != nil {
				return fmt.Errorf("failed to store payment intent: %w", err)
			}
		}
		return tx.Model(&order.Payment{}).
			Where("order_id = ? AND provider_ref = ?", o.ID, session.ID).
			UpdateColumns(map[string]interface{}{
				"status":           order.PaymentStatusSucceeded,
				"gateway_response": datatypes.JSON(event.Data.Object),
				"processed_at":     now,
				"updated_at":       now,
			}).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to record payment: %w", err)
	}

	current, changed, err := s.orders.MarkPaid(ctx, o.ID, nil)
	if err != nil {
		return "", err
	}
	if !changed && current.Status == order.StatusCancelled {
		if err := s.orders.NotePaymentAfterCancel(ctx, current, session.ID); err != nil {
			return "", err
		}
		logrus.WithFields(logrus.Fields{
			"order_number":   current.OrderNumber,
			"session_id":     session.ID,
			"payment_intent": session.PaymentIntent,
		}).Error("Payment received for a cancelled order; refund required")
		return "paid_after_cancel", nil
	}
	if !changed {
		return "duplicate", nil
	}

	metrics.PaymentConfirmed(string(order.PaymentMethodStripe))
	return "paid", nil
}

func (s *Service) checkoutExpired(ctx context.Context, event *Event) (string, error) {
	session, err := event.CheckoutSession()
	if err != nil {
		return "", err
	}

	o, err := s.orderBySession(session.ID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return "unknown_session", nil
		}
		return "", err
	}

	changed, err := s.orders.CancelPending(ctx, o.ID, nil, "Checkout session expired")
	if err != nil {
		return "", err
	}
	if !changed {
		return "ignored", nil
	}
	return "cancelled", nil
}

func (s *Service) orderBySession(sessionID string) (*order.Order, error) {
	var o order.Order
	if err := s.db.Where("stripe_session_id = ?", sessionID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &o, nil
}

// attachBooks loads the books of the order lines for gateway descriptions
func (s *Service) attachBooks(o *order.Order) error {
	ids := o.BookIDs()
	if len(ids) == 0 {
		return nil
	}

	var books []catalog.Book
	if err := s.db.Where("id IN ?", ids).Find(&books).Error; err != nil {
		return fmt.Errorf("failed to load books: %w", err)
	}

	byID := make(map[uint]*catalog.Book, len(books))
	for i := range books {
		byID[books[i].ID] = &books[i]
	}
	for i := range o.Lines {
		o.Lines[i].Book = byID[o.Lines[i].BookID]
	}
	return nil
}

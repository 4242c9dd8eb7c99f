// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/user"
)

var (
	ErrGatewayFailure   = errors.New("payment gateway unavailable")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Session is the outcome of starting a payment
type Session struct {
	ProviderRef string
	CheckoutURL string
	// Settled is true when the gateway confirmed the payment synchronously
	Settled  bool
	Response json.RawMessage
}

// Gateway starts payments for orders
type Gateway interface {
	Method() order.PaymentMethod
	Start(ctx context.Context, o *order.Order, customer *user.User) (*Session, error)
}

// SimulatedGateway accepts every payment immediately
type SimulatedGateway struct{}

// Method implements Gateway
func (SimulatedGateway) Method() order.PaymentMethod {
	return order.PaymentMethodSimulated
}

// Start implements Gateway
func (SimulatedGateway) Start(_ context.Context, o *order.Order, _ *user.User) (*Session, error) {
	ref := "SIM-" + uuid.New().String()
	raw, _ := json.Marshal(map[string]interface{}{
		"reference":    ref,
		"order_number": o.OrderNumber,
		"amount":       o.Total,
		"status":       "succeeded",
	})
	return &Session{
		ProviderRef: ref,
		Settled:     true,
		Response:    raw,
	}, nil
}

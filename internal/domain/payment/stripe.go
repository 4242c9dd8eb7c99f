// internal/domain/payment/stripe.go
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/user"
)

// StripeGateway creates hosted Checkout Sessions through the Stripe REST API
type StripeGateway struct {
	config *config.Config
	client *resty.Client
}

// CheckoutSession is the part of a Stripe Checkout Session this service reads
type CheckoutSession struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewStripeGateway creates a Stripe gateway
func NewStripeGateway(cfg *config.Config) *StripeGateway {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.External.Stripe.APIBaseURL, "/")).
		SetAuthToken(cfg.External.Stripe.SecretKey).
		SetTimeout(30 * time.Second)

	return &StripeGateway{
		config: cfg,
		client: client,
	}
}

// Method implements Gateway
func (g *StripeGateway) Method() order.PaymentMethod {
	return order.PaymentMethodStripe
}

// Start implements Gateway by creating a Checkout Session
func (g *StripeGateway) Start(ctx context.Context, o *order.Order, customer *user.User) (*Session, error) {
	form := g.sessionForm(o, customer)

	var session CheckoutSession
	var apiErr stripeError
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "checkout-"+o.OrderNumber).
		SetFormDataFromValues(form).
		SetResult(&session).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: stripe returned %d: %s", ErrGatewayFailure, resp.StatusCode(), apiErr.Error.Message)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("%w: incomplete checkout session", ErrGatewayFailure)
	}

	return &Session{
		ProviderRef: session.ID,
		CheckoutURL: session.URL,
		Response:    json.RawMessage(resp.Body()),
	}, nil
}

// Stripe accepts session lifetimes between 30 minutes and 24 hours.
const (
	minSessionTTL = 30 * time.Minute
	maxSessionTTL = 23 * time.Hour
	sessionMargin = time.Hour
)

// sessionTTL keeps the hosted session shorter than the pending order it pays
// for, so the customer cannot pay after the expiry job has cancelled it.
func sessionTTL(pendingOrderTTL time.Duration) time.Duration {
	ttl := pendingOrderTTL - sessionMargin
	if ttl > maxSessionTTL {
		ttl = maxSessionTTL
	}
	if ttl < minSessionTTL {
		ttl = minSessionTTL
	}
	return ttl
}

// sessionForm builds the form-encoded Checkout Session request. Orders
// without a discount list every book plus a tax line; discounted orders are
// charged as one line for the order total.
func (g *StripeGateway) sessionForm(o *order.Order, customer *user.User) url.Values {
	cfg := g.config.External.Stripe
	currency := strings.ToLower(g.config.Store.Currency)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", strings.ReplaceAll(cfg.SuccessURL, "{ORDER_NUMBER}", o.OrderNumber))
	form.Set("cancel_url", cfg.CancelURL)
	form.Set("client_reference_id", o.OrderNumber)
	form.Set("metadata[order_id]", strconv.FormatUint(uint64(o.ID), 10))
	form.Set("metadata[order_number]", o.OrderNumber)
	if customer != nil && customer.Email != "" {
		form.Set("customer_email", customer.Email)
	}
	form.Set("expires_at", strconv.FormatInt(time.Now().Add(sessionTTL(g.config.Store.PendingOrderTTL)).Unix(), 10))

	item := func(i int, name, description string, amount int64, qty int) {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(amount, 10))
		form.Set(prefix+"[price_data][product_data][name]", name)
		if description != "" {
			form.Set(prefix+"[price_data][product_data][description]", description)
		}
		form.Set(prefix+"[quantity]", strconv.Itoa(qty))
	}

	if o.DiscountAmount > 0 {
		titles := make([]string, 0, len(o.Lines))
		for _, l := range o.Lines {
			titles = append(titles, l.BookTitle)
		}
		item(0, "Order "+o.OrderNumber, strings.Join(titles, ", "), o.Total, 1)
		return form
	}

	i := 0
	for _, l := range o.Lines {
		description := ""
		if l.Book != nil && l.Book.Author != "" {
			description = "Author: " + l.Book.Author
		}
		item(i, l.BookTitle, description, l.UnitPrice, l.Quantity)
		i++
	}
	if o.TaxAmount > 0 {
		item(i, "Tax", "", o.TaxAmount, 1)
	}

	return form
}

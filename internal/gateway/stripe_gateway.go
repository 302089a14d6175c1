package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway implements PaymentGateway with Stripe payment intents
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for Stripe gateway
type StripeGatewayConfig struct {
	SecretKey string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeGateway{config: config}, nil
}

func (g *StripeGateway) Name() string { return string(GatewayTypeStripe) }

// CreatePayment creates a payment intent with automatic capture
func (g *StripeGateway) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Payment, error) {
	if req == nil || req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	currency := strings.ToLower(req.Currency)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(req.Amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &Payment{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       req.Amount,
		Currency:     currency,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// CancelPayment cancels a payment intent
func (g *StripeGateway) CancelPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	if paymentRef == "" {
		return nil, fmt.Errorf("payment reference is required")
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	pi, err := paymentintent.Cancel(paymentRef, params)
	if err != nil {
		if se, ok := err.(*stripe.Error); ok && se.HTTPStatusCode == 404 {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to cancel payment intent: %w", err)
	}

	return &Payment{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   float64(pi.Amount) / 100,
		Currency: string(pi.Currency),
	}, nil
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAmount   = errors.New("payment amount must be positive")
	ErrPaymentNotFound = errors.New("payment not found")
)

// PaymentGateway creates and cancels charges with an external provider.
// Purchases only store the returned reference; the charge is resolved before confirmation.
type PaymentGateway interface {
	// CreatePayment opens a charge for amount
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Payment, error)

	// CancelPayment voids a charge that has not been captured
	CancelPayment(ctx context.Context, paymentRef string) (*Payment, error)

	// Name returns the gateway name
	Name() string
}

// CreatePaymentRequest represents a charge request
type CreatePaymentRequest struct {
	Amount         float64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Payment is the provider's view of a charge
type Payment struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ClientSecret string  `json:"client_secret,omitempty"`
}

// Config holds gateway settings
type Config struct {
	Provider  string
	SecretKey string
	Currency  string
}

// GatewayType represents the type of payment gateway
type GatewayType string

const (
	GatewayTypeMock   GatewayType = "mock"
	GatewayTypeStripe GatewayType = "stripe"
)

// NewPaymentGateway creates a payment gateway based on the provider
func NewPaymentGateway(cfg *Config) (PaymentGateway, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	switch GatewayType(strings.ToLower(cfg.Provider)) {
	case GatewayTypeMock, "":
		return NewMockGateway(), nil
	case GatewayTypeStripe:
		gw, err := NewStripeGateway(&StripeGatewayConfig{SecretKey: cfg.SecretKey})
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", cfg.Provider)
	}
}

// toMinorUnits converts an amount to the smallest currency unit
func toMinorUnits(amount float64) int64 {
	if amount >= 0 {
		return int64(amount*100 + 0.5)
	}
	return int64(amount*100 - 0.5)
}

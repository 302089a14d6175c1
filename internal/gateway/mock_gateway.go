package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway implements PaymentGateway in memory for development and tests.
// Every payment succeeds immediately.
type MockGateway struct {
	payments sync.Map // id -> *Payment
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Name() string { return string(GatewayTypeMock) }

func (g *MockGateway) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil || req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	p := &Payment{
		ID:           "mock_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:       "succeeded",
		Amount:       req.Amount,
		Currency:     strings.ToLower(req.Currency),
		ClientSecret: "mock_secret_" + uuid.NewString(),
	}
	g.payments.Store(p.ID, p)

	out := *p
	return &out, nil
}

func (g *MockGateway) CancelPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := g.payments.Load(paymentRef)
	if !ok {
		return nil, ErrPaymentNotFound
	}
	p := *v.(*Payment)
	p.Status = "canceled"
	p.ClientSecret = ""
	g.payments.Store(paymentRef, &p)

	out := p
	return &out, nil
}

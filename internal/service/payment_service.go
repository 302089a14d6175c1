package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/gateway"
	"github.com/nickruden/diplom-server/pkg/telemetry"
)

// PaymentServiceConfig contains configuration for the payment service
type PaymentServiceConfig struct {
	Currency    string
	Description string
}

// paymentService implements PaymentService
type paymentService struct {
	gateway gateway.PaymentGateway
	config  *PaymentServiceConfig
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(gw gateway.PaymentGateway, config *PaymentServiceConfig) PaymentService {
	if config == nil {
		config = &PaymentServiceConfig{}
	}
	if config.Currency == "" {
		config.Currency = "rub"
	}
	if config.Description == "" {
		config.Description = "Event tickets"
	}
	return &paymentService{gateway: gw, config: config}
}

// CreatePayment opens a charge the client completes before confirming the purchase
func (s *paymentService) CreatePayment(ctx context.Context, userID int64, amount float64) (*gateway.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Float64("amount", amount),
		attribute.String("gateway", s.gateway.Name()),
	)

	if amount <= 0 {
		return nil, domain.Validation("amount must be positive")
	}

	payment, err := s.gateway.CreatePayment(ctx, &gateway.CreatePaymentRequest{
		Amount:         amount,
		Currency:       s.config.Currency,
		Description:    s.config.Description,
		IdempotencyKey: uuid.NewString(),
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, mapGatewayError(err, "")
	}
	return payment, nil
}

// CancelPayment voids a charge
func (s *paymentService) CancelPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("payment_id", paymentID))

	if paymentID == "" {
		return nil, domain.Validation("payment id is required")
	}
	payment, err := s.gateway.CancelPayment(ctx, paymentID)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, mapGatewayError(err, paymentID)
	}
	return payment, nil
}

func mapGatewayError(err error, paymentID string) error {
	switch {
	case errors.Is(err, gateway.ErrInvalidAmount):
		return domain.Validation("%s", err.Error())
	case errors.Is(err, gateway.ErrPaymentNotFound):
		return domain.ErrEntityNotFound.WithDetail("entity", "payment").WithDetail("paymentId", paymentID)
	}
	return fmt.Errorf("payment gateway: %w", err)
}

package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewMockGateway(t *testing.T) {
	gw := NewMockGateway()
	if gw.Name() != "mock" {
		t.Errorf("Expected name 'mock', got '%s'", gw.Name())
	}
}

func TestMockGateway_CreatePayment(t *testing.T) {
	gw := NewMockGateway()

	p, err := gw.CreatePayment(context.Background(), &CreatePaymentRequest{Amount: 1500, Currency: "RUB"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(p.ID, "mock_") {
		t.Errorf("Expected mock reference, got %q", p.ID)
	}
	if p.Status != "succeeded" {
		t.Errorf("Expected status 'succeeded', got '%s'", p.Status)
	}
	if p.Currency != "rub" {
		t.Errorf("Expected lower-case currency, got '%s'", p.Currency)
	}
}

func TestMockGateway_CreatePayment_InvalidAmount(t *testing.T) {
	gw := NewMockGateway()

	for _, amount := range []float64{0, -10} {
		_, err := gw.CreatePayment(context.Background(), &CreatePaymentRequest{Amount: amount})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestMockGateway_CancelPayment(t *testing.T) {
	gw := NewMockGateway()
	ctx := context.Background()

	p, err := gw.CreatePayment(ctx, &CreatePaymentRequest{Amount: 10})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	canceled, err := gw.CancelPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if canceled.Status != "canceled" {
		t.Errorf("Expected status 'canceled', got '%s'", canceled.Status)
	}

	if _, err := gw.CancelPayment(ctx, "unknown"); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("Expected ErrPaymentNotFound, got %v", err)
	}
}

func TestNewPaymentGateway(t *testing.T) {
	gw, err := NewPaymentGateway(&Config{Provider: "mock"})
	if err != nil || gw.Name() != "mock" {
		t.Fatalf("expected mock gateway, got %v, %v", gw, err)
	}

	if _, err := NewPaymentGateway(&Config{Provider: "stripe"}); err == nil {
		t.Error("expected error for stripe without a secret key")
	}

	if _, err := NewPaymentGateway(&Config{Provider: "paypal"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestToMinorUnits(t *testing.T) {
	cases := map[float64]int64{0: 0, 1: 100, 19.99: 1999, 0.1 + 0.2: 30}
	for in, want := range cases {
		if got := toMinorUnits(in); got != want {
			t.Errorf("toMinorUnits(%v) = %d, want %d", in, got, want)
		}
	}
}

// Package gateway wraps the payment provider behind the narrow contract the
// settlement service needs: open an order, fetch a payment's authoritative
// status, and verify the provider's two signature schemes.
package gateway

import (
	"context"
)

// Order is the provider-side order opened for a payment attempt.
type Order struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Status   string
}

// PaymentInfo is the provider's authoritative view of a payment.
type PaymentInfo struct {
	ID      string
	OrderID string
	Status  string // created, authorized, captured, refunded, failed
	Amount  int64
}

// Client is the provider contract. The production implementation talks to
// Razorpay; tests substitute a fake.
type Client interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*PaymentInfo, error)
}

// StatusCaptured is the only provider status the settlement service accepts
// as proof of collection.
const StatusCaptured = "captured"

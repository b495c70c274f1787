package gateway

import (
	"context"
	"fmt"
	"log"

	razorpay "github.com/razorpay/razorpay-go"
)

// Razorpay implements Client over the Razorpay SDK. Amounts are in paise.
type Razorpay struct {
	client *razorpay.Client
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{client: razorpay.NewClient(keyID, keySecret)}
}

func (r *Razorpay) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*Order, error) {
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := r.client.Order.Create(data, nil)
	if err != nil {
		log.Printf("razorpay create order failed (receipt %s): %v", receipt, err)
		return nil, fmt.Errorf("create order: %w", err)
	}

	order := &Order{
		ID:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Status:   stringField(body, "status"),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("create order: response missing id")
	}
	return order, nil
}

func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	body, err := r.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		log.Printf("razorpay fetch payment %s failed: %v", paymentID, err)
		return nil, fmt.Errorf("fetch payment: %w", err)
	}
	return &PaymentInfo{
		ID:      stringField(body, "id"),
		OrderID: stringField(body, "order_id"),
		Status:  stringField(body, "status"),
		Amount:  intField(body, "amount"),
	}, nil
}

// The SDK returns loosely typed maps.
func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/gateway"
	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/pricing"
	"github.com/festbook/festbook-backend/internal/store/memstore"
)

const (
	testCheckoutSecret = "test_key_secret"
	testWebhookSecret  = "test_webhook_secret"
)

var (
	customer = auth.Identity{PartyID: "cust_1", Role: auth.RoleCustomer, Name: "Asha", Phone: "9000000001"}
	vendor   = auth.Identity{PartyID: "vend_1", Role: auth.RoleVendor, Name: "Ravi Caterers", Phone: "9000000002"}
	operator = auth.Identity{PartyID: "op_1", Role: auth.RoleAdmin, Name: "Ops"}
	stranger = auth.Identity{PartyID: "cust_2", Role: auth.RoleCustomer, Name: "Meera", Phone: "9000000003"}
)

// fakeGateway satisfies gateway.Client in memory. Payment statuses are
// seeded per test; unknown payments report "created".
type fakeGateway struct {
	mu       sync.Mutex
	orders   int
	amounts  []int64
	statuses map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]string)}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders++
	g.amounts = append(g.amounts, amountMinor)
	return &gateway.Order{
		ID:       fmt.Sprintf("order_%d", g.orders),
		Amount:   amountMinor,
		Currency: currency,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*gateway.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[paymentID]
	if !ok {
		status = "created"
	}
	return &gateway.PaymentInfo{ID: paymentID, Status: status}, nil
}

func (g *fakeGateway) setStatus(paymentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[paymentID] = status
}

func (g *fakeGateway) orderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders
}

type fixture struct {
	store      *memstore.Store
	gw         *fakeGateway
	bookings   *BookingService
	settlement *SettlementService
	payouts    *PayoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureTTL(t, 24*time.Hour)
}

func newFixtureTTL(t *testing.T, pendingTTL time.Duration) *fixture {
	t.Helper()
	st := memstore.New()
	gw := newFakeGateway()
	return &fixture{
		store:    st,
		gw:       gw,
		bookings: NewBookingService(st, nil),
		settlement: NewSettlementService(st, gw, nil, SettlementConfig{
			Rates:          pricing.DefaultRates,
			CheckoutSecret: testCheckoutSecret,
			WebhookSecret:  testWebhookSecret,
			PendingTTL:     pendingTTL,
		}),
		payouts: NewPayoutService(st),
	}
}

// newBooking creates a pending booking for the fixture customer/vendor pair.
func (f *fixture) newBooking(t *testing.T, items ...models.LineItem) *models.Booking {
	t.Helper()
	if len(items) == 0 {
		items = []models.LineItem{{Name: "Wedding catering", Price: 1000, Description: "200 plates"}}
	}
	b, err := f.bookings.CreateBooking(context.Background(), customer, CreateBookingInput{
		Vendor:  models.PartySnapshot{ID: vendor.PartyID, Name: vendor.Name, Phone: vendor.Phone},
		Listing: models.PartySnapshot{ID: "lst_1", Name: "Ravi Caterers - Premium"},
		Items:   items,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

// acceptedBooking creates a booking the vendor has already accepted.
func (f *fixture) acceptedBooking(t *testing.T, items ...models.LineItem) *models.Booking {
	t.Helper()
	b := f.newBooking(t, items...)
	if _, err := f.bookings.Decide(context.Background(), vendor, b.ID, models.BookingAccepted); err != nil {
		t.Fatalf("Decide(accepted): %v", err)
	}
	b.Status = models.BookingAccepted
	return b
}

// capturedPayment runs the order + webhook-capture flow and returns the
// captured payment.
func (f *fixture) capturedPayment(t *testing.T) *models.Payment {
	t.Helper()
	b := f.acceptedBooking(t)
	p, err := f.settlement.CreateOrder(context.Background(), customer, b.ID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	body := capturedEvent("pay_"+p.ID, p.OrderID)
	if err := f.settlement.HandleWebhook(context.Background(), body, webhookSig(testWebhookSecret, body)); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	p, err = f.store.GetPayment(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	return p
}

func checkoutSig(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookSig(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedEvent(gatewayPaymentID, orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured","amount":100000}}}}`,
		gatewayPaymentID, orderID))
}

func failedEvent(gatewayPaymentID, orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"failed"}}}}`,
		gatewayPaymentID, orderID))
}

func refundEvent(gatewayPaymentID, orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"refund.processed","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"refunded"}}}}`,
		gatewayPaymentID, orderID))
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/festbook/festbook-backend/internal/apperr"
	"github.com/festbook/festbook-backend/internal/models"
)

func TestCreateOrderRequiresAcceptedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.newBooking(t)
	if _, err := f.settlement.CreateOrder(ctx, customer, pending.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("order on pending booking: got %v, want validation", err)
	}

	rejected := f.newBooking(t)
	if _, err := f.bookings.Decide(ctx, vendor, rejected.ID, models.BookingNotAccepted); err != nil {
		t.Fatal(err)
	}
	if _, err := f.settlement.CreateOrder(ctx, customer, rejected.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("order on rejected booking: got %v, want validation", err)
	}
	if f.gw.orderCount() != 0 {
		t.Errorf("gateway orders opened: got %d, want 0", f.gw.orderCount())
	}
}

func TestCreateOrderComputesSplit(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t) // total 1000

	p, err := f.settlement.CreateOrder(context.Background(), customer, b.ID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	a := p.Amounts
	if a.PlatformFee != 60 || a.VendorAmount != 940 || a.AdvanceAmount != 141 || a.RemainingAmount != 799 {
		t.Errorf("split: got %+v", a)
	}
	if p.Status != models.PaymentPending {
		t.Errorf("status: got %s, want pending", p.Status)
	}
	if p.OrderID == "" {
		t.Error("gateway order id not recorded")
	}
	if len(f.gw.amounts) != 1 || f.gw.amounts[0] != 100000 {
		t.Errorf("gateway amount: got %v, want [100000] paise", f.gw.amounts)
	}

	// The booking carries the payment back-reference.
	cur, _ := f.store.GetBooking(context.Background(), b.ID)
	if cur.PaymentID != p.ID {
		t.Errorf("booking payment ref: got %q, want %q", cur.PaymentID, p.ID)
	}
}

func TestCreateOrderAuthorization(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	if _, err := f.settlement.CreateOrder(ctx, stranger, b.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("foreign customer: got %v, want forbidden", err)
	}
	if _, err := f.settlement.CreateOrder(ctx, vendor, b.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("vendor paying: got %v, want forbidden", err)
	}
	if _, err := f.settlement.CreateOrder(ctx, customer, "missing"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("missing booking: got %v, want not_found", err)
	}
}

func TestCreateOrderReusesFreshPending(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	first, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	second, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatalf("CreateOrder again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-checkout created a new payment: %s vs %s", second.ID, first.ID)
	}
	if f.gw.orderCount() != 1 {
		t.Errorf("gateway orders: got %d, want 1", f.gw.orderCount())
	}
}

func TestCreateOrderSupersedesStalePending(t *testing.T) {
	f := newFixtureTTL(t, time.Nanosecond)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	first, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	time.Sleep(time.Millisecond) // let the pending order age past the TTL

	second, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatalf("CreateOrder after expiry: %v", err)
	}
	if second.ID == first.ID {
		t.Error("stale pending payment was not superseded")
	}

	old, _ := f.store.GetPayment(ctx, first.ID)
	if old.Status != models.PaymentFailed || old.FailureReason != "expired" {
		t.Errorf("stale payment: status %s, reason %q", old.Status, old.FailureReason)
	}
}

func TestVerifyCaptures(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	p, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	f.gw.setStatus("pay_77", "captured")

	got, err := f.settlement.Verify(ctx, customer, VerifyInput{
		OrderID:   p.OrderID,
		PaymentID: "pay_77",
		Signature: checkoutSig(testCheckoutSecret, p.OrderID, "pay_77"),
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Status != models.PaymentCaptured {
		t.Errorf("payment status: got %s, want captured", got.Status)
	}
	if got.GatewayPaymentID != "pay_77" {
		t.Errorf("gateway payment id: got %q", got.GatewayPaymentID)
	}

	booking, _ := f.store.GetBooking(ctx, b.ID)
	if booking.PaymentStatus != models.MirrorPaid {
		t.Errorf("booking mirror: got %s, want paid", booking.PaymentStatus)
	}
	entries, _ := f.store.ListLedger(ctx)
	if len(entries) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(entries))
	}
	if entries[0].PaymentID != p.ID || entries[0].VendorAmount != 940 {
		t.Errorf("ledger entry: %+v", entries[0])
	}
}

func TestVerifyBadSignature(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	p, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.settlement.Verify(ctx, customer, VerifyInput{
		OrderID:   p.OrderID,
		PaymentID: "pay_77",
		Signature: "forged",
	})
	if !apperr.IsKind(err, apperr.KindSignatureInvalid) {
		t.Fatalf("got %v, want signature_invalid", err)
	}

	cur, _ := f.store.GetPayment(ctx, p.ID)
	if cur.Status != models.PaymentFailed {
		t.Errorf("payment status: got %s, want failed", cur.Status)
	}
	booking, _ := f.store.GetBooking(ctx, b.ID)
	if booking.PaymentStatus != models.MirrorFailed {
		t.Errorf("booking mirror: got %s, want failed", booking.PaymentStatus)
	}
	if entries, _ := f.store.ListLedger(ctx); len(entries) != 0 {
		t.Errorf("ledger entries after failed verify: got %d, want 0", len(entries))
	}
}

func TestVerifyGatewayNotCaptured(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	p, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	f.gw.setStatus("pay_77", "authorized")

	_, err = f.settlement.Verify(ctx, customer, VerifyInput{
		OrderID:   p.OrderID,
		PaymentID: "pay_77",
		Signature: checkoutSig(testCheckoutSecret, p.OrderID, "pay_77"),
	})
	if !apperr.IsKind(err, apperr.KindGatewayRejected) {
		t.Fatalf("got %v, want gateway_rejected", err)
	}

	// Valid signature but unsettled charge changes nothing locally.
	cur, _ := f.store.GetPayment(ctx, p.ID)
	if cur.Status != models.PaymentPending {
		t.Errorf("payment status: got %s, want pending", cur.Status)
	}
}

func TestWebhookCaptureThenVerify(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	p, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Webhook first: the payment id is unknown locally, lookup falls back
	// to the order id and backfills.
	body := capturedEvent("pay_77", p.OrderID)
	if err := f.settlement.HandleWebhook(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	cur, _ := f.store.GetPayment(ctx, p.ID)
	if cur.Status != models.PaymentCaptured || cur.GatewayPaymentID != "pay_77" {
		t.Fatalf("after webhook: status %s, gateway id %q", cur.Status, cur.GatewayPaymentID)
	}

	// The later client verification observes already-captured and succeeds
	// without touching the gateway or duplicating the ledger entry.
	got, err := f.settlement.Verify(ctx, customer, VerifyInput{
		OrderID:   p.OrderID,
		PaymentID: "pay_77",
		Signature: checkoutSig(testCheckoutSecret, p.OrderID, "pay_77"),
	})
	if err != nil {
		t.Fatalf("Verify after webhook: %v", err)
	}
	if got.Status != models.PaymentCaptured {
		t.Errorf("verify result: got %s, want captured", got.Status)
	}

	entries, _ := f.store.ListLedger(ctx)
	if len(entries) != 1 {
		t.Errorf("ledger entries: got %d, want 1", len(entries))
	}
	booking, _ := f.store.GetBooking(ctx, b.ID)
	if booking.PaymentStatus != models.MirrorPaid {
		t.Errorf("booking mirror: got %s, want paid", booking.PaymentStatus)
	}
}

// TestDualPathConcurrentCapture hammers both reconciliation paths with
// duplicates at once; whatever the interleaving, the payment is captured
// once, one ledger entry exists, and the booking is paid.
func TestDualPathConcurrentCapture(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	p, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	f.gw.setStatus("pay_77", "captured")

	body := capturedEvent("pay_77", p.OrderID)
	sig := webhookSig(testWebhookSecret, body)
	verifyIn := VerifyInput{
		OrderID:   p.OrderID,
		PaymentID: "pay_77",
		Signature: checkoutSig(testCheckoutSecret, p.OrderID, "pay_77"),
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.settlement.Verify(ctx, customer, verifyIn); err != nil {
				t.Errorf("Verify: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := f.settlement.HandleWebhook(ctx, body, sig); err != nil {
				t.Errorf("HandleWebhook: %v", err)
			}
		}()
	}
	wg.Wait()

	cur, _ := f.store.GetPayment(ctx, p.ID)
	if cur.Status != models.PaymentCaptured {
		t.Errorf("payment status: got %s, want captured", cur.Status)
	}
	entries, _ := f.store.ListLedger(ctx)
	if len(entries) != 1 {
		t.Errorf("ledger entries: got %d, want exactly 1", len(entries))
	}
	booking, _ := f.store.GetBooking(ctx, b.ID)
	if booking.PaymentStatus != models.MirrorPaid {
		t.Errorf("booking mirror: got %s, want paid", booking.PaymentStatus)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	f := newFixture(t)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	p, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatal(err)
	}

	body := capturedEvent("pay_77", p.OrderID)
	err = f.settlement.HandleWebhook(ctx, body, "forged")
	if !apperr.IsKind(err, apperr.KindSignatureInvalid) {
		t.Fatalf("got %v, want signature_invalid", err)
	}

	cur, _ := f.store.GetPayment(ctx, p.ID)
	if cur.Status != models.PaymentPending {
		t.Errorf("payment status: got %s, want pending", cur.Status)
	}
	if entries, _ := f.store.ListLedger(ctx); len(entries) != 0 {
		t.Errorf("ledger entries: got %d, want 0", len(entries))
	}
}

func TestWebhookFailureNeverDowngradesCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Failure while pending downgrades.
	b := f.acceptedBooking(t)
	p, err := f.settlement.CreateOrder(ctx, customer, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	body := failedEvent("pay_77", p.OrderID)
	if err := f.settlement.HandleWebhook(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
		t.Fatalf("HandleWebhook(failed): %v", err)
	}
	cur, _ := f.store.GetPayment(ctx, p.ID)
	if cur.Status != models.PaymentFailed {
		t.Errorf("payment status: got %s, want failed", cur.Status)
	}

	// A late failure event against a captured payment is a no-op.
	captured := f.capturedPayment(t)
	body = failedEvent(captured.GatewayPaymentID, captured.OrderID)
	if err := f.settlement.HandleWebhook(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
		t.Fatalf("HandleWebhook(late failed): %v", err)
	}
	cur, _ = f.store.GetPayment(ctx, captured.ID)
	if cur.Status != models.PaymentCaptured {
		t.Errorf("captured payment downgraded to %s", cur.Status)
	}
}

func TestWebhookRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.capturedPayment(t)

	body := refundEvent(p.GatewayPaymentID, p.OrderID)
	if err := f.settlement.HandleWebhook(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
		t.Fatalf("HandleWebhook(refund): %v", err)
	}

	cur, _ := f.store.GetPayment(ctx, p.ID)
	if cur.Status != models.PaymentRefunded {
		t.Errorf("payment status: got %s, want refunded", cur.Status)
	}
	booking, _ := f.store.GetBooking(ctx, p.BookingID)
	if booking.PaymentStatus != models.MirrorRefunded {
		t.Errorf("booking mirror: got %s, want refunded", booking.PaymentStatus)
	}
}

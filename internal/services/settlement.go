package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/festbook/festbook-backend/internal/apperr"
	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/gateway"
	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/notify"
	"github.com/festbook/festbook-backend/internal/pricing"
	"github.com/festbook/festbook-backend/internal/store"
)

// SettlementService orchestrates payment order creation and the two
// reconciliation paths: the client's synchronous verification call and the
// gateway's asynchronous webhook. Both funnel into the same capture gate,
// a compare-and-swap on the payment status, so duplicated or racing
// deliveries settle a payment exactly once.
type SettlementService struct {
	bookings store.BookingStore
	payments store.PaymentStore
	ledger   store.LedgerStore
	gw       gateway.Client
	notifier notify.Dispatcher

	rates          pricing.Rates
	checkoutSecret string
	webhookSecret  string

	// A pending payment older than this is expired and superseded at the
	// next order-creation attempt.
	pendingTTL time.Duration
}

type SettlementConfig struct {
	Rates          pricing.Rates
	CheckoutSecret string
	WebhookSecret  string
	PendingTTL     time.Duration
}

func NewSettlementService(st store.Store, gw gateway.Client, notifier notify.Dispatcher, cfg SettlementConfig) *SettlementService {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 24 * time.Hour
	}
	return &SettlementService{
		bookings:       st,
		payments:       st,
		ledger:         st,
		gw:             gw,
		notifier:       notifier,
		rates:          cfg.Rates,
		checkoutSecret: cfg.CheckoutSecret,
		webhookSecret:  cfg.WebhookSecret,
		pendingTTL:     cfg.PendingTTL,
	}
}

// CreateOrder opens a gateway order for an accepted booking and persists the
// pending payment with its commission split. Re-calling while a fresh
// pending payment exists returns that payment unchanged; a stale one is
// expired and replaced.
func (s *SettlementService) CreateOrder(ctx context.Context, caller auth.Identity, bookingID string) (*models.Payment, error) {
	ctx, span := otel.Tracer("settlement").Start(ctx, "CreateOrder")
	defer span.End()

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "booking not found")
		}
		return nil, err
	}
	if caller.Role != auth.RoleCustomer || b.Customer.ID != caller.PartyID {
		return nil, apperr.New(apperr.KindForbidden, "only the booking customer can pay")
	}
	if b.Status != models.BookingAccepted {
		return nil, apperr.New(apperr.KindValidation, "booking must be accepted before payment")
	}
	if b.PaymentStatus == models.MirrorPaid {
		return nil, apperr.New(apperr.KindConflict, "booking is already paid")
	}

	if existing, err := s.payments.FindPendingByBooking(ctx, bookingID); err == nil {
		if time.Since(existing.CreatedAt) < s.pendingTTL {
			return existing, nil
		}
		// Abandoned checkout: retire the stale order and open a fresh one.
		if won, err := s.payments.FailPayment(ctx, existing.ID, "expired"); err != nil {
			return nil, err
		} else if won {
			log.Printf("expired stale pending payment %s for booking %s", existing.ID, bookingID)
		}
	} else if err != store.ErrNoMatch {
		return nil, err
	}

	split := s.rates.Split(b.Total)
	order, err := s.gw.CreateOrder(ctx, pricing.Paise(split.Total), "INR", "rcpt_"+uuid.NewString())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "payment gateway unavailable", err)
	}

	p := &models.Payment{
		BookingID: bookingID,
		Amounts:   split,
		OrderID:   order.ID,
		Status:    models.PaymentPending,
		Payout:    models.Payout{Status: models.PayoutNone},
	}
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	if err := s.bookings.SetBookingPayment(ctx, bookingID, p.ID); err != nil {
		log.Printf("backfill payment ref on booking %s failed: %v", bookingID, err)
	}
	return p, nil
}

type VerifyInput struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Verify is completion path A: the client presents the gateway's checkout
// confirmation. The signature is recomputed locally; on a match the gateway
// is still asked for the authoritative payment status before capture.
func (s *SettlementService) Verify(ctx context.Context, caller auth.Identity, in VerifyInput) (*models.Payment, error) {
	ctx, span := otel.Tracer("settlement").Start(ctx, "Verify")
	defer span.End()

	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return nil, apperr.New(apperr.KindValidation, "order_id, payment_id and signature are required")
	}

	p, err := s.payments.FindPaymentByOrderID(ctx, in.OrderID)
	if err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "payment not found for order")
		}
		return nil, err
	}

	b, err := s.bookings.GetBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RoleCustomer || b.Customer.ID != caller.PartyID {
		return nil, apperr.New(apperr.KindForbidden, "only the booking customer can verify this payment")
	}

	if !gateway.VerifyCheckoutSignature(s.checkoutSecret, in.OrderID, in.PaymentID, in.Signature) {
		if won, err := s.payments.FailPayment(ctx, p.ID, "signature mismatch"); err != nil {
			return nil, err
		} else if won {
			if err := s.bookings.SetBookingPaymentStatus(ctx, p.BookingID, models.MirrorFailed); err != nil {
				log.Printf("mirror failed status on booking %s: %v", p.BookingID, err)
			}
		}
		return nil, apperr.New(apperr.KindSignatureInvalid, "payment signature mismatch")
	}

	if p.Status == models.PaymentCaptured {
		// The webhook won the race. Retry the ledger insert in case the
		// earlier attempt died between capture and insert, then report
		// success to the client.
		s.ensureLedger(ctx, p, b)
		return p, nil
	}

	info, err := s.gw.FetchPayment(ctx, in.PaymentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "payment gateway unavailable", err)
	}
	if info.Status != gateway.StatusCaptured {
		// Not captured on the gateway side yet; nothing changes locally and
		// the client may retry once the charge settles.
		return nil, apperr.New(apperr.KindGatewayRejected, "payment not captured by gateway (status "+info.Status+")")
	}

	return s.capture(ctx, p, b, in.PaymentID, in.Signature)
}

// webhookEvent is the provider's envelope: the signature in the
// X-Razorpay-Signature header covers the raw body bytes.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
				Amount  int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook is completion path B. Deliveries may arrive before, after,
// or concurrently with Verify, and may be retried; all of that is safe
// because capture goes through the same gate.
func (s *SettlementService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := otel.Tracer("settlement").Start(ctx, "HandleWebhook")
	defer span.End()

	if !gateway.VerifyWebhookSignature(s.webhookSecret, body, signature) {
		return apperr.New(apperr.KindSignatureInvalid, "webhook signature mismatch")
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed webhook payload", err)
	}
	entity := evt.Payload.Payment.Entity

	switch evt.Event {
	case "payment.captured":
		p, b, err := s.locatePayment(ctx, entity.ID, entity.OrderID)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentCaptured {
			s.ensureLedger(ctx, p, b)
			return nil
		}
		_, err = s.capture(ctx, p, b, entity.ID, signature)
		if apperr.IsKind(err, apperr.KindConflict) {
			// Late duplicate against a settled payment; acknowledge it.
			return nil
		}
		return err

	case "payment.failed":
		p, _, err := s.locatePayment(ctx, entity.ID, entity.OrderID)
		if err != nil {
			return err
		}
		won, err := s.payments.FailPayment(ctx, p.ID, "gateway reported failure")
		if err != nil {
			return err
		}
		if won {
			if err := s.bookings.SetBookingPaymentStatus(ctx, p.BookingID, models.MirrorFailed); err != nil {
				log.Printf("mirror failed status on booking %s: %v", p.BookingID, err)
			}
		}
		// A captured payment is never downgraded by a late failure event.
		return nil

	case "refund.processed":
		p, b, err := s.locatePayment(ctx, entity.ID, entity.OrderID)
		if err != nil {
			return err
		}
		won, err := s.payments.RefundPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		if won {
			if err := s.bookings.SetBookingPaymentStatus(ctx, p.BookingID, models.MirrorRefunded); err != nil {
				log.Printf("mirror refunded status on booking %s: %v", p.BookingID, err)
			}
			s.notifyStatus(ctx, b.Customer, b.ID, "refunded")
		}
		return nil

	default:
		log.Printf("ignoring webhook event %q", evt.Event)
		return nil
	}
}

// locatePayment resolves a webhook entity to the local payment, by gateway
// payment id first and order id second (the payment id is unknown locally
// when the webhook beats the verification call), backfilling the payment id
// when found via the order.
func (s *SettlementService) locatePayment(ctx context.Context, gatewayPaymentID, orderID string) (*models.Payment, *models.Booking, error) {
	p, err := s.payments.FindPaymentByGatewayID(ctx, gatewayPaymentID)
	if err == store.ErrNoMatch && orderID != "" {
		p, err = s.payments.FindPaymentByOrderID(ctx, orderID)
		if err == nil && p.GatewayPaymentID == "" {
			if err := s.payments.SetGatewayPaymentID(ctx, p.ID, gatewayPaymentID); err != nil {
				log.Printf("backfill gateway payment id on %s: %v", p.ID, err)
			}
			p.GatewayPaymentID = gatewayPaymentID
		}
	}
	if err != nil {
		if err == store.ErrNoMatch {
			return nil, nil, apperr.New(apperr.KindNotFound, "no payment for webhook event")
		}
		return nil, nil, err
	}

	b, err := s.bookings.GetBooking(ctx, p.BookingID)
	if err != nil {
		return nil, nil, err
	}
	return p, b, nil
}

// capture performs the single pending→captured transition and its follow-on
// bookkeeping. On a lost race against an already-captured payment it
// reports success without side effects beyond the idempotent ledger retry.
func (s *SettlementService) capture(ctx context.Context, p *models.Payment, b *models.Booking, gatewayPaymentID, signature string) (*models.Payment, error) {
	won, err := s.payments.CapturePayment(ctx, p.ID, gatewayPaymentID, signature)
	if err != nil {
		return nil, err
	}

	if !won {
		cur, err := s.payments.GetPayment(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if cur.Status == models.PaymentCaptured {
			s.ensureLedger(ctx, cur, b)
			return cur, nil
		}
		// Pending lost to a failure or refund transition, not a capture.
		return nil, apperr.New(apperr.KindConflict, "payment is no longer pending")
	}

	p.Status = models.PaymentCaptured
	p.GatewayPaymentID = gatewayPaymentID
	p.Signature = signature

	s.ensureLedger(ctx, p, b)
	if err := s.bookings.SetBookingPaymentStatus(ctx, p.BookingID, models.MirrorPaid); err != nil {
		log.Printf("mirror paid status on booking %s: %v", p.BookingID, err)
	}
	s.notifyStatus(ctx, b.Customer, b.ID, "paid")
	s.notifyStatus(ctx, b.Vendor, b.ID, "paid")
	return p, nil
}

// ensureLedger records the captured payment for operator payout processing.
// The insert is idempotent on the payment id, so every reconciliation
// attempt may retry it; a failure is logged and left for the next attempt.
func (s *SettlementService) ensureLedger(ctx context.Context, p *models.Payment, b *models.Booking) {
	entry := models.LedgerEntry{
		PaymentID:    p.ID,
		BookingID:    p.BookingID,
		VendorID:     b.Vendor.ID,
		Total:        p.Amounts.Total,
		PlatformFee:  p.Amounts.PlatformFee,
		VendorAmount: p.Amounts.VendorAmount,
		CapturedAt:   time.Now(),
	}
	if err := s.ledger.EnsureLedgerEntry(ctx, entry); err != nil {
		log.Printf("ledger entry for payment %s failed (will retry on next reconciliation): %v", p.ID, err)
	}
}

func (s *SettlementService) notifyStatus(ctx context.Context, party models.PartySnapshot, bookingID, status string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingStatus(ctx, party, bookingID, status); err != nil {
		log.Printf("notify %s about booking %s (%s) failed: %v", party.ID, bookingID, status, err)
	}
}

// Package store defines the persistence contracts for the settlement
// engine. Every mutation is a single conditional write: the update only
// applies when the record still matches the expected prior state, and a
// zero-match result is reported as ErrNoMatch. That conditional write is
// the only concurrency guard in the system; there are no application-level
// locks around storage.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/festbook/festbook-backend/internal/models"
)

// ErrNoMatch means the record does not exist or its current state failed
// the update's precondition. Callers do not distinguish the two.
var ErrNoMatch = errors.New("no matching record")

type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookingsByCustomer(ctx context.Context, customerID string) ([]models.Booking, error)
	ListBookingsByVendor(ctx context.Context, vendorID string) ([]models.Booking, error)

	// TransitionBooking sets status to `to` only while the persisted status
	// is one of `from`.
	TransitionBooking(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) error

	// CancelBooking cancels while the booking is pending or accepted and
	// its payment mirror is not paid, and marks the mirror cancelled.
	CancelBooking(ctx context.Context, id string) error

	SetBookingPayment(ctx context.Context, id, paymentID string) error
	SetBookingPaymentStatus(ctx context.Context, id string, status models.PaymentMirror) error
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	FindPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	FindPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	FindPendingByBooking(ctx context.Context, bookingID string) (*models.Payment, error)

	// CapturePayment is the capture gate shared by both reconciliation
	// paths: a compare-and-swap from pending to captured. It reports
	// whether this call performed the transition.
	CapturePayment(ctx context.Context, id, gatewayPaymentID, signature string) (bool, error)

	// FailPayment downgrades a still-pending payment; a captured payment is
	// never downgraded by a late failure.
	FailPayment(ctx context.Context, id, reason string) (bool, error)

	// RefundPayment moves a captured payment to refunded.
	RefundPayment(ctx context.Context, id string) (bool, error)

	// SetGatewayPaymentID backfills the provider's payment id when the
	// webhook arrives before the client verification call.
	SetGatewayPaymentID(ctx context.Context, id, gatewayPaymentID string) error

	// MarkAdvancePaid / MarkFullPaid flip their monotonic payout flag, only
	// while the payment is captured and the flag is still false.
	MarkAdvancePaid(ctx context.Context, id string, at time.Time) (bool, error)
	MarkFullPaid(ctx context.Context, id string, at time.Time) (bool, error)
}

type LedgerStore interface {
	// EnsureLedgerEntry inserts the entry unless one already exists for its
	// payment. Safe to retry on every reconciliation attempt.
	EnsureLedgerEntry(ctx context.Context, entry models.LedgerEntry) error
	ListLedger(ctx context.Context) ([]models.LedgerEntry, error)
	CreateEngagement(ctx context.Context, e models.Engagement) error
}

// Store is the full persistence surface main wires up.
type Store interface {
	BookingStore
	PaymentStore
	LedgerStore
}

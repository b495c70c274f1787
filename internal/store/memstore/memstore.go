// Package memstore implements the store contracts in memory. It backs the
// service tests and the dev mode selected by an empty MONGOURI. The
// conditional-write semantics mirror mongostore exactly: each check-and-set
// happens under one lock acquisition, so it is as atomic as Mongo's
// single-document update.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/store"
)

type Store struct {
	mu          sync.Mutex
	bookings    map[string]*models.Booking
	payments    map[string]*models.Payment
	ledger      map[string]*models.LedgerEntry // keyed by payment id
	engagements []models.Engagement
}

func New() *Store {
	return &Store{
		bookings: make(map[string]*models.Booking),
		payments: make(map[string]*models.Payment),
		ledger:   make(map[string]*models.LedgerEntry),
	}
}

// ---------- bookings ----------

func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, store.ErrNoMatch
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListBookingsByCustomer(ctx context.Context, customerID string) ([]models.Booking, error) {
	return s.listBookings(func(b *models.Booking) bool { return b.Customer.ID == customerID })
}

func (s *Store) ListBookingsByVendor(ctx context.Context, vendorID string) ([]models.Booking, error) {
	return s.listBookings(func(b *models.Booking) bool { return b.Vendor.ID == vendorID })
}

func (s *Store) listBookings(match func(*models.Booking) bool) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TransitionBooking(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return store.ErrNoMatch
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			b.UpdatedAt = time.Now()
			return nil
		}
	}
	return store.ErrNoMatch
}

func (s *Store) CancelBooking(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return store.ErrNoMatch
	}
	if b.Status != models.BookingPending && b.Status != models.BookingAccepted {
		return store.ErrNoMatch
	}
	if b.PaymentStatus == models.MirrorPaid {
		return store.ErrNoMatch
	}
	b.Status = models.BookingCancelled
	b.PaymentStatus = models.MirrorCancelled
	b.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetBookingPayment(ctx context.Context, id, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return store.ErrNoMatch
	}
	b.PaymentID = paymentID
	b.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetBookingPaymentStatus(ctx context.Context, id string, status models.PaymentMirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return store.ErrNoMatch
	}
	b.PaymentStatus = status
	b.UpdatedAt = time.Now()
	return nil
}

// ---------- payments ----------

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.findPayment(func(p *models.Payment) bool { return p.ID == id })
}

func (s *Store) FindPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.findPayment(func(p *models.Payment) bool { return p.OrderID == orderID })
}

func (s *Store) FindPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	if gatewayPaymentID == "" {
		return nil, store.ErrNoMatch
	}
	return s.findPayment(func(p *models.Payment) bool { return p.GatewayPaymentID == gatewayPaymentID })
}

func (s *Store) FindPendingByBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	return s.findPayment(func(p *models.Payment) bool {
		return p.BookingID == bookingID && p.Status == models.PaymentPending
	})
}

func (s *Store) findPayment(match func(*models.Payment) bool) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNoMatch
}

func (s *Store) CapturePayment(ctx context.Context, id, gatewayPaymentID, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = models.PaymentCaptured
	p.GatewayPaymentID = gatewayPaymentID
	p.Signature = signature
	p.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) FailPayment(ctx context.Context, id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = models.PaymentFailed
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) RefundPayment(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.Status != models.PaymentCaptured {
		return false, nil
	}
	p.Status = models.PaymentRefunded
	p.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) SetGatewayPaymentID(ctx context.Context, id, gatewayPaymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return store.ErrNoMatch
	}
	p.GatewayPaymentID = gatewayPaymentID
	p.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkAdvancePaid(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.Status != models.PaymentCaptured || p.Payout.AdvancePaid {
		return false, nil
	}
	p.Payout.AdvancePaid = true
	p.Payout.AdvancePaidAt = &at
	p.Payout.Status = models.PayoutAdvancePaid
	p.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) MarkFullPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.Status != models.PaymentCaptured || p.Payout.FullPaid {
		return false, nil
	}
	p.Payout.FullPaid = true
	p.Payout.FullPaidAt = &at
	p.Payout.Status = models.PayoutFullPaid
	p.UpdatedAt = time.Now()
	return true, nil
}

// ---------- ledger ----------

func (s *Store) EnsureLedgerEntry(ctx context.Context, entry models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ledger[entry.PaymentID]; exists {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	cp := entry
	s.ledger[entry.PaymentID] = &cp
	return nil
}

func (s *Store) ListLedger(ctx context.Context) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range s.ledger {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out, nil
}

func (s *Store) CreateEngagement(ctx context.Context, e models.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	s.engagements = append(s.engagements, e)
	return nil
}

// Engagements returns the recorded engagements (test support).
func (s *Store) Engagements() []models.Engagement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Engagement, len(s.engagements))
	copy(out, s.engagements)
	return out
}

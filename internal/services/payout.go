package services

import (
	"context"
	"log"
	"time"

	"github.com/festbook/festbook-backend/internal/apperr"
	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/store"
)

// PayoutService is the operator's side of settlement: reading the capture
// ledger and marking the advance/full vendor disbursements as processed.
// Each mark is a one-shot action guarded by its monotonic flag; the actual
// bank transfer happens outside this system.
type PayoutService struct {
	bookings store.BookingStore
	payments store.PaymentStore
	ledger   store.LedgerStore
}

func NewPayoutService(st store.Store) *PayoutService {
	return &PayoutService{bookings: st, payments: st, ledger: st}
}

// ListLedger returns all captured payments joined with their payout state.
func (s *PayoutService) ListLedger(ctx context.Context, caller auth.Identity) ([]models.LedgerView, error) {
	if caller.Role != auth.RoleAdmin {
		return nil, apperr.New(apperr.KindForbidden, "operator access required")
	}

	entries, err := s.ledger.ListLedger(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.LedgerView, 0, len(entries))
	for _, entry := range entries {
		view := models.LedgerView{Entry: entry}
		p, err := s.payments.GetPayment(ctx, entry.PaymentID)
		if err != nil {
			log.Printf("ledger entry %s references missing payment %s: %v", entry.ID, entry.PaymentID, err)
		} else {
			view.Payout = p.Payout
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkAdvancePaid records that the vendor's advance has been disbursed and
// writes the engagement summary confirming the booking operationally.
func (s *PayoutService) MarkAdvancePaid(ctx context.Context, caller auth.Identity, paymentID string) (*models.Payment, error) {
	p, err := s.guardPayout(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}

	won, err := s.payments.MarkAdvancePaid(ctx, paymentID, time.Now())
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperr.New(apperr.KindConflict, "advance payout already processed")
	}

	if b, err := s.bookings.GetBooking(ctx, p.BookingID); err != nil {
		log.Printf("engagement summary for booking %s skipped: %v", p.BookingID, err)
	} else {
		e := models.Engagement{
			BookingID:   b.ID,
			PaymentID:   p.ID,
			VendorID:    b.Vendor.ID,
			CustomerID:  b.Customer.ID,
			ListingName: b.Listing.Name,
			Total:       b.Total,
		}
		if err := s.ledger.CreateEngagement(ctx, e); err != nil {
			log.Printf("engagement summary for booking %s failed: %v", b.ID, err)
		}
	}

	return s.payments.GetPayment(ctx, paymentID)
}

// MarkFullPaid records that the remaining vendor amount has been disbursed.
func (s *PayoutService) MarkFullPaid(ctx context.Context, caller auth.Identity, paymentID string) (*models.Payment, error) {
	if _, err := s.guardPayout(ctx, caller, paymentID); err != nil {
		return nil, err
	}

	won, err := s.payments.MarkFullPaid(ctx, paymentID, time.Now())
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperr.New(apperr.KindConflict, "full payout already processed")
	}
	return s.payments.GetPayment(ctx, paymentID)
}

func (s *PayoutService) guardPayout(ctx context.Context, caller auth.Identity, paymentID string) (*models.Payment, error) {
	if caller.Role != auth.RoleAdmin {
		return nil, apperr.New(apperr.KindForbidden, "operator access required")
	}
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "payment not found")
		}
		return nil, err
	}
	if p.Status != models.PaymentCaptured {
		return nil, apperr.New(apperr.KindValidation, "payment is not captured")
	}
	return p, nil
}

package services

import (
	"context"
	"log"
	"strings"

	"github.com/festbook/festbook-backend/internal/apperr"
	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/notify"
	"github.com/festbook/festbook-backend/internal/store"
)

// BookingService owns the booking request lifecycle: customer creates,
// vendor accepts or declines, customer cancels. Who may do what is checked
// here; whether the transition is still legal is checked by the store's
// conditional write.
type BookingService struct {
	bookings store.BookingStore
	notifier notify.Dispatcher
}

func NewBookingService(bookings store.BookingStore, notifier notify.Dispatcher) *BookingService {
	return &BookingService{bookings: bookings, notifier: notifier}
}

type CreateBookingInput struct {
	Vendor  models.PartySnapshot `json:"vendor"`
	Listing models.PartySnapshot `json:"listing"`
	Items   []models.LineItem    `json:"items"`
}

func (s *BookingService) CreateBooking(ctx context.Context, caller auth.Identity, in CreateBookingInput) (*models.Booking, error) {
	if caller.Role != auth.RoleCustomer {
		return nil, apperr.New(apperr.KindForbidden, "only a customer can create a booking")
	}
	if in.Vendor.ID == "" || in.Listing.ID == "" {
		return nil, apperr.New(apperr.KindValidation, "vendor and listing are required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.New(apperr.KindValidation, "at least one line item is required")
	}

	var total float64
	for _, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, apperr.New(apperr.KindValidation, "line item name cannot be empty")
		}
		if item.Price < 0 {
			return nil, apperr.New(apperr.KindValidation, "line item price cannot be negative")
		}
		total += item.Price
	}

	b := &models.Booking{
		Customer: models.PartySnapshot{
			ID:    caller.PartyID,
			Name:  caller.Name,
			Phone: caller.Phone,
		},
		Vendor:        in.Vendor,
		Listing:       in.Listing,
		Items:         in.Items,
		Total:         total,
		Status:        models.BookingPending,
		PaymentStatus: models.MirrorPending,
	}
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, b.Vendor, b.ID, string(models.BookingPending))
	return b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, caller auth.Identity, id string) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "booking not found")
		}
		return nil, err
	}
	if !mayRead(caller, b) {
		return nil, apperr.New(apperr.KindForbidden, "not a party to this booking")
	}
	return b, nil
}

func (s *BookingService) ListBookings(ctx context.Context, caller auth.Identity) ([]models.Booking, error) {
	switch caller.Role {
	case auth.RoleCustomer:
		return s.bookings.ListBookingsByCustomer(ctx, caller.PartyID)
	case auth.RoleVendor:
		return s.bookings.ListBookingsByVendor(ctx, caller.PartyID)
	default:
		return nil, apperr.New(apperr.KindForbidden, "unknown booking scope for role "+caller.Role)
	}
}

// Decide records the vendor's accept/decline on a pending booking.
func (s *BookingService) Decide(ctx context.Context, caller auth.Identity, id string, to models.BookingStatus) (*models.Booking, error) {
	if to != models.BookingAccepted && to != models.BookingNotAccepted {
		return nil, apperr.New(apperr.KindValidation, "status must be accepted or not_accepted")
	}

	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "booking not found")
		}
		return nil, err
	}
	if caller.Role != auth.RoleVendor || b.Vendor.ID != caller.PartyID {
		return nil, apperr.New(apperr.KindForbidden, "only the booked vendor can decide this booking")
	}

	// Conditional write: succeeds only while the booking is still pending.
	// A concurrent cancel or a duplicate decision loses here, not silently.
	if err := s.bookings.TransitionBooking(ctx, id, []models.BookingStatus{models.BookingPending}, to); err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "booking is no longer pending")
		}
		return nil, err
	}

	b.Status = to
	s.notifyStatus(ctx, b.Customer, b.ID, string(to))
	return b, nil
}

// Cancel withdraws the customer's own booking while it is pending or
// accepted and not yet paid.
func (s *BookingService) Cancel(ctx context.Context, caller auth.Identity, id string) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "booking not found")
		}
		return nil, err
	}
	if caller.Role != auth.RoleCustomer || b.Customer.ID != caller.PartyID {
		return nil, apperr.New(apperr.KindForbidden, "only the booking customer can cancel")
	}

	if err := s.bookings.CancelBooking(ctx, id); err != nil {
		if err == store.ErrNoMatch {
			return nil, apperr.New(apperr.KindNotFound, "booking can no longer be cancelled")
		}
		return nil, err
	}

	b.Status = models.BookingCancelled
	b.PaymentStatus = models.MirrorCancelled
	s.notifyStatus(ctx, b.Vendor, b.ID, string(models.BookingCancelled))
	return b, nil
}

func mayRead(caller auth.Identity, b *models.Booking) bool {
	switch caller.Role {
	case auth.RoleCustomer:
		return b.Customer.ID == caller.PartyID
	case auth.RoleVendor:
		return b.Vendor.ID == caller.PartyID
	case auth.RoleAdmin:
		return true
	}
	return false
}

// notifyStatus is fire-and-forget: delivery failure never rolls back the
// transition that triggered it.
func (s *BookingService) notifyStatus(ctx context.Context, party models.PartySnapshot, bookingID, status string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingStatus(ctx, party, bookingID, status); err != nil {
		log.Printf("notify %s about booking %s (%s) failed: %v", party.ID, bookingID, status, err)
	}
}

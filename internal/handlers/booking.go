package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/festbook/festbook-backend/internal/apperr"
	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/services"
)

type BookingHandler struct {
	service *services.BookingService
}

func NewBookingHandler(service *services.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}

	var in services.CreateBookingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid booking data"))
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), caller, in)
	if err != nil {
		log.Printf("Failed to create booking for %s: %v", caller.PartyID, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}

	bookingID := mux.Vars(r)["bookingID"]
	booking, err := h.service.GetBooking(r.Context(), caller, bookingID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	respondJSON(w, http.StatusOK, bookings)
}

// UpdateStatus routes the PATCH by requested status: the vendor decides
// accepted/not_accepted, the customer cancels.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}
	bookingID := mux.Vars(r)["bookingID"]

	var body struct {
		Status models.BookingStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid status payload"))
		return
	}

	var booking *models.Booking
	var err error
	switch body.Status {
	case models.BookingAccepted, models.BookingNotAccepted:
		booking, err = h.service.Decide(r.Context(), caller, bookingID, body.Status)
	case models.BookingCancelled:
		booking, err = h.service.Cancel(r.Context(), caller, bookingID)
	default:
		err = apperr.New(apperr.KindValidation, "status must be accepted, not_accepted or cancelled")
	}
	if err != nil {
		log.Printf("Failed to update booking %s to %s: %v", bookingID, body.Status, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

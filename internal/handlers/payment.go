package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/festbook/festbook-backend/internal/apperr"
	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/services"
)

type PaymentHandler struct {
	service *services.SettlementService
}

func NewPaymentHandler(service *services.SettlementService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}

	var body struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.BookingID == "" {
		respondError(w, apperr.New(apperr.KindValidation, "booking_id is required"))
		return
	}

	payment, err := h.service.CreateOrder(r.Context(), caller, body.BookingID)
	if err != nil {
		log.Printf("Failed to create payment order for booking %s: %v", body.BookingID, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"amounts":    payment.Amounts,
	})
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}

	var in services.VerifyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "invalid verification payload"))
		return
	}

	payment, err := h.service.Verify(r.Context(), caller, in)
	if err != nil {
		log.Printf("Payment verification failed for order %s: %v", in.OrderID, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

// Webhook receives the gateway's asynchronous events. The caller is not
// authenticated; the body signature is.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, apperr.New(apperr.KindValidation, "unreadable webhook body"))
		return
	}
	signature := r.Header.Get("X-Razorpay-Signature")

	if err := h.service.HandleWebhook(r.Context(), body, signature); err != nil {
		log.Printf("Webhook processing failed: %v", err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/festbook/festbook-backend/internal/apperr"
	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/services"
)

type AdminHandler struct {
	service *services.PayoutService
}

func NewAdminHandler(service *services.PayoutService) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}

	views, err := h.service.ListLedger(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) MarkAdvancePaid(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.service.MarkAdvancePaid)
}

func (h *AdminHandler) MarkFullPaid(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.service.MarkFullPaid)
}

func (h *AdminHandler) mark(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, auth.Identity, string) (*models.Payment, error)) {

	caller, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}
	paymentID := mux.Vars(r)["paymentID"]

	payment, err := fn(r.Context(), caller, paymentID)
	if err != nil {
		log.Printf("Payout mark on payment %s failed: %v", paymentID, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/festbook/festbook-backend/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	respondJSON(w, statusFor(kind), map[string]string{
		"error":   string(kind),
		"message": err.Error(),
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindSignatureInvalid:
		return http.StatusBadRequest
	case apperr.KindGatewayRejected:
		return http.StatusPaymentRequired
	default:
		return http.StatusServiceUnavailable
	}
}

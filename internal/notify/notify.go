// Package notify delivers booking-status notifications. Delivery is
// fire-and-forget: a failed notification is logged and never blocks or
// rolls back the transition that triggered it.
package notify

import (
	"context"
	"log"

	"github.com/festbook/festbook-backend/internal/models"
)

// Dispatcher pushes a status change to a party's notification channel.
type Dispatcher interface {
	BookingStatus(ctx context.Context, party models.PartySnapshot, bookingID, status string) error
}

// Console logs notifications instead of delivering them (local development).
type Console struct{}

func NewConsole() *Console {
	return &Console{}
}

func (c *Console) BookingStatus(ctx context.Context, party models.PartySnapshot, bookingID, status string) error {
	log.Printf("[notify] %s (%s) :: booking %s -> %s", party.Name, party.Phone, bookingID, status)
	return nil
}

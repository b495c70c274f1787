package models

import (
	"time"
)

// LedgerEntry marks a captured payment as recognized for operator payout
// processing. At most one entry exists per payment (unique index on
// payment_id); the entry is append-only after creation.
type LedgerEntry struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	PaymentID    string    `bson:"payment_id" json:"payment_id"`
	BookingID    string    `bson:"booking_id" json:"booking_id"`
	VendorID     string    `bson:"vendor_id" json:"vendor_id"`
	Total        float64   `bson:"total" json:"total"`
	PlatformFee  float64   `bson:"platform_fee" json:"platform_fee"`
	VendorAmount float64   `bson:"vendor_amount" json:"vendor_amount"`
	CapturedAt   time.Time `bson:"captured_at" json:"captured_at"`
}

// LedgerView is a ledger entry joined with the live payout state of its
// payment, as shown to the operator.
type LedgerView struct {
	Entry  LedgerEntry `json:"entry"`
	Payout Payout      `json:"payout"`
}

// Engagement is the operational booking summary written when the advance
// payout is marked paid: the point at which the vendor is committed.
type Engagement struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	BookingID   string    `bson:"booking_id" json:"booking_id"`
	PaymentID   string    `bson:"payment_id" json:"payment_id"`
	VendorID    string    `bson:"vendor_id" json:"vendor_id"`
	CustomerID  string    `bson:"customer_id" json:"customer_id"`
	ListingName string    `bson:"listing_name" json:"listing_name"`
	Total       float64   `bson:"total" json:"total"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

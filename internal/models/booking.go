package models

import (
	"time"
)

// BookingStatus tracks the vendor-decision lifecycle of a booking.
type BookingStatus string

const (
	BookingPending     BookingStatus = "pending"
	BookingAccepted    BookingStatus = "accepted"
	BookingNotAccepted BookingStatus = "not_accepted" // terminal
	BookingCancelled   BookingStatus = "cancelled"    // terminal
)

// PaymentMirror is the booking-side view of its payment, kept separate from
// the booking status so a cancelled payment never rewrites a vendor decision.
type PaymentMirror string

const (
	MirrorPending   PaymentMirror = "pending"
	MirrorPaid      PaymentMirror = "paid"
	MirrorFailed    PaymentMirror = "failed"
	MirrorRefunded  PaymentMirror = "refunded"
	MirrorCancelled PaymentMirror = "cancelled"
)

// PartySnapshot freezes the name and contact of a party at booking time.
// Later profile edits must not rewrite historical bookings.
type PartySnapshot struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Phone string `bson:"phone" json:"phone"`
}

// LineItem is one selected service item. Price is the price the customer
// actually selected, independent of the listing's current catalog price.
type LineItem struct {
	Name        string  `bson:"name" json:"name"`
	Price       float64 `bson:"price" json:"price"`
	Description string  `bson:"description" json:"description"`
}

type Booking struct {
	ID            string        `bson:"_id,omitempty" json:"id"`
	Customer      PartySnapshot `bson:"customer" json:"customer"`
	Vendor        PartySnapshot `bson:"vendor" json:"vendor"`
	Listing       PartySnapshot `bson:"listing" json:"listing"`
	Items         []LineItem    `bson:"items" json:"items"`
	Total         float64       `bson:"total" json:"total"`
	Status        BookingStatus `bson:"status" json:"status"`
	PaymentStatus PaymentMirror `bson:"payment_status" json:"payment_status"`
	PaymentID     string        `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
}

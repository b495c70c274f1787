package models

import (
	"time"
)

// PaymentStatus tracks one payment attempt against one booking.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentCaptured PaymentStatus = "captured"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PayoutStatus summarizes how much of the vendor amount has been disbursed.
type PayoutStatus string

const (
	PayoutNone        PayoutStatus = "none"
	PayoutAdvancePaid PayoutStatus = "advance_paid"
	PayoutFullPaid    PayoutStatus = "full_paid"
)

// Payout is the disbursement sub-state of a captured payment. Both flags are
// monotonic: once true they are never reset.
type Payout struct {
	AdvancePaid   bool         `bson:"advance_paid" json:"advance_paid"`
	AdvancePaidAt *time.Time   `bson:"advance_paid_at,omitempty" json:"advance_paid_at,omitempty"`
	FullPaid      bool         `bson:"full_paid" json:"full_paid"`
	FullPaidAt    *time.Time   `bson:"full_paid_at,omitempty" json:"full_paid_at,omitempty"`
	Status        PayoutStatus `bson:"status" json:"status"`
}

// Breakdown is the commission split computed at order time. It is fixed at
// creation and never recomputed, even if the rates change later.
type Breakdown struct {
	Total           float64 `bson:"total" json:"total"`
	PlatformFee     float64 `bson:"platform_fee" json:"platform_fee"`
	VendorAmount    float64 `bson:"vendor_amount" json:"vendor_amount"`
	AdvanceAmount   float64 `bson:"advance_amount" json:"advance_amount"`
	RemainingAmount float64 `bson:"remaining_amount" json:"remaining_amount"`
}

type Payment struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	BookingID string    `bson:"booking_id" json:"booking_id"`
	Amounts   Breakdown `bson:"amounts" json:"amounts"`

	// Gateway correlation. OrderID is assigned when the order is opened;
	// GatewayPaymentID and Signature arrive with whichever capture path wins.
	OrderID          string `bson:"order_id" json:"order_id"`
	GatewayPaymentID string `bson:"gateway_payment_id,omitempty" json:"gateway_payment_id,omitempty"`
	Signature        string `bson:"signature,omitempty" json:"-"`

	Status        PaymentStatus `bson:"status" json:"status"`
	FailureReason string        `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Payout        Payout        `bson:"payout" json:"payout"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
}

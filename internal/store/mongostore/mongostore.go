// Package mongostore implements the store contracts on MongoDB. Every
// conditional transition is a single UpdateOne whose filter carries the
// expected prior state; Mongo's document-level atomicity makes that the
// concurrency guard.
package mongostore

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/festbook/festbook-backend/internal/models"
	"github.com/festbook/festbook-backend/internal/store"
)

type Store struct {
	bookings    *mongo.Collection
	payments    *mongo.Collection
	ledger      *mongo.Collection
	engagements *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		bookings:    db.Collection("bookings"),
		payments:    db.Collection("payments"),
		ledger:      db.Collection("ledger"),
		engagements: db.Collection("engagements"),
	}
}

// EnsureIndexes creates the indexes the conditional writes and the ledger
// uniqueness invariant rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.bookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer.id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "vendor.id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.payments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "gateway_payment_id", Value: 1}}},
	})
	if err != nil {
		return err
	}
	// The one cross-entity uniqueness invariant: at most one ledger entry
	// per payment.
	_, err = s.ledger.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "payment_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// ---------- bookings ----------

func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := s.bookings.InsertOne(ctx, b)
	return err
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := s.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNoMatch
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBookingsByCustomer(ctx context.Context, customerID string) ([]models.Booking, error) {
	return s.listBookings(ctx, bson.M{"customer.id": customerID})
}

func (s *Store) ListBookingsByVendor(ctx context.Context, vendorID string) ([]models.Booking, error) {
	return s.listBookings(ctx, bson.M{"vendor.id": vendorID})
}

func (s *Store) listBookings(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	cur, err := s.bookings.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var bookings []models.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Store) TransitionBooking(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) error {
	res, err := s.bookings.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNoMatch
	}
	return nil
}

func (s *Store) CancelBooking(ctx context.Context, id string) error {
	res, err := s.bookings.UpdateOne(ctx,
		bson.M{
			"_id":            id,
			"status":         bson.M{"$in": []models.BookingStatus{models.BookingPending, models.BookingAccepted}},
			"payment_status": bson.M{"$ne": models.MirrorPaid},
		},
		bson.M{"$set": bson.M{
			"status":         models.BookingCancelled,
			"payment_status": models.MirrorCancelled,
			"updated_at":     time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNoMatch
	}
	return nil
}

func (s *Store) SetBookingPayment(ctx context.Context, id, paymentID string) error {
	return s.setBooking(ctx, id, bson.M{"payment_id": paymentID})
}

func (s *Store) SetBookingPaymentStatus(ctx context.Context, id string, status models.PaymentMirror) error {
	return s.setBooking(ctx, id, bson.M{"payment_status": status})
}

func (s *Store) setBooking(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now()
	res, err := s.bookings.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNoMatch
	}
	return nil
}

// ---------- payments ----------

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.payments.InsertOne(ctx, p)
	return err
}

func (s *Store) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.findPayment(ctx, bson.M{"_id": id})
}

func (s *Store) FindPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.findPayment(ctx, bson.M{"order_id": orderID})
}

func (s *Store) FindPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	if gatewayPaymentID == "" {
		// An empty id would match every payment not yet backfilled.
		return nil, store.ErrNoMatch
	}
	return s.findPayment(ctx, bson.M{"gateway_payment_id": gatewayPaymentID})
}

func (s *Store) FindPendingByBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	return s.findPayment(ctx, bson.M{"booking_id": bookingID, "status": models.PaymentPending})
}

func (s *Store) findPayment(ctx context.Context, filter bson.M) (*models.Payment, error) {
	var p models.Payment
	if err := s.payments.FindOne(ctx, filter).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNoMatch
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CapturePayment(ctx context.Context, id, gatewayPaymentID, signature string) (bool, error) {
	return s.casPayment(ctx,
		bson.M{"_id": id, "status": models.PaymentPending},
		bson.M{
			"status":             models.PaymentCaptured,
			"gateway_payment_id": gatewayPaymentID,
			"signature":          signature,
		},
	)
}

func (s *Store) FailPayment(ctx context.Context, id, reason string) (bool, error) {
	return s.casPayment(ctx,
		bson.M{"_id": id, "status": models.PaymentPending},
		bson.M{"status": models.PaymentFailed, "failure_reason": reason},
	)
}

func (s *Store) RefundPayment(ctx context.Context, id string) (bool, error) {
	return s.casPayment(ctx,
		bson.M{"_id": id, "status": models.PaymentCaptured},
		bson.M{"status": models.PaymentRefunded},
	)
}

func (s *Store) SetGatewayPaymentID(ctx context.Context, id, gatewayPaymentID string) error {
	res, err := s.payments.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"gateway_payment_id": gatewayPaymentID, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNoMatch
	}
	return nil
}

func (s *Store) MarkAdvancePaid(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.casPayment(ctx,
		bson.M{"_id": id, "status": models.PaymentCaptured, "payout.advance_paid": false},
		bson.M{
			"payout.advance_paid":    true,
			"payout.advance_paid_at": at,
			"payout.status":          models.PayoutAdvancePaid,
		},
	)
}

func (s *Store) MarkFullPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.casPayment(ctx,
		bson.M{"_id": id, "status": models.PaymentCaptured, "payout.full_paid": false},
		bson.M{
			"payout.full_paid":    true,
			"payout.full_paid_at": at,
			"payout.status":       models.PayoutFullPaid,
		},
	)
}

func (s *Store) casPayment(ctx context.Context, filter, set bson.M) (bool, error) {
	set["updated_at"] = time.Now()
	res, err := s.payments.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// ---------- ledger ----------

func (s *Store) EnsureLedgerEntry(ctx context.Context, entry models.LedgerEntry) error {
	// Upsert keyed on payment_id: a retry after a crash between capture and
	// ledger insert lands here as a no-op.
	_, err := s.ledger.UpdateOne(ctx,
		bson.M{"payment_id": entry.PaymentID},
		bson.M{"$setOnInsert": bson.M{
			"_id":           primitive.NewObjectID().Hex(),
			"payment_id":    entry.PaymentID,
			"booking_id":    entry.BookingID,
			"vendor_id":     entry.VendorID,
			"total":         entry.Total,
			"platform_fee":  entry.PlatformFee,
			"vendor_amount": entry.VendorAmount,
			"captured_at":   entry.CapturedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Lost a race with the competing reconciliation path.
		log.Printf("ledger entry for payment %s already recorded", entry.PaymentID)
		return nil
	}
	return err
}

func (s *Store) ListLedger(ctx context.Context) ([]models.LedgerEntry, error) {
	cur, err := s.ledger.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"captured_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var entries []models.LedgerEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateEngagement(ctx context.Context, e models.Engagement) error {
	if e.ID == "" {
		e.ID = primitive.NewObjectID().Hex()
	}
	e.CreatedAt = time.Now()
	_, err := s.engagements.InsertOne(ctx, e)
	return err
}

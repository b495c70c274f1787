package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/festbook/festbook-backend/internal/models"
)

// AMQP publishes booking-status events to a topic exchange consumed by the
// SMS/push delivery workers.
type AMQP struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, exchange: exchange}, nil
}

func (a *AMQP) BookingStatus(ctx context.Context, party models.PartySnapshot, bookingID, status string) error {
	evt := map[string]any{
		"party_id":   party.ID,
		"party_name": party.Name,
		"phone":      party.Phone,
		"booking_id": bookingID,
		"status":     status,
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return a.ch.PublishWithContext(ctx, a.exchange, "booking."+status, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        b,
	})
}

func (a *AMQP) Close() error {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	Port string `envconfig:"PORT" default:"8080"`

	// Mongo. Empty URI selects the in-memory store (local development).
	MongoURI string `envconfig:"MONGOURI"`
	MongoDB  string `envconfig:"MONGODB" default:"festbookdb"`

	// Razorpay
	RazorpayKeyID         string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `envconfig:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `envconfig:"RAZORPAY_WEBHOOK_SECRET"`

	// Identity
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Commission scheme
	PlatformFeePercent float64 `envconfig:"PLATFORM_FEE_PERCENT" default:"6"`
	AdvancePercent     float64 `envconfig:"ADVANCE_PERCENT" default:"15"`

	// A pending payment older than this is expired and superseded at the
	// next order-creation attempt.
	PaymentPendingTTL time.Duration `envconfig:"PAYMENT_PENDING_TTL" default:"24h"`

	// Notifications. Empty URL falls back to the console notifier.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"festbook.events"`

	// Tracing. Empty endpoint disables the exporter.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (if present) and then the process environment.
func Load() (App, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}
	var c App
	err := envconfig.Process("", &c)
	return c, err
}

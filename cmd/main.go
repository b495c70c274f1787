package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/festbook/festbook-backend/internal/auth"
	"github.com/festbook/festbook-backend/internal/config"
	"github.com/festbook/festbook-backend/internal/db"
	"github.com/festbook/festbook-backend/internal/gateway"
	"github.com/festbook/festbook-backend/internal/handlers"
	"github.com/festbook/festbook-backend/internal/notify"
	"github.com/festbook/festbook-backend/internal/obs"
	"github.com/festbook/festbook-backend/internal/pricing"
	"github.com/festbook/festbook-backend/internal/services"
	"github.com/festbook/festbook-backend/internal/store"
	"github.com/festbook/festbook-backend/internal/store/memstore"
	"github.com/festbook/festbook-backend/internal/store/mongostore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := obs.Setup(ctx, "festbook-backend", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracing setup: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	var st store.Store
	if cfg.MongoURI == "" {
		log.Println("MONGOURI not set, using in-memory store (development mode)")
		st = memstore.New()
	} else {
		client, err := db.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		}()
		log.Println("Successfully connected to MongoDB")

		ms := mongostore.New(client.Database(cfg.MongoDB))
		if err := ms.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
		st = ms
	}

	var dispatcher notify.Dispatcher
	if cfg.AMQPURL == "" {
		dispatcher = notify.NewConsole()
	} else {
		amqpDispatcher, err := notify.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer amqpDispatcher.Close()
		dispatcher = amqpDispatcher
	}

	gw := gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	bookingService := services.NewBookingService(st, dispatcher)
	settlementService := services.NewSettlementService(st, gw, dispatcher, services.SettlementConfig{
		Rates: pricing.Rates{
			PlatformFeePercent: cfg.PlatformFeePercent,
			AdvancePercent:     cfg.AdvancePercent,
		},
		CheckoutSecret: cfg.RazorpayKeySecret,
		WebhookSecret:  cfg.RazorpayWebhookSecret,
		PendingTTL:     cfg.PaymentPendingTTL,
	})
	payoutService := services.NewPayoutService(st)

	bookingHandler := handlers.NewBookingHandler(bookingService)
	paymentHandler := handlers.NewPaymentHandler(settlementService)
	adminHandler := handlers.NewAdminHandler(payoutService)

	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	// The webhook authenticates by body signature, not bearer token.
	router.HandleFunc("/api/payment/webhook", paymentHandler.Webhook).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(cfg.JWTSecret))
	api.HandleFunc("/booking", bookingHandler.CreateBooking).Methods("POST")
	api.HandleFunc("/bookings", bookingHandler.ListBookings).Methods("GET")
	api.HandleFunc("/booking/{bookingID}", bookingHandler.GetBooking).Methods("GET")
	api.HandleFunc("/booking/{bookingID}/status", bookingHandler.UpdateStatus).Methods("PATCH")
	api.HandleFunc("/payment-order", paymentHandler.CreateOrder).Methods("POST")
	api.HandleFunc("/payment-verify", paymentHandler.Verify).Methods("POST")
	api.HandleFunc("/admin/ledger", adminHandler.ListLedger).Methods("GET")
	api.HandleFunc("/admin/payments/{paymentID}/advance", adminHandler.MarkAdvancePaid).Methods("PATCH")
	api.HandleFunc("/admin/payments/{paymentID}/full", adminHandler.MarkFullPaid).Methods("PATCH")

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(server.ListenAndServe())
}

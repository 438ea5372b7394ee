package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/pasoklink/pasoklink/internal/cart"
	"github.com/pasoklink/pasoklink/internal/catalog"
	"github.com/pasoklink/pasoklink/internal/config"
	"github.com/pasoklink/pasoklink/internal/httpx"
	"github.com/pasoklink/pasoklink/internal/inventory"
	kafkax "github.com/pasoklink/pasoklink/internal/kafka"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/notify"
	"github.com/pasoklink/pasoklink/internal/orders"
	"github.com/pasoklink/pasoklink/internal/postgres"
	"github.com/pasoklink/pasoklink/internal/quotes"
	"github.com/pasoklink/pasoklink/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicNotifications, 1024)
	prod.Start(ctx)
	notifier := &notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}

	// Services
	ledger := &inventory.Ledger{DB: db}
	orderSvc := &orders.Service{DB: db, Ledger: ledger, Notifier: notifier, Redis: rdb}
	quoteSvc := &quotes.Service{DB: db, Ledger: ledger, Orders: orderSvc, Notifier: notifier, Redis: rdb}
	cartSvc := &cart.Service{DB: db, Ledger: ledger, Orders: orderSvc}
	catalogSvc := &catalog.Service{DB: db}

	// Router
	router := httpx.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(httpx.WithActor)
		(&httpx.OrdersHandler{Svc: orderSvc, Redis: rdb}).Register(r)
		(&httpx.QuotesHandler{Svc: quoteSvc, Redis: rdb}).Register(r)
		(&httpx.CartHandler{Svc: cartSvc}).Register(r)
		(&httpx.ProductsHandler{Svc: catalogSvc}).Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
}

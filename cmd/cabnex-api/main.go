// README: Entry point; loads config, wires services, starts the HTTP server and stops it gracefully.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cabnex/internal/config"
	httptransport "cabnex/internal/http"
	"cabnex/internal/infra"
	"cabnex/internal/maps"
	"cabnex/internal/modules/booking"
	"cabnex/internal/modules/pricing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(ctx, cfg.Redis.Addr)
	defer redisClient.Close()

	resolver, err := maps.NewResolver(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("maps init: %v", err)
	}
	cachedResolver := maps.NewCachedResolver(resolver, redisClient, cfg.Quote.PlaceCacheTTL)

	pricingStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(pricingStore, cachedResolver, cfg.Quote.Currency)

	var publisher booking.Publisher
	if amqpPub, err := infra.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange); err != nil {
		log.Printf("amqp: publisher disabled: err=%v", err)
	} else {
		defer amqpPub.Close()
		publisher = amqpPub
	}

	if cfg.Payment.Secret == "" {
		log.Printf("payment: CABNEX_RAZORPAY_SECRET not set; payment confirmation will reject every signature")
	}
	bookingStore := booking.NewStore(dbPool)
	bookingSvc := booking.NewService(bookingStore, publisher, cfg.Payment.Secret, cfg.Quote.Currency)

	gin.SetMode(gin.ReleaseMode)
	handler := httptransport.NewServer(httptransport.ServerDeps{
		Quoter:       pricingSvc,
		Booking:      bookingSvc,
		Verifier:     infra.NewJWTVerifier(cfg.Auth.JWTSecret),
		QuoteTimeout: cfg.Quote.Timeout,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("cabnex-api listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

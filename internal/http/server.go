// README: API gateway; builds the gin engine and delegates to module services.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cabnex/internal/http/handlers"
	"cabnex/internal/http/middleware"
	"cabnex/internal/infra"
	"cabnex/internal/modules/booking"
)

type ServerDeps struct {
	Quoter       handlers.Quoter
	Booking      *booking.Service
	Verifier     infra.TokenVerifier
	QuoteTimeout time.Duration
	CORSOrigins  []string
}

type Server struct {
	trips    *handlers.TripHandler
	bookings *handlers.BookingHandler
	verifier infra.TokenVerifier
	origins  []string
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		trips:    handlers.NewTripHandler(deps.Quoter, deps.QuoteTimeout),
		bookings: handlers.NewBookingHandler(deps.Booking),
		verifier: deps.Verifier,
		origins:  deps.CORSOrigins,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(), middleware.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	registerRoutes(r, s)
	return r
}

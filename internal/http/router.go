// README: HTTP route registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnex/internal/http/middleware"
)

func registerRoutes(r *gin.Engine, s *Server) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.POST("/trips/search", s.trips.Search)

	b := api.Group("/bookings", middleware.Auth(s.verifier))
	b.POST("", s.bookings.Create)
	b.GET("", s.bookings.List)
	b.GET("/:id", s.bookings.Get)
	b.POST("/:id/cancel", s.bookings.Cancel)
	b.POST("/:id/payment", s.bookings.ConfirmPayment)

	v := api.Group("/vendor/bookings", middleware.Auth(s.verifier), middleware.RequireRole("vendor"))
	v.GET("", s.bookings.VendorList)
	v.POST("/:id/start", s.bookings.Start)
	v.POST("/:id/complete", s.bookings.Complete)

	a := api.Group("/admin/bookings", middleware.Auth(s.verifier), middleware.RequireRole("admin"))
	a.POST("/:id/assign", s.bookings.Assign)
}

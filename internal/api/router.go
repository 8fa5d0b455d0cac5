package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"lab-loan-backend/config"
	"lab-loan-backend/internal/loan"
	"lab-loan-backend/internal/mw"
	"lab-loan-backend/internal/session"
	"lab-loan-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, engine *loan.Engine, sessions *session.Store, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, engine, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	caching := mw.Cache(cache.New(cacheTTL, 2*cacheTTL), cacheTTL)

	auth := mw.Auth(sessions, s)
	admin := mw.RequireAdmin()

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		// Equipment catalog
		api.GET("/equipment", auth, caching, handler.ListEquipment)
		api.GET("/equipment/:id", auth, handler.GetEquipment)
		api.POST("/equipment", auth, admin, handler.CreateEquipment)
		api.PUT("/equipment/:id", auth, admin, handler.UpdateEquipment)
		api.PUT("/equipment/:id/status", auth, admin, handler.SetEquipmentStatus)

		// Loans
		api.POST("/loans", auth, handler.CreateReservation)
		api.GET("/loans", auth, admin, handler.ListLoans)
		api.GET("/loans/me", auth, handler.ListMyLoans)
		api.GET("/loans/:id", auth, handler.GetLoan)
		api.POST("/loans/:id/checkout", auth, admin, handler.Checkout)
		api.POST("/loans/:id/return", auth, handler.ReturnLoan)

		// Notifications
		api.GET("/notifications", auth, handler.ListNotifications)
		api.POST("/notifications/:id/read", auth, handler.MarkNotificationRead)

		// Push subscriptions
		api.PUT("/subscriptions", auth, handler.PutSubscription)
		api.DELETE("/subscriptions", auth, handler.DeleteSubscription)
	}

	return r
}

package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"agendo/handlers"
	"agendo/middleware"
	"agendo/utils"
)

// RegisterWebhookRoutes registers vendor delivery endpoints. No rate
// limiting here: throttling the vendor's retries would lose messages.
func RegisterWebhookRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	hooks := r.Group("/webhooks")
	{
		hooks.POST("/evolution", hb.EvolutionWebhookHandler)
		hooks.POST("/sms", hb.SMSWebhookHandler)
	}
}

// RegisterBookingRoutes registers the booking and availability API.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware())
	{
		api.POST("/booking", hb.CreateBookingHandler)
		api.GET("/bookings", hb.ListBookingsHandler)
		api.GET("/availability", hb.AvailabilityHandler)
	}
}

// RegisterInstanceRoutes registers instance management endpoints.
func RegisterInstanceRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/instances")
	api.Use(middleware.RateLimitMiddleware())
	{
		api.GET("", hb.ListInstancesHandler)
		api.GET("/:id", hb.GetInstanceHandler)
		api.PUT("/:id/agent-config", hb.UpdateAgentConfigHandler)
		api.GET("/:id/google/auth-url", hb.GoogleAuthURLHandler)
		api.DELETE("/:id/google", hb.GoogleDisconnectHandler)
	}
	// The OAuth callback sits outside the instances group; Google
	// redirects here with the instance id in the state parameter.
	r.GET("/api/google/callback", hb.GoogleAuthCallbackHandler)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": utils.GetHealthStatus()})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterWebhookRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterInstanceRoutes(r, hb)
	RegisterHealthRoute(r)
}

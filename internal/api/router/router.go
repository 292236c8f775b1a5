package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/booking-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestContextMiddleware(deps.Logger))
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	service := deps.ServiceName
	if service == "" {
		service = "booking-api-service"
	}
	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": service,
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	})

	h := handler.NewBookingHandler(deps)

	v1 := r.Group("/api/v1", ActorMiddleware())
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", h.Store)
			bookings.GET("", h.List)
			bookings.POST("/accept", h.Accept)

			bookings.GET("/:id", h.Show)
			bookings.PUT("/:id", h.Update)
			bookings.POST("/:id/email", h.StoreJobEmail)
			bookings.POST("/:id/accept", h.AcceptWithID)
			bookings.POST("/:id/start", h.Start)
			bookings.POST("/:id/cancel", h.Cancel)
			bookings.POST("/:id/end", h.End)
			bookings.POST("/:id/customer-not-call", h.CustomerNotCall)
			bookings.POST("/:id/reopen", h.Reopen)
			bookings.POST("/:id/timeout", h.Timeout)
			bookings.POST("/:id/flags", h.Flags)
			bookings.POST("/:id/ignore-expiring", h.IgnoreExpiring)
			bookings.POST("/:id/ignore-expired", h.IgnoreExpired)
			bookings.POST("/:id/notifications/resend", h.ResendNotifications)
			bookings.POST("/:id/sms/resend", h.ResendSMS)
		}

		v1.GET("/users/:id/jobs", h.UserJobs)
		v1.GET("/users/:id/jobs/history", h.UserJobsHistory)
		v1.GET("/translators/:id/potential-jobs", h.PotentialJobs)
	}

	return r
}

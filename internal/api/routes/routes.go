package routes

import (
	"shuttle-backend/internal/api/handlers"
	"shuttle-backend/internal/api/middleware"
	"shuttle-backend/internal/models"
	"shuttle-backend/pkg/jwt"
	"shuttle-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything the HTTP surface dispatches to.
type Handlers struct {
	Vehicles     *handlers.VehicleHandler
	Reservations *handlers.ReservationHandler
	Assignments  *handlers.AssignmentHandler
	Alerts       *handlers.AlertHandler
	Devices      *handlers.DeviceHandler
	Routes       *handlers.RouteHandler
	Health       *handlers.HealthHandler
	WebSocket    *handlers.WebSocketHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, jwtUtil *jwt.JWTUtil, limiter ratelimit.RateLimiter) {
	rateLimit := middleware.RateLimitMiddleware(limiter)

	api := router.Group("/api/v1")

	// Public routes
	api.GET("/health", rateLimit, h.Health.HealthCheck)
	api.GET("/ws", h.WebSocket.HandleWebSocket)

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(jwtUtil), rateLimit)

	staff := middleware.RequireRole(models.RoleDriver, models.RoleAdmin)
	admin := middleware.RequireRole(models.RoleAdmin)

	vehicles := protected.Group("/vehicles")
	{
		vehicles.GET("", h.Vehicles.GetVehicles)
		vehicles.GET("/:id", h.Vehicles.GetVehicle)
		vehicles.GET("/:id/trips", h.Vehicles.GetTrips)
		vehicles.POST("", admin, h.Vehicles.RegisterVehicle)
		vehicles.POST("/:id/telemetry", staff, h.Vehicles.SubmitTelemetry)
		vehicles.POST("/:id/occupancy", staff, h.Vehicles.AdjustOccupancy)
		vehicles.POST("/:id/start", staff, h.Vehicles.StartTrip)
		vehicles.POST("/:id/stop", staff, h.Vehicles.StopTrip)
	}

	routes := protected.Group("/routes")
	{
		routes.GET("", h.Routes.GetRoutes)
		routes.GET("/:routeId", h.Routes.GetRoute)
		routes.GET("/:routeId/:direction/shape", h.Routes.GetShape)
	}

	reservations := protected.Group("/reservations")
	{
		reservations.POST("", h.Reservations.CreateReservation)
		reservations.DELETE("/:routeId/:direction", h.Reservations.CancelReservation)
		reservations.GET("/:routeId/:direction/summary", h.Reservations.GetSummary)
		reservations.POST("/:routeId/:direction/reset", staff, h.Reservations.ResetReservations)
	}

	assignments := protected.Group("/assignments")
	{
		assignments.GET("", staff, h.Assignments.GetAssignments)
		assignments.GET("/:id", staff, h.Assignments.GetAssignment)
		assignments.POST("", admin, h.Assignments.CreateAssignment)
		assignments.PATCH("/:id", admin, h.Assignments.UpdateAssignment)
		assignments.DELETE("/:id", admin, h.Assignments.DeleteAssignment)
		assignments.POST("/me/direction", middleware.RequireRole(models.RoleDriver), h.Assignments.SwitchDirection)
	}

	alerts := protected.Group("/alerts")
	{
		alerts.GET("", h.Alerts.GetAlerts)
		alerts.GET("/:id", h.Alerts.GetAlert)
		alerts.POST("", admin, h.Alerts.CreateAlert)
		alerts.PATCH("/:id", admin, h.Alerts.UpdateAlert)
		alerts.POST("/:id/resolve", admin, h.Alerts.ResolveAlert)
		alerts.DELETE("/:id", admin, h.Alerts.DeleteAlert)
	}

	devices := protected.Group("/devices")
	{
		devices.POST("/tokens", h.Devices.RegisterToken)
		devices.DELETE("/tokens/:token", h.Devices.UnregisterToken)
	}

	ws := protected.Group("/ws", admin)
	{
		ws.GET("/clients", h.WebSocket.GetConnectedClients)
		ws.DELETE("/clients/:clientId", h.WebSocket.DisconnectClient)
	}
}

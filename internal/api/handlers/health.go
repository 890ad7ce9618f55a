package handlers

import (
	"context"
	"net/http"
	"time"

	"shuttle-backend/internal/websocket"
	"shuttle-backend/pkg/outbox"
	"shuttle-backend/pkg/redis"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by the fleet store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ClientStatsProvider interface {
	GetClientStats() websocket.ClientStats
}

type OutboxStatsProvider interface {
	GetStats() outbox.Stats
}

type HealthHandler struct {
	store       Pinger
	redisClient *redis.Client
	clients     ClientStatsProvider
	tasks       OutboxStatsProvider
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler accepts a nil redis client when Redis is not configured;
// it is then reported but does not make the service unhealthy.
func NewHealthHandler(store Pinger, redisClient *redis.Client, clients ClientStatsProvider, tasks OutboxStatsProvider) *HealthHandler {
	return &HealthHandler{
		store:       store,
		redisClient: redisClient,
		clients:     clients,
		tasks:       tasks,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	overallHealthy := true

	storeStatus := h.checkStore(c.Request.Context())
	response.Services["store"] = storeStatus
	if !storeStatus["healthy"].(bool) {
		overallHealthy = false
	}

	redisStatus := h.checkRedis()
	response.Services["redis"] = redisStatus
	if redisStatus["configured"].(bool) && !redisStatus["healthy"].(bool) {
		overallHealthy = false
	}

	if h.clients != nil {
		response.Services["broadcast"] = h.clients.GetClientStats()
	}
	if h.tasks != nil {
		response.Services["outbox"] = h.tasks.GetStats()
	}

	if overallHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "store",
		"healthy": false,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		status["error"] = err.Error()
	} else {
		status["healthy"] = true
		status["message"] = "Connected"
	}
	status["responseTime"] = time.Since(start).String()

	return status
}

func (h *HealthHandler) checkRedis() map[string]interface{} {
	status := map[string]interface{}{
		"service":    "redis",
		"configured": h.redisClient != nil,
		"healthy":    false,
	}

	if h.redisClient == nil {
		return status
	}

	healthStatus := h.redisClient.HealthCheck()
	status["healthy"] = healthStatus.IsConnected
	status["connectionInfo"] = healthStatus.ConnectionInfo
	status["responseTime"] = healthStatus.ResponseTime.String()
	status["lastPing"] = healthStatus.LastPing
	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}
	status["connectionStats"] = h.redisClient.GetConnectionStats()

	return status
}

package handlers

import (
	"net/http"

	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type DeviceHandler struct {
	tokenService *services.DeviceTokenService
	validator    *validator.Validate
}

func NewDeviceHandler(tokenService *services.DeviceTokenService) *DeviceHandler {
	return &DeviceHandler{
		tokenService: tokenService,
		validator:    validator.New(),
	}
}

// RegisterToken stores a push token for the caller
func (h *DeviceHandler) RegisterToken(c *gin.Context) {
	var req services.RegisterDeviceTokenRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	token, err := h.tokenService.Register(c.Request.Context(), c.GetString("user_id"), &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to register device token", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Device token registered", token)
}

func (h *DeviceHandler) UnregisterToken(c *gin.Context) {
	if err := h.tokenService.Unregister(c.Request.Context(), c.GetString("user_id"), c.Param("token")); err != nil {
		utils.ServiceErrorResponse(c, "Failed to remove device token", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device token removed", nil)
}

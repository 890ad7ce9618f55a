package handlers

import (
	"net/http"

	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AlertHandler struct {
	alertService *services.AlertService
	validator    *validator.Validate
}

func NewAlertHandler(alertService *services.AlertService) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		validator:    validator.New(),
	}
}

// GetAlerts lists alerts; ?active=true limits to unresolved ones
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.alertService.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to retrieve alerts", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alerts retrieved successfully", alerts)
}

func (h *AlertHandler) GetAlert(c *gin.Context) {
	alert, err := h.alertService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to retrieve alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert retrieved successfully", alert)
}

func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var req services.CreateAlertRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	alert, err := h.alertService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to create alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Alert created successfully", alert)
}

func (h *AlertHandler) UpdateAlert(c *gin.Context) {
	var req services.UpdateAlertRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	alert, err := h.alertService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to update alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert updated successfully", alert)
}

func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	alert, err := h.alertService.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to resolve alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert resolved successfully", alert)
}

func (h *AlertHandler) DeleteAlert(c *gin.Context) {
	if err := h.alertService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.ServiceErrorResponse(c, "Failed to delete alert", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert deleted successfully", nil)
}

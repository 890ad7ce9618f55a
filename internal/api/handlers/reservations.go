package handlers

import (
	"net/http"

	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ReservationHandler struct {
	reservationService *services.ReservationService
	validator          *validator.Validate
}

func NewReservationHandler(reservationService *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
		validator:          validator.New(),
	}
}

// CreateReservation books the caller onto a route direction
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req services.CreateReservationRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	req.UserID = c.GetString("user_id")

	reservation, err := h.reservationService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to create reservation", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Reservation created successfully", reservation)
}

// CancelReservation cancels the caller's waiting reservation
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	reservation, err := h.reservationService.Cancel(c.Request.Context(), c.Param("routeId"), c.Param("direction"), c.GetString("user_id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to cancel reservation", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Reservation cancelled", reservation)
}

// GetSummary returns per-stop waiting counts for a route direction
func (h *ReservationHandler) GetSummary(c *gin.Context) {
	summary, err := h.reservationService.Summarize(c.Request.Context(), c.Param("routeId"), c.Param("direction"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to summarize reservations", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Reservation summary retrieved", summary)
}

// ResetReservations clears every waiting reservation on a route direction
func (h *ReservationHandler) ResetReservations(c *gin.Context) {
	n, err := h.reservationService.Reset(c.Request.Context(), c.Param("routeId"), c.Param("direction"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to reset reservations", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Reservations reset", gin.H{"reset": n})
}

package handlers

import (
	"net/http"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AssignmentHandler struct {
	assignmentService *services.AssignmentService
	validator         *validator.Validate
}

func NewAssignmentHandler(assignmentService *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
		validator:         validator.New(),
	}
}

func (h *AssignmentHandler) GetAssignments(c *gin.Context) {
	assignments, err := h.assignmentService.ListActive(c.Request.Context())
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to retrieve assignments", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Assignments retrieved successfully", assignments)
}

func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	assignment, err := h.assignmentService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to retrieve assignment", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Assignment retrieved successfully", assignment)
}

// CreateAssignment binds a driver and vehicle to a route direction
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req services.CreateAssignmentRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	assignment, err := h.assignmentService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to create assignment", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Assignment created successfully", assignment)
}

func (h *AssignmentHandler) UpdateAssignment(c *gin.Context) {
	var patch models.AssignmentPatch
	if !bindJSON(c, h.validator, &patch) {
		return
	}

	assignment, err := h.assignmentService.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to update assignment", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Assignment updated successfully", assignment)
}

func (h *AssignmentHandler) DeleteAssignment(c *gin.Context) {
	if err := h.assignmentService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.ServiceErrorResponse(c, "Failed to delete assignment", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Assignment deleted successfully", nil)
}

// SwitchDirection flips the calling driver's own assignment
func (h *AssignmentHandler) SwitchDirection(c *gin.Context) {
	var req services.SwitchDirectionRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	assignment, err := h.assignmentService.SwitchDirection(c.Request.Context(), c.GetString("user_id"), req.Direction)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to switch direction", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Direction switched", assignment)
}

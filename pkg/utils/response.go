package utils

import (
	"errors"
	"net/http"

	"shuttle-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// APIResponse represents a standard API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	response := APIResponse{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(statusCode, response)
}

// ServiceErrorResponse picks the status code from the error kind. Domain
// errors are returned whole so clients see the invariant and the
// conflicting record.
func ServiceErrorResponse(c *gin.Context, message string, err error) {
	status := StatusForError(err)
	response := APIResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	}
	if de, ok := services.AsDomainError(err); ok {
		response.Error = de
	}
	c.JSON(status, response)
}

// StatusForError maps the service error taxonomy onto HTTP.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConstraintViolation),
		errors.Is(err, services.ErrAlreadyReserved),
		errors.Is(err, services.ErrAlreadyAssigned):
		return http.StatusConflict
	case errors.Is(err, services.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ValidationErrorResponse sends a validation error response
func ValidationErrorResponse(c *gin.Context, err error) {
	var messages []string

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			messages = append(messages, getValidationErrorMessage(fieldError))
		}
	} else {
		messages = append(messages, err.Error())
	}

	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Message: "Validation failed",
		Error:   messages,
	})
}

// getValidationErrorMessage returns a user-friendly validation error message
func getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	tag := fieldError.Tag()

	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	default:
		return field + " is invalid"
	}
}

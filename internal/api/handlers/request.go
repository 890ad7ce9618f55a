package handlers

import (
	"net/http"
	"strconv"

	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindJSON decodes the body into req and validates it, writing the error
// response itself when either step fails.
func bindJSON(c *gin.Context, v *validator.Validate, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := v.Struct(req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/routing"
	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// RouteHandler serves the route catalog and road-following route shapes.
type RouteHandler struct {
	catalog *catalog.Catalog
	shapes  *routing.ShapeService
}

// NewRouteHandler accepts a nil shape service when no routing key is configured.
func NewRouteHandler(cat *catalog.Catalog, shapes *routing.ShapeService) *RouteHandler {
	return &RouteHandler{catalog: cat, shapes: shapes}
}

func (h *RouteHandler) GetRoutes(c *gin.Context) {
	routes := make([]catalog.Route, 0)
	for _, id := range h.catalog.Routes() {
		if r, ok := h.catalog.Route(id); ok {
			routes = append(routes, r)
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Routes retrieved successfully", routes)
}

func (h *RouteHandler) GetRoute(c *gin.Context) {
	route, ok := h.catalog.Route(c.Param("routeId"))
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Route not found", fmt.Errorf("route %s not found", c.Param("routeId")))
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Route retrieved successfully", route)
}

// GetShape returns the encoded polyline for one direction of a route
func (h *RouteHandler) GetShape(c *gin.Context) {
	if h.shapes == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Route shapes are not configured", nil)
		return
	}

	shape, err := h.shapes.Shape(c.Request.Context(), c.Param("routeId"), c.Param("direction"))
	switch {
	case errors.Is(err, routing.ErrUnknownRoute):
		utils.ErrorResponse(c, http.StatusNotFound, "Route not found", err)
		return
	case err != nil:
		utils.ServiceErrorResponse(c, "Route shape unavailable", services.ExternalServiceError("routing", err))
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Route shape retrieved successfully", shape)
}

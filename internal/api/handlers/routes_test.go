package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/pkg/routing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

type downDirections struct{}

func (downDirections) Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	return nil, nil, errors.New("OVER_QUERY_LIMIT")
}

func setupRouteRouter(t *testing.T, shapes bool) *gin.Engine {
	cat, err := catalog.New([]catalog.Route{{
		ID: "campus-loop",
		Directions: map[string][]catalog.Stop{
			"to": {
				{Sequence: 0, Lat: 40.0, Lon: -83.0},
				{Sequence: 1, Lat: 40.005, Lon: -83.0},
			},
		},
	}})
	require.NoError(t, err)

	var service *routing.ShapeService
	if shapes {
		service = routing.NewShapeServiceWithClient(downDirections{}, cat)
	}
	h := NewRouteHandler(cat, service)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/routes/:routeId", h.GetRoute)
	router.GET("/routes/:routeId/shape/:direction", h.GetShape)
	return router
}

func TestGetShapeProviderDown(t *testing.T) {
	router := setupRouteRouter(t, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes/campus-loop/shape/to", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error.Message, "routing")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes/nowhere/shape/to", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetShapeNotConfigured(t *testing.T) {
	router := setupRouteRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes/campus-loop/shape/to", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes/campus-loop", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

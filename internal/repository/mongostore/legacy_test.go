package mongostore

import (
	"testing"
	"time"

	"shuttle-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDecodeVehicleFoldsLegacyRouteFields(t *testing.T) {
	tests := []struct {
		name     string
		doc      bson.M
		expected string
	}{
		{"canonical", bson.M{"_id": "v1", "current_route": "campus-loop"}, "campus-loop"},
		{"snake route", bson.M{"_id": "v1", "route_id": "r-snake"}, "r-snake"},
		{"camel line", bson.M{"_id": "v1", "lineId": "l-camel"}, "l-camel"},
		{"snake line", bson.M{"_id": "v1", "line_id": "l-snake"}, "l-snake"},
		{"none", bson.M{"_id": "v1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.doc)
			require.NoError(t, err)

			v, err := decodeVehicle(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.CurrentRoute)
			assert.Equal(t, models.VehicleStatusIdle, v.Status)
			assert.Equal(t, models.DirectionTo, v.Direction)
		})
	}
}

func TestDecodeReservationFoldsLegacyRouteFields(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":             "r1",
		"routeId":         "campus-loop",
		"user_id":         "u1",
		"source_sequence": 1,
		"dest_sequence":   3,
		"status":          models.ReservationWaiting,
		"created_at":      time.Now(),
	})
	require.NoError(t, err)

	r, err := decodeReservation(raw)
	require.NoError(t, err)
	assert.Equal(t, "campus-loop", r.RouteID)
	assert.Equal(t, 3, r.DestSequence)
}

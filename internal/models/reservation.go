package models

import "time"

// Reservation statuses. Everything except waiting is terminal.
const (
	ReservationWaiting   = "waiting"
	ReservationCancelled = "cancelled"
	ReservationExpired   = "expired"
	ReservationReset     = "reset"
)

type Reservation struct {
	ID             string    `bson:"_id" json:"id"`
	RouteID        string    `bson:"route_id" json:"routeId"`
	Direction      string    `bson:"direction" json:"direction"`
	UserID         string    `bson:"user_id" json:"userId"`
	SourceSequence int       `bson:"source_sequence" json:"sourceSequence"`
	DestSequence   int       `bson:"dest_sequence" json:"destSequence"`
	Status         string    `bson:"status" json:"status"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

// Covers reports whether the reservation's [source, dest) interval includes seq.
func (r *Reservation) Covers(seq int) bool {
	return seq >= r.SourceSequence && seq < r.DestSequence
}

// ReservationSummary is the per-stop waiting count for one route direction.
type ReservationSummary struct {
	RouteID      string      `json:"routeId"`
	Direction    string      `json:"direction"`
	TotalWaiting int         `json:"totalWaiting"`
	Stops        []StopCount `json:"stops"`
	GeneratedAt  time.Time   `json:"generatedAt"`
}

type StopCount struct {
	Sequence int `json:"sequence"`
	Waiting  int `json:"waiting"`
}

// RouteKey identifies one direction of one route.
type RouteKey struct {
	RouteID   string
	Direction string
}

func (k RouteKey) String() string {
	return k.RouteID + ":" + k.Direction
}

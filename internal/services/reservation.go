package services

import (
	"context"
	"errors"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"

	"github.com/google/uuid"
)

type ReservationConfig struct {
	// SummaryWindow drops older waiting reservations from summaries.
	SummaryWindow time.Duration
	// ExpireAfter is the age at which the reaper expires a reservation.
	ExpireAfter time.Duration
}

func DefaultReservationConfig() ReservationConfig {
	return ReservationConfig{
		SummaryWindow: 2 * time.Hour,
		ExpireAfter:   45 * time.Minute,
	}
}

func LoadReservationConfigFromEnv() ReservationConfig {
	config := DefaultReservationConfig()
	if val := os.Getenv("RESERVATION_SUMMARY_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.SummaryWindow = d
		}
	}
	if val := os.Getenv("RESERVATION_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.ExpireAfter = d
		}
	}
	return config
}

type ReservationService struct {
	store       repository.FleetStore
	catalog     *catalog.Catalog
	config      ReservationConfig
	broadcaster Broadcaster
	demand      DemandEvaluator
	now         func() time.Time
}

func NewReservationService(store repository.FleetStore, config ReservationConfig) *ReservationService {
	return &ReservationService{
		store:       store,
		config:      config,
		broadcaster: nopBroadcaster{},
		now:         time.Now,
	}
}

func (s *ReservationService) SetCatalog(c *catalog.Catalog) {
	s.catalog = c
}

func (s *ReservationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *ReservationService) SetDemandEvaluator(d DemandEvaluator) {
	s.demand = d
}

type CreateReservationRequest struct {
	RouteID        string `json:"routeId" validate:"required"`
	Direction      string `json:"direction" validate:"required,oneof=to fro"`
	UserID         string `json:"-"`
	SourceSequence int    `json:"sourceSequence" validate:"min=0"`
	DestSequence   int    `json:"destSequence" validate:"min=0"`
}

func (s *ReservationService) Create(ctx context.Context, req *CreateReservationRequest) (*models.Reservation, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := s.now()
	r := &models.Reservation{
		ID:             uuid.NewString(),
		RouteID:        strings.TrimSpace(req.RouteID),
		Direction:      req.Direction,
		UserID:         req.UserID,
		SourceSequence: req.SourceSequence,
		DestSequence:   req.DestSequence,
		Status:         models.ReservationWaiting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Claim(ctx, repository.ReservationUserKey(r.UserID)); err != nil {
			return err
		}
		existing, err := tx.FindWaitingReservationByUser(ctx, r.UserID)
		switch {
		case err == nil:
			return conflictError(ErrAlreadyReserved, "one waiting reservation per user", existing.ID,
				"user already has a waiting reservation")
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		if err := tx.PutReservation(ctx, r); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflictError(ErrAlreadyReserved, "one waiting reservation per user", "", err.Error())
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, r.RouteID, r.Direction, 1)
	return r, nil
}

// Cancel cancels the user's waiting reservation on the route direction.
func (s *ReservationService) Cancel(ctx context.Context, routeID, direction, userID string) (*models.Reservation, error) {
	var cancelled *models.Reservation
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Claim(ctx, repository.ReservationUserKey(userID)); err != nil {
			return err
		}
		r, err := tx.FindWaitingReservationByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundError("waiting reservation for user", userID)
			}
			return err
		}
		if r.RouteID != routeID || r.Direction != direction {
			return notFoundError("waiting reservation on "+routeID+"/"+direction+" for user", userID)
		}

		r.Status = models.ReservationCancelled
		r.UpdatedAt = s.now()
		if err := tx.PutReservation(ctx, r); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, routeID, direction, -1)
	return cancelled, nil
}

// Summarize counts, for every stop from the lowest boarding stop to the last
// stop of the direction, the waiting reservations riding through it.
func (s *ReservationService) Summarize(ctx context.Context, routeID, direction string) (*models.ReservationSummary, error) {
	now := s.now()
	waiting, err := s.store.ListWaitingReservations(ctx, routeID, direction, now.Add(-s.config.SummaryWindow))
	if err != nil {
		return nil, err
	}

	summary := &models.ReservationSummary{
		RouteID:      routeID,
		Direction:    direction,
		TotalWaiting: len(waiting),
		Stops:        []models.StopCount{},
		GeneratedAt:  now,
	}
	if len(waiting) == 0 {
		return summary, nil
	}

	lo, hi := waiting[0].SourceSequence, waiting[0].DestSequence
	for _, r := range waiting[1:] {
		lo = min(lo, r.SourceSequence)
		hi = max(hi, r.DestSequence)
	}
	if s.catalog != nil {
		if last := s.catalog.MaxSequence(routeID, direction); last >= lo {
			hi = last
		}
	}

	for seq := lo; seq <= hi; seq++ {
		count := 0
		for _, r := range waiting {
			if r.Covers(seq) {
				count++
			}
		}
		summary.Stops = append(summary.Stops, models.StopCount{Sequence: seq, Waiting: count})
	}
	return summary, nil
}

// Reset moves every waiting reservation on the route direction to reset and
// broadcasts one summary.
func (s *ReservationService) Reset(ctx context.Context, routeID, direction string) (int, error) {
	waiting, err := s.store.ListWaitingReservations(ctx, routeID, direction, time.Time{})
	if err != nil {
		return 0, err
	}
	moved, err := s.store.TransitionReservations(ctx, reservationIDs(waiting), models.ReservationWaiting, models.ReservationReset)
	if err != nil {
		return 0, err
	}

	s.afterChange(ctx, routeID, direction, -len(moved))
	log.Printf("Reset %d reservations on %s/%s", len(moved), routeID, direction)
	return len(moved), nil
}

// ReapExpired expires waiting reservations older than ExpireAfter and sends
// one summary per affected route direction. Safe to run concurrently with
// cancels: only reservations still waiting are moved.
func (s *ReservationService) ReapExpired(ctx context.Context) (int, error) {
	stale, err := s.store.FindWaitingReservationsBefore(ctx, s.now().Add(-s.config.ExpireAfter))
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	moved, err := s.store.TransitionReservations(ctx, reservationIDs(stale), models.ReservationWaiting, models.ReservationExpired)
	if err != nil {
		return 0, err
	}

	groups := make(map[models.RouteKey]int)
	for _, r := range moved {
		groups[models.RouteKey{RouteID: r.RouteID, Direction: r.Direction}]++
	}
	keys := make([]models.RouteKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, k := range keys {
		s.afterChange(ctx, k.RouteID, k.Direction, -groups[k])
	}
	return len(moved), nil
}

// afterChange publishes the new summary and re-evaluates demand. Failures
// are logged; the reservation change itself is already committed.
func (s *ReservationService) afterChange(ctx context.Context, routeID, direction string, delta int) {
	summary, err := s.Summarize(ctx, routeID, direction)
	if err != nil {
		log.Printf("Failed to summarize reservations for %s/%s: %v", routeID, direction, err)
	} else {
		key := models.RouteKey{RouteID: routeID, Direction: direction}
		s.broadcaster.Queue(EventReservationUpdate, summary, key.String())
	}

	if s.demand == nil || delta == 0 {
		return
	}
	if err := s.demand.EvaluateDemand(ctx, routeID, direction, "", delta); err != nil {
		log.Printf("Demand evaluation failed for %s/%s: %v", routeID, direction, err)
	}
}

func (s *ReservationService) validate(req *CreateReservationRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return validationError("userId is required")
	}
	if strings.TrimSpace(req.RouteID) == "" {
		return validationError("routeId is required")
	}
	if !models.ValidDirection(req.Direction) {
		return validationError("direction must be %q or %q", models.DirectionTo, models.DirectionFro)
	}
	if req.SourceSequence < 0 {
		return validationError("sourceSequence must not be negative")
	}
	if req.DestSequence <= req.SourceSequence {
		return &DomainError{Kind: ErrValidation, Invariant: "destination after source",
			Message: "destSequence must be greater than sourceSequence"}
	}
	if s.catalog != nil {
		last := s.catalog.MaxSequence(req.RouteID, req.Direction)
		if last < 0 {
			return validationError("route %s has no %s direction", req.RouteID, req.Direction)
		}
		if req.DestSequence > last {
			return validationError("destSequence %d is past the last stop %d", req.DestSequence, last)
		}
	}
	return nil
}

func reservationIDs(rs []*models.Reservation) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

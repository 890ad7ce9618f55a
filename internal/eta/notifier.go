package eta

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/geo"
	"shuttle-backend/pkg/outbox"
	"shuttle-backend/pkg/push"
)

// TaskQueue accepts outbound work; *outbox.Outbox implements it.
type TaskQueue interface {
	Enqueue(task outbox.Task) error
}

// DeviceTokens looks up and forgets push registrations;
// *services.DeviceTokenService implements it.
type DeviceTokens interface {
	TokensForUser(ctx context.Context, userID string) ([]string, error)
	Remove(ctx context.Context, token string) error
}

// ThresholdNotifier tells each waiting rider when the shuttle assigned to
// their route direction comes within 5, 2 and 1 minutes of their pickup
// stop. Each (rider, vehicle, stop, threshold) is notified at most once.
type ThresholdNotifier struct {
	store    repository.FleetStore
	catalog  *catalog.Catalog
	dedup    DedupSet
	tasks    TaskQueue
	notifier push.Notifier
	tokens   DeviceTokens
	config   Config

	running atomic.Bool
}

func NewThresholdNotifier(store repository.FleetStore, cat *catalog.Catalog, dedup DedupSet, config Config) *ThresholdNotifier {
	thresholds := append([]int(nil), config.Thresholds...)
	sort.Ints(thresholds)
	config.Thresholds = thresholds

	return &ThresholdNotifier{
		store:    store,
		catalog:  cat,
		dedup:    dedup,
		notifier: push.LogNotifier{},
		config:   config,
	}
}

// SetDelivery routes notifications through tasks to notifier, looking up
// recipients in tokens.
func (n *ThresholdNotifier) SetDelivery(tasks TaskQueue, notifier push.Notifier, tokens DeviceTokens) {
	n.tasks = tasks
	n.notifier = notifier
	n.tokens = tokens
}

// RunOnce checks every active assignment once.
func (n *ThresholdNotifier) RunOnce(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		log.Println("ETA pass still running, skipping")
		return nil
	}
	defer n.running.Store(false)

	assignments, err := n.store.ListActiveAssignments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list assignments: %w", err)
	}
	for _, a := range assignments {
		if err := n.checkAssignment(ctx, a); err != nil {
			log.Printf("ETA check failed for assignment %s: %v", a.ID, err)
		}
	}
	return nil
}

func (n *ThresholdNotifier) checkAssignment(ctx context.Context, a *models.Assignment) error {
	stops, ok := n.catalog.Stops(a.RouteID, a.Direction)
	if !ok {
		return nil
	}
	v, err := n.store.GetVehicle(ctx, a.VehicleID)
	if err != nil {
		return fmt.Errorf("failed to load vehicle %s: %w", a.VehicleID, err)
	}
	if v.LastLocation.Timestamp.IsZero() {
		return nil
	}
	pos := geo.Point{Lat: v.LastLocation.Lat, Lon: v.LastLocation.Lon}

	waiting, err := n.store.ListWaitingReservations(ctx, a.RouteID, a.Direction, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to list waiting riders: %w", err)
	}

	for _, r := range waiting {
		meters, ok := RouteDistance(stops, pos, r.SourceSequence)
		if !ok {
			continue
		}
		minutes := Minutes(meters, n.config.SpeedMetersPerSecond)
		threshold, ok := n.tightest(minutes)
		if !ok {
			continue
		}
		if err := n.notify(ctx, r, v.ID, threshold); err != nil {
			log.Printf("Failed to notify rider %s: %v", r.UserID, err)
		}
	}
	return nil
}

// tightest returns the smallest threshold the estimate is within.
func (n *ThresholdNotifier) tightest(minutes float64) (int, bool) {
	for _, th := range n.config.Thresholds {
		if minutes <= float64(th) {
			return th, true
		}
	}
	return 0, false
}

func (n *ThresholdNotifier) notify(ctx context.Context, r *models.Reservation, vehicleID string, threshold int) error {
	first, err := n.dedup.MarkIfAbsent(ctx, dedupKey(r, vehicleID, threshold), n.config.DedupTTL)
	if err != nil {
		return fmt.Errorf("dedup check failed: %w", err)
	}
	if !first {
		return nil
	}

	// a rider first seen inside 2 minutes must not get the 5 minute message later
	for _, th := range n.config.Thresholds {
		if th <= threshold {
			continue
		}
		if _, err := n.dedup.MarkIfAbsent(ctx, dedupKey(r, vehicleID, th), n.config.DedupTTL); err != nil {
			log.Printf("Failed to mark %d minute threshold for rider %s: %v", th, r.UserID, err)
		}
	}

	if n.tasks == nil || n.tokens == nil {
		return nil
	}
	msg := thresholdMessage(r, vehicleID, threshold)
	userID := r.UserID
	// retries of the task only go to devices that have not received it
	delivered := make(map[string]bool)
	return n.tasks.Enqueue(outbox.Task{
		Name: "eta_push:" + userID,
		Run: func(ctx context.Context) error {
			return n.deliver(ctx, userID, msg, delivered)
		},
	})
}

// deliver sends msg to every device of the user not yet in delivered and
// adds each successful token to it. Tokens the notifier reports as invalid
// are forgotten.
func (n *ThresholdNotifier) deliver(ctx context.Context, userID string, msg push.Message, delivered map[string]bool) error {
	tokens, err := n.tokens.TokensForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}

	var failed error
	for _, token := range tokens {
		if delivered[token] {
			continue
		}
		err := n.notifier.Send(ctx, token, msg)
		switch {
		case err == nil:
			delivered[token] = true
		case errors.Is(err, push.ErrInvalidToken):
			log.Printf("Removing invalid device token for user %s", userID)
			if err := n.tokens.Remove(ctx, token); err != nil {
				log.Printf("Failed to remove device token: %v", err)
			}
		default:
			failed = services.ExternalServiceError("push", err)
		}
	}
	return failed
}

func dedupKey(r *models.Reservation, vehicleID string, threshold int) string {
	return fmt.Sprintf("eta:%s:%s:%d:%d", r.UserID, vehicleID, r.SourceSequence, threshold)
}

func thresholdMessage(r *models.Reservation, vehicleID string, threshold int) push.Message {
	body := fmt.Sprintf("Your shuttle is about %d minutes away.", threshold)
	if threshold <= 1 {
		body = "Your shuttle is arriving now."
	}
	return push.Message{
		Title: "Shuttle update",
		Body:  body,
		Data: map[string]string{
			"vehicleId":    vehicleID,
			"routeId":      r.RouteID,
			"direction":    r.Direction,
			"stopSequence": strconv.Itoa(r.SourceSequence),
			"threshold":    strconv.Itoa(threshold),
		},
	}
}

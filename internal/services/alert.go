package services

import (
	"context"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"

	"github.com/google/uuid"
)

// AlertService manages admin-authored service alerts and pushes every change
// straight to the alert's audience.
type AlertService struct {
	store       repository.FleetStore
	broadcaster Broadcaster
	now         func() time.Time
}

func NewAlertService(store repository.FleetStore) *AlertService {
	return &AlertService{
		store:       store,
		broadcaster: nopBroadcaster{},
		now:         time.Now,
	}
}

func (s *AlertService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

type CreateAlertRequest struct {
	RouteID   string   `json:"routeId,omitempty"`
	VehicleID string   `json:"vehicleId,omitempty"`
	Type      string   `json:"type" validate:"required,oneof=delay breakdown detour capacity general"`
	Message   string   `json:"message" validate:"required,min=1,max=500"`
	Severity  string   `json:"severity" validate:"required,oneof=low medium high critical"`
	Audience  []string `json:"audience,omitempty" validate:"omitempty,dive,oneof=rider driver admin"`
}

type UpdateAlertRequest struct {
	Message  string `json:"message,omitempty" validate:"omitempty,max=500"`
	Severity string `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Resolved *bool  `json:"resolved,omitempty"`
}

func (s *AlertService) List(ctx context.Context, unresolvedOnly bool) ([]*models.Alert, error) {
	return s.store.ListAlerts(ctx, unresolvedOnly)
}

func (s *AlertService) Get(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, storeError(err, "alert", id)
	}
	return alert, nil
}

func (s *AlertService) Create(ctx context.Context, req *CreateAlertRequest) (*models.Alert, error) {
	if req.VehicleID != "" {
		if _, err := s.store.GetVehicle(ctx, req.VehicleID); err != nil {
			return nil, storeError(err, "vehicle", req.VehicleID)
		}
	}

	alert := &models.Alert{
		ID:        uuid.NewString(),
		RouteID:   req.RouteID,
		VehicleID: req.VehicleID,
		Type:      req.Type,
		Message:   req.Message,
		Severity:  req.Severity,
		Audience:  req.Audience,
		Timestamp: s.now(),
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastImmediate(EventAlertCreated, alert, alert.Audience...)
	return alert, nil
}

func (s *AlertService) Update(ctx context.Context, id string, req *UpdateAlertRequest) (*models.Alert, error) {
	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Message != "" {
		alert.Message = req.Message
	}
	if req.Severity != "" {
		alert.Severity = req.Severity
	}
	resolvedNow := false
	if req.Resolved != nil && *req.Resolved != alert.Resolved {
		alert.Resolved = *req.Resolved
		alert.ResolvedAt = nil
		if alert.Resolved {
			at := s.now()
			alert.ResolvedAt = &at
			resolvedNow = true
		}
	}

	if err := s.store.UpdateAlert(ctx, alert); err != nil {
		return nil, storeError(err, "alert", id)
	}

	// edits re-send alert_created; clients upsert by id
	if resolvedNow {
		s.broadcaster.BroadcastImmediate(EventAlertResolved, alert, alert.Audience...)
	} else {
		s.broadcaster.BroadcastImmediate(EventAlertCreated, alert, alert.Audience...)
	}
	return alert, nil
}

// Resolve is idempotent.
func (s *AlertService) Resolve(ctx context.Context, id string) (*models.Alert, error) {
	resolved := true
	return s.Update(ctx, id, &UpdateAlertRequest{Resolved: &resolved})
}

func (s *AlertService) Delete(ctx context.Context, id string) error {
	alert, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAlert(ctx, id); err != nil {
		return storeError(err, "alert", id)
	}

	s.broadcaster.BroadcastImmediate(EventAlertDeleted, map[string]string{"id": id}, alert.Audience...)
	return nil
}

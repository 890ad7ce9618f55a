package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
)

// DeviceTokenService keeps the push tokens of each rider.
type DeviceTokenService struct {
	store repository.FleetStore
}

func NewDeviceTokenService(store repository.FleetStore) *DeviceTokenService {
	return &DeviceTokenService{store: store}
}

type RegisterDeviceTokenRequest struct {
	Token    string `json:"token" validate:"required,min=10"`
	Platform string `json:"platform,omitempty" validate:"omitempty,oneof=android ios web"`
}

// Register binds token to userID, taking it over from any previous owner.
func (s *DeviceTokenService) Register(ctx context.Context, userID string, req *RegisterDeviceTokenRequest) (*models.DeviceToken, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" || userID == "" {
		return nil, validationError("token and user are required")
	}
	t := &models.DeviceToken{
		Token:     token,
		UserID:    userID,
		Platform:  req.Platform,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveDeviceToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *DeviceTokenService) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	records, err := s.store.DeviceTokensForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, r.Token)
	}
	return tokens, nil
}

func (s *DeviceTokenService) Remove(ctx context.Context, token string) error {
	return s.store.DeleteDeviceToken(ctx, token)
}

// Unregister removes token only when it belongs to userID.
func (s *DeviceTokenService) Unregister(ctx context.Context, userID, token string) error {
	tokens, err := s.TokensForUser(ctx, userID)
	if err != nil {
		return err
	}
	if !slices.Contains(tokens, token) {
		return notFoundError("device token for user", userID)
	}
	return s.Remove(ctx, token)
}

package services

import (
	"context"

	"github.com/prudhvinik1/weddingsync/internal/clock"
	"github.com/prudhvinik1/weddingsync/internal/models"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
	"github.com/prudhvinik1/weddingsync/internal/validation"
)

// PresenceService tracks which partners of a shared event are online.
type PresenceService struct {
	repo  repositories.PresenceRepository
	clock clock.Clock
}

type HeartbeatRequest struct {
	SharedEventID string `json:"sharedEventId" validate:"required,notblank"`
	UserID        string `json:"userId" validate:"required,notblank"`
	Status        string `json:"status" validate:"omitempty,oneof=online offline away"`
}

func NewPresenceService(repo repositories.PresenceRepository, clk clock.Clock) *PresenceService {
	return &PresenceService{repo: repo, clock: clk}
}

// Heartbeat records the partner's status. An offline status removes the
// partner right away instead of waiting for the heartbeat to expire.
func (s *PresenceService) Heartbeat(ctx context.Context, req HeartbeatRequest) error {
	if err := validation.ValidateStruct(req); err != nil {
		return newValidationError(err)
	}

	status := models.PresenceStatus(req.Status)
	if status == "" {
		status = models.StatusOnline
	}

	if status == models.StatusOffline {
		if err := s.repo.DeletePresence(ctx, req.SharedEventID, req.UserID); err != nil {
			return &StorageError{Op: "clear presence", Err: err}
		}
		return nil
	}

	presence := &models.Presence{
		SharedEventID: req.SharedEventID,
		UserID:        req.UserID,
		Status:        string(status),
		LastSeen:      s.clock.Now(),
	}
	if err := s.repo.SetPresence(ctx, presence); err != nil {
		return &StorageError{Op: "set presence", Err: err}
	}
	return nil
}

func (s *PresenceService) List(ctx context.Context, sharedEventID string) ([]models.Presence, error) {
	if err := validation.ValidateStruct(peekRequest{SharedEventID: sharedEventID}); err != nil {
		return nil, newValidationError(err)
	}

	presences, err := s.repo.ListPresence(ctx, sharedEventID)
	if err != nil {
		return nil, &StorageError{Op: "list presence", Err: err}
	}
	return presences, nil
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prudhvinik1/weddingsync/internal/clock"
	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/metrics"
	"github.com/prudhvinik1/weddingsync/internal/models"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
	"github.com/prudhvinik1/weddingsync/internal/validation"
)

var nullData = json.RawMessage("null")

// LedgerService records sync updates for a shared event and hands them to
// the partner that drains them.
type LedgerService struct {
	repo     repositories.SyncUpdateRepository
	notifier repositories.Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
	maxBatch int
	maxWait  time.Duration
}

type LedgerOptions struct {
	// MaxBatch caps the number of updates one drain returns. Zero means no cap.
	MaxBatch int
	// MaxWait caps how long a drain may wait for new updates.
	MaxWait time.Duration
}

type SubmitRequest struct {
	SharedEventID string              `json:"sharedEventId" validate:"required,notblank"`
	UserID        string              `json:"userId" validate:"required,notblank"`
	Type          models.UpdateType   `json:"type" validate:"required,oneof=guests checklist seating preferences"`
	Action        models.UpdateAction `json:"action" validate:"required,oneof=add update delete refresh"`
	Data          json.RawMessage     `json:"data"`
	// Timestamp is in epoch milliseconds. Zero means the time of submission.
	Timestamp int64 `json:"timestamp" validate:"gte=0"`
}

type DrainRequest struct {
	SharedEventID string        `json:"sharedEventId" validate:"required,notblank"`
	Since         *int64        `json:"since"`
	ExcludeUserID string        `json:"userId"`
	Limit         int           `json:"limit" validate:"gte=0"`
	Wait          time.Duration `json:"wait" validate:"gte=0"`
}

type peekRequest struct {
	SharedEventID string `json:"sharedEventId" validate:"required,notblank"`
}

func NewLedgerService(
	repo repositories.SyncUpdateRepository,
	notifier repositories.Notifier,
	clk clock.Clock,
	m *metrics.Metrics,
	opts LedgerOptions,
) *LedgerService {
	return &LedgerService{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		metrics:  m,
		maxBatch: opts.MaxBatch,
		maxWait:  opts.MaxWait,
	}
}

// Submit stores one update as pending and returns its id.
func (s *LedgerService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return "", newValidationError(err)
	}

	data := req.Data
	if len(bytes.TrimSpace(data)) == 0 {
		data = nullData
	} else if !json.Valid(data) {
		return "", &ValidationError{Message: "invalid request: data must be valid JSON"}
	}

	now := s.clock.Now()
	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = now.UnixMilli()
	}

	update := &models.SyncUpdate{
		SharedEventID: req.SharedEventID,
		UserID:        req.UserID,
		Type:          req.Type,
		Action:        req.Action,
		Data:          data,
		Timestamp:     timestamp,
		CreatedAt:     now,
	}
	if err := s.repo.Insert(ctx, update); err != nil {
		return "", &StorageError{Op: "store update", Err: err}
	}
	s.metrics.AddSubmitted(string(update.Type), string(update.Action))

	if err := s.notifier.Publish(ctx, update.SharedEventID, update.ID); err != nil {
		logging.From(ctx).Warnf("notify %s of update %s: %v", update.SharedEventID, update.ID, err)
	}

	return update.ID, nil
}

// Drain claims the pending updates of a shared event in (timestamp, seq)
// order. With a wait, an empty drain blocks until a matching update arrives,
// the wait elapses or ctx is done.
func (s *LedgerService) Drain(ctx context.Context, req DrainRequest) ([]*models.SyncUpdate, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, newValidationError(err)
	}

	filter := models.DrainFilter{
		SharedEventID: req.SharedEventID,
		Since:         req.Since,
		ExcludeUserID: req.ExcludeUserID,
		Limit:         s.clampLimit(req.Limit),
	}

	wait := req.Wait
	if wait > s.maxWait {
		wait = s.maxWait
	}
	if wait <= 0 {
		return s.claim(ctx, filter)
	}

	// Subscribe before the first claim so a submit landing in between still
	// wakes this drain.
	notifications, release, err := s.notifier.Subscribe(ctx, req.SharedEventID)
	if err != nil {
		logging.From(ctx).Warnf("subscribe to %s: %v", req.SharedEventID, err)
		return s.claim(ctx, filter)
	}
	defer release()

	updates, err := s.claim(ctx, filter)
	if err != nil || len(updates) > 0 {
		return updates, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-notifications:
			updates, err = s.claim(ctx, filter)
			if err != nil || len(updates) > 0 {
				return updates, err
			}
		case <-timer.C:
			return updates, nil
		case <-ctx.Done():
			return updates, nil
		}
	}
}

// Peek lists the updates of a shared event without claiming them.
func (s *LedgerService) Peek(ctx context.Context, sharedEventID string, includeProcessed bool) ([]*models.SyncUpdate, error) {
	if err := validation.ValidateStruct(peekRequest{SharedEventID: sharedEventID}); err != nil {
		return nil, newValidationError(err)
	}

	updates, err := s.repo.List(ctx, sharedEventID, includeProcessed)
	if errors.Is(err, repositories.ErrNotFound) {
		return []*models.SyncUpdate{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "list updates", Err: err}
	}
	if updates == nil {
		updates = []*models.SyncUpdate{}
	}
	return updates, nil
}

// Sweep removes processed updates delivered more than retention ago and
// returns how many were removed. A dry run only counts them.
func (s *LedgerService) Sweep(ctx context.Context, retention time.Duration, dryRun bool) (int64, error) {
	if retention <= 0 {
		return 0, &ValidationError{Message: "invalid request: retention must be positive"}
	}
	cutoff := s.clock.Now().Add(-retention)

	if dryRun {
		count, err := s.repo.CountProcessedBefore(ctx, cutoff)
		if err != nil {
			return 0, &StorageError{Op: "count processed updates", Err: err}
		}
		return count, nil
	}

	count, err := s.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		s.metrics.AddSweepFailure()
		return 0, &StorageError{Op: "sweep processed updates", Err: err}
	}
	s.metrics.AddSwept(count)
	return count, nil
}

func (s *LedgerService) claim(ctx context.Context, filter models.DrainFilter) ([]*models.SyncUpdate, error) {
	updates, err := s.repo.ClaimPending(ctx, filter, s.clock.Now())
	if errors.Is(err, repositories.ErrNotFound) {
		updates, err = nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "drain updates", Err: err}
	}
	if updates == nil {
		updates = []*models.SyncUpdate{}
	}

	s.metrics.ObserveDrainBatchSize(len(updates))
	for _, update := range updates {
		s.metrics.AddDrained(string(update.Type))
	}
	return updates, nil
}

func (s *LedgerService) clampLimit(limit int) int {
	if s.maxBatch <= 0 {
		return limit
	}
	if limit <= 0 || limit > s.maxBatch {
		return s.maxBatch
	}
	return limit
}

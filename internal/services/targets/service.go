package targets

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// Service implements TargetService: validated CRUD over target storage
// with change events for the scheduler.
type Service struct {
	storage       interfaces.StorageManager
	eventService  interfaces.EventService
	validate      *validator.Validate
	allowTestURLs bool
	logger        arbor.ILogger
}

// NewService creates a new target service. Test hosts (loopback,
// private ranges) are rejected in production environments only.
func NewService(storage interfaces.StorageManager, eventService interfaces.EventService, config *common.Config, logger arbor.ILogger) interfaces.TargetService {
	return &Service{
		storage:       storage,
		eventService:  eventService,
		validate:      validator.New(),
		allowTestURLs: !config.IsProduction(),
		logger:        logger,
	}
}

func (s *Service) Create(ctx context.Context, input *models.TargetCreate) (*models.Target, error) {
	if input.CheckIntervalSeconds == 0 {
		input.CheckIntervalSeconds = models.MinCheckIntervalSeconds
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%s: %w", err, interfaces.ErrInvalid)
	}
	if err := common.ValidateTargetURL(input.URL, s.allowTestURLs); err != nil {
		return nil, fmt.Errorf("%s: %w", err, interfaces.ErrInvalid)
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	target := &models.Target{
		URL:                  input.URL,
		Name:                 input.Name,
		CheckIntervalSeconds: input.CheckIntervalSeconds,
		Enabled:              enabled,
	}
	if err := s.storage.TargetStorage().CreateTarget(ctx, target); err != nil {
		return nil, err
	}

	s.publish(ctx, interfaces.EventTargetCreated, target, false)
	s.logger.Info().
		Int64("target_id", int64(target.ID)).
		Str("url", target.URL).
		Int("interval_s", target.CheckIntervalSeconds).
		Bool("enabled", target.Enabled).
		Msg("Target created")
	return target, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Target, error) {
	return s.storage.TargetStorage().GetTarget(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*models.Target, error) {
	return s.storage.TargetStorage().ListTargets(ctx)
}

// Update applies a patch; nil fields keep their current value.
func (s *Service) Update(ctx context.Context, id uint64, patch *models.TargetUpdate) (*models.Target, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, fmt.Errorf("%s: %w", err, interfaces.ErrInvalid)
	}

	target, err := s.storage.TargetStorage().GetTarget(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.URL != nil && *patch.URL != target.URL {
		if err := common.ValidateTargetURL(*patch.URL, s.allowTestURLs); err != nil {
			return nil, fmt.Errorf("%s: %w", err, interfaces.ErrInvalid)
		}
		target.URL = *patch.URL
	}
	if patch.Name != nil {
		target.Name = *patch.Name
	}
	if patch.CheckIntervalSeconds != nil {
		target.CheckIntervalSeconds = *patch.CheckIntervalSeconds
	}
	if patch.Enabled != nil {
		target.Enabled = *patch.Enabled
	}

	if err := s.storage.TargetStorage().UpdateTarget(ctx, target); err != nil {
		return nil, err
	}

	s.publish(ctx, interfaces.EventTargetUpdated, target, false)
	s.logger.Info().
		Int64("target_id", int64(target.ID)).
		Str("url", target.URL).
		Bool("enabled", target.Enabled).
		Msg("Target updated")
	return target, nil
}

// Delete removes the target and all dependent records. The deleted
// event is delivered synchronously: by the time Delete returns, the
// scheduler has dropped the target's job.
func (s *Service) Delete(ctx context.Context, id uint64) error {
	target, err := s.storage.TargetStorage().GetTarget(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.TargetStorage().DeleteTarget(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, interfaces.EventTargetDeleted, target, true)
	s.logger.Info().
		Int64("target_id", int64(id)).
		Str("url", target.URL).
		Msg("Target deleted")
	return nil
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, target *models.Target, sync bool) {
	if s.eventService == nil {
		return
	}
	event := interfaces.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"target_id": target.ID,
			"url":       target.URL,
		},
	}

	var err error
	if sync {
		err = s.eventService.PublishSync(ctx, event)
	} else {
		err = s.eventService.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to publish target event")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abd0-omar/newzletter/internal/domain"
	"github.com/abd0-omar/newzletter/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionService manages the recipients the publish fan-out reads.
// The confirmation email round trip lives outside this service; Confirm
// is the boundary the external token flow calls into.
type SubscriptionService struct {
	subscribers repository.SubscriberRepository
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

func NewSubscriptionService(
	subscribers repository.SubscriberRepository,
	logger *zap.Logger,
) (*SubscriptionService, error) {
	if subscribers == nil {
		return nil, fmt.Errorf("subscriber repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubscriptionService{
		subscribers: subscribers,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// Subscribe stores a pending subscriber. A duplicate email is treated
// as success with a nil subscriber, so the endpoint never reveals who
// is already on the list.
func (s *SubscriptionService) Subscribe(ctx context.Context, name, email string) (*domain.Subscriber, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	subscriber := &domain.Subscriber{
		ID:           s.newID(),
		Email:        strings.TrimSpace(email),
		Name:         strings.TrimSpace(name),
		Status:       domain.StatusPendingConfirmation,
		SubscribedAt: s.now().UTC(),
	}
	if err := subscriber.Validate(); err != nil {
		return nil, err
	}

	if err := s.subscribers.Create(ctx, subscriber); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Info("email already subscribed, treating as success")
			return nil, nil
		}
		return nil, err
	}

	return subscriber, nil
}

func (s *SubscriptionService) Confirm(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: subscriber id is required", domain.ErrValidation)
	}
	return s.subscribers.Confirm(ctx, strings.TrimSpace(id))
}

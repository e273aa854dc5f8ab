package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/abd0-omar/newzletter/internal/domain"
	"gorm.io/gorm"
)

// SubscriberRepository manages newsletter recipients.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *domain.Subscriber) error
	Confirm(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	CountConfirmed(ctx context.Context) (int64, error)
}

type GormSubscriberRepo struct {
	db *gorm.DB
}

func NewGormSubscriberRepo(db *gorm.DB) *GormSubscriberRepo {
	return &GormSubscriberRepo{db: db}
}

func (r *GormSubscriberRepo) Create(ctx context.Context, subscriber *domain.Subscriber) error {
	model := subscriberModelFromDomain(subscriber)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already subscribed", domain.ErrConflict)
		}
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}
	return nil
}

func (r *GormSubscriberRepo) Confirm(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("id = ?", id).
		Update("status", domain.StatusConfirmed)
	if result.Error != nil {
		return fmt.Errorf("failed to confirm subscriber: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: subscriber %q", domain.ErrNotFound, id)
	}
	return nil
}

func (r *GormSubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var model SubscriberModel
	err := r.db.WithContext(ctx).First(&model, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: subscriber %q", domain.ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	return subscriberModelToDomain(&model), nil
}

func (r *GormSubscriberRepo) CountConfirmed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("status = ?", domain.StatusConfirmed).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count confirmed subscribers: %w", err)
	}
	return count, nil
}

var _ SubscriberRepository = (*GormSubscriberRepo)(nil)

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abd0-omar/newzletter/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IssueRepository writes newsletter issues and their delivery fan-out.
// The transactional methods operate on the transaction handle supplied
// by the caller and never open their own.
type IssueRepository interface {
	CreateIssue(ctx context.Context, tx *gorm.DB, issue *domain.NewsletterIssue) error
	EnqueueDeliveryTasks(ctx context.Context, tx *gorm.DB, issueID string) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.NewsletterIssue, error)
}

type GormIssueRepo struct {
	db *gorm.DB
}

func NewGormIssueRepo(db *gorm.DB) *GormIssueRepo {
	return &GormIssueRepo{db: db}
}

func (r *GormIssueRepo) CreateIssue(ctx context.Context, tx *gorm.DB, issue *domain.NewsletterIssue) error {
	model := issueModelFromDomain(issue)
	if err := tx.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: an issue titled %q already exists", domain.ErrConflict, issue.Title)
		}
		return fmt.Errorf("failed to insert newsletter issue: %w", err)
	}
	return nil
}

// EnqueueDeliveryTasks inserts one delivery task per confirmed
// subscriber in a single statement, so the task set is created
// atomically with the issue. Duplicate (issue, recipient) pairs are
// ignored, which keeps the whole publish transaction retryable.
func (r *GormIssueRepo) EnqueueDeliveryTasks(ctx context.Context, tx *gorm.DB, issueID string) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email)
		 SELECT ?, email FROM subscriptions WHERE status = ?
		 ON CONFLICT DO NOTHING`,
		issueID, domain.StatusConfirmed,
	)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to enqueue delivery tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormIssueRepo) GetByID(ctx context.Context, id string) (*domain.NewsletterIssue, error) {
	var model IssueModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: newsletter issue %q", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load newsletter issue: %w", err)
	}
	return issueModelToDomain(&model), nil
}

var _ IssueRepository = (*GormIssueRepo)(nil)

// DequeuedTask is one delivery task pulled off the queue together with
// the content of its owning issue, everything a send attempt needs.
type DequeuedTask struct {
	IssueID         string
	SubscriberEmail string
	Title           string
	TextContent     string
	HTMLContent     string
}

// QueueRepository hands out delivery tasks for the worker loop.
type QueueRepository interface {
	Dequeue(ctx context.Context) (*DequeuedTask, error)
}

type GormQueueRepo struct {
	db *gorm.DB
}

func NewGormQueueRepo(db *gorm.DB) *GormQueueRepo {
	return &GormQueueRepo{db: db}
}

// Dequeue runs the transactional half of one delivery step: lock one
// pending task (skipping rows locked by concurrent workers), load the
// owning issue, delete the task row, and commit. The row is gone before
// the send is attempted; a crash between this commit and the send loses
// one delivery instead of risking a duplicate storm. Returns nil when
// the queue is empty.
func (r *GormQueueRepo) Dequeue(ctx context.Context) (*DequeuedTask, error) {
	var dequeued *DequeuedTask

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task DeliveryTaskModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Limit(1).
			Take(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to select delivery task: %w", err)
		}

		var issue IssueModel
		if err := tx.First(&issue, "id = ?", task.IssueID).Error; err != nil {
			return fmt.Errorf("failed to load issue for delivery task: %w", err)
		}

		result := tx.
			Where("newsletter_issue_id = ? AND subscriber_email = ?", task.IssueID, task.SubscriberEmail).
			Delete(&DeliveryTaskModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete delivery task: %w", result.Error)
		}

		dequeued = &DequeuedTask{
			IssueID:         task.IssueID,
			SubscriberEmail: task.SubscriberEmail,
			Title:           issue.Title,
			TextContent:     issue.TextContent,
			HTMLContent:     issue.HTMLContent,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dequeued, nil
}

var _ QueueRepository = (*GormQueueRepo)(nil)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

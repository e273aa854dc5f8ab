package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abd0-omar/newzletter/internal/domain"
	"github.com/abd0-omar/newzletter/internal/idempotency"
	"github.com/abd0-omar/newzletter/internal/observability"
	"github.com/abd0-omar/newzletter/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IdempotencyStore is the coordinator deciding whether a publish request
// replays a cached response or proceeds inside a fresh transaction.
type IdempotencyStore interface {
	TryProcessing(ctx context.Context, userID, key string) (*idempotency.NextAction, error)
	SaveResponse(ctx context.Context, tx *gorm.DB, userID, key string, resp *idempotency.StoredResponse) error
	Abort(tx *gorm.DB)
}

// PublishService publishes newsletter issues: one issue row plus one
// delivery task per confirmed subscriber, committed atomically with the
// cached response for the caller's idempotency key.
type PublishService struct {
	idempotency IdempotencyStore
	issues      repository.IssueRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string
}

func NewPublishService(
	idempotencyStore IdempotencyStore,
	issues repository.IssueRepository,
	logger *zap.Logger,
) (*PublishService, error) {
	if idempotencyStore == nil {
		return nil, fmt.Errorf("idempotency store is required")
	}
	if issues == nil {
		return nil, fmt.Errorf("issue repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PublishService{
		idempotency: idempotencyStore,
		issues:      issues,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

func (s *PublishService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

type publishResponseBody struct {
	IssueID    string `json:"issueId"`
	Deliveries int64  `json:"deliveries"`
}

// Publish runs one idempotent publish attempt. The boolean reports
// whether the returned response was replayed from the idempotency store
// rather than produced by this call. Either way the response bytes are
// identical for every retry of the same (user, key).
func (s *PublishService) Publish(
	ctx context.Context,
	userID, key string,
	in domain.NewIssue,
) (*idempotency.StoredResponse, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := in.Validate(); err != nil {
		return nil, false, err
	}

	logger := observability.WithContextLogger(s.logger, ctx)

	action, err := s.idempotency.TryProcessing(ctx, userID, key)
	if err != nil {
		return nil, false, err
	}

	if action.SavedResponse != nil {
		logger.Info("replaying stored publish response",
			zap.String("userId", userID),
			zap.String("idempotencyKey", key),
		)
		if s.metrics != nil {
			s.metrics.IncIdempotentReplay()
		}
		return action.SavedResponse, true, nil
	}

	tx := action.Tx

	issue := &domain.NewsletterIssue{
		ID:          s.newID(),
		Title:       in.Title,
		TextContent: in.TextContent,
		HTMLContent: in.HTMLContent,
		PublishedAt: s.now().UTC(),
	}
	if err := s.issues.CreateIssue(ctx, tx, issue); err != nil {
		s.idempotency.Abort(tx)
		return nil, false, err
	}

	enqueued, err := s.issues.EnqueueDeliveryTasks(ctx, tx, issue.ID)
	if err != nil {
		s.idempotency.Abort(tx)
		return nil, false, err
	}

	resp, err := buildPublishResponse(issue.ID, enqueued)
	if err != nil {
		s.idempotency.Abort(tx)
		return nil, false, err
	}

	// SaveResponse commits the whole transaction: issue, delivery tasks,
	// and the cached response become visible together or not at all.
	if err := s.idempotency.SaveResponse(ctx, tx, userID, key, resp); err != nil {
		return nil, false, err
	}

	logger.Info("newsletter issue published",
		zap.String("newsletterIssueId", issue.ID),
		zap.String("title", issue.Title),
		zap.Int64("deliveryTasks", enqueued),
	)
	if s.metrics != nil {
		s.metrics.IncIssuePublished()
	}

	return resp, false, nil
}

func (s *PublishService) GetIssue(ctx context.Context, id string) (*domain.NewsletterIssue, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: issue id is required", domain.ErrValidation)
	}
	return s.issues.GetByID(ctx, strings.TrimSpace(id))
}

func buildPublishResponse(issueID string, deliveries int64) (*idempotency.StoredResponse, error) {
	body, err := json.Marshal(publishResponseBody{
		IssueID:    issueID,
		Deliveries: deliveries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode publish response: %w", err)
	}

	return &idempotency.StoredResponse{
		StatusCode: 201,
		Headers: []idempotency.HeaderPair{
			{Name: "Content-Type", Value: []byte("application/json")},
		},
		Body: body,
	}, nil
}

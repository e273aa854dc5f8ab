package service

import (
	"context"
	"fmt"
	"time"

	"github.com/abd0-omar/newzletter/internal/domain"
	"github.com/abd0-omar/newzletter/internal/observability"
	"github.com/abd0-omar/newzletter/internal/provider"
	"github.com/abd0-omar/newzletter/internal/ratelimit"
	"github.com/abd0-omar/newzletter/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultEmptyQueueBackoff = 10 * time.Second
	defaultErrorBackoff      = time.Second

	// sendBucket is the rate limiter bucket shared by all outbound sends.
	sendBucket = "email"
)

// ExecutionOutcome reports how a single delivery step ended.
type ExecutionOutcome int

const (
	TaskCompleted ExecutionOutcome = iota
	EmptyQueue
)

// DeliveryWorker drains the issue delivery queue: one task per step,
// dequeued transactionally and sent outside any transaction. A send
// failure of either class never re-queues the task; the row is already
// gone, which is the price of never letting one poisoned address starve
// the queue.
type DeliveryWorker struct {
	queue       repository.QueueRepository
	sender      provider.EmailSender
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics

	emptyQueueBackoff time.Duration
	errorBackoff      time.Duration
	now               func() time.Time
	sleep             func(ctx context.Context, d time.Duration) error
}

func NewDeliveryWorker(
	queue repository.QueueRepository,
	sender provider.EmailSender,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*DeliveryWorker, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryWorker{
		queue:             queue,
		sender:            sender,
		rateLimiter:       rateLimiter,
		logger:            logger,
		emptyQueueBackoff: defaultEmptyQueueBackoff,
		errorBackoff:      defaultErrorBackoff,
		now:               time.Now,
		sleep:             sleepWithContext,
	}, nil
}

func (w *DeliveryWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Run executes delivery steps until ctx is cancelled. Shutdown is
// cooperative: cancellation takes effect at the top of the next
// iteration, never inside a step's transaction. An idle queue and an
// unexpected storage error each back off on their own interval so the
// loop does not busy-poll a quiet or failing database.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	w.logger.Info("delivery worker started")
	defer w.logger.Info("delivery worker stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		outcome, err := w.executeStep(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("delivery step failed", zap.Error(err))
			if sleepErr := w.sleep(ctx, w.errorBackoff); sleepErr != nil {
				return nil
			}
		case outcome == EmptyQueue:
			if sleepErr := w.sleep(ctx, w.emptyQueueBackoff); sleepErr != nil {
				return nil
			}
		}
	}
}

func (w *DeliveryWorker) executeStep(ctx context.Context) (ExecutionOutcome, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		if w.metrics != nil {
			w.metrics.IncQueuePoll("error")
		}
		return EmptyQueue, err
	}
	if task == nil {
		if w.metrics != nil {
			w.metrics.IncQueuePoll("empty")
		}
		return EmptyQueue, nil
	}
	if w.metrics != nil {
		w.metrics.IncQueuePoll("task")
	}

	logger := w.logger.With(
		zap.String("newsletterIssueId", task.IssueID),
		zap.String("subscriberEmail", task.SubscriberEmail),
	)

	if err := domain.ValidateSubscriberEmail(task.SubscriberEmail); err != nil {
		logger.Error("skipping a confirmed subscriber, stored contact details are invalid",
			zap.Error(err),
		)
		if w.metrics != nil {
			w.metrics.IncDeliveryFailed("invalid_recipient")
		}
		return TaskCompleted, nil
	}

	if w.rateLimiter != nil {
		if err := w.rateLimiter.Wait(ctx, sendBucket); err != nil {
			// The task row is already deleted; treat this like a failed
			// send rather than pretending a retry is possible.
			logger.Error("rate limiter wait failed, delivery skipped", zap.Error(err))
			if w.metrics != nil {
				w.metrics.IncDeliveryFailed("rate_limiter")
			}
			return TaskCompleted, nil
		}
	}

	sendStart := w.now()
	sendErr := w.sender.Send(ctx, task.SubscriberEmail, task.Title, task.HTMLContent, task.TextContent)
	if w.metrics != nil {
		w.metrics.ObserveDeliverySendDuration(w.now().Sub(sendStart))
	}

	if sendErr != nil {
		reason := "permanent_error"
		if provider.IsTransient(sendErr) {
			reason = "transient_error"
		}
		logger.Error("failed to deliver issue to a confirmed subscriber, skipping",
			zap.String("classification", reason),
			zap.Error(sendErr),
		)
		if w.metrics != nil {
			w.metrics.IncDeliveryFailed(reason)
		}
		return TaskCompleted, nil
	}

	if w.metrics != nil {
		w.metrics.IncDeliverySent()
	}
	return TaskCompleted, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsWorkerCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncIssuePublished()
	metrics.IncIdempotentReplay()
	metrics.IncDeliverySent()
	metrics.IncDeliveryFailed("Permanent_Error")
	metrics.ObserveDeliverySendDuration(120 * time.Millisecond)
	metrics.IncQueuePoll("empty")

	if got := testutil.ToFloat64(metrics.issuesPublishedTotal); got != 1 {
		t.Fatalf("issues_published_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.idempotentReplaysTotal); got != 1 {
		t.Fatalf("idempotent_replays_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesSentTotal); got != 1 {
		t.Fatalf("deliveries_sent_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesFailedTotal.WithLabelValues("permanent_error")); got != 1 {
		t.Fatalf("deliveries_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.queuePollsTotal.WithLabelValues("empty")); got != 1 {
		t.Fatalf("delivery_queue_polls_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncIssuePublished()
	metrics.IncIdempotentReplay()
	metrics.IncDeliverySent()
	metrics.IncDeliveryFailed("transient_error")
	metrics.ObserveDeliverySendDuration(time.Second)
	metrics.IncQueuePoll("task")
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

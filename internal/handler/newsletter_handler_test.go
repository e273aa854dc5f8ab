package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abd0-omar/newzletter/internal/domain"
	"github.com/abd0-omar/newzletter/internal/idempotency"
	"github.com/abd0-omar/newzletter/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubNewsletterService struct {
	resp     *idempotency.StoredResponse
	replayed bool
	err      error
	issue    *domain.NewsletterIssue
	getErr   error

	userID string
	key    string
	in     domain.NewIssue
}

func (s *stubNewsletterService) Publish(ctx context.Context, userID, key string, in domain.NewIssue) (*idempotency.StoredResponse, bool, error) {
	s.userID = userID
	s.key = key
	s.in = in
	if s.err != nil {
		return nil, false, s.err
	}
	return s.resp, s.replayed, nil
}

func (s *stubNewsletterService) GetIssue(ctx context.Context, id string) (*domain.NewsletterIssue, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.issue, nil
}

func newNewsletterTestApp(t *testing.T, service NewsletterService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if err := RegisterNewsletterRoutes(app, service); err != nil {
		t.Fatalf("route registration failed: %v", err)
	}
	return app
}

func publishRequest(t *testing.T, body any) *http.Request {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/newsletters", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Idempotency-Key", "key-1")
	return req
}

func validPublishBody() map[string]string {
	return map[string]string{
		"title":       "June digest",
		"textContent": "plain text body",
		"htmlContent": "<p>html body</p>",
	}
}

func TestPublishNewsletterReturnsStoredResponseVerbatim(t *testing.T) {
	t.Parallel()

	storedBody := []byte(`{"issueId":"issue-id-1","deliveries":3}`)
	service := &stubNewsletterService{
		resp: &idempotency.StoredResponse{
			StatusCode: 201,
			Headers: []idempotency.HeaderPair{
				{Name: "Content-Type", Value: []byte("application/json")},
			},
			Body: storedBody,
		},
	}
	app := newNewsletterTestApp(t, service)

	resp, err := app.Test(publishRequest(t, validPublishBody()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if !bytes.Equal(body, storedBody) {
		t.Fatalf("response body differs from the stored bytes: %s", body)
	}

	if service.userID != "user-1" || service.key != "key-1" {
		t.Fatalf("identity headers not forwarded: user=%q key=%q", service.userID, service.key)
	}
	if service.in.Title != "June digest" {
		t.Fatalf("unexpected issue title %q", service.in.Title)
	}
}

func TestPublishNewsletterRequiresIdentityHeaders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing user id", header: "X-User-ID"},
		{name: "missing idempotency key", header: "Idempotency-Key"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service := &stubNewsletterService{}
			app := newNewsletterTestApp(t, service)

			req := publishRequest(t, validPublishBody())
			req.Header.Del(tc.header)

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", resp.StatusCode)
			}
			if service.userID != "" || service.key != "" {
				t.Fatal("the service must not be called without identity headers")
			}
		})
	}
}

func TestPublishNewsletterRejectsInvalidBody(t *testing.T) {
	t.Parallel()

	service := &stubNewsletterService{}
	app := newNewsletterTestApp(t, service)

	body := validPublishBody()
	body["title"] = ""
	resp, err := app.Test(publishRequest(t, body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestPublishNewsletterPendingRequestGetsRetryAfter(t *testing.T) {
	t.Parallel()

	service := &stubNewsletterService{
		err: fmt.Errorf("%w: idempotency key %q", domain.ErrPendingRequest, "key-1"),
	}
	app := newNewsletterTestApp(t, service)

	resp, err := app.Test(publishRequest(t, validPublishBody()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get(fiber.HeaderRetryAfter); got != "1" {
		t.Fatalf("expected Retry-After header, got %q", got)
	}
}

func TestGetNewsletter(t *testing.T) {
	t.Parallel()

	service := &stubNewsletterService{
		issue: &domain.NewsletterIssue{
			ID:          "issue-id-1",
			Title:       "June digest",
			TextContent: "plain text body",
			HTMLContent: "<p>html body</p>",
			PublishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	app := newNewsletterTestApp(t, service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/newsletters/issue-id-1", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != "issue-id-1" || body.Title != "June digest" {
		t.Fatalf("unexpected response %+v", body)
	}
}

func TestGetNewsletterNotFound(t *testing.T) {
	t.Parallel()

	service := &stubNewsletterService{
		getErr: fmt.Errorf("%w: newsletter issue %q", domain.ErrNotFound, "missing"),
	}
	app := newNewsletterTestApp(t, service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/newsletters/missing", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message in the body")
	}
}

package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abd0-omar/newzletter/internal/domain"
	"github.com/abd0-omar/newzletter/internal/idempotency"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const idempotencyKeyHeader = "Idempotency-Key"

// userIDHeader carries the stable per-user identity the routing layer
// is responsible for establishing before business logic runs.
const userIDHeader = "X-User-ID"

var validate = validator.New()

// NewsletterService is the publish boundary the routing layer calls into.
type NewsletterService interface {
	Publish(ctx context.Context, userID, key string, in domain.NewIssue) (*idempotency.StoredResponse, bool, error)
	GetIssue(ctx context.Context, id string) (*domain.NewsletterIssue, error)
}

type NewsletterHandler struct {
	service NewsletterService
}

func NewNewsletterHandler(service NewsletterService) (*NewsletterHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("newsletter service is required")
	}
	return &NewsletterHandler{service: service}, nil
}

func RegisterNewsletterRoutes(router fiber.Router, service NewsletterService) error {
	h, err := NewNewsletterHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/newsletters", h.PublishNewsletter)
	v1.Get("/newsletters/:id", h.GetNewsletter)

	return nil
}

type publishIssueRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	TextContent string `json:"textContent" validate:"required"`
	HTMLContent string `json:"htmlContent" validate:"required"`
}

type issueResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TextContent string    `json:"textContent"`
	HTMLContent string    `json:"htmlContent"`
	PublishedAt time.Time `json:"publishedAt"`
}

func (h *NewsletterHandler) PublishNewsletter(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Get(userIDHeader))
	if userID == "" {
		return fmt.Errorf("%w: %s header is required", domain.ErrValidation, userIDHeader)
	}
	key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
	if key == "" {
		return fmt.Errorf("%w: %s header is required", domain.ErrValidation, idempotencyKeyHeader)
	}

	var req publishIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	resp, _, err := h.service.Publish(c.UserContext(), userID, key, domain.NewIssue{
		Title:       req.Title,
		TextContent: req.TextContent,
		HTMLContent: req.HTMLContent,
	})
	if err != nil {
		return err
	}

	return sendStoredResponse(c, resp)
}

func (h *NewsletterHandler) GetNewsletter(c *fiber.Ctx) error {
	issue, err := h.service.GetIssue(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(issueResponse{
		ID:          issue.ID,
		Title:       issue.Title,
		TextContent: issue.TextContent,
		HTMLContent: issue.HTMLContent,
		PublishedAt: issue.PublishedAt,
	})
}

// sendStoredResponse writes a stored response verbatim. First attempt
// and every replay of the same idempotency key go through here, so the
// client sees identical status, headers, and body bytes each time.
func sendStoredResponse(c *fiber.Ctx, resp *idempotency.StoredResponse) error {
	for _, header := range resp.Headers {
		c.Response().Header.Add(header.Name, string(header.Value))
	}
	return c.Status(resp.StatusCode).Send(resp.Body)
}

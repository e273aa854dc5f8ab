package handler

import (
	"context"
	"fmt"

	"github.com/abd0-omar/newzletter/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// SubscriptionService manages the recipient list behind the publish fan-out.
type SubscriptionService interface {
	Subscribe(ctx context.Context, name, email string) (*domain.Subscriber, error)
	Confirm(ctx context.Context, id string) error
}

type SubscriptionHandler struct {
	service SubscriptionService
}

func NewSubscriptionHandler(service SubscriptionService) (*SubscriptionHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("subscription service is required")
	}
	return &SubscriptionHandler{service: service}, nil
}

func RegisterSubscriptionRoutes(router fiber.Router, service SubscriptionService) error {
	h, err := NewSubscriptionHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/subscriptions", h.Subscribe)
	v1.Post("/subscriptions/:id/confirm", h.Confirm)

	return nil
}

type subscribeRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email"`
}

func (h *SubscriptionHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	subscriber, err := h.service.Subscribe(c.UserContext(), req.Name, req.Email)
	if err != nil {
		return err
	}

	// A duplicate email also lands here with a nil subscriber, so the
	// response never reveals who is already on the list.
	body := fiber.Map{"status": domain.StatusPendingConfirmation.String()}
	if subscriber != nil {
		body["id"] = subscriber.ID
	}
	return c.Status(fiber.StatusAccepted).JSON(body)
}

func (h *SubscriptionHandler) Confirm(c *fiber.Ctx) error {
	if err := h.service.Confirm(c.UserContext(), c.Params("id")); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": domain.StatusConfirmed.String(),
	})
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// SubscriberStatus represents the confirmation state of a subscriber.
type SubscriberStatus string

const (
	StatusPendingConfirmation SubscriberStatus = "pending_confirmation"
	StatusConfirmed           SubscriberStatus = "confirmed"
)

func (s SubscriberStatus) String() string { return string(s) }

func (s SubscriberStatus) IsValid() bool {
	switch s {
	case StatusPendingConfirmation, StatusConfirmed:
		return true
	}
	return false
}

const maxEmailLength = 320

// Subscriber is a newsletter recipient. Only confirmed subscribers
// receive published issues.
type Subscriber struct {
	ID           string
	Email        string
	Name         string
	Status       SubscriberStatus
	SubscribedAt time.Time
}

func (s *Subscriber) Validate() error {
	if err := ValidateSubscriberEmail(s.Email); err != nil {
		return err
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, s.Status)
	}
	return nil
}

// ValidateSubscriberEmail checks the minimal shape of a stored address.
// The delivery worker calls this before handing an address to the email
// transport, so a corrupt row is skipped instead of poisoning the queue.
func ValidateSubscriberEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(trimmed) > maxEmailLength {
		return fmt.Errorf("%w: email exceeds %d characters", ErrValidation, maxEmailLength)
	}
	at := strings.IndexByte(trimmed, '@')
	if at <= 0 || at == len(trimmed)-1 {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}
	return nil
}

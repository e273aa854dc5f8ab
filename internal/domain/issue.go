package domain

import (
	"fmt"
	"strings"
	"time"
)

// Content limits for a newsletter issue (in characters).
const (
	MaxTitleLength   = 255
	MaxContentLength = 100000
)

// NewsletterIssue is a published edition of the newsletter. Issues are
// created once inside the publish transaction and never mutated.
type NewsletterIssue struct {
	ID          string
	Title       string
	TextContent string
	HTMLContent string
	PublishedAt time.Time
}

// NewIssue is the input for publishing an issue.
type NewIssue struct {
	Title       string
	TextContent string
	HTMLContent string
}

func (i *NewIssue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len([]rune(i.Title)) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}
	if strings.TrimSpace(i.TextContent) == "" {
		return fmt.Errorf("%w: text content is required", ErrValidation)
	}
	if strings.TrimSpace(i.HTMLContent) == "" {
		return fmt.Errorf("%w: html content is required", ErrValidation)
	}
	if len([]rune(i.TextContent)) > MaxContentLength || len([]rune(i.HTMLContent)) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrValidation, MaxContentLength)
	}
	return nil
}

package repository

import (
	"time"

	"github.com/abd0-omar/newzletter/internal/domain"
)

// SubscriberModel is the persistence model for the subscriptions table.
type SubscriberModel struct {
	ID           string                  `gorm:"type:uuid;primaryKey"`
	Email        string                  `gorm:"type:varchar(320);not null;uniqueIndex:idx_subscriptions_email"`
	Name         string                  `gorm:"type:varchar(255);not null"`
	Status       domain.SubscriberStatus `gorm:"type:varchar(30);not null"`
	SubscribedAt time.Time               `gorm:"type:timestamptz;not null"`
}

func (SubscriberModel) TableName() string {
	return "subscriptions"
}

// IssueModel is the persistence model for the newsletter_issues table.
type IssueModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_newsletter_issues_title"`
	TextContent string    `gorm:"type:text;not null"`
	HTMLContent string    `gorm:"column:html_content;type:text;not null"`
	PublishedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (IssueModel) TableName() string {
	return "newsletter_issues"
}

// DeliveryTaskModel is the persistence model for the issue_delivery_queue
// table. The composite primary key doubles as the at-most-one-task-per-
// recipient-per-issue guarantee; there is deliberately no status column.
type DeliveryTaskModel struct {
	IssueID         string `gorm:"column:newsletter_issue_id;type:uuid;primaryKey"`
	SubscriberEmail string `gorm:"type:varchar(320);primaryKey"`
}

func (DeliveryTaskModel) TableName() string {
	return "issue_delivery_queue"
}

func subscriberModelFromDomain(s *domain.Subscriber) *SubscriberModel {
	if s == nil {
		return nil
	}

	return &SubscriberModel{
		ID:           s.ID,
		Email:        s.Email,
		Name:         s.Name,
		Status:       s.Status,
		SubscribedAt: s.SubscribedAt,
	}
}

func subscriberModelToDomain(m *SubscriberModel) *domain.Subscriber {
	if m == nil {
		return nil
	}

	return &domain.Subscriber{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		Status:       m.Status,
		SubscribedAt: m.SubscribedAt,
	}
}

func issueModelFromDomain(i *domain.NewsletterIssue) *IssueModel {
	if i == nil {
		return nil
	}

	return &IssueModel{
		ID:          i.ID,
		Title:       i.Title,
		TextContent: i.TextContent,
		HTMLContent: i.HTMLContent,
		PublishedAt: i.PublishedAt,
	}
}

func issueModelToDomain(m *IssueModel) *domain.NewsletterIssue {
	if m == nil {
		return nil
	}

	return &domain.NewsletterIssue{
		ID:          m.ID,
		Title:       m.Title,
		TextContent: m.TextContent,
		HTMLContent: m.HTMLContent,
		PublishedAt: m.PublishedAt,
	}
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendTimeout = 10 * time.Second

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// PostmarkClient sends email through a Postmark-compatible HTTP API.
type PostmarkClient struct {
	client      *resty.Client
	baseURL     string
	serverToken string
	sender      string
}

// NewPostmarkClient builds the outbound email transport. Retries are
// disabled on purpose: the delivery worker decides what happens to a
// failed send, not the HTTP client.
func NewPostmarkClient(baseURL, serverToken, sender string) (*PostmarkClient, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, fmt.Errorf("email service url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid email service url: %w", err)
	}
	if strings.TrimSpace(serverToken) == "" {
		return nil, fmt.Errorf("email service token is required")
	}
	if strings.TrimSpace(sender) == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return &PostmarkClient{
		client:      client,
		baseURL:     strings.TrimRight(trimmedURL, "/"),
		serverToken: serverToken,
		sender:      sender,
	}, nil
}

func (p *PostmarkClient) Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("email client is not initialized")
	}
	if strings.TrimSpace(recipient) == "" {
		return &SendError{Message: "recipient is required", Transient: false}
	}

	reqBody := postmarkEmail{
		From:     p.sender,
		To:       recipient,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Postmark-Server-Token", p.serverToken).
		SetBody(reqBody).
		Post(p.baseURL + "/email")
	if err != nil {
		return &SendError{
			Message:   "email request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &SendError{
			Message:   "email service returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &SendError{
		StatusCode: statusCode,
		Message:    sendErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func sendErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("email service returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

var _ EmailSender = (*PostmarkClient)(nil)

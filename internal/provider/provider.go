package provider

import "context"

// EmailSender is the outbound email delivery port. Implementations must
// classify failures via SendError so callers can distinguish retryable
// transport trouble from a permanently rejected message, even when the
// current delivery policy treats both the same way.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error
}

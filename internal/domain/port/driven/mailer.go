package driven

import "context"

// Mailer defines the driven port for outbound email delivery.
type Mailer interface {
	// Send delivers a single HTML email to one recipient.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

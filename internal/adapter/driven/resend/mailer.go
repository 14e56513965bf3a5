// Package resend implements the Mailer port using the Resend email API.
package resend

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Mailer = (*Mailer)(nil)

// Mailer implements the driven.Mailer port over the Resend SDK.
type Mailer struct {
	client *resend.Client
	from   string
}

// NewMailer creates a Mailer sending from the given address.
func NewMailer(apiKey, from string) *Mailer {
	return &Mailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send delivers a single HTML email to one recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	return nil
}

// Package notifications delivers account lifecycle email through the
// Resend API, with a noop sender for development and tests.
package notifications

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// EmailSender delivers the three lifecycle messages. It matches the root
// package Notifier interface.
type EmailSender interface {
	SendActivationEmail(ctx context.Context, email, activationLink string) error
	SendPasswordResetEmail(ctx context.Context, email, resetLink string) error
	SendPasswordResetSuccessEmail(ctx context.Context, email string) error
}

// ResendSender sends email through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

var _ EmailSender = (*ResendSender)(nil)

// NewResendSender creates a sender with the given API key and from
// address, e.g. "Screenhall <no-reply@screenhall.example>".
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) SendActivationEmail(ctx context.Context, email, activationLink string) error {
	html := fmt.Sprintf(
		`<p>Welcome! Please confirm your email address by clicking the link below.</p>
<p><a href="%s">Activate your account</a></p>
<p>The link expires in a few hours. If you did not sign up, you can ignore this message.</p>`,
		activationLink,
	)
	return s.send(ctx, email, "Activate your account", html)
}

func (s *ResendSender) SendPasswordResetEmail(ctx context.Context, email, resetLink string) error {
	html := fmt.Sprintf(
		`<p>We received a request to reset your password.</p>
<p><a href="%s">Reset your password</a></p>
<p>If you did not request this, you can ignore this message and your password will stay the same.</p>`,
		resetLink,
	)
	return s.send(ctx, email, "Reset your password", html)
}

func (s *ResendSender) SendPasswordResetSuccessEmail(ctx context.Context, email string) error {
	html := `<p>Your password has been changed.</p>
<p>If this was not you, request a new password reset immediately.</p>`
	return s.send(ctx, email, "Your password was changed", html)
}

func (s *ResendSender) send(ctx context.Context, to, subject, html string) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("resend: failed to send %q to %s: %w", subject, to, err)
	}
	return nil
}

// NoopSender drops every message. Useful in development and tests.
type NoopSender struct{}

var _ EmailSender = (*NoopSender)(nil)

func (NoopSender) SendActivationEmail(ctx context.Context, email, activationLink string) error {
	return nil
}

func (NoopSender) SendPasswordResetEmail(ctx context.Context, email, resetLink string) error {
	return nil
}

func (NoopSender) SendPasswordResetSuccessEmail(ctx context.Context, email string) error {
	return nil
}

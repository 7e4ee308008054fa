package accounts

import (
	"context"
	"net/url"
	"time"
)

const notifyTimeout = 15 * time.Second

// ActivationLink builds the frontend URL embedded in the activation email.
func ActivationLink(frontendURL, token, email string) string {
	return buildLink(frontendURL, "/activate", token, email)
}

// PasswordResetLink builds the frontend URL embedded in the reset email.
func PasswordResetLink(frontendURL, token, email string) string {
	return buildLink(frontendURL, "/reset-password", token, email)
}

func buildLink(base, path, token, email string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return base + path + "?" + q.Encode()
}

// dispatch runs a notification outside the request lifecycle. The send uses
// its own context so a finished request cannot cancel it; failures are
// logged and never surface to the caller.
func dispatch(logger Logger, what string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := send(ctx); err != nil {
			logger.Error("failed to send %s notification: %v", what, err)
		}
	}()
}

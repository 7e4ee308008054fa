package accounts

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// AuthClaims is the decoded view of a signed token
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	TokenType() string
	Expires() time.Time
	IssuedAt() time.Time
}

// TokenService mints and validates signed tokens. Access and refresh tokens
// use independent keys and TTLs so a leaked access key does not compromise
// long-lived credentials.
type TokenService interface {
	GenerateAccessToken(identity Identity) (string, error)
	GenerateRefreshToken(identity Identity) (string, time.Time, error)
	Validate(tokenString string) (AuthClaims, error)
	ValidateRefreshToken(tokenString string) (AuthClaims, error)
}

// TokenValidator validates externally supplied bearer tokens. The middleware
// depends on this narrow view of TokenService.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
}

// TokenPair is what a successful login returns
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Account      *User  `json:"-"`
}

// Config holds auth options. It is constructed once at process startup and
// passed into constructors; business logic never reads ambient state.
type Config interface {
	GetSigningKey() string
	GetRefreshSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int        // access token TTL in minutes
	GetRefreshTokenDuration() int   // refresh token TTL in days
	GetActivationTokenDuration() int // activation token TTL in hours
	GetResetTokenDuration() int     // password reset token TTL in hours
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetFrontendURL() string
}

// Notifier delivers account lifecycle email. Implementations live in the
// notifications package; delivery always runs detached from the request.
type Notifier interface {
	SendActivationEmail(ctx context.Context, email, activationLink string) error
	SendPasswordResetEmail(ctx context.Context, email, resetLink string) error
	SendPasswordResetSuccessEmail(ctx context.Context, email string) error
}

// ObjectStore is the avatar storage collaborator, implemented against S3 in
// the storage package.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	FileURL(ctx context.Context, key string) (string, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

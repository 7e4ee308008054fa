package accounts

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/screenhall/go-accounts/middleware/jwtware"
)

// ProtectedRoute builds the bearer-token gate: extract the Authorization
// header, validate the access token, and stash the claims in the request
// locals under cfg.GetContextKey() as well as in the request's standard
// context.
func ProtectedRoute(cfg Config, validator TokenValidator, errorHandler func(*fiber.Ctx, error) error) fiber.Handler {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		TokenValidator: tokenValidatorAdapter{validator},
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(ctx, ac)
			}
			return ctx
		},
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		AuthScheme:  cfg.GetAuthScheme(),
		ContextKey:  cfg.GetContextKey(),
		TokenLookup: cfg.GetTokenLookup(),
	})
}

// tokenValidatorAdapter bridges the root TokenValidator to the middleware
// interface, which mirrors it without importing this package.
type tokenValidatorAdapter struct {
	validator TokenValidator
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ClaimsFromFiber extracts the validated claims the gate stored in locals.
func ClaimsFromFiber(c *fiber.Ctx, contextKey string) (AuthClaims, bool) {
	if contextKey == "" {
		contextKey = "user"
	}
	raw := c.Locals(contextKey)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// RequireAccount resolves the token subject to a persisted, active account
// and stores it in locals under "account". A valid token whose account has
// been removed or deactivated does not pass.
func RequireAccount(cfg Config, repo RepositoryManager, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromFiber(c, cfg.GetContextKey())
		if !ok {
			return respondError(c, ErrUnauthenticated)
		}

		id, err := uuid.Parse(claims.UserID())
		if err != nil {
			return respondError(c, ErrTokenMalformed)
		}

		user, err := repo.Users().GetByID(c.UserContext(), id)
		if err != nil {
			if IsRecordNotFound(err) {
				return respondError(c, ErrInvalidCredentialsForGate())
			}
			logger.Error("failed to resolve account for request: %v", err)
			return respondError(c, errors.Wrap(err, errors.CategoryInternal, "failed to resolve account"))
		}

		if !user.IsActive {
			return respondError(c, ErrInvalidCredentialsForGate())
		}

		// code running off c.UserContext() can resolve the account without
		// reaching back into fiber locals
		c.SetUserContext(WithContext(c.UserContext(), user))
		c.Locals("account", user)
		return c.Next()
	}
}

// ErrInvalidCredentialsForGate is the single 401 used when a decoded token
// points at a missing or inactive account.
func ErrInvalidCredentialsForGate() *errors.Error {
	return errors.New("Could not validate credentials.", errors.CategoryAuth).
		WithTextCode(TextCodeUnauthenticated).
		WithCode(errors.CodeUnauthorized)
}

// AccountFromFiber returns the account resolved by RequireAccount.
func AccountFromFiber(c *fiber.Ctx) (*User, bool) {
	raw := c.Locals("account")
	if raw == nil {
		return nil, false
	}
	user, ok := raw.(*User)
	return user, ok
}

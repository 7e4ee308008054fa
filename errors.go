package accounts

import (
	"github.com/goliatone/go-errors"
)

// Text codes give API clients a stable machine-readable discriminator that
// survives message copy changes.
const (
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeTokenInvalid        = "TOKEN_INVALID_OR_EXPIRED"
	TextCodeAlreadyActive       = "ACCOUNT_ALREADY_ACTIVE"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeUnauthenticated     = "UNAUTHENTICATED"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeAccountNotActive    = "ACCOUNT_NOT_ACTIVE"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeRefreshNotFound     = "REFRESH_TOKEN_NOT_FOUND"
	TextCodeTooManyAttempts     = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeProfileExists       = "PROFILE_EXISTS"
	TextCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	TextCodePermissionDenied    = "PERMISSION_DENIED"
	TextCodeGroupMissing        = "DEFAULT_GROUP_MISSING"
)

var (
	// ErrEmailTaken is returned when registration hits an existing email,
	// either on the pre-check or the unique constraint.
	ErrEmailTaken = errors.New("A user with this email already exists.", errors.CategoryConflict).
			WithTextCode(TextCodeEmailTaken).
			WithCode(errors.CodeConflict)

	// ErrTokenInvalid covers activation and reset tokens that are missing,
	// expired, or do not match. The cases are deliberately indistinguishable.
	ErrTokenInvalid = errors.New("Invalid email or token.", errors.CategoryBadInput).
			WithTextCode(TextCodeTokenInvalid).
			WithCode(errors.CodeBadRequest)

	ErrAlreadyActive = errors.New("Account is already active.", errors.CategoryBadInput).
				WithTextCode(TextCodeAlreadyActive).
				WithCode(errors.CodeBadRequest)

	ErrTokenExpired = errors.New("token has expired", errors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(errors.CodeUnauthorized)

	ErrTokenMalformed = errors.New("token is malformed or has an invalid signature", errors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed).
				WithCode(errors.CodeUnauthorized)

	ErrUnauthenticated = errors.New("missing or malformed authorization header", errors.CategoryAuth).
				WithTextCode(TextCodeUnauthenticated).
				WithCode(errors.CodeUnauthorized)

	// ErrInvalidCredentials merges unknown-email and wrong-password so a
	// caller cannot probe which emails are registered.
	ErrInvalidCredentials = errors.New("Invalid email or password.", errors.CategoryAuth).
				WithTextCode(TextCodeInvalidCredentials).
				WithCode(errors.CodeUnauthorized)

	ErrAccountNotActive = errors.New("Account is not active.", errors.CategoryAuthz).
				WithTextCode(TextCodeAccountNotActive).
				WithCode(errors.CodeForbidden)

	ErrAccountNotFound = errors.New("Account not found.", errors.CategoryNotFound).
				WithTextCode(TextCodeAccountNotFound).
				WithCode(errors.CodeNotFound)

	// ErrRefreshNotFound means the refresh token decoded fine but no record
	// backs it anymore: it was revoked.
	ErrRefreshNotFound = errors.New("Refresh token not recognized.", errors.CategoryAuth).
				WithTextCode(TextCodeRefreshNotFound).
				WithCode(errors.CodeUnauthorized)

	ErrTooManyAttempts = errors.New("Too many failed login attempts, try again later.", errors.CategoryAuth).
				WithTextCode(TextCodeTooManyAttempts).
				WithCode(errors.CodeUnauthorized)

	ErrProfileExists = errors.New("A profile for this account already exists.", errors.CategoryConflict).
				WithTextCode(TextCodeProfileExists).
				WithCode(errors.CodeConflict)

	ErrProfileNotFound = errors.New("Profile not found.", errors.CategoryNotFound).
				WithTextCode(TextCodeProfileNotFound).
				WithCode(errors.CodeNotFound)

	ErrPermissionDenied = errors.New("You do not have permission to perform this action.", errors.CategoryAuthz).
				WithTextCode(TextCodePermissionDenied).
				WithCode(errors.CodeForbidden)

	// ErrDefaultGroupMissing signals broken bootstrap data, not user error.
	ErrDefaultGroupMissing = errors.New("default user group is not provisioned", errors.CategoryInternal).
				WithTextCode(TextCodeGroupMissing).
				WithCode(errors.CodeInternal)
)

// IsTokenExpiredError checks if the given error is a token expired error
func IsTokenExpiredError(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenExpired
	}
	return false
}

// IsTokenMalformedError checks if the given error is a malformed token error
func IsTokenMalformedError(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenMalformed
	}
	return false
}

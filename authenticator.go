package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the maximum number of failed attempts an account gets
// inside the cool down period
var MaxLoginAttempts = 5

// CoolDownPeriod is the window in which failed attempts accumulate
var CoolDownPeriod = "24h"

// Auther implements Authenticator on top of the repositories and the
// token service.
type Auther struct {
	repo         RepositoryManager
	tokenService TokenService
	logger       Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokenService TokenService) *Auther {
	return &Auther{
		repo:         repo,
		tokenService: tokenService,
		logger:       defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and mints an access and refresh token
// pair. Unknown email and wrong password report the same error.
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during login")
	}

	if user.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}
		if expired {
			user.LoginAttempts = 0
		}
	}

	if user.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyAttempts
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := s.repo.Users().TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountNotActive
	}

	if err := s.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Error("failed to track successful login: %v", err)
	}

	identity := user.Identity()

	accessToken, err := s.tokenService.GenerateAccessToken(identity)
	if err != nil {
		return nil, err
	}

	refreshToken, expiresAt, err := s.tokenService.GenerateRefreshToken(identity)
	if err != nil {
		return nil, err
	}

	record := &RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: expiresAt,
	}
	if _, err := s.repo.RefreshTokens().Create(ctx, record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist refresh token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      user,
	}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access
// token. The refresh token itself is not rotated.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokenService.ValidateRefreshToken(refreshToken)
	if err != nil {
		// decode failures are a client error, distinct from revocation
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return "", richErr.Clone().WithCode(errors.CodeBadRequest)
		}
		return "", errors.Wrap(err, errors.CategoryBadInput, "invalid refresh token").WithCode(errors.CodeBadRequest)
	}

	record, err := s.repo.RefreshTokens().GetByToken(ctx, refreshToken)
	if err != nil {
		// a valid signature with no backing record means the token was
		// revoked
		if IsRecordNotFound(err) {
			return "", ErrRefreshNotFound
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to look up refresh token")
	}

	if record.Expired(time.Now()) {
		return "", ErrRefreshNotFound
	}

	if claims.UserID() != record.UserID.String() {
		return "", ErrRefreshNotFound
	}

	user, err := s.repo.Users().GetByID(ctx, record.UserID)
	if err != nil {
		if IsRecordNotFound(err) {
			return "", ErrAccountNotFound
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during refresh")
	}

	return s.tokenService.GenerateAccessToken(user.Identity())
}

// Logout revokes the given refresh token. Revoking an unknown token is
// not an error.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.RefreshTokens().DeleteByToken(ctx, refreshToken); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke refresh token")
	}
	return nil
}

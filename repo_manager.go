package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	UserGroups() UserGroups
	ActivationTokens() ActivationTokens
	PasswordResetTokens() PasswordResetTokens
	RefreshTokens() RefreshTokens
	UserProfiles() UserProfiles
	Validate() error
	MustValidate()
}

type mngr struct {
	db                  *bun.DB
	users               Users
	userGroups          UserGroups
	activationTokens    ActivationTokens
	passwordResetTokens PasswordResetTokens
	refreshTokens       RefreshTokens
	userProfiles        UserProfiles
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                  db,
		users:               NewUsersRepository(db),
		userGroups:          NewUserGroupsRepository(db),
		activationTokens:    NewActivationTokensRepository(db),
		passwordResetTokens: NewPasswordResetTokensRepository(db),
		refreshTokens:       NewRefreshTokensRepository(db),
		userProfiles:        NewUserProfilesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.userGroups == nil {
		return errors.New("repository userGroups should be initialized")
	}

	if m.activationTokens == nil {
		return errors.New("repository activationTokens should be initialized")
	}

	if m.passwordResetTokens == nil {
		return errors.New("repository passwordResetTokens should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	if m.userProfiles == nil {
		return errors.New("repository userProfiles should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) UserGroups() UserGroups {
	return m.userGroups
}

func (m mngr) ActivationTokens() ActivationTokens {
	return m.activationTokens
}

func (m mngr) PasswordResetTokens() PasswordResetTokens {
	return m.passwordResetTokens
}

func (m mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}

func (m mngr) UserProfiles() UserProfiles {
	return m.userProfiles
}

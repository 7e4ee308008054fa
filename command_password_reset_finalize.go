package accounts

import (
	"context"
	"crypto/subtle"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Email      string `json:"email"`
	Token      string `json:"token"`
	Password   string `json:"password"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	User    *User
	Success bool
}

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	logger   Logger
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, notifier Notifier, logger Logger) *FinalizePasswordResetHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &FinalizePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	resp := &FinalizePasswordResetResponse{}

	var user *User

	// mismatch and expiry burn the outstanding reset inside the transaction;
	// the closure returns nil so the delete commits, and the flag carries
	// the failure past the commit
	burned := false

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		if !user.IsActive {
			return ErrTokenInvalid
		}

		reset, err := h.repo.PasswordResetTokens().GetByUserTx(ctx, tx, user.ID)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
		}

		// a wrong token string burns the outstanding reset, same as expiry
		if subtle.ConstantTimeCompare([]byte(reset.Token), []byte(event.Token)) != 1 {
			if err := h.repo.PasswordResetTokens().DeleteTx(ctx, tx, reset.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume mismatched reset token")
			}
			burned = true
			return nil
		}

		if reset.Expired(time.Now()) {
			if err := h.repo.PasswordResetTokens().DeleteTx(ctx, tx, reset.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume expired reset token")
			}
			burned = true
			return nil
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}

		if err := h.repo.PasswordResetTokens().DeleteTx(ctx, tx, reset.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset token")
		}

		resp.User = user
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	if burned {
		return ErrTokenInvalid
	}

	email := user.Email
	dispatch(h.logger, "password changed email", func(ctx context.Context) error {
		return h.notifier.SendPasswordResetSuccessEmail(ctx, email)
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

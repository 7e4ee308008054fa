package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	Email      string `json:"email"`
	Token      string `json:"token"`
	OnResponse func(resp *ActivateAccountResponse)
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

type ActivateAccountResponse struct {
	User    *User
	Success bool
}

type ActivateAccountHandler struct {
	repo RepositoryManager
}

func NewActivateAccountHandler(repo RepositoryManager) *ActivateAccountHandler {
	return &ActivateAccountHandler{repo: repo}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	resp := &ActivateAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// an expired token is burned inside the transaction, but the closure has
	// to return nil for the delete to commit; the flag carries the failure
	// past the commit
	burned := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		activation, err := h.repo.ActivationTokens().GetByEmailAndTokenTx(ctx, tx, event.Email, event.Token)
		if err != nil {
			// no record means wrong pair, already used, or never issued, all
			// reported the same way
			if IsRecordNotFound(err) {
				return ErrTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up activation token")
		}

		if activation.Expired(time.Now()) {
			if err := h.repo.ActivationTokens().DeleteTx(ctx, tx, activation.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume expired activation token")
			}
			burned = true
			return nil
		}

		user := activation.User
		if user == nil {
			if user, err = h.repo.Users().GetByIDTx(ctx, tx, activation.UserID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for activation")
			}
		}

		// the token survives so a duplicate submit keeps reporting the same
		// conflict instead of degrading to invalid-token
		if user.IsActive {
			return ErrAlreadyActive
		}

		if err := h.repo.Users().SetActiveTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
		}

		if err := h.repo.ActivationTokens().DeleteTx(ctx, tx, activation.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume activation token")
		}

		user.IsActive = true
		resp.User = user
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation transaction failed")
	}

	if burned {
		return ErrTokenInvalid
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

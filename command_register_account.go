package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	User    *User
	Success bool
}

type RegisterAccountHandler struct {
	repo     RepositoryManager
	notifier Notifier
	config   Config
	logger   Logger
}

func NewRegisterAccountHandler(repo RepositoryManager, notifier Notifier, config Config, logger Logger) *RegisterAccountHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &RegisterAccountHandler{
		repo:     repo,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	user := &User{}
	activation := &ActivationToken{}
	resp := &RegisterAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailTaken
		} else if !IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		group, err := h.repo.UserGroups().GetByNameTx(ctx, tx, GroupUser)
		if err != nil {
			// groups come from migration data, this should never happen
			if IsRecordNotFound(err) {
				return ErrDefaultGroupMissing
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve default group")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Email = event.Email
		user.PasswordHash = hash
		user.GroupID = group.ID
		user.IsActive = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			// losers of the registration race surface the same conflict as
			// the pre-check
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
		}
		user.Group = group

		token, err := NewOpaqueToken()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate activation token")
		}

		activation.UserID = user.ID
		activation.Token = token
		activation.ExpiresAt = time.Now().UTC().Add(time.Duration(h.config.GetActivationTokenDuration()) * time.Hour)

		if activation, err = h.repo.ActivationTokens().CreateTx(ctx, tx, activation); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create activation token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	link := ActivationLink(h.config.GetFrontendURL(), activation.Token, user.Email)
	email := user.Email
	dispatch(h.logger, "activation email", func(ctx context.Context) error {
		return h.notifier.SendActivationEmail(ctx, email, link)
	})

	resp.User = user
	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

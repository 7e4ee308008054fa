package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ResetRequestedMessage is the response body for every reset request,
// whether or not the email maps to an account. Returning anything else
// would let a caller enumerate registered addresses.
const ResetRequestedMessage = "If you are registered, you will receive an email with instructions."

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

type InitializePasswordResetResponse struct {
	Reset      *PasswordResetToken
	Dispatched bool
	Success    bool
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	config   Config
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, notifier Notifier, config Config, logger Logger) *InitializePasswordResetHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	reset := &PasswordResetToken{}
	resp := &InitializePasswordResetResponse{}

	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if IsRecordNotFound(err) {
				// unknown address, succeed without side effects
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		if !user.IsActive {
			user = nil
			return nil
		}

		// one outstanding reset per account, a new request replaces the old
		if err := h.repo.PasswordResetTokens().DeleteByUserTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear previous reset token")
		}

		token, err := NewOpaqueToken()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
		}

		reset.UserID = user.ID
		reset.Token = token
		reset.ExpiresAt = time.Now().UTC().Add(time.Duration(h.config.GetResetTokenDuration()) * time.Hour)

		if reset, err = h.repo.PasswordResetTokens().CreateTx(ctx, tx, reset); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create reset token")
		}

		resp.Reset = reset
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if user != nil {
		link := PasswordResetLink(h.config.GetFrontendURL(), reset.Token, user.Email)
		email := user.Email
		dispatch(h.logger, "password reset email", func(ctx context.Context) error {
			return h.notifier.SendPasswordResetEmail(ctx, email, link)
		})
		resp.Dispatched = true
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

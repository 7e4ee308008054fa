package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivationTokens stores single-use activation credentials. Lookup is by
// the (email, token) pair so a token cannot activate a different account.
type ActivationTokens interface {
	GetByEmailAndTokenTx(ctx context.Context, tx bun.IDB, email, token string) (*ActivationToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ActivationToken) (*ActivationToken, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordResetTokens stores single-use reset credentials, at most one per
// account. Lookup is by account so a mismatched token string is observable
// and can consume the record.
type PasswordResetTokens interface {
	GetByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*PasswordResetToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *PasswordResetToken) (*PasswordResetToken, error)
	DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokens persists issued refresh JWTs. Deleting a record revokes the
// token regardless of its signed expiry.
type RefreshTokens interface {
	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type activationTokens struct {
	db *bun.DB
}

var _ ActivationTokens = (*activationTokens)(nil)

func NewActivationTokensRepository(db *bun.DB) ActivationTokens {
	return &activationTokens{db: db}
}

func (r *activationTokens) GetByEmailAndTokenTx(ctx context.Context, tx bun.IDB, email, token string) (*ActivationToken, error) {
	record := &ActivationToken{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Join(`JOIN users AS usr ON usr.id = act.user_id`).
		Where("usr.email = ?", normalizeEmail(email)).
		Where("act.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *activationTokens) CreateTx(ctx context.Context, tx bun.IDB, record *ActivationToken) (*ActivationToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.ExpiresAt = record.ExpiresAt.UTC()
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *activationTokens) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*ActivationToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *activationTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*ActivationToken)(nil)).
		Where("expires_at < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type passwordResetTokens struct {
	db *bun.DB
}

var _ PasswordResetTokens = (*passwordResetTokens)(nil)

func NewPasswordResetTokensRepository(db *bun.DB) PasswordResetTokens {
	return &passwordResetTokens{db: db}
}

func (r *passwordResetTokens) GetByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*PasswordResetToken, error) {
	record := &PasswordResetToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *passwordResetTokens) CreateTx(ctx context.Context, tx bun.IDB, record *PasswordResetToken) (*PasswordResetToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.ExpiresAt = record.ExpiresAt.UTC()
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *passwordResetTokens) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *passwordResetTokens) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *passwordResetTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("expires_at < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type refreshTokens struct {
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	return &refreshTokens{db: db}
}

func (r *refreshTokens) GetByToken(ctx context.Context, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *refreshTokens) Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.ExpiresAt = record.ExpiresAt.UTC()
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *refreshTokens) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	return err
}

func (r *refreshTokens) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *refreshTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

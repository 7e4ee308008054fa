package accounts

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// UserProfiles stores the one-per-account profile records.
type UserProfiles interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*UserProfile, error)
	Create(ctx context.Context, record *UserProfile) (*UserProfile, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *UserProfile) (*UserProfile, error)
}

type userProfiles struct {
	db *bun.DB
}

var _ UserProfiles = (*userProfiles)(nil)

func NewUserProfilesRepository(db *bun.DB) UserProfiles {
	return &userProfiles{db: db}
}

func (r *userProfiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	record := &UserProfile{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *userProfiles) Create(ctx context.Context, record *UserProfile) (*UserProfile, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *userProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *UserProfile) (*UserProfile, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

type CreateProfileMessage struct {
	UserID      uuid.UUID
	FirstName   string
	LastName    string
	Gender      string
	DateOfBirth *time.Time
	Info        string
	Phone       string
	Avatar      []byte
	AvatarType  string
	OnResponse  func(resp *CreateProfileResponse)
}

func (e CreateProfileMessage) Type() string { return "profile.create" }

type CreateProfileResponse struct {
	Profile *UserProfile
	Success bool
}

// CreateProfileHandler creates the profile record and uploads the avatar
// to object storage when one is provided.
type CreateProfileHandler struct {
	repo   RepositoryManager
	store  ObjectStore
	logger Logger
}

func NewCreateProfileHandler(repo RepositoryManager, store ObjectStore, logger Logger) *CreateProfileHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &CreateProfileHandler{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

func (h *CreateProfileHandler) Execute(ctx context.Context, event CreateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateProfileHandler) execute(ctx context.Context, event CreateProfileMessage) error {
	resp := &CreateProfileResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Phone != "" {
		if err := ValidatePhone(event.Phone); err != nil {
			return err
		}
	}

	if _, err := h.repo.UserProfiles().GetByUserID(ctx, event.UserID); err == nil {
		return ErrProfileExists
	} else if !IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing profile")
	}

	profile := &UserProfile{
		UserID:      event.UserID,
		FirstName:   event.FirstName,
		LastName:    event.LastName,
		Gender:      event.Gender,
		DateOfBirth: event.DateOfBirth,
		Info:        event.Info,
		Phone:       event.Phone,
	}

	if len(event.Avatar) > 0 {
		key := fmt.Sprintf("avatars/%s", event.UserID)
		if err := h.store.Upload(ctx, key, event.Avatar, event.AvatarType); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upload avatar")
		}
		profile.AvatarKey = key
	}

	profile, err := h.repo.UserProfiles().Create(ctx, profile)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProfileExists
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create profile")
	}

	if profile.AvatarKey != "" {
		if url, err := h.store.FileURL(ctx, profile.AvatarKey); err == nil {
			profile.AvatarURL = url
		} else {
			h.logger.Warn("failed to presign avatar url: %v", err)
		}
	}

	resp.Profile = profile
	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// GetProfile loads a profile and resolves its avatar URL.
func GetProfile(ctx context.Context, repo RepositoryManager, store ObjectStore, userID uuid.UUID) (*UserProfile, error) {
	profile, err := repo.UserProfiles().GetByUserID(ctx, userID)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve profile")
	}

	if profile.AvatarKey != "" && store != nil {
		if url, err := store.FileURL(ctx, profile.AvatarKey); err == nil {
			profile.AvatarURL = url
		}
	}

	return profile, nil
}

// ValidatePhone accepts E.164 formatted phone numbers.
func ValidatePhone(phone string) error {
	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithCode(goerrors.CodeBadRequest)
	}
	if !phonenumbers.IsValidNumber(num) {
		return goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

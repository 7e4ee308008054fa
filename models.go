package accounts

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// GroupName identifies a user group
type GroupName = string

const (
	// GroupUser is the default group assigned at registration
	GroupUser GroupName = "user"
	// GroupModerator can manage content
	GroupModerator GroupName = "moderator"
	// GroupAdmin can manage everything, including other accounts
	GroupAdmin GroupName = "admin"
)

// UserGroup is the group model. Groups are provisioned by migration; a
// missing default group is a bootstrap failure, never a user error.
type UserGroup struct {
	bun.BaseModel `bun:"table:user_groups,alias:ugr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          GroupName  `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// User is the account model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	IsActive       bool       `bun:"is_active" json:"is_active"`
	GroupID        uuid.UUID  `bun:"group_id,notnull,type:uuid" json:"group_id,omitempty"`
	Group          *UserGroup `bun:"rel:belongs-to,join:group_id=id" json:"group,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// GroupName returns the resolved group name, or empty when the relation
// was not loaded.
func (u *User) GroupName() string {
	if u.Group == nil {
		return ""
	}
	return u.Group.Name
}

// Identity adapts the record for the token service.
func (u *User) Identity() Identity {
	return identity{
		id:    u.ID.String(),
		email: u.Email,
		role:  u.GroupName(),
	}
}

type identity struct {
	id    string
	email string
	role  string
}

func (i identity) ID() string    { return i.id }
func (i identity) Email() string { return i.email }
func (i identity) Role() string  { return i.role }

// ActivationToken is a single-use opaque credential emailed at
// registration. The (email, token) pair is the lookup key.
type ActivationToken struct {
	bun.BaseModel `bun:"table:activation_tokens,alias:act"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Token         string     `bun:"token,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the token TTL has elapsed at the given instant.
func (t *ActivationToken) Expired(now time.Time) bool {
	return now.UTC().After(t.ExpiresAt.UTC())
}

// PasswordResetToken is a single-use opaque credential emailed on a reset
// request. At most one per account: issuing a new one replaces the old.
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Token         string     `bun:"token,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.UTC().After(t.ExpiresAt.UTC())
}

// RefreshToken persists an issued refresh JWT so it can be revoked before
// its signed expiry. Records accumulate per device; logout deletes one.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return now.UTC().After(t.ExpiresAt.UTC())
}

// UserProfile is the one-per-account profile record
type UserProfile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:prf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Gender        string     `bun:"gender" json:"gender,omitempty"`
	DateOfBirth   *time.Time `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	Info          string     `bun:"info" json:"info,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	AvatarKey     string     `bun:"avatar_key" json:"-"`
	AvatarURL     string     `bun:"-" json:"avatar_url,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewOpaqueToken returns 32 bytes of entropy hex encoded. Used for
// activation and password reset tokens; refresh tokens are signed JWTs.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	accounts "github.com/screenhall/go-accounts"
)

// testConfig implements accounts.Config with short, deterministic values.
type testConfig struct {
	signingKey        string
	refreshSigningKey string
	tokenExpiration   int
	refreshDuration   int
	activationTTL     int
	resetTTL          int
	issuer            string
	audience          []string
	frontendURL       string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:        "test-signing-key",
		refreshSigningKey: "test-refresh-signing-key",
		tokenExpiration:   15,
		refreshDuration:   30,
		activationTTL:     24,
		resetTTL:          2,
		issuer:            "test-issuer",
		audience:          nil,
		frontendURL:       "http://frontend.test",
	}
}

func (c *testConfig) GetSigningKey() string            { return c.signingKey }
func (c *testConfig) GetRefreshSigningKey() string     { return c.refreshSigningKey }
func (c *testConfig) GetSigningMethod() string         { return "HS256" }
func (c *testConfig) GetContextKey() string            { return "user" }
func (c *testConfig) GetTokenExpiration() int          { return c.tokenExpiration }
func (c *testConfig) GetRefreshTokenDuration() int     { return c.refreshDuration }
func (c *testConfig) GetActivationTokenDuration() int  { return c.activationTTL }
func (c *testConfig) GetResetTokenDuration() int       { return c.resetTTL }
func (c *testConfig) GetTokenLookup() string           { return "header:Authorization" }
func (c *testConfig) GetAuthScheme() string            { return "Bearer" }
func (c *testConfig) GetIssuer() string                { return c.issuer }
func (c *testConfig) GetAudience() []string            { return c.audience }
func (c *testConfig) GetFrontendURL() string           { return c.frontendURL }

// testIdentity implements accounts.Identity
type testIdentity struct {
	id    string
	email string
	role  string
}

func (i testIdentity) ID() string    { return i.id }
func (i testIdentity) Email() string { return i.email }
func (i testIdentity) Role() string  { return i.role }

// The fake repositories below hold records in memory and ignore the tx
// argument; RunInTx hands them a zero transaction.

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*accounts.User
	group *accounts.UserGroup
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uuid.UUID]*accounts.User{}}
}

func (f *fakeUsers) add(user *accounts.User) *accounts.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	f.byID[user.ID] = &cp
	return user
}

func (f *fakeUsers) get(id uuid.UUID) (*accounts.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	return f.GetByIDTx(ctx, nil, id)
}

func (f *fakeUsers) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*accounts.User, error) {
	if u, ok := f.get(id); ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*accounts.User, error) {
	return f.GetByEmailTx(ctx, nil, email)
}

func (f *fakeUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*accounts.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) Create(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	return f.CreateTx(ctx, nil, user)
}

func (f *fakeUsers) CreateTx(ctx context.Context, tx bun.IDB, user *accounts.User) (*accounts.User, error) {
	return f.add(user), nil
}

func (f *fakeUsers) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.IsActive = true
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeUsers) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.PasswordHash = passwordHash
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeUsers) TrackAttemptedLogin(ctx context.Context, user *accounts.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[user.ID]; ok {
		u.LoginAttempts++
		now := time.Now().UTC()
		u.LoginAttemptAt = &now
	}
	return nil
}

func (f *fakeUsers) TrackSuccessfulLogin(ctx context.Context, user *accounts.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[user.ID]; ok {
		u.LoginAttempts = 0
		u.LoginAttemptAt = nil
		now := time.Now().UTC()
		u.LoggedInAt = &now
	}
	return nil
}

type fakeUserGroups struct {
	groups map[string]*accounts.UserGroup
}

func newFakeUserGroups() *fakeUserGroups {
	return &fakeUserGroups{
		groups: map[string]*accounts.UserGroup{
			accounts.GroupUser:  {ID: uuid.New(), Name: accounts.GroupUser},
			accounts.GroupAdmin: {ID: uuid.New(), Name: accounts.GroupAdmin},
		},
	}
}

func (f *fakeUserGroups) GetByName(ctx context.Context, name string) (*accounts.UserGroup, error) {
	return f.GetByNameTx(ctx, nil, name)
}

func (f *fakeUserGroups) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*accounts.UserGroup, error) {
	if g, ok := f.groups[name]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

type fakeActivationTokens struct {
	mu      sync.Mutex
	records map[uuid.UUID]*accounts.ActivationToken
	users   *fakeUsers
}

func newFakeActivationTokens(users *fakeUsers) *fakeActivationTokens {
	return &fakeActivationTokens{
		records: map[uuid.UUID]*accounts.ActivationToken{},
		users:   users,
	}
}

func (f *fakeActivationTokens) GetByEmailAndTokenTx(ctx context.Context, tx bun.IDB, email, token string) (*accounts.ActivationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		user, ok := f.users.get(rec.UserID)
		if !ok {
			continue
		}
		if user.Email == email && rec.Token == token {
			cp := *rec
			cp.User = user
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeActivationTokens) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.ActivationToken) (*accounts.ActivationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	cp := *record
	f.records[record.ID] = &cp
	return record, nil
}

func (f *fakeActivationTokens) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakeActivationTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, rec := range f.records {
		if rec.Expired(now) {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeActivationTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakePasswordResetTokens struct {
	mu      sync.Mutex
	records map[uuid.UUID]*accounts.PasswordResetToken
}

func newFakePasswordResetTokens() *fakePasswordResetTokens {
	return &fakePasswordResetTokens{records: map[uuid.UUID]*accounts.PasswordResetToken{}}
}

func (f *fakePasswordResetTokens) GetByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*accounts.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.UserID == userID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePasswordResetTokens) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.PasswordResetToken) (*accounts.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	cp := *record
	f.records[record.ID] = &cp
	return record, nil
}

func (f *fakePasswordResetTokens) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, rec := range f.records {
		if rec.UserID == userID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakePasswordResetTokens) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakePasswordResetTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, rec := range f.records {
		if rec.Expired(now) {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

func (f *fakePasswordResetTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeRefreshTokens struct {
	mu      sync.Mutex
	records map[string]*accounts.RefreshToken
}

func newFakeRefreshTokens() *fakeRefreshTokens {
	return &fakeRefreshTokens{records: map[string]*accounts.RefreshToken{}}
}

func (f *fakeRefreshTokens) GetByToken(ctx context.Context, token string) (*accounts.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[token]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRefreshTokens) Create(ctx context.Context, record *accounts.RefreshToken) (*accounts.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	cp := *record
	f.records[record.Token] = &cp
	return record, nil
}

func (f *fakeRefreshTokens) DeleteByToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, token)
	return nil
}

func (f *fakeRefreshTokens) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, rec := range f.records {
		if rec.UserID == userID {
			delete(f.records, token)
		}
	}
	return nil
}

func (f *fakeRefreshTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for token, rec := range f.records {
		if rec.Expired(now) {
			delete(f.records, token)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeUserProfiles struct {
	mu      sync.Mutex
	records map[uuid.UUID]*accounts.UserProfile
}

func newFakeUserProfiles() *fakeUserProfiles {
	return &fakeUserProfiles{records: map[uuid.UUID]*accounts.UserProfile{}}
}

func (f *fakeUserProfiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*accounts.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.UserID == userID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserProfiles) Create(ctx context.Context, record *accounts.UserProfile) (*accounts.UserProfile, error) {
	return f.CreateTx(ctx, nil, record)
}

func (f *fakeUserProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.UserProfile) (*accounts.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	cp := *record
	f.records[record.ID] = &cp
	return record, nil
}

// fakeRepoManager wires the fakes together. RunInTx just invokes the
// callback, the fakes have no transactional behavior.
type fakeRepoManager struct {
	users               *fakeUsers
	userGroups          *fakeUserGroups
	activationTokens    *fakeActivationTokens
	passwordResetTokens *fakePasswordResetTokens
	refreshTokens       *fakeRefreshTokens
	userProfiles        *fakeUserProfiles
}

func newFakeRepoManager() *fakeRepoManager {
	users := newFakeUsers()
	return &fakeRepoManager{
		users:               users,
		userGroups:          newFakeUserGroups(),
		activationTokens:    newFakeActivationTokens(users),
		passwordResetTokens: newFakePasswordResetTokens(),
		refreshTokens:       newFakeRefreshTokens(),
		userProfiles:        newFakeUserProfiles(),
	}
}

func (m *fakeRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *fakeRepoManager) Users() accounts.Users                             { return m.users }
func (m *fakeRepoManager) UserGroups() accounts.UserGroups                   { return m.userGroups }
func (m *fakeRepoManager) ActivationTokens() accounts.ActivationTokens       { return m.activationTokens }
func (m *fakeRepoManager) PasswordResetTokens() accounts.PasswordResetTokens { return m.passwordResetTokens }
func (m *fakeRepoManager) RefreshTokens() accounts.RefreshTokens             { return m.refreshTokens }
func (m *fakeRepoManager) UserProfiles() accounts.UserProfiles               { return m.userProfiles }
func (m *fakeRepoManager) Validate() error                                   { return nil }
func (m *fakeRepoManager) MustValidate()                                     {}

// seedUser creates an account with a hashed password.
func (m *fakeRepoManager) seedUser(email, password string, active bool) *accounts.User {
	hash, err := accounts.HashPassword(password)
	if err != nil {
		panic(err)
	}
	group := m.userGroups.groups[accounts.GroupUser]
	user := &accounts.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
		GroupID:      group.ID,
		Group:        group,
	}
	return m.users.add(user)
}

// fakeNotifier records sent messages; waiters block until a send lands.
type fakeNotifier struct {
	mu         sync.Mutex
	activation []string
	reset      []string
	changed    []string
	links      []string
	sent       chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan struct{}, 16)}
}

func (n *fakeNotifier) SendActivationEmail(ctx context.Context, email, activationLink string) error {
	n.mu.Lock()
	n.activation = append(n.activation, email)
	n.links = append(n.links, activationLink)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

func (n *fakeNotifier) SendPasswordResetEmail(ctx context.Context, email, resetLink string) error {
	n.mu.Lock()
	n.reset = append(n.reset, email)
	n.links = append(n.links, resetLink)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

func (n *fakeNotifier) SendPasswordResetSuccessEmail(ctx context.Context, email string) error {
	n.mu.Lock()
	n.changed = append(n.changed, email)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

// waitForSend blocks until a message is dispatched or the timeout fires.
func (n *fakeNotifier) waitForSend(timeout time.Duration) bool {
	select {
	case <-n.sent:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (n *fakeNotifier) activationCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.activation)
}

func (n *fakeNotifier) resetCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reset)
}

func (n *fakeNotifier) changedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changed)
}

func (n *fakeNotifier) lastLink() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.links) == 0 {
		return ""
	}
	return n.links[len(n.links)-1]
}

// fakeObjectStore records uploads in memory.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (s *fakeObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) FileURL(ctx context.Context, key string) (string, error) {
	return "http://store.test/" + key, nil
}

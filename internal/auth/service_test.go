package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/internal/storage/sqlite"
	"github.com/estatedesk/backend/pkg/config"
)

type memStore struct {
	users   map[string]*models.User // by email
	revoked map[string]bool
	resets  map[string]resetRow
}

type resetRow struct {
	userID    string
	expiresAt time.Time
	used      bool
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*models.User{},
		revoked: map[string]bool{},
		resets:  map[string]resetRow{},
	}
}

func (m *memStore) InsertUser(u *models.User) error {
	if _, ok := m.users[u.Email]; ok {
		return sqlite.ErrEmailTaken
	}
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memStore) GetUserByEmail(email string) (*models.User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, sqlite.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByID(id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sqlite.ErrUserNotFound
}

func (m *memStore) RevokeToken(token string) error {
	m.revoked[token] = true
	return nil
}

func (m *memStore) IsTokenRevoked(token string) (bool, error) {
	return m.revoked[token], nil
}

func (m *memStore) InsertPasswordReset(token, userID string, expiresAt time.Time) error {
	m.resets[token] = resetRow{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) ConsumePasswordReset(token string) (string, error) {
	r, ok := m.resets[token]
	if !ok || r.used || time.Now().After(r.expiresAt) {
		return "", sqlite.ErrResetNotFound
	}
	r.used = true
	m.resets[token] = r
	return r.userID, nil
}

func (m *memStore) UpdatePassword(userID, passwordHash string) error {
	for _, u := range m.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return sqlite.ErrUserNotFound
}

type fakeSeeder struct {
	seeded []string
}

func (f *fakeSeeder) SeedDefaults(userID string) error {
	f.seeded = append(f.seeded, userID)
	return nil
}

func newTestService() (*Service, *memStore, *fakeSeeder) {
	store := newMemStore()
	seeder := &fakeSeeder{}
	svc := NewService(store, config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 1}, seeder)
	return svc, store, seeder
}

func TestSignUpSeedsDefaultsAndIssuesToken(t *testing.T) {
	svc, _, seeder := newTestService()

	user, token, err := svc.SignUp("Agent@Example.com", "hunter2hunter2", "Reyes Realty")
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", user.Email)
	assert.NotEmpty(t, token)
	assert.Equal(t, []string{user.ID}, seeder.seeded)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestCurrentUser(t *testing.T) {
	svc, _, _ := newTestService()

	user, _, err := svc.SignUp("a@b.com", "hunter2hunter2", "Reyes Realty")
	require.NoError(t, err)

	got, err := svc.CurrentUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Email)

	_, err = svc.CurrentUser("ghost")
	assert.ErrorIs(t, err, sqlite.ErrUserNotFound)
}

func TestSignUpValidation(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.SignUp("not-an-email", "hunter2hunter2", "")
	assert.Error(t, err)

	_, _, err = svc.SignUp("a@b.com", "short", "")
	assert.Error(t, err)

	_, _, err = svc.SignUp("a@b.com", "hunter2hunter2", "")
	require.NoError(t, err)
	_, _, err = svc.SignUp("a@b.com", "hunter2hunter2", "")
	assert.ErrorIs(t, err, sqlite.ErrEmailTaken)
}

func TestSignInVerifiesPassword(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.SignUp("a@b.com", "hunter2hunter2", "")
	require.NoError(t, err)

	user, token, err := svc.SignIn("a@b.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "a@b.com", user.Email)

	_, _, err = svc.SignIn("a@b.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.SignIn("nobody@b.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignOutRevokesToken(t *testing.T) {
	svc, _, _ := newTestService()

	_, token, err := svc.SignUp("a@b.com", "hunter2hunter2", "")
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(token))

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsGarbageAndWrongKey(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.VerifyToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(newMemStore(), config.AuthConfig{JWTSecret: "different-secret"})
	_, token, err := other.SignUp("a@b.com", "hunter2hunter2", "")
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.SignUp("a@b.com", "hunter2hunter2", "")
	require.NoError(t, err)

	token, err := svc.RequestPasswordReset("a@b.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(token, "brand-new-pass"))

	_, _, err = svc.SignIn("a@b.com", "brand-new-pass")
	assert.NoError(t, err)
	_, _, err = svc.SignIn("a@b.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Single use.
	err = svc.ResetPassword(token, "another-pass-123")
	assert.ErrorIs(t, err, sqlite.ErrResetNotFound)
}

func TestPasswordResetUnknownEmailDoesNotLeak(t *testing.T) {
	svc, _, _ := newTestService()

	token, err := svc.RequestPasswordReset("ghost@b.com")
	assert.NoError(t, err)
	assert.Empty(t, token)
}

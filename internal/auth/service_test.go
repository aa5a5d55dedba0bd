package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogsphere/backend/internal/logging"
	"github.com/blogsphere/backend/internal/user"
)

// fakeUserRepo is an in-memory UserRepository with the same uniqueness
// and compare-and-clear semantics as the Postgres repository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, params user.CreateParams) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == params.Email {
			return nil, user.ErrDuplicateEmail
		}
		if u.Username == params.Username {
			return nil, user.ErrDuplicateUsername
		}
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.New(),
		Name:         params.Name,
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         user.RoleUser,
		Avatar:       user.DefaultAvatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u

	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) GetByUsernameOrEmail(_ context.Context, username, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) GetByResetToken(_ context.Context, token string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) SetResetToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpiration = &expiresAt
	return nil
}

func (r *fakeUserRepo) RedeemResetToken(_ context.Context, token, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			u.PasswordHash = passwordHash
			u.ResetToken = nil
			u.ResetTokenExpiration = nil
			return nil
		}
	}
	return user.ErrNotFound
}

func (r *fakeUserRepo) SetVerificationToken(_ context.Context, userID uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.VerificationToken = &token
	return nil
}

func (r *fakeUserRepo) RedeemVerificationToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.VerificationToken != nil && *u.VerificationToken == token && !u.IsVerified {
			u.IsVerified = true
			u.VerificationToken = nil
			return nil
		}
	}
	return user.ErrNotFound
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// stored returns the live record, bypassing the clone-on-read the
// interface methods do.
func (r *fakeUserRepo) stored(id uuid.UUID) *user.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

// fakeEmailService records sent mail and can simulate dispatch failure.
type fakeEmailService struct {
	mu          sync.Mutex
	sendErr     error
	resetSent   []string
	verifySent  []string
	resetTokens []string
}

func (f *fakeEmailService) SendVerificationEmail(_ context.Context, toEmail, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.verifySent = append(f.verifySent, toEmail)
	return nil
}

func (f *fakeEmailService) SendPasswordResetEmail(_ context.Context, toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.resetSent = append(f.resetSent, toEmail)
	f.resetTokens = append(f.resetTokens, token)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeUserRepo, *fakeEmailService) {
	t.Helper()

	repo := newFakeUserRepo()
	mail := &fakeEmailService{}
	tokens, err := NewPasetoService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	svc := NewService(repo, tokens, mail, logging.NewLogger(true), 15*time.Minute)
	return svc, repo, mail
}

func registerAlice(t *testing.T, svc *Service) *user.User {
	t.Helper()

	u, _, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Alice",
		Email:    "a@x.com",
		Username: "alice",
		Password: "pw123456",
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	svc, _, _ := newTestService(t)

	u, token, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Alice",
		Email:    "a@x.com",
		Username: "alice",
		Password: "pw123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, user.RoleUser, u.Role)
	assert.Equal(t, user.DefaultAvatar, u.Avatar)
	assert.False(t, u.IsVerified)
	assert.NotEqual(t, "pw123456", u.PasswordHash)

	// The JSON representation must never carry password or token fields
	raw, err := json.Marshal(u)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, fields, "password_hash")
	assert.NotContains(t, fields, "reset_token")
	assert.NotContains(t, fields, "verification_token")
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAlice(t, svc)

	// Same email, different username
	_, _, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Other",
		Email:    "a@x.com",
		Username: "other",
		Password: "pw123456",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	// Same username, different email
	_, _, err = svc.Register(context.Background(), RegisterParams{
		Name:     "Other",
		Email:    "other@x.com",
		Username: "alice",
		Password: "pw123456",
	})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAlice(t, svc)

	t.Run("by username", func(t *testing.T) {
		u, token, err := svc.Login(context.Background(), "alice", "", "pw123456")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "alice", u.Username)
	})

	t.Run("by email", func(t *testing.T) {
		u, _, err := svc.Login(context.Background(), "", "a@x.com", "pw123456")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", u.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "alice", "", "wrong")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "nobody", "", "pw123456")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestChangePassword(t *testing.T) {
	svc, repo, _ := newTestService(t)
	alice := registerAlice(t, svc)

	t.Run("wrong old password leaves hash untouched", func(t *testing.T) {
		before := repo.stored(alice.ID).PasswordHash
		err := svc.ChangePassword(context.Background(), alice.ID, "wrong", "newpw12345")
		assert.ErrorIs(t, err, ErrInvalidOldPassword)
		assert.Equal(t, before, repo.stored(alice.ID).PasswordHash)
	})

	t.Run("success recomputes hash", func(t *testing.T) {
		before := repo.stored(alice.ID).PasswordHash
		err := svc.ChangePassword(context.Background(), alice.ID, "pw123456", "newpw12345")
		require.NoError(t, err)
		after := repo.stored(alice.ID).PasswordHash
		assert.NotEqual(t, before, after)
		assert.True(t, VerifyPassword(after, "newpw12345"))
	})
}

func TestForgotPassword(t *testing.T) {
	svc, repo, mail := newTestService(t)
	alice := registerAlice(t, svc)

	t.Run("unknown email sends nothing", func(t *testing.T) {
		err := svc.ForgotPassword(context.Background(), "nobody@x.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Empty(t, mail.resetSent)
	})

	t.Run("stores token pair and sends mail", func(t *testing.T) {
		err := svc.ForgotPassword(context.Background(), "a@x.com")
		require.NoError(t, err)

		stored := repo.stored(alice.ID)
		require.NotNil(t, stored.ResetToken)
		require.NotNil(t, stored.ResetTokenExpiration)
		assert.WithinDuration(t, time.Now().Add(resetTokenTTL), *stored.ResetTokenExpiration, time.Minute)
		assert.Equal(t, []string{"a@x.com"}, mail.resetSent)
	})

	t.Run("dispatch failure propagates", func(t *testing.T) {
		mail.sendErr = errors.New("smtp down")
		err := svc.ForgotPassword(context.Background(), "a@x.com")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})
}

func TestResetPassword(t *testing.T) {
	svc, repo, mail := newTestService(t)
	alice := registerAlice(t, svc)

	t.Run("empty password rejected before token lookup", func(t *testing.T) {
		err := svc.ResetPassword(context.Background(), "whatever", "")
		assert.ErrorIs(t, err, ErrPasswordRequired)
	})

	t.Run("unknown token", func(t *testing.T) {
		err := svc.ResetPassword(context.Background(), "no-such-token", "newpw12345")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("token is single use", func(t *testing.T) {
		require.NoError(t, svc.ForgotPassword(context.Background(), "a@x.com"))
		token := mail.resetTokens[len(mail.resetTokens)-1]

		require.NoError(t, svc.ResetPassword(context.Background(), token, "newpw12345"))

		stored := repo.stored(alice.ID)
		assert.Nil(t, stored.ResetToken)
		assert.Nil(t, stored.ResetTokenExpiration)
		assert.True(t, VerifyPassword(stored.PasswordHash, "newpw12345"))

		// Second redemption fails at the match step, the field is gone
		err := svc.ResetPassword(context.Background(), token, "another123")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("expired token rejected even though it matches", func(t *testing.T) {
		expired := time.Now().Add(-time.Minute)
		require.NoError(t, repo.SetResetToken(context.Background(), alice.ID, "stale-token", expired))

		before := repo.stored(alice.ID).PasswordHash
		err := svc.ResetPassword(context.Background(), "stale-token", "newpw12345")
		assert.ErrorIs(t, err, ErrResetTokenExpired)
		assert.Equal(t, before, repo.stored(alice.ID).PasswordHash)
	})
}

func TestEmailVerification(t *testing.T) {
	svc, repo, mail := newTestService(t)
	alice := registerAlice(t, svc)

	t.Run("unknown email", func(t *testing.T) {
		err := svc.SendEmailVerification(context.Background(), "nobody@x.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Empty(t, mail.verifySent)
	})

	t.Run("send and redeem", func(t *testing.T) {
		require.NoError(t, svc.SendEmailVerification(context.Background(), "a@x.com"))
		assert.Equal(t, []string{"a@x.com"}, mail.verifySent)

		stored := repo.stored(alice.ID)
		require.NotNil(t, stored.VerificationToken)
		token := *stored.VerificationToken

		require.NoError(t, svc.VerifyEmail(context.Background(), token))

		stored = repo.stored(alice.ID)
		assert.True(t, stored.IsVerified)
		assert.Nil(t, stored.VerificationToken)

		// Redeeming again fails, the token was cleared
		err := svc.VerifyEmail(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidVerificationToken)
	})

	t.Run("already verified", func(t *testing.T) {
		err := svc.SendEmailVerification(context.Background(), "a@x.com")
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("invalid token", func(t *testing.T) {
		err := svc.VerifyEmail(context.Background(), "bogus")
		assert.ErrorIs(t, err, ErrInvalidVerificationToken)
	})
}

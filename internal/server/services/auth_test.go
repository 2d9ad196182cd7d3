package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type env struct {
	clock *fakeClock
	repos *repomanager.MemoryRepositoryManager
	codec *auth.Codec
	svc   *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)}
	repos := repomanager.NewMemoryRepositoryManager(clock.Now)
	codec := auth.NewCodec([]byte("access"), []byte("refresh"), 15*time.Minute, 7*24*time.Hour, clock.Now)
	mgr := tokens.NewManager(repos.Users(), repos.RefreshTokens(), codec, tokens.WithClock(clock.Now))
	svc := NewService(repos, mgr, codec, cryptox.NewBcryptHasher(bcrypt.MinCost), logging.Nop())
	return &env{clock: clock, repos: repos, codec: codec, svc: svc}
}

func (e *env) register(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := e.svc.Register(context.Background(), RegisterInput{Email: email, Password: "password1", Name: "Test"})
	require.NoError(t, err)
	return res
}

// --- register ---

func TestRegister_Success(t *testing.T) {
	e := newEnv(t)

	res := e.register(t, "ann@example.com")

	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.True(t, res.User.IsActive)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	stored, err := e.repos.Users().GetUserByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password1", stored.PasswordHash)
}

func TestRegister_Conflict(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ann@example.com")

	_, err := e.svc.Register(context.Background(), RegisterInput{Email: "ann@example.com", Password: "password2", Name: "Other"})
	assert.True(t, common.Is(err, common.CodeConflict), "got %v", err)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Register(context.Background(), RegisterInput{
		Email: "ann@example.com", Password: strings.Repeat("p", 80), Name: "Ann",
	})
	assert.True(t, common.Is(err, common.CodeInvalidInput), "got %v", err)

	_, err = e.repos.Users().GetUserByEmail(context.Background(), "ann@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

type racingUsers struct {
	users.Repository
}

func (r racingUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (r racingUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	return nil, common.ErrorAlreadyExists
}

type stubRepos struct {
	*repomanager.MemoryRepositoryManager
	users users.Repository
}

func (s stubRepos) Users() users.Repository { return s.users }

func TestRegister_UniqueViolationRaceIsConflict(t *testing.T) {
	e := newEnv(t)
	e.svc.repos = stubRepos{MemoryRepositoryManager: e.repos, users: racingUsers{e.repos.Users()}}

	_, err := e.svc.Register(context.Background(), RegisterInput{Email: "ann@example.com", Password: "password1"})
	assert.True(t, common.Is(err, common.CodeConflict), "got %v", err)
}

type brokenUsers struct {
	users.Repository
	err error
}

func (b brokenUsers) GetUserByEmail(context.Context, string) (*models.User, error) { return nil, b.err }
func (b brokenUsers) GetUserByID(context.Context, int64) (*models.User, error)     { return nil, b.err }

func TestStoreFailuresAreInternal(t *testing.T) {
	e := newEnv(t)
	cause := errors.New("timeout")
	e.svc.repos = stubRepos{MemoryRepositoryManager: e.repos, users: brokenUsers{Repository: e.repos.Users(), err: cause}}
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "password1"})
	assert.True(t, common.Is(err, common.CodeInternal), "register: %v", err)

	_, err = e.svc.Login(ctx, "a@b.c", "password1")
	assert.True(t, common.Is(err, common.CodeInternal), "login: %v", err)
	assert.ErrorIs(t, err, cause)

	_, err = e.svc.Profile(ctx, 1)
	assert.True(t, common.Is(err, common.CodeInternal), "profile: %v", err)

	_, err = e.svc.SetActive(ctx, "a@b.c", false)
	assert.True(t, common.Is(err, common.CodeInternal), "set active: %v", err)
}

// --- login ---

func TestLogin(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	t.Run("success reuses the active refresh token", func(t *testing.T) {
		res, err := e.svc.Login(ctx, "ann@example.com", "password1")
		require.NoError(t, err)
		assert.Equal(t, reg.User.ID, res.User.ID)
		assert.Equal(t, reg.Tokens.RefreshToken, res.Tokens.RefreshToken)

		again, err := e.svc.Login(ctx, "ann@example.com", "password1")
		require.NoError(t, err)
		assert.Equal(t, res.Tokens.RefreshToken, again.Tokens.RefreshToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := e.svc.Login(ctx, "ann@example.com", "nope-nope")
		assert.True(t, common.Is(err, common.CodeInvalidCredentials), "got %v", err)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := e.svc.Login(ctx, "ghost@example.com", "password1")
		assert.True(t, common.Is(err, common.CodeInvalidCredentials), "got %v", err)
	})

	t.Run("inactive", func(t *testing.T) {
		_, err := e.svc.SetActive(ctx, "ann@example.com", false)
		require.NoError(t, err)

		_, err = e.svc.Login(ctx, "ann@example.com", "password1")
		assert.True(t, common.Is(err, common.CodeForbidden), "got %v", err)
	})
}

// --- refresh ---

func TestLoginThenRefresh(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ann@example.com")
	ctx := context.Background()

	login, err := e.svc.Login(ctx, "ann@example.com", "password1")
	require.NoError(t, err)

	e.clock.t = e.clock.t.Add(time.Minute)
	res, err := e.svc.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, login.Tokens.AccessToken, res.Tokens.AccessToken)
	assert.Equal(t, login.Tokens.RefreshToken, res.Tokens.RefreshToken)
	assert.Equal(t, "ann@example.com", res.User.Email)
}

func TestRefresh_Errors(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	_, err := e.svc.Refresh(ctx, "")
	assert.True(t, common.Is(err, common.CodeInvalidToken), "empty: %v", err)

	_, err = e.svc.Refresh(ctx, reg.Tokens.AccessToken)
	assert.True(t, common.Is(err, common.CodeInvalidToken), "access as refresh: %v", err)

	e.clock.t = reg.Tokens.RefreshExpiresAt.Add(time.Second)
	_, err = e.svc.Refresh(ctx, reg.Tokens.RefreshToken)
	assert.True(t, common.Is(err, common.CodeExpired), "expired: %v", err)
}

// --- logout ---

func TestLogout(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	e.svc.Logout(ctx, reg.Tokens.RefreshToken)
	e.svc.Logout(ctx, reg.Tokens.RefreshToken)
	e.svc.Logout(ctx, "")

	_, err := e.svc.Refresh(ctx, reg.Tokens.RefreshToken)
	assert.True(t, common.Is(err, common.CodeInvalidToken), "got %v", err)
}

func TestLogoutAll(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	e.svc.LogoutAll(ctx, reg.User.ID)

	_, err := e.svc.Refresh(ctx, reg.Tokens.RefreshToken)
	assert.True(t, common.Is(err, common.CodeInvalidToken), "got %v", err)

	login, err := e.svc.Login(ctx, "ann@example.com", "password1")
	require.NoError(t, err)
	assert.NotEqual(t, reg.Tokens.RefreshToken, login.Tokens.RefreshToken)
}

// --- authenticate / profile ---

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	u, err := e.svc.Authenticate(ctx, reg.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, u.ID)

	_, err = e.svc.Authenticate(ctx, "")
	assert.True(t, common.Is(err, common.CodeInvalidToken))

	_, err = e.svc.Authenticate(ctx, reg.Tokens.RefreshToken)
	assert.True(t, common.Is(err, common.CodeInvalidToken), "refresh as access: %v", err)

	ghost, _, err := e.codec.IssueAccess(999, "ghost@example.com")
	require.NoError(t, err)
	_, err = e.svc.Authenticate(ctx, ghost)
	assert.True(t, common.Is(err, common.CodeNotFound), "got %v", err)

	_, err = e.svc.SetActive(ctx, "ann@example.com", false)
	require.NoError(t, err)
	_, err = e.svc.Authenticate(ctx, reg.Tokens.AccessToken)
	assert.True(t, common.Is(err, common.CodeForbidden), "got %v", err)

	e.clock.t = reg.Tokens.AccessExpiresAt.Add(time.Second)
	_, err = e.svc.Authenticate(ctx, reg.Tokens.AccessToken)
	assert.True(t, common.Is(err, common.CodeExpired), "got %v", err)
}

func TestProfile(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	p, err := e.svc.Profile(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.User, *p)

	_, err = e.svc.Profile(ctx, 12345)
	assert.True(t, common.Is(err, common.CodeNotFound))
}

// --- administration ---

func TestSetActive_DeactivationRevokesTokens(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	s, err := e.svc.SetActive(ctx, "ann@example.com", false)
	require.NoError(t, err)
	assert.False(t, s.IsActive)

	_, err = e.svc.Refresh(ctx, reg.Tokens.RefreshToken)
	assert.True(t, common.Is(err, common.CodeInvalidToken), "got %v", err)

	s, err = e.svc.SetActive(ctx, "ann@example.com", true)
	require.NoError(t, err)
	assert.True(t, s.IsActive)

	_, err = e.svc.Login(ctx, "ann@example.com", "password1")
	assert.NoError(t, err)

	_, err = e.svc.SetActive(ctx, "ghost@example.com", true)
	assert.True(t, common.Is(err, common.CodeNotFound))
}

func TestRevokeAllByEmail(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	n, err := e.svc.RevokeAllByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = e.svc.Refresh(ctx, reg.Tokens.RefreshToken)
	assert.True(t, common.Is(err, common.CodeInvalidToken), "got %v", err)

	n, err = e.svc.RevokeAllByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = e.svc.RevokeAllByEmail(ctx, "ghost@example.com")
	assert.True(t, common.Is(err, common.CodeNotFound))
}

func TestReap(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "ann@example.com")
	ctx := context.Background()

	n, err := e.svc.Reap(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.t = reg.Tokens.RefreshExpiresAt.Add(time.Second)
	n, err = e.svc.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

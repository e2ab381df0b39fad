package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/navigation"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fakeAuth struct {
	mu sync.Mutex

	token    string
	user     domain.User
	loginErr error

	signupMsg string
	signupErr error

	logoutErr    error
	logoutTokens []string
	loginCalls   int
	signupCalls  int
}

func (f *fakeAuth) Login(_ context.Context, _ domain.Credentials) (string, domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return "", domain.User{}, f.loginErr
	}
	return f.token, f.user, nil
}

func (f *fakeAuth) Signup(_ context.Context, _ domain.SignupForm) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signupCalls++
	return f.signupMsg, f.signupErr
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutTokens = append(f.logoutTokens, token)
	return f.logoutErr
}

func (f *fakeAuth) Profile(context.Context) (domain.Profile, error) {
	return domain.Profile{}, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestRestore_NoPersistedToken(t *testing.T) {
	store := NewStore(memory.NewKVStore(), &fakeAuth{}, nil)

	sess, err := store.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.False(t, store.Authenticated())
}

func TestLogin_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	auth := &fakeAuth{
		token: signedToken(t, exp),
		user:  domain.User{ID: 1, Username: "alice", Role: domain.RoleAdmin},
	}

	store := NewStore(kv, auth, nil)
	sess, err := store.Login(ctx, domain.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, domain.RoleAdmin, sess.Role())
	assert.WithinDuration(t, exp, sess.ExpiresAt, time.Second)

	// Перезапуск приложения: новый Store поверх того же хранилища.
	restored := NewStore(kv, auth, nil)
	sess, err = restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
	require.NotNil(t, sess.User)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, domain.RoleAdmin, sess.User.Role)
	assert.Equal(t, 1, auth.loginCalls)
}

func TestRestore_LegacyUserRoleField(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(ctx, domain.KeyToken, "opaque-token"))
	require.NoError(t, kv.Set(ctx, domain.KeyUser, `{"id":3,"username":"bob","user_role":"ADMIN"}`))

	store := NewStore(kv, &fakeAuth{}, nil)
	sess, err := store.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess.User)
	assert.True(t, sess.User.Role.Matches(domain.RoleAdmin))
	assert.True(t, sess.ExpiresAt.IsZero())
}

func TestRestore_UnreadableUserKeepsToken(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(ctx, domain.KeyToken, "opaque-token"))
	require.NoError(t, kv.Set(ctx, domain.KeyUser, `not json`))

	store := NewStore(kv, &fakeAuth{}, nil)
	sess, err := store.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Nil(t, sess.User)
}

func TestLogin_FailureLeavesUnauthenticated(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := NewStore(kv, &fakeAuth{loginErr: domain.ErrInvalidCredentials}, nil)

	_, err := store.Login(ctx, domain.Credentials{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, store.Authenticated())

	_, err = kv.Get(ctx, domain.KeyToken)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestLogin_ValidationSkipsBackend(t *testing.T) {
	auth := &fakeAuth{}
	store := NewStore(memory.NewKVStore(), auth, nil)

	_, err := store.Login(context.Background(), domain.Credentials{Username: "alice"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, auth.loginCalls)
}

func TestLogout_ClearsLocallyEvenIfRemoteFails(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	auth := &fakeAuth{token: "tok-1", user: domain.User{ID: 1}, logoutErr: domain.ErrNetworkUnavailable}
	store := NewStore(kv, auth, nil)

	_, err := store.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	require.NoError(t, store.Logout(ctx))
	assert.False(t, store.Authenticated())
	assert.Equal(t, []string{"tok-1"}, auth.logoutTokens)

	_, err = kv.Get(ctx, domain.KeyToken)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	_, err = kv.Get(ctx, domain.KeyUser)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestLogout_WithoutSessionSkipsRemote(t *testing.T) {
	auth := &fakeAuth{}
	store := NewStore(memory.NewKVStore(), auth, nil)

	require.NoError(t, store.Logout(context.Background()))
	assert.Empty(t, auth.logoutTokens)
}

func TestExpire_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.NewKVStore(), &fakeAuth{token: "tok", user: domain.User{ID: 1}}, nil)
	_, err := store.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	assert.True(t, store.Expire(ctx, domain.ErrAuthExpiredOrForbidden))
	assert.False(t, store.Expire(ctx, domain.ErrAuthExpiredOrForbidden))
	assert.False(t, store.Authenticated())
}

func TestExpire_RemovesRejectedPersistedSession(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := NewStore(kv, &fakeAuth{token: "tok", user: domain.User{ID: 1}}, nil)
	_, err := store.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	require.True(t, store.Expire(ctx, domain.ErrAuthExpiredOrForbidden))

	_, err = kv.Get(ctx, domain.KeyToken)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	_, err = kv.Get(ctx, domain.KeyUser)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestExpire_KeepsNewerLoginFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()

	stale := NewStore(kv, &fakeAuth{token: "old-token", user: domain.User{ID: 1}}, nil)
	_, err := stale.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	// Другой процесс выполнил вход поверх того же хранилища.
	fresh := NewStore(kv, &fakeAuth{token: "new-token", user: domain.User{ID: 1, Username: "a"}}, nil)
	_, err = fresh.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	require.True(t, stale.Expire(ctx, domain.ErrAuthExpiredOrForbidden))
	assert.False(t, stale.Authenticated())

	token, err := kv.Get(ctx, domain.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
	_, err = kv.Get(ctx, domain.KeyUser)
	require.NoError(t, err)

	sess, err := stale.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-token", sess.Token)
}

func TestExpireOnUnauthorized_NotifiesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.NewKVStore(), &fakeAuth{token: "tok", user: domain.User{ID: 1}}, nil)
	_, err := store.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	rec := navigation.NewRecorder()
	policy := ExpireOnUnauthorized(store, rec, rec)

	policy(ctx, domain.ErrAuthExpiredOrForbidden)
	policy(ctx, domain.ErrAuthExpiredOrForbidden)

	assert.False(t, store.Authenticated())
	assert.Equal(t, []domain.Route{domain.RouteSignIn}, rec.Routes())
	assert.Equal(t, []string{ExpiredMessage}, rec.Errors())
}

func TestSignup(t *testing.T) {
	auth := &fakeAuth{signupMsg: "User registered successfully"}
	store := NewStore(memory.NewKVStore(), auth, nil)

	form := domain.SignupForm{Username: "alice", Password: "secret1", Email: "a@example.com", FullName: "Alice"}
	msg, err := store.Signup(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", msg)
	assert.False(t, store.Authenticated())

	_, err = store.Signup(context.Background(), domain.SignupForm{Username: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 1, auth.signupCalls)

	auth.signupErr = errors.New("username taken")
	_, err = store.Signup(context.Background(), form)
	require.Error(t, err)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.NewKVStore(), &fakeAuth{token: "tok", user: domain.User{ID: 1, Role: domain.RoleCustomer}}, nil)
	_, err := store.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	sess := store.Current()
	sess.User.Role = domain.RoleAdmin
	assert.Equal(t, domain.RoleCustomer, store.Current().Role())
}

func TestJoinPrompt_DueOncePerSession(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.NewKVStore(), &fakeAuth{token: "tok", user: domain.User{ID: 1}}, nil)
	prompt := NewJoinPrompt(memory.NewKVStore(), store)

	assert.True(t, prompt.Due(ctx))
	assert.False(t, prompt.Due(ctx))

	loggedIn := NewJoinPrompt(memory.NewKVStore(), store)
	_, err := store.Login(ctx, domain.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)
	assert.False(t, loggedIn.Due(ctx))
}

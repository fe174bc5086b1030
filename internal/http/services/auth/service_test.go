package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atdock/atdock/internal/atproto"
	"github.com/atdock/atdock/internal/cache"
	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/session"
	"github.com/atdock/atdock/internal/store/memory"
)

type stubCarrier struct {
	mu    sync.Mutex
	token string
	has   bool
}

func (c *stubCarrier) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.has
}

func (c *stubCarrier) SetToken(token string, _ time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.has = token, true
}

func (c *stubCarrier) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.has = "", false
}

type fakeProvider struct {
	mu          sync.Mutex
	authorizeFn func(handle, state string) (string, error)
	callbackDID string
	callbackErr error
	profile     *atproto.Profile
	profileErr  error
	validateErr error
	lastState   string
	validCalls  int
}

func (f *fakeProvider) Authorize(_ context.Context, handle, state string) (string, error) {
	f.mu.Lock()
	f.lastState = state
	f.mu.Unlock()
	if f.authorizeFn != nil {
		return f.authorizeFn(handle, state)
	}
	return "https://pds.example/oauth/authorize?state=" + url.QueryEscape(state), nil
}

func (f *fakeProvider) Callback(_ context.Context, _ url.Values) (string, error) {
	return f.callbackDID, f.callbackErr
}

func (f *fakeProvider) GetProfile(_ context.Context, did string) (*atproto.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.profile != nil {
		return f.profile, nil
	}
	return &atproto.Profile{DID: did, Handle: "alice.test", DisplayName: "Alice"}, nil
}

func (f *fakeProvider) ValidateSession(_ context.Context, _ string) error {
	f.mu.Lock()
	f.validCalls++
	f.mu.Unlock()
	return f.validateErr
}

type authFixture struct {
	svc     Service
	prov    *fakeProvider
	users   *memory.UserRepository
	states  *StateStore
	carrier *stubCarrier
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	signer, err := session.NewSigner("", "atdock-test")
	require.NoError(t, err)

	prov := &fakeProvider{callbackDID: "did:plc:alice"}
	users := memory.NewUserRepository()
	states := NewStateStore(cache.NewMemory("test"), time.Minute)

	svc := NewService(Deps{
		Provider: prov,
		Users:    users,
		Sessions: session.NewManager(signer, time.Hour),
		States:   states,
	})
	return &authFixture{
		svc:     svc,
		prov:    prov,
		users:   users,
		states:  states,
		carrier: &stubCarrier{},
	}
}

func (f *authFixture) ctx() context.Context {
	return session.WithCarrier(context.Background(), f.carrier)
}

func TestStartLoginReturnsRedirect(t *testing.T) {
	f := newAuthFixture(t)

	redirect, err := f.svc.StartLogin(f.ctx(), "alice.test")
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.NotEmpty(t, u.Query().Get("state"))
}

func TestStartLoginEmptyHandle(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.StartLogin(f.ctx(), "   ")
	assert.ErrorIs(t, err, ErrAuthorizationFailed)
}

func TestStartLoginProviderDown(t *testing.T) {
	f := newAuthFixture(t)
	f.prov.authorizeFn = func(string, string) (string, error) {
		return "", errors.New("resolver unavailable")
	}

	_, err := f.svc.StartLogin(f.ctx(), "alice.test")
	assert.ErrorIs(t, err, ErrAuthorizationFailed)
}

func TestCallbackCreatesAccountAndSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)

	user, err := f.svc.HandleCallback(ctx, url.Values{
		"code":  {"abc"},
		"state": {f.prov.lastState},
	})
	require.NoError(t, err)
	assert.Equal(t, "did:plc:alice", user.DID)
	assert.Equal(t, "Alice", user.Profile.DisplayName)

	// The carrier now holds a valid credential.
	_, has := f.carrier.Token()
	assert.True(t, has)

	got, err := f.users.GetByDID(context.Background(), "did:plc:alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestCallbackSameDIDReusesAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	var ids []string
	for i := 0; i < 2; i++ {
		_, err := f.svc.StartLogin(ctx, "alice.test")
		require.NoError(t, err)
		user, err := f.svc.HandleCallback(ctx, url.Values{
			"code":  {"abc"},
			"state": {f.prov.lastState},
		})
		require.NoError(t, err)
		ids = append(ids, user.ID)
	}
	assert.Equal(t, ids[0], ids[1])
}

func TestCallbackUnknownState(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.HandleCallback(f.ctx(), url.Values{
		"code":  {"abc"},
		"state": {"never-issued"},
	})
	assert.ErrorIs(t, err, ErrCallbackInvalidState)
	// El refinamiento no sale de la familia del callback.
	assert.ErrorIs(t, err, ErrCallbackFailed)
}

func TestCallbackStateReplay(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)
	state := f.prov.lastState

	params := url.Values{"code": {"abc"}, "state": {state}}
	_, err = f.svc.HandleCallback(ctx, params)
	require.NoError(t, err)

	// Same state a second time must be rejected.
	_, err = f.svc.HandleCallback(ctx, params)
	assert.ErrorIs(t, err, ErrCallbackInvalidState)
	assert.ErrorIs(t, err, ErrCallbackFailed)
}

func TestCallbackExchangeFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)

	f.prov.callbackErr = errors.New("code rejected")
	_, err = f.svc.HandleCallback(ctx, url.Values{
		"code":  {"bad"},
		"state": {f.prov.lastState},
	})
	assert.ErrorIs(t, err, ErrCallbackFailed)

	// No account and no session leak out of a failed exchange.
	_, gerr := f.users.GetByDID(context.Background(), "did:plc:alice")
	assert.True(t, repository.IsNotFound(gerr))
	_, has := f.carrier.Token()
	assert.False(t, has)
}

func TestCallbackProfileFetchFailureFailsCallback(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)

	f.prov.profileErr = errors.New("appview down")
	_, err = f.svc.HandleCallback(ctx, url.Values{
		"code":  {"abc"},
		"state": {f.prov.lastState},
	})
	assert.ErrorIs(t, err, ErrCallbackFailed)
	assert.NotErrorIs(t, err, ErrSessionCreationFailed)

	// Ni cuenta a medias ni sesión emitida.
	_, err = f.users.GetByDID(ctx, f.prov.callbackDID)
	assert.True(t, repository.IsNotFound(err))
	assert.Empty(t, f.carrier.token)
}

func TestCallbackProfileFetchRecoversOnRetry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)
	f.prov.profileErr = errors.New("appview down")
	_, err = f.svc.HandleCallback(ctx, url.Values{"code": {"abc"}, "state": {f.prov.lastState}})
	require.Error(t, err)

	// El provider vuelve: un login nuevo crea la cuenta normalmente.
	f.prov.profileErr = nil
	_, err = f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)
	user, err := f.svc.HandleCallback(ctx, url.Values{"code": {"abc"}, "state": {f.prov.lastState}})
	require.NoError(t, err)
	assert.Equal(t, f.prov.callbackDID, user.DID)
}

func TestConcurrentFirstLoginSingleAccount(t *testing.T) {
	f := newAuthFixture(t)

	const n = 8
	states := make([]string, n)
	for i := range states {
		_, err := f.svc.StartLogin(f.ctx(), "alice.test")
		require.NoError(t, err)
		states[i] = f.prov.lastState
	}

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := session.WithCarrier(context.Background(), &stubCarrier{})
			user, err := f.svc.HandleCallback(ctx, url.Values{
				"code":  {"abc"},
				"state": {states[i]},
			})
			if err == nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.NotEmpty(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestValidateSessionHappyPath(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(ctx, url.Values{"code": {"abc"}, "state": {f.prov.lastState}})
	require.NoError(t, err)

	user, err := f.svc.ValidateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "did:plc:alice", user.DID)
}

func TestValidateSessionAbsentSkipsProvider(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.ValidateSession(f.ctx())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	// The provider is never consulted for a credential we could not verify.
	assert.Zero(t, f.prov.validCalls)
}

func TestValidateSessionProviderRevoked(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(ctx, url.Values{"code": {"abc"}, "state": {f.prov.lastState}})
	require.NoError(t, err)

	f.prov.validateErr = errors.New("account deactivated")
	_, err = f.svc.ValidateSession(ctx)
	assert.ErrorIs(t, err, ErrSessionValidationFailed)

	// Revocation clears the local credential too.
	_, has := f.carrier.Token()
	assert.False(t, has)
}

func TestLogoutIdempotent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := f.ctx()

	_, err := f.svc.StartLogin(ctx, "alice.test")
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(ctx, url.Values{"code": {"abc"}, "state": {f.prov.lastState}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx))
	_, has := f.carrier.Token()
	assert.False(t, has)

	// A second logout with nothing to clear still succeeds.
	require.NoError(t, f.svc.Logout(ctx))
}

package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atdock/atdock/internal/atproto"
	"github.com/atdock/atdock/internal/cache"
	"github.com/atdock/atdock/internal/githubapp"
	adminctrl "github.com/atdock/atdock/internal/http/controllers/admin"
	authctrl "github.com/atdock/atdock/internal/http/controllers/auth"
	connctrl "github.com/atdock/atdock/internal/http/controllers/connection"
	healthctrl "github.com/atdock/atdock/internal/http/controllers/health"
	userctrl "github.com/atdock/atdock/internal/http/controllers/user"
	mw "github.com/atdock/atdock/internal/http/middlewares"
	authsvc "github.com/atdock/atdock/internal/http/services/auth"
	connsvc "github.com/atdock/atdock/internal/http/services/connection"
	usersvc "github.com/atdock/atdock/internal/http/services/user"
	"github.com/atdock/atdock/internal/rate"
	"github.com/atdock/atdock/internal/session"
	"github.com/atdock/atdock/internal/store/memory"
)

type fakeIdentity struct {
	did         string
	validateErr error
}

func (f *fakeIdentity) Authorize(_ context.Context, handle, state string) (string, error) {
	return "https://pds.example/oauth/authorize?state=" + url.QueryEscape(state), nil
}

func (f *fakeIdentity) Callback(_ context.Context, _ url.Values) (string, error) {
	return f.did, nil
}

func (f *fakeIdentity) GetProfile(_ context.Context, did string) (*atproto.Profile, error) {
	return &atproto.Profile{DID: did, Handle: "alice.test", DisplayName: "Alice"}, nil
}

func (f *fakeIdentity) ValidateSession(_ context.Context, _ string) error {
	return f.validateErr
}

type fakeGitHub struct{}

func (fakeGitHub) GetAccessToken(_ context.Context, code string) (*githubapp.TokenPair, error) {
	return &githubapp.TokenPair{AccessToken: "ghu_" + code, RefreshToken: "ghr_" + code}, nil
}

func (fakeGitHub) RefreshAccessToken(context.Context, string) (*githubapp.TokenPair, error) {
	return &githubapp.TokenPair{AccessToken: "ghu_fresh"}, nil
}

func (fakeGitHub) GetInstallations(context.Context, string) ([]githubapp.Installation, error) {
	return []githubapp.Installation{{ID: 7, AppSlug: "atdock"}}, nil
}

type apiFixture struct {
	handler  http.Handler
	identity *fakeIdentity
}

func newAPIFixture(t *testing.T, loginLimiter rate.Limiter) *apiFixture {
	t.Helper()

	signer, err := session.NewSigner("", "atdock-test")
	require.NoError(t, err)
	sessions := session.NewManager(signer, time.Hour)

	identity := &fakeIdentity{did: "did:plc:alice"}
	users := memory.NewUserRepository()
	conns := memory.NewConnectionRepository()

	authService := authsvc.NewService(authsvc.Deps{
		Provider: identity,
		Users:    users,
		Sessions: sessions,
		States:   authsvc.NewStateStore(cache.NewMemory("test"), time.Minute),
	})
	connService := connsvc.NewService(connsvc.Deps{GitHub: fakeGitHub{}, Connections: conns})
	userService := usersvc.NewService(usersvc.Deps{Users: users, Connections: conns})

	handler := New(Deps{
		Auth:        authctrl.NewController(authService),
		Connections: connctrl.NewController(connService, userService),
		Users:       userctrl.NewController(userService, sessions),
		Admin:       adminctrl.NewController(userService, connService),
		Health: healthctrl.NewController(
			healthctrl.Checker{Name: "store", Check: func(context.Context) error { return nil }},
		),
		Sessions:     sessions,
		Cookies:      mw.CookieConfig{Name: "atdock_session", SameSite: "Lax"},
		AdminAPIKey:  "sekret",
		LoginLimiter: loginLimiter,
	})
	return &apiFixture{handler: handler, identity: identity}
}

func (f *apiFixture) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

// login walks the full flow and returns the session cookie.
func (f *apiFixture) login(t *testing.T) *http.Cookie {
	t.Helper()

	w := f.do(t, "POST", "/v1/auth/login", `{"handle":"alice.test"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RedirectURL string `json:"redirect_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	u, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	w = f.do(t, "GET", "/v1/auth/callback?code=abc&state="+url.QueryEscape(state), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == "atdock_session" && ck.Value != "" {
			return ck
		}
	}
	t.Fatal("no session cookie set on callback")
	return nil
}

func TestLoginFlowEndToEnd(t *testing.T) {
	f := newAPIFixture(t, nil)
	cookie := f.login(t)

	w := f.do(t, "GET", "/v1/users/me", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var user struct {
		DID     string `json:"did"`
		Profile struct {
			DisplayName string `json:"display_name"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "did:plc:alice", user.DID)
	assert.Equal(t, "Alice", user.Profile.DisplayName)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	f := newAPIFixture(t, nil)

	for _, tc := range []struct{ method, target string }{
		{"GET", "/v1/users/me"},
		{"PATCH", "/v1/users/me"},
		{"DELETE", "/v1/users/me"},
		{"GET", "/v1/connections/github"},
		{"POST", "/v1/connections/github"},
	} {
		w := f.do(t, tc.method, tc.target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.target)
	}
}

func TestCallbackStateReplayRejected(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, "POST", "/v1/auth/login", `{"handle":"alice.test"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		RedirectURL string `json:"redirect_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	u, _ := url.Parse(resp.RedirectURL)
	target := "/v1/auth/callback?code=abc&state=" + url.QueryEscape(u.Query().Get("state"))

	require.Equal(t, http.StatusOK, f.do(t, "GET", target, "", nil).Code)

	w = f.do(t, "GET", target, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")
}

func TestConnectionLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, nil)
	cookie := f.login(t)

	// Not connected yet.
	w := f.do(t, "GET", "/v1/connections/github", "", cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Connect.
	w = f.do(t, "POST", "/v1/connections/github", `{"code":"xyz"}`, cookie)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "ghu_", "tokens must not leak through the API")

	// Second connect conflicts.
	w = f.do(t, "POST", "/v1/connections/github", `{"code":"other"}`, cookie)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Installations.
	w = f.do(t, "GET", "/v1/connections/github/installations", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":7`)

	// Disconnect twice, both succeed.
	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", "/v1/connections/github", "", cookie).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", "/v1/connections/github", "", cookie).Code)
}

func TestSessionInvalidatedWhenProviderRevokes(t *testing.T) {
	f := newAPIFixture(t, nil)
	cookie := f.login(t)

	f.identity.validateErr = errors.New("oauth_session revoked")
	w := f.do(t, "GET", "/v1/auth/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session_invalid")
}

func TestAccountDeleteClearsSession(t *testing.T) {
	f := newAPIFixture(t, nil)
	cookie := f.login(t)

	w := f.do(t, "DELETE", "/v1/users/me", "", cookie)
	require.Equal(t, http.StatusNoContent, w.Code)

	// The old cookie no longer resolves to an account.
	w = f.do(t, "GET", "/v1/users/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRequiresAPIKey(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.login(t)

	w := f.do(t, "GET", "/v1/admin/users/did:plc:alice", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := httptest.NewRequest("GET", "/v1/admin/users/did:plc:alice", nil)
	r.Header.Set("X-API-Key", "sekret")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	r = httptest.NewRequest("DELETE", "/v1/admin/users/did:plc:alice/connection", nil)
	r.Header.Set("X-API-Key", "sekret")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	r = httptest.NewRequest("DELETE", "/v1/admin/users/did:plc:alice", nil)
	r.Header.Set("X-API-Key", "sekret")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	f := newAPIFixture(t, rate.NewMemoryLimiter(2, time.Minute))

	for i := 0; i < 2; i++ {
		w := f.do(t, "POST", "/v1/auth/login", `{"handle":"alice.test"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := f.do(t, "POST", "/v1/auth/login", `{"handle":"alice.test"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil)

	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/readyz", "", nil).Code)
}

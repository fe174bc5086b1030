package atproto

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/atdock/atdock/internal/provider"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ServiceURL:  srv.URL,
		ClientID:    "https://app.example.com/client-metadata.json",
		RedirectURL: "https://app.example.com/auth/callback",
	})
}

func TestAuthorizeBuildsRedirectURL(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != resolveHandlePath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("handle"); got != "alice.example" {
			t.Fatalf("unexpected handle %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"did":"did:plc:abc"}`))
	}))

	redirect, err := c.Authorize(context.Background(), "alice.example", "state-1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if u.Path != authorizePath {
		t.Fatalf("unexpected authorize path %s", u.Path)
	}
	q := u.Query()
	if q.Get("state") != "state-1" {
		t.Fatalf("state not propagated: %q", q.Get("state"))
	}
	if q.Get("login_hint") != "did:plc:abc" {
		t.Fatalf("login_hint: %q", q.Get("login_hint"))
	}
}

func TestAuthorizeUnknownHandle(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"InvalidRequest"}`, http.StatusBadRequest)
	}))

	_, err := c.Authorize(context.Background(), "nobody.example", "s")
	se, ok := provider.AsServiceError(err)
	if !ok {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Provider != ProviderName || se.Code != provider.CodeAuthenticationFailed {
		t.Fatalf("unexpected error tags: %+v", se)
	}
}

func TestCallbackResolvesDID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokenPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("code") != "c1" {
			t.Fatalf("code not forwarded: %q", r.PostForm.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"did:plc:abc"}`))
	}))

	did, err := c.Callback(context.Background(), url.Values{"code": {"c1"}, "state": {"s1"}})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if did != "did:plc:abc" {
		t.Fatalf("did: %q", did)
	}
}

func TestCallbackMissingCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider should not be called")
	}))

	_, err := c.Callback(context.Background(), url.Values{})
	if se, ok := provider.AsServiceError(err); !ok || se.Code != provider.CodeInvalidResponse {
		t.Fatalf("expected INVALID_RESPONSE, got %v", err)
	}
}

func TestValidateSessionRevoked(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"NotFound"}`, http.StatusNotFound)
	}))

	err := c.ValidateSession(context.Background(), "did:plc:gone")
	if !provider.IsAuthenticationFailed(err) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func TestGetProfileFallsBackToHandle(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"did":"did:plc:abc","handle":"alice.example"}`))
	}))

	p, err := c.GetProfile(context.Background(), "did:plc:abc")
	if err != nil {
		t.Fatalf("getProfile: %v", err)
	}
	if p.DisplayName != "alice.example" {
		t.Fatalf("expected handle fallback, got %q", p.DisplayName)
	}
}

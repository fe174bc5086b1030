package githubapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atdock/atdock/internal/provider"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ClientID:              "Iv1.test",
		ClientSecret:          "secret",
		RedirectURL:           "https://app.example.com/github/callback",
		TokenEndpoint:         srv.URL + "/login/oauth/access_token",
		InstallationsEndpoint: srv.URL + "/user/installations",
	})
}

func TestGetAccessToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("code") != "c2" {
			t.Fatalf("code: %q", r.PostForm.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a","refresh_token":"r","token_type":"bearer"}`))
	}))

	pair, err := c.GetAccessToken(context.Background(), "c2")
	if err != nil {
		t.Fatalf("getAccessToken: %v", err)
	}
	if pair.AccessToken != "a" || pair.RefreshToken != "r" {
		t.Fatalf("pair: %+v", pair)
	}
}

func TestGetAccessTokenErrorBody(t *testing.T) {
	// GitHub responde 200 con un campo error en el body.
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"bad_verification_code","error_description":"expired"}`))
	}))

	_, err := c.GetAccessToken(context.Background(), "stale")
	if !provider.IsAuthenticationFailed(err) {
		t.Fatalf("expected AUTHENTICATION_FAILED, got %v", err)
	}
}

func TestRefreshAccessToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Fatalf("grant_type: %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "r1" {
			t.Fatalf("refresh_token: %q", r.PostForm.Get("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a2","refresh_token":"r2"}`))
	}))

	pair, err := c.RefreshAccessToken(context.Background(), "r1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.AccessToken != "a2" || pair.RefreshToken != "r2" {
		t.Fatalf("pair: %+v", pair)
	}
}

func TestGetInstallations(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("authorization: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total_count":1,"installations":[{"id":42,"app_slug":"atdock","account":{"login":"alice","type":"User"}}]}`))
	}))

	insts, err := c.GetInstallations(context.Background(), "tok")
	if err != nil {
		t.Fatalf("installations: %v", err)
	}
	if len(insts) != 1 || insts[0].ID != 42 || insts[0].Account.Login != "alice" {
		t.Fatalf("installations: %+v", insts)
	}
}

func TestGetInstallationsExpiredToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))

	_, err := c.GetInstallations(context.Background(), "stale")
	if !provider.IsAuthenticationFailed(err) {
		t.Fatalf("expected AUTHENTICATION_FAILED, got %v", err)
	}
}

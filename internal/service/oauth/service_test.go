package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"storefront/internal/service/session"
)

func TestOnlyConfiguredProvidersAreEnabled(t *testing.T) {
	s := New("https://shop.example/", map[string]ClientConfig{
		ProviderGoogle: {ClientID: "gid", ClientSecret: "gsecret"},
		ProviderGitHub: {},
		"myspace":      {ClientID: "x"},
	})

	if got := s.Providers(); len(got) != 1 || got[0] != ProviderGoogle {
		t.Fatalf("unexpected providers %v", got)
	}
	if _, err := s.AuthURL(ProviderGitHub, "st"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}

	raw, err := s.AuthURL(ProviderGoogle, "st")
	if err != nil {
		t.Fatalf("auth url: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "st" || q.Get("client_id") != "gid" {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Get("redirect_uri") != "https://shop.example/auth/google/callback" {
		t.Fatalf("unexpected redirect %q", q.Get("redirect_uri"))
	}
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.token","token_type":"Bearer","id_token":"a.b.c"}`))
	}))
	defer srv.Close()

	s := New("http://localhost:8080", map[string]ClientConfig{ProviderGoogle: {ClientID: "gid", ClientSecret: "gs"}})
	s.configs[ProviderGoogle].Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}

	resp, err := s.Exchange(context.Background(), ProviderGoogle, "good")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp.Provider != ProviderGoogle || resp.AccessToken != "ya29.token" || resp.IDToken != "a.b.c" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if _, err := s.Exchange(context.Background(), ProviderGoogle, "bad"); !errors.Is(err, session.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
}

func TestStateTokenIsRandom(t *testing.T) {
	a, err := StateToken()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	b, _ := StateToken()
	if a == b || len(a) < 40 {
		t.Fatalf("weak state tokens %q %q", a, b)
	}
}

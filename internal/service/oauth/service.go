package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"storefront/internal/service/session"
)

// ErrUnknownProvider is returned for providers that are not configured.
var ErrUnknownProvider = errors.New("unknown provider")

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// ClientConfig holds one provider's OAuth application credentials.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
}

// Service runs the authorization code flow against third-party identity
// providers and hands the result to the session store.
type Service struct {
	configs map[string]*oauth2.Config
}

// New configures every provider that has a client id. redirectBase is the
// public origin of the shell; each provider calls back to
// <redirectBase>/auth/<provider>/callback.
func New(redirectBase string, providers map[string]ClientConfig) *Service {
	redirectBase = strings.TrimRight(redirectBase, "/")
	s := &Service{configs: make(map[string]*oauth2.Config)}
	for name, pc := range providers {
		if pc.ClientID == "" {
			continue
		}
		conf := &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  fmt.Sprintf("%s/auth/%s/callback", redirectBase, name),
		}
		switch name {
		case ProviderGoogle:
			conf.Endpoint = google.Endpoint
			conf.Scopes = []string{"openid", "email", "profile"}
		case ProviderGitHub:
			conf.Endpoint = github.Endpoint
			conf.Scopes = []string{"user:email"}
		default:
			continue
		}
		s.configs[name] = conf
	}
	return s
}

// Enabled reports whether provider is configured.
func (s *Service) Enabled(provider string) bool {
	_, ok := s.configs[provider]
	return ok
}

// Providers lists the configured provider names.
func (s *Service) Providers() []string {
	out := make([]string, 0, len(s.configs))
	for _, name := range []string{ProviderGoogle, ProviderGitHub} {
		if s.Enabled(name) {
			out = append(out, name)
		}
	}
	return out
}

// StateToken returns a random value binding the callback to the browser
// that started the flow.
func StateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthURL is the provider consent page for state.
func (s *Service) AuthURL(provider, state string) (string, error) {
	conf, ok := s.configs[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return conf.AuthCodeURL(state), nil
}

// Exchange trades the callback code for the provider's token and shapes
// it as a provider response for the session store.
func (s *Service) Exchange(ctx context.Context, provider, code string) (session.ProviderResponse, error) {
	conf, ok := s.configs[provider]
	if !ok {
		return session.ProviderResponse{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if code == "" {
		return session.ProviderResponse{}, fmt.Errorf("%w: missing authorization code", session.ErrProviderRejected)
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return session.ProviderResponse{}, fmt.Errorf("%w: %v", session.ErrProviderRejected, err)
	}
	resp := session.ProviderResponse{Provider: provider, AccessToken: tok.AccessToken}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}
	return resp, nil
}

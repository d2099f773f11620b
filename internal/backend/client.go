package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoCredential is returned for protected calls made without a live
// access credential. Such calls never reach the network.
var ErrNoCredential = errors.New("no access credential")

// CredentialSource yields the access credential currently persisted for
// the session, or "" when there is none.
type CredentialSource interface {
	AccessToken() string
}

// Client is the authenticated request gateway to the REST backend.
// The zero-credential client built by New serves public endpoints; Bind
// derives a per-session client.
type Client struct {
	base           *url.URL
	http           *http.Client
	logger         *log.Logger
	creds          CredentialSource
	onUnauthorized func(ctx context.Context)
}

// New builds a Client rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Bind returns a copy of c that decorates requests with creds and calls
// onUnauthorized whenever a credentialed request is answered with 401.
func (c *Client) Bind(creds CredentialSource, onUnauthorized func(ctx context.Context)) *Client {
	clone := *c
	clone.creds = creds
	clone.onUnauthorized = onUnauthorized
	return &clone
}

// BaseURL exposes the configured backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// AuthorizationHeader picks the scheme for token: structured (JWT-shaped)
// tokens use Bearer, opaque ones the simple Token scheme.
func AuthorizationHeader(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if looksStructured(token) {
		return "Bearer " + token
	}
	return "Token " + token
}

func looksStructured(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts[:2] {
		if p == "" {
			return false
		}
	}
	return true
}

type authMode int

const (
	authOptional authMode = iota
	authRequired
	authNone
)

type request struct {
	method   string
	path     string
	query    url.Values
	body     any
	form     *multipartBody
	auth     authMode
	accepted []int
}

func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	target := c.base.ResolveReference(&url.URL{Path: strings.TrimLeft(req.path, "/")})
	if len(req.query) > 0 {
		target.RawQuery = req.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.form != nil:
		buf, ct, err := req.form.encode()
		if err != nil {
			return nil, fmt.Errorf("encode multipart: %w", err)
		}
		body, contentType = buf, ct
	case req.body != nil:
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	credentialed := false
	if req.auth != authNone {
		token := ""
		if c.creds != nil {
			token = c.creds.AccessToken()
		}
		if token != "" {
			httpReq.Header.Set("Authorization", AuthorizationHeader(token))
			credentialed = true
		} else if req.auth == authRequired {
			return nil, ErrNoCredential
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Printf("backend: %s %s error=%v", req.method, req.path, err)
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && credentialed && c.onUnauthorized != nil {
		c.logger.Printf("backend: %s %s unauthorized, tearing down session", req.method, req.path)
		c.onUnauthorized(context.WithoutCancel(ctx))
	}

	if !statusAccepted(resp.StatusCode, req.accepted) {
		apiErr := newAPIError(resp.StatusCode, payload)
		c.logger.Printf("backend: %s %s status=%d message=%q", req.method, req.path, resp.StatusCode, apiErr.Message)
		return nil, apiErr
	}
	return payload, nil
}

func statusAccepted(status int, accepted []int) bool {
	if len(accepted) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range accepted {
		if s == status {
			return true
		}
	}
	return false
}

func call[T any](ctx context.Context, c *Client, req request) (T, error) {
	var out T
	payload, err := c.do(ctx, req)
	if err != nil {
		return out, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return out, nil
}

func exec(ctx context.Context, c *Client, req request) error {
	_, err := c.do(ctx, req)
	return err
}

func pageQuery(page int) url.Values {
	q := url.Values{}
	if page > 1 {
		q.Set("page", fmt.Sprintf("%d", page))
	}
	return q
}

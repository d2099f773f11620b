package backend

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/domain"
)

// UserPayload is the identity as the backend serializes it. Different
// auth views fill different subsets of these fields.
type UserPayload struct {
	ID             domain.ID    `json:"id"`
	Username       string       `json:"username"`
	Email          string       `json:"email"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	DisplayName    string       `json:"display_name"`
	Name           string       `json:"name"`
	Avatar         domain.Image `json:"avatar"`
	ProfilePicture domain.Image `json:"profile_picture"`
	IsAdmin        *bool        `json:"is_admin"`
	IsStaff        bool         `json:"is_staff"`
	IsSuperuser    bool         `json:"is_superuser"`
	Role           string       `json:"role"`
}

// AuthResponse covers the login, signup and social exchange answers.
// Tokens arrive either at top level or nested under "tokens"; opaque-token
// deployments send a single "key" or "token".
type AuthResponse struct {
	User    *UserPayload `json:"user"`
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	Key     string       `json:"key"`
	Token   string       `json:"token"`
	Tokens  *struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	Detail string `json:"detail"`
}

// Credentials normalizes the token pair.
func (r AuthResponse) Credentials() domain.Credentials {
	creds := domain.Credentials{Access: r.Access, Refresh: r.Refresh}
	if r.Tokens != nil {
		if creds.Access == "" {
			creds.Access = r.Tokens.Access
		}
		if creds.Refresh == "" {
			creds.Refresh = r.Tokens.Refresh
		}
	}
	if creds.Access == "" {
		creds.Access = r.Key
	}
	if creds.Access == "" {
		creds.Access = r.Token
	}
	creds.Access = strings.TrimSpace(creds.Access)
	creds.Refresh = strings.TrimSpace(creds.Refresh)
	return creds
}

type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// SocialRequest carries the artifact handed out by a third-party provider.
type SocialRequest struct {
	AccessToken string `json:"access_token,omitempty"`
	Code        string `json:"code,omitempty"`
	IDToken     string `json:"id_token,omitempty"`
}

type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// PasswordResetConfirm is the payload of the emailed reset link form.
type PasswordResetConfirm struct {
	UID         string `json:"uid"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (c *Client) Login(ctx context.Context, in LoginRequest) (AuthResponse, error) {
	return call[AuthResponse](ctx, c, request{method: http.MethodPost, path: "auth/login/", body: in, auth: authNone})
}

func (c *Client) Register(ctx context.Context, in SignupRequest) (AuthResponse, error) {
	return call[AuthResponse](ctx, c, request{method: http.MethodPost, path: "auth/register/", body: in, auth: authNone})
}

func (c *Client) SocialLogin(ctx context.Context, provider string, in SocialRequest) (AuthResponse, error) {
	return call[AuthResponse](ctx, c, request{method: http.MethodPost, path: "auth/social/" + provider + "/", body: in, auth: authNone})
}

// RefreshToken exchanges a refresh credential for a new access credential.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (domain.Credentials, error) {
	out, err := call[AuthResponse](ctx, c, request{
		method: http.MethodPost,
		path:   "auth/token/refresh/",
		body:   map[string]string{"refresh": refresh},
		auth:   authNone,
	})
	if err != nil {
		return domain.Credentials{}, err
	}
	creds := out.Credentials()
	if creds.Refresh == "" {
		creds.Refresh = refresh
	}
	return creds, nil
}

func (c *Client) ChangePassword(ctx context.Context, in PasswordChangeRequest) error {
	return exec(ctx, c, request{method: http.MethodPost, path: "auth/password/change/", body: in, auth: authRequired})
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return exec(ctx, c, request{method: http.MethodPost, path: "auth/password/reset/", body: map[string]string{"email": email}, auth: authNone})
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, in PasswordResetConfirm) error {
	return exec(ctx, c, request{method: http.MethodPost, path: "auth/password/reset/confirm/", body: in, auth: authNone})
}

func (c *Client) Profile(ctx context.Context) (UserPayload, error) {
	return call[UserPayload](ctx, c, request{method: http.MethodGet, path: "auth/user/", auth: authRequired})
}

func (c *Client) UpdateProfile(ctx context.Context, patch map[string]any) (UserPayload, error) {
	return call[UserPayload](ctx, c, request{method: http.MethodPatch, path: "auth/user/", body: patch, auth: authRequired})
}

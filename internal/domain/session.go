package domain

import "strings"

// Identity is the authenticated user as the storefront knows it.
type Identity struct {
	ID          ID     `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      Image  `json:"avatar,omitempty"`
	IsAdmin     bool   `json:"isAdmin"`
}

// Credentials is the access/refresh token pair issued by the backend.
type Credentials struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Session pairs an identity with its credentials.
type Session struct {
	User   Identity    `json:"user"`
	Tokens Credentials `json:"tokens"`
}

// Live reports whether the session carries an access credential.
func (s *Session) Live() bool {
	return s != nil && strings.TrimSpace(s.Tokens.Access) != ""
}

// Name is the label shown for the user.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Username != "" {
		return i.Username
	}
	return i.Email
}

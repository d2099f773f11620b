package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/repository/localstore"
)

var (
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProviderRejected is returned when a third-party login exchange fails.
	ErrProviderRejected = errors.New("provider rejected")
	// ErrAuth is returned when a password change is refused.
	ErrAuth = errors.New("authentication failed")
	// ErrNoSession is returned by operations that need a live session.
	ErrNoSession = errors.New("no active session")
)

const passwordMin = 8

// API is the part of the backend gateway the session store calls.
type API interface {
	Login(ctx context.Context, in backend.LoginRequest) (backend.AuthResponse, error)
	Register(ctx context.Context, in backend.SignupRequest) (backend.AuthResponse, error)
	SocialLogin(ctx context.Context, provider string, in backend.SocialRequest) (backend.AuthResponse, error)
	RefreshToken(ctx context.Context, refresh string) (domain.Credentials, error)
	ChangePassword(ctx context.Context, in backend.PasswordChangeRequest) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, in backend.PasswordResetConfirm) error
	Profile(ctx context.Context) (backend.UserPayload, error)
	UpdateProfile(ctx context.Context, patch map[string]any) (backend.UserPayload, error)
}

// Listener observes session transitions. next is nil after a logout.
// Listeners run synchronously, before the transition returns.
type Listener func(ctx context.Context, prev, next *domain.Session)

// Store holds one browser's authenticated identity and credential pair.
// Durable local storage is the source of truth; the in-memory copy is
// derived from it by Boot.
type Store struct {
	browserID string
	storage   localstore.Repository
	api       API
	logger    *log.Logger
	now       func() time.Time

	mu        sync.RWMutex
	current   *domain.Session
	listeners []Listener
	nextID    int
	listenIDs []int
}

// New creates an empty store for browserID. Boot must run before use.
func New(browserID string, storage localstore.Repository, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		browserID: browserID,
		storage:   storage,
		logger:    logger,
		now:       time.Now,
	}
}

// Boot attaches the gateway and restores the persisted session. A
// half-written or unreadable record is treated as no session.
func (s *Store) Boot(ctx context.Context, api API) error {
	s.api = api

	rawUser, err := s.storage.Get(ctx, s.browserID, localstore.KeyUser)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read persisted user: %w", err)
	}
	rawTokens, err := s.storage.Get(ctx, s.browserID, localstore.KeyTokens)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read persisted tokens: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(rawUser, &sess.User); err != nil {
		s.logger.Printf("session: browser=%s discarding unreadable user record: %v", s.browserID, err)
		return s.storage.Delete(ctx, s.browserID, localstore.KeyUser, localstore.KeyTokens)
	}
	if err := json.Unmarshal(rawTokens, &sess.Tokens); err != nil {
		s.logger.Printf("session: browser=%s discarding unreadable tokens record: %v", s.browserID, err)
		return s.storage.Delete(ctx, s.browserID, localstore.KeyUser, localstore.KeyTokens)
	}
	if !sess.Live() {
		return nil
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	s.CheckExpiry(ctx)
	return nil
}

// AccessToken implements backend.CredentialSource.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Tokens.Access
}

// Current returns a copy of the live session.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.current.Live() {
		return domain.Session{}, false
	}
	return *s.current, true
}

// Authenticated reports whether a live session exists.
func (s *Store) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// IsAdmin reports whether the live session belongs to an administrator.
func (s *Store) IsAdmin() bool {
	sess, ok := s.Current()
	return ok && sess.User.IsAdmin
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, l)
	s.listenIDs = append(s.listenIDs, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, lid := range s.listenIDs {
			if lid == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				s.listenIDs = append(s.listenIDs[:i], s.listenIDs[i+1:]...)
				return
			}
		}
	}
}

// LoginInput is the login form. Identifier may be a username or an email.
type LoginInput struct {
	Identifier string `json:"username"`
	Password   string `json:"password"`
}

// Login posts the credentials and establishes the returned session.
func (s *Store) Login(ctx context.Context, in LoginInput) (domain.Session, error) {
	id := strings.TrimSpace(in.Identifier)
	if id == "" || in.Password == "" {
		return domain.Session{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	req := backend.LoginRequest{Password: in.Password}
	if strings.Contains(id, "@") {
		req.Email = strings.ToLower(id)
	} else {
		req.Username = id
	}
	resp, err := s.api.Login(ctx, req)
	if err != nil {
		if backend.IsUnauthorized(err) || backend.IsValidation(err) {
			return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return domain.Session{}, err
	}
	return s.establish(ctx, resp)
}

// ProviderResponse is the artifact returned by an external identity
// provider: either its access token or an authorization code.
type ProviderResponse struct {
	Provider    string
	AccessToken string
	Code        string
	IDToken     string
}

// LoginWithExternalProvider exchanges a provider artifact for the
// backend's own credential pair.
func (s *Store) LoginWithExternalProvider(ctx context.Context, in ProviderResponse) (domain.Session, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" || (in.AccessToken == "" && in.Code == "" && in.IDToken == "") {
		return domain.Session{}, fmt.Errorf("%w: missing provider response", ErrProviderRejected)
	}
	resp, err := s.api.SocialLogin(ctx, provider, backend.SocialRequest{
		AccessToken: in.AccessToken,
		Code:        in.Code,
		IDToken:     in.IDToken,
	})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return domain.Session{}, fmt.Errorf("%w: %s", ErrProviderRejected, apiErr.Message)
		}
		return domain.Session{}, err
	}
	sess, err := s.establish(ctx, resp)
	if errors.Is(err, ErrInvalidCredentials) {
		return domain.Session{}, fmt.Errorf("%w: no credentials issued", ErrProviderRejected)
	}
	return sess, err
}

// SignupInput is the registration form.
type SignupInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

// Signup registers an account. When the backend issues credentials right
// away the session is established and returned; when it requires email
// confirmation first, ok is false and no session exists yet.
func (s *Store) Signup(ctx context.Context, in SignupInput) (sess domain.Session, ok bool, err error) {
	if err := validateSignup(in); err != nil {
		return domain.Session{}, false, err
	}
	resp, err := s.api.Register(ctx, backend.SignupRequest{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Password:  in.Password,
		Password2: in.ConfirmPassword,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && backend.IsValidation(err) {
			return domain.Session{}, false, fmt.Errorf("%w: %s", domain.ErrValidation, apiErr.Message)
		}
		return domain.Session{}, false, err
	}
	if resp.Credentials().Access == "" {
		return domain.Session{}, false, nil
	}
	sess, err = s.establish(ctx, resp)
	if err != nil {
		return domain.Session{}, false, err
	}
	return sess, true, nil
}

// Logout clears the persisted and in-memory session unconditionally. It
// never calls the backend.
func (s *Store) Logout(ctx context.Context) {
	if err := s.storage.Delete(ctx, s.browserID, localstore.KeyUser, localstore.KeyTokens); err != nil {
		s.logger.Printf("session: browser=%s clear persisted session: %v", s.browserID, err)
	}
	s.transition(ctx, nil)
}

// UpdateProfile patches identity fields and merges the answer into the
// current identity.
func (s *Store) UpdateProfile(ctx context.Context, patch map[string]any) (domain.Session, error) {
	cur, ok := s.Current()
	if !ok {
		return domain.Session{}, ErrNoSession
	}
	if len(patch) == 0 {
		return cur, nil
	}
	if email, ok := patch["email"].(string); ok && !strings.Contains(email, "@") {
		return domain.Session{}, fmt.Errorf("%w: enter a valid email address", domain.ErrValidation)
	}
	payload, err := s.api.UpdateProfile(ctx, patch)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && backend.IsValidation(err) {
			return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrValidation, apiErr.Message)
		}
		return domain.Session{}, err
	}
	next := cur
	next.User = mergeIdentity(cur.User, payload)
	if err := s.commit(ctx, next); err != nil {
		return domain.Session{}, err
	}
	return next, nil
}

// ChangePassword asks the backend to replace the password.
func (s *Store) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if !s.Authenticated() {
		return ErrNoSession
	}
	if len(strings.TrimSpace(newPassword)) < passwordMin {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, passwordMin)
	}
	err := s.api.ChangePassword(ctx, backend.PasswordChangeRequest{OldPassword: oldPassword, NewPassword: newPassword})
	if err == nil {
		return nil
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		return fmt.Errorf("%w: %s", ErrAuth, apiErr.Message)
	}
	return err
}

// RequestPasswordReset fires the reset email. Failures are logged only,
// so the answer never reveals whether an account exists.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}
	if err := s.api.RequestPasswordReset(ctx, email); err != nil {
		s.logger.Printf("session: password reset request failed: %v", err)
	}
}

// ConfirmPasswordReset reports whether the backend accepted the new
// password. It does not return the failure cause.
func (s *Store) ConfirmPasswordReset(ctx context.Context, in backend.PasswordResetConfirm) bool {
	if in.UID == "" || in.Token == "" || len(in.NewPassword) < passwordMin {
		return false
	}
	if err := s.api.ConfirmPasswordReset(ctx, in); err != nil {
		s.logger.Printf("session: password reset confirm failed: %v", err)
		return false
	}
	return true
}

// Refresh trades the refresh credential for a new access credential. A
// rejected refresh ends the session.
func (s *Store) Refresh(ctx context.Context) (domain.Session, error) {
	cur, ok := s.Current()
	if !ok || cur.Tokens.Refresh == "" {
		return domain.Session{}, ErrNoSession
	}
	creds, err := s.api.RefreshToken(ctx, cur.Tokens.Refresh)
	if err != nil {
		if backend.IsUnauthorized(err) || backend.IsValidation(err) {
			s.Logout(ctx)
		}
		return domain.Session{}, err
	}
	next := cur
	next.Tokens = creds
	if err := s.commit(ctx, next); err != nil {
		return domain.Session{}, err
	}
	return next, nil
}

// establish normalizes a login-style answer into a session, fetching the
// profile when the answer carries tokens only.
func (s *Store) establish(ctx context.Context, resp backend.AuthResponse) (domain.Session, error) {
	creds := resp.Credentials()
	if creds.Access == "" {
		return domain.Session{}, fmt.Errorf("%w: backend issued no access credential", ErrInvalidCredentials)
	}

	var payload backend.UserPayload
	if resp.User != nil {
		payload = *resp.User
	} else {
		s.mu.Lock()
		prev := s.current
		s.current = &domain.Session{Tokens: creds}
		s.mu.Unlock()

		p, err := s.api.Profile(ctx)
		if err != nil {
			s.mu.Lock()
			s.current = prev
			s.mu.Unlock()
			return domain.Session{}, fmt.Errorf("load profile: %w", err)
		}
		payload = p
	}

	sess := domain.Session{User: IdentityFromPayload(payload), Tokens: creds}
	if err := s.commit(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// commit persists sess under the two fixed keys, then installs it.
func (s *Store) commit(ctx context.Context, sess domain.Session) error {
	rawUser, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	rawTokens, err := json.Marshal(sess.Tokens)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := s.storage.Set(ctx, s.browserID, localstore.KeyUser, rawUser); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if err := s.storage.Set(ctx, s.browserID, localstore.KeyTokens, rawTokens); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	s.transition(ctx, &sess)
	s.CheckExpiry(ctx)
	return nil
}

func (s *Store) transition(ctx context.Context, next *domain.Session) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if prev == nil && next == nil {
		return
	}
	for _, l := range listeners {
		l(ctx, prev, next)
	}
}

// CheckExpiry logs out when the access credential carries an expiry
// claim in the past. It reports whether a live session remains.
func (s *Store) CheckExpiry(ctx context.Context) bool {
	token := s.AccessToken()
	if token == "" {
		return false
	}
	exp, ok := AccessExpiry(token)
	if ok && !exp.After(s.now()) {
		s.logger.Printf("session: browser=%s access credential expired at %s", s.browserID, exp.UTC().Format(time.RFC3339))
		s.Logout(ctx)
		return false
	}
	return true
}

// IdentityFromPayload normalizes the backend identity. Administrator
// status comes from an explicit flag or from the role field.
func IdentityFromPayload(p backend.UserPayload) domain.Identity {
	id := domain.Identity{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		DisplayName: displayName(p),
		Avatar:      p.Avatar,
	}
	if id.Avatar.IsZero() {
		id.Avatar = p.ProfilePicture
	}
	switch {
	case p.IsAdmin != nil:
		id.IsAdmin = *p.IsAdmin
	default:
		id.IsAdmin = p.IsStaff || p.IsSuperuser
	}
	if strings.EqualFold(strings.TrimSpace(p.Role), "admin") {
		id.IsAdmin = true
	}
	return id
}

func displayName(p backend.UserPayload) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// mergeIdentity overlays the non-empty fields of p onto cur. The admin
// flag is kept unless the answer states it.
func mergeIdentity(cur domain.Identity, p backend.UserPayload) domain.Identity {
	next := IdentityFromPayload(p)
	out := cur
	if next.ID != "" {
		out.ID = next.ID
	}
	if next.Username != "" {
		out.Username = next.Username
	}
	if next.Email != "" {
		out.Email = next.Email
	}
	if next.DisplayName != "" {
		out.DisplayName = next.DisplayName
	}
	if !next.Avatar.IsZero() {
		out.Avatar = next.Avatar
	}
	if p.IsAdmin != nil || p.IsStaff || p.IsSuperuser || p.Role != "" {
		out.IsAdmin = next.IsAdmin
	}
	return out
}

func validateSignup(in SignupInput) error {
	switch {
	case strings.TrimSpace(in.Username) == "":
		return fmt.Errorf("%w: username is required", domain.ErrValidation)
	case !strings.Contains(in.Email, "@"):
		return fmt.Errorf("%w: enter a valid email address", domain.ErrValidation)
	case len(strings.TrimSpace(in.Password)) < passwordMin:
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, passwordMin)
	case in.ConfirmPassword != "" && in.ConfirmPassword != in.Password:
		return fmt.Errorf("%w: passwords do not match", domain.ErrValidation)
	}
	return nil
}

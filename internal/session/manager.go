// Package session owns the authenticated session: it exchanges credentials
// for tokens, persists them, renews them before they expire and tears the
// session down when renewal fails.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"taskr/internal/envelope"
	"taskr/internal/logging"
	"taskr/internal/storage"
)

const (
	// DefaultLeeway is how long before expiry the session is renewed.
	DefaultLeeway = 60 * time.Second

	// renewTimeout bounds a refresh started by the timer or by Token.
	renewTimeout = 30 * time.Second

	// logoutTimeout bounds the best-effort logout notification.
	logoutTimeout = 5 * time.Second

	// minRenewDelay is the shortest delay the renewal timer is armed with.
	minRenewDelay = time.Second

	// maxTokenLifetime caps the expiresIn the backend may announce.
	maxTokenLifetime = 365 * 24 * time.Hour
)

// Options configures a Manager.
type Options struct {
	// BaseURL is the API base URL, e.g. http://localhost:5000/api.
	BaseURL string

	// HTTPClient is used for the auth endpoints. It must not route through
	// the bearer interceptor. Defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	// Store persists the session. Required.
	Store storage.Store

	// Leeway is how long before expiry the renewal timer fires. It never
	// exceeds half the token lifetime, so short-lived tokens are not
	// renewed back to back. Zero means DefaultLeeway; negative values are
	// treated as zero.
	Leeway time.Duration

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// OnExpired is called when a timer-driven renewal fails and the
	// session has been torn down. It runs on the renewal goroutine and
	// must not call Close.
	OnExpired func(err error)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager holds the current session. It is safe for concurrent use.
type Manager struct {
	baseURL   string
	client    *http.Client
	store     storage.Store
	leeway    time.Duration
	logger    *slog.Logger
	onExpired func(error)
	now       func() time.Time

	// refreshMu serializes refreshes so concurrent 401s renew once.
	refreshMu sync.Mutex

	// renewing tracks timer-driven refreshes so Close can wait for them.
	renewing sync.WaitGroup

	mu      sync.Mutex
	user    *User
	timer   *time.Timer
	subs    map[int]chan *User
	nextSub int
	closed  bool
}

// New creates a Manager and restores any persisted session from the store.
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("session: base url required")
	}

	m := &Manager{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		client:    opts.HTTPClient,
		store:     opts.Store,
		leeway:    opts.Leeway,
		logger:    opts.Logger,
		onExpired: opts.OnExpired,
		now:       opts.Now,
		subs:      make(map[int]chan *User),
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: 10 * time.Second}
	}
	if m.leeway == 0 {
		m.leeway = DefaultLeeway
	}
	if m.leeway < 0 {
		m.leeway = 0
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.now == nil {
		m.now = time.Now
	}

	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

// restore loads the persisted user and re-arms the renewal timer.
func (m *Manager) restore() error {
	raw, ok, err := m.store.Get(storage.KeyUserData)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if ok {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			m.logger.Warn("discarding unreadable user data", "error", err)
			_ = m.store.Remove(storage.KeyUserData)
		} else {
			m.user = &u
		}
	}

	if !m.IsAuthenticated() {
		return nil
	}
	tok, err := m.storedToken()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.armLocked(m.renewAt(tok))
	m.mu.Unlock()
	return nil
}

// Login exchanges credentials for a session.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	resp, err := m.authenticate(ctx, LoginPath, creds)
	if err != nil {
		return nil, err
	}
	if err := m.establish(resp); err != nil {
		return nil, err
	}
	m.logger.Debug("logged in", "user", resp.User.Email)
	return resp, nil
}

// Register creates an account and starts a session for it.
func (m *Manager) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	resp, err := m.authenticate(ctx, RegisterPath, reg)
	if err != nil {
		return nil, err
	}
	if err := m.establish(resp); err != nil {
		return nil, err
	}
	m.logger.Debug("registered", "user", resp.User.Email)
	return resp, nil
}

// RefreshToken exchanges the stored refresh token for a new session. With no
// refresh token stored it tears the session down without a network call.
// When the backend rejects the refresh the session is logged out. Either
// failure returns an error wrapping ErrSessionExpired.
func (m *Manager) RefreshToken(ctx context.Context) error {
	seen, _, _ := m.store.Get(storage.KeyRefreshToken)

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	refresh, ok, err := m.store.Get(storage.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if !ok || refresh == "" {
		if err := m.clear(); err != nil {
			m.logger.Warn("failed to clear session", "error", err)
		}
		return ErrSessionExpired
	}
	if seen != "" && seen != refresh {
		// Renewed by another caller while this one waited.
		return nil
	}

	access, _, _ := m.store.Get(storage.KeyAuthToken)
	resp, err := m.authenticate(ctx, RefreshPath, refreshRequest{Token: access, RefreshToken: refresh})
	if err != nil {
		m.logger.Info("token refresh failed", "error", err)
		_ = m.Logout(ctx)
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if err := m.establish(resp); err != nil {
		return err
	}
	m.logger.Debug("token refreshed", "expires_in", resp.ExpiresIn)
	return nil
}

// Logout clears the persisted session, emits nil and then tells the backend,
// best-effort. Only storage failures are returned.
func (m *Manager) Logout(ctx context.Context) error {
	access, _, _ := m.store.Get(storage.KeyAuthToken)

	err := m.clear()

	if access != "" {
		m.notifyLogout(ctx, access)
	}
	return err
}

// IsAuthenticated reports whether a token is present in storage.
func (m *Manager) IsAuthenticated() bool {
	token, ok, err := m.store.Get(storage.KeyAuthToken)
	return err == nil && ok && token != ""
}

// CurrentUser returns a copy of the current user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	u.Roles = append([]string(nil), m.user.Roles...)
	return &u
}

// ExpiresAt returns the stored access token expiry, if known.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	tok, err := m.storedToken()
	if err != nil || tok.Expiry.IsZero() {
		return time.Time{}, false
	}
	return tok.Expiry, true
}

// Subscribe returns a channel that receives the current user immediately and
// then every change (nil after logout). Only the latest value is buffered, so
// a slow reader skips intermediate values. cancel stops delivery and closes
// the channel.
func (m *Manager) Subscribe() (updates <-chan *User, cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *User, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.user

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// Token implements oauth2.TokenSource. It returns the stored bearer token,
// refreshing it first once its renewal time has passed.
func (m *Manager) Token() (*oauth2.Token, error) {
	tok, err := m.storedToken()
	if err != nil {
		return nil, err
	}
	if !m.stale(tok) {
		return tok, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
	defer cancel()
	if err := m.RefreshToken(ctx); err != nil {
		return nil, err
	}
	return m.storedToken()
}

// Close stops the renewal timer and closes subscriber channels. A renewal
// already in flight is waited for, so its rotated tokens are persisted before
// the caller closes the store. The persisted session is left intact.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopTimerLocked()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()

	m.renewing.Wait()
	return nil
}

func (m *Manager) stale(tok *oauth2.Token) bool {
	if tok.Expiry.IsZero() || tok.RefreshToken == "" {
		return false
	}
	return !m.now().Before(m.renewAt(tok))
}

// renewAt is when tok should be renewed. The lifetime is known from the
// stored issue time; sessions persisted without one use the full leeway.
func (m *Manager) renewAt(tok *oauth2.Token) time.Time {
	if tok.Expiry.IsZero() {
		return time.Time{}
	}
	var lifetime time.Duration
	if raw, ok, _ := m.store.Get(storage.KeyTokenIssued); ok {
		if issued, err := time.Parse(time.RFC3339, raw); err == nil {
			lifetime = tok.Expiry.Sub(issued)
		}
	}
	return tok.Expiry.Add(-m.renewLead(lifetime))
}

// renewLead is how long before expiry a token of the given lifetime is
// renewed: the leeway, capped at half the lifetime when it is known.
func (m *Manager) renewLead(lifetime time.Duration) time.Duration {
	lead := m.leeway
	if lifetime > 0 && lead > lifetime/2 {
		lead = lifetime / 2
	}
	return lead
}

func (m *Manager) storedToken() (*oauth2.Token, error) {
	access, ok, err := m.store.Get(storage.KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok || access == "" {
		return nil, ErrNotAuthenticated
	}
	refresh, _, err := m.store.Get(storage.KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
	}
	if raw, ok, _ := m.store.Get(storage.KeyTokenExpiry); ok {
		if exp, err := time.Parse(time.RFC3339, raw); err == nil {
			tok.Expiry = exp
		}
	}
	return tok, nil
}

// authenticate POSTs body to path and decodes an AuthResponse. The backend
// may return the response bare or inside the usual envelope.
func (m *Manager) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	resp, err := m.post(ctx, path, "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, envelope.FromResponse(resp)
	}

	var payload struct {
		AuthResponse
		Data *AuthResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid auth response: %w", err)
	}
	out := payload.AuthResponse
	if out.Token == "" && payload.Data != nil {
		out = *payload.Data
	}
	if out.Token == "" {
		return nil, errors.New("invalid auth response: missing token")
	}
	return &out, nil
}

func (m *Manager) post(ctx context.Context, path, bearer string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// establish persists resp in one store update, replaces the current user,
// arms the timer and notifies subscribers.
func (m *Manager) establish(resp *AuthResponse) error {
	userJSON, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	issued := m.now()
	expiry := m.expiryFor(resp, issued)

	set := map[string]string{
		storage.KeyAuthToken: resp.Token,
		storage.KeyUserData:  string(userJSON),
	}
	var remove []string
	if resp.RefreshToken != "" {
		set[storage.KeyRefreshToken] = resp.RefreshToken
	} else {
		remove = append(remove, storage.KeyRefreshToken)
	}
	var renewAt time.Time
	if !expiry.IsZero() {
		set[storage.KeyTokenExpiry] = expiry.UTC().Format(time.RFC3339)
		set[storage.KeyTokenIssued] = issued.UTC().Format(time.RFC3339)
		renewAt = expiry.Add(-m.renewLead(expiry.Sub(issued)))
	} else {
		remove = append(remove, storage.KeyTokenExpiry, storage.KeyTokenIssued)
	}
	if err := m.store.Update(set, remove...); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	user := resp.User
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = &user
	m.armLocked(renewAt)
	m.emitLocked()
	return nil
}

// expiryFor prefers expiresIn and falls back to the token's exp claim.
// Lifetimes beyond maxTokenLifetime are capped.
func (m *Manager) expiryFor(resp *AuthResponse, issued time.Time) time.Time {
	if resp.ExpiresIn > 0 {
		lifetime := maxTokenLifetime
		if resp.ExpiresIn < int64(maxTokenLifetime/time.Second) {
			lifetime = time.Duration(resp.ExpiresIn) * time.Second
		}
		return issued.Add(lifetime)
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(resp.Token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// clear removes the persisted session, stops the timer and emits nil.
func (m *Manager) clear() error {
	err := m.store.Remove(
		storage.KeyAuthToken,
		storage.KeyRefreshToken,
		storage.KeyUserData,
		storage.KeyTokenExpiry,
		storage.KeyTokenIssued,
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.user = nil
	m.emitLocked()

	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (m *Manager) notifyLogout(ctx context.Context, access string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()

	resp, err := m.post(ctx, LogoutPath, access, struct{}{})
	if err != nil {
		m.logger.Debug("logout notification failed", "error", err)
		return
	}
	resp.Body.Close()
	m.logger.Debug("logout notified", "status", resp.StatusCode)
}

// armLocked schedules renewal at the given time, but never sooner than
// minRenewDelay from now.
func (m *Manager) armLocked(at time.Time) {
	m.stopTimerLocked()
	if at.IsZero() || m.closed {
		return
	}
	delay := at.Sub(m.now())
	if delay < minRenewDelay {
		delay = minRenewDelay
	}
	m.timer = time.AfterFunc(delay, m.renew)
	m.logger.Debug("renewal scheduled", "in", delay.Round(time.Second))
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// renew runs on the timer goroutine.
func (m *Manager) renew() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.renewing.Add(1)
	m.mu.Unlock()
	defer m.renewing.Done()

	ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
	defer cancel()

	if err := m.RefreshToken(ctx); err != nil {
		m.logger.Warn("session renewal failed", "error", err)
		if m.onExpired != nil {
			m.onExpired(err)
		}
	}
}

// emitLocked delivers the current user to every subscriber, replacing any
// value the subscriber has not read yet.
func (m *Manager) emitLocked() {
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m.user
	}
}

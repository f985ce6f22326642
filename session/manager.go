// Package session owns the player's credential: restore, login, register,
// logout, the inactivity watchdog and the authenticated request capability
// that every other component is handed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/httpclient"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/storage"
)

const (
	pathLogin    = "/api/auth/login/"
	pathRegister = "/api/auth/register/"
	pathMe       = "/api/auth/me/"

	// DefaultStorageKey is the durable key holding {user, tokens}
	DefaultStorageKey = "bahati_yangu_auth"
	// DefaultInactivityTimeout logs an idle player out
	DefaultInactivityTimeout = 3 * time.Minute
)

// ErrSuperseded is returned when a login or restore finished after the
// session had already changed (typically a logout won the race).
var ErrSuperseded = apperrors.Auth("Session changed while signing in. Please try again.")

// Doer executes one HTTP call against the remote authority
type Doer interface {
	Do(ctx context.Context, req httpclient.Request, dest interface{}) error
}

// Options configures a Manager
type Options struct {
	Client            Doer
	Store             storage.KV
	StorageKey        string
	InactivityTimeout time.Duration
	Clock             clockwork.Clock
	Logger            zerolog.Logger
}

// Manager is the single source of truth for who is logged in
type Manager struct {
	client     Doer
	store      storage.KV
	storageKey string
	inactivity time.Duration
	clock      clockwork.Clock
	logger     zerolog.Logger

	mu      sync.Mutex
	current *session
	loading bool
	// gen changes on every commit or teardown; async work captures it and
	// drops its result if it moved on.
	gen uint64

	watchdog    clockwork.Timer
	watchdogSeq uint64

	subMu     sync.Mutex
	subs      map[int]func(Snapshot)
	nextSubID int
}

// NewManager creates a logged-out manager in the loading state; call Restore
func NewManager(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = storage.NewMemoryKV()
	}
	if opts.StorageKey == "" {
		opts.StorageKey = DefaultStorageKey
	}
	if opts.InactivityTimeout == 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Manager{
		client:     opts.Client,
		store:      opts.Store,
		storageKey: opts.StorageKey,
		inactivity: opts.InactivityTimeout,
		clock:      opts.Clock,
		logger:     logging.WithComponent(opts.Logger, "session"),
		loading:    true,
		subs:       make(map[int]func(Snapshot)),
	}
}

// Restore loads a persisted session and re-validates it against the server
// with a single profile fetch. Any failure purges storage and leaves the
// manager logged out; the returned error only explains why.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	gen := m.gen
	m.loading = true
	m.mu.Unlock()

	raw, err := m.store.Get(ctx, m.storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		m.finishRestore(gen)
		return nil
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read persisted session")
		m.failRestore(gen)
		return apperrors.Wrap(err, apperrors.ErrAuth, "Saved session could not be read. Please log in.")
	}

	var saved persisted
	if err := json.Unmarshal(raw, &saved); err != nil || saved.Tokens == nil || saved.Tokens.Access == "" {
		m.logger.Warn().Err(err).Msg("Persisted session is malformed, purging")
		m.failRestore(gen)
		return apperrors.Auth("Saved session could not be read. Please log in.")
	}

	var user User
	if err := m.client.Do(ctx, meRequest(saved.Tokens.Access), &user); err != nil {
		m.logger.Info().Err(err).Msg("Persisted session rejected, purging")
		m.failRestore(gen)
		return apperrors.Wrap(err, apperrors.ErrAuth, "Your session has expired. Please log in again.")
	}

	if err := m.commit(ctx, gen, user, *saved.Tokens); err != nil {
		return err
	}
	userLogger := logging.WithUserID(m.logger, user.ID)
	userLogger.Info().Msg("Session restored")
	return nil
}

func (m *Manager) finishRestore(gen uint64) {
	m.mu.Lock()
	if m.gen == gen {
		m.loading = false
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) failRestore(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.teardownLocked("restore failed")
	m.mu.Unlock()
	m.notify()
}

// Login exchanges credentials for tokens, fetches the profile with the new
// token and only then commits. On failure the prior state is untouched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apperrors.Validation("Enter your email and password.")
	}

	gen := m.generation()

	var tokens Tokens
	err := m.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Body:   map[string]string{"email": email, "password": password},
	}, &tokens)
	if err != nil {
		return loginError(err)
	}
	if tokens.Access == "" {
		return apperrors.Auth("Login failed. Please try again.")
	}

	var user User
	if err := m.client.Do(ctx, meRequest(tokens.Access), &user); err != nil {
		return loginError(err)
	}

	if err := m.commit(ctx, gen, user, tokens); err != nil {
		return err
	}
	userLogger := logging.WithUserID(m.logger, user.ID)
	userLogger.Info().Msg("Logged in")
	return nil
}

// Register creates the account; the server answers with the user and a
// token pair which are committed together.
func (m *Manager) Register(ctx context.Context, payload RegisterPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	gen := m.generation()

	var res registerResponse
	err := m.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   pathRegister,
		Body:   payload,
	}, &res)
	if err != nil {
		return loginError(err)
	}
	if res.Access == "" {
		return apperrors.Auth("Registration failed. Please try again.")
	}

	if err := m.commit(ctx, gen, res.User, Tokens{Access: res.Access, Refresh: res.Refresh}); err != nil {
		return err
	}
	userLogger := logging.WithUserID(m.logger, res.User.ID)
	userLogger.Info().Msg("Registered")
	return nil
}

// loginError turns a credential rejection into an AuthError and keeps
// transport failures as they are.
func loginError(err error) error {
	if apperrors.IsTransport(err) || apperrors.IsValidation(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrAuth, apperrors.UserMessage(err, "Login failed. Please try again."))
}

// Logout purges persisted state and resets to logged out. In-flight work is
// not cancelled; its results are discarded by generation checks.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.teardownLocked("logout")
	m.mu.Unlock()
	m.notify()
}

// RefreshUser re-fetches the profile and persists the new snapshot
func (m *Manager) RefreshUser(ctx context.Context) error {
	gen := m.generation()

	var user User
	if err := m.Request(ctx, httpclient.Request{Path: pathMe}, &user); err != nil {
		return err
	}

	m.mu.Lock()
	if m.gen != gen || m.current == nil {
		m.mu.Unlock()
		return ErrSuperseded
	}
	m.current.user = user
	m.persistLocked(ctx)
	m.mu.Unlock()
	m.notify()
	return nil
}

// Request is the authenticated request capability. It fails with an
// AuthError before any network call when there is no session, and destroys
// the session when the server rejects the credential.
func (m *Manager) Request(ctx context.Context, req httpclient.Request, dest interface{}) error {
	m.mu.Lock()
	current := m.current
	gen := m.gen
	var access string
	expired := false
	if current != nil {
		access = current.tokens.Access
		expired = current.expired(m.clock.Now())
	}
	m.mu.Unlock()

	if current == nil {
		return apperrors.Auth("Not authenticated.")
	}
	if expired {
		m.expire(gen, "access token expired")
		return apperrors.Auth("Your session has expired. Please log in again.")
	}

	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + access
	req.Headers = headers

	err := m.client.Do(ctx, req, dest)
	if apperrors.IsAuth(err) {
		m.expire(gen, "credential rejected by server")
	}
	return err
}

// MarkAgeVerified records age-gate success for this process only
func (m *Manager) MarkAgeVerified() {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return
	}
	m.current.ageVerified = true
	m.mu.Unlock()
	m.notify()
}

// VerifyBirthYear runs the age gate. An under-age answer logs the player out.
func (m *Manager) VerifyBirthYear(year int) error {
	if !m.Active() {
		return apperrors.Auth("Not authenticated.")
	}
	if year <= 0 {
		return apperrors.Validation("Select your year of birth.")
	}
	if ageFromBirthYear(year, m.clock.Now()) < MinimumAge {
		m.logger.Info().Msg("Age gate failed, logging out")
		m.Logout()
		return apperrors.Validation(fmt.Sprintf("Based on your year of birth you must be at least %d to continue.", MinimumAge))
	}
	m.MarkAgeVerified()
	return nil
}

// DeclineAge handles a player answering "No" at the age gate
func (m *Manager) DeclineAge() error {
	m.Logout()
	return apperrors.Validation(fmt.Sprintf("You must be at least %d years old to use Bahati Yangu.", MinimumAge))
}

// Active reports whether a session exists
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Snapshot returns the current plain state
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{Loading: m.loading}
	if m.current != nil {
		user := m.current.user
		snap.User = &user
		snap.AgeVerified = m.current.ageVerified
		snap.AccessExpiresAt = m.current.accessExpiresAt
	}
	return snap
}

// Subscribe registers fn to receive a snapshot after every state change
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify() {
	snap := m.Snapshot()

	m.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// commit installs a new session if nothing happened since gen was read
func (m *Manager) commit(ctx context.Context, gen uint64, user User, tokens Tokens) error {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		userLogger := logging.WithUserID(m.logger, user.ID)
		userLogger.Info().Msg("Discarding stale sign-in result")
		return ErrSuperseded
	}
	m.gen++
	m.current = &session{
		user:            user,
		tokens:          tokens,
		accessExpiresAt: accessExpiry(tokens.Access),
	}
	m.loading = false
	m.persistLocked(ctx)
	m.armWatchdogLocked()
	m.mu.Unlock()

	m.notify()
	return nil
}

// expire tears the session down if it is still the one identified by gen
func (m *Manager) expire(gen uint64, reason string) {
	m.mu.Lock()
	if m.gen != gen || m.current == nil {
		m.mu.Unlock()
		return
	}
	m.teardownLocked(reason)
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) teardownLocked(reason string) {
	hadSession := m.current != nil
	m.gen++
	m.current = nil
	m.loading = false
	m.disarmWatchdogLocked()
	if err := m.store.Delete(context.Background(), m.storageKey); err != nil {
		m.logger.Error().Err(err).Msg("Failed to purge persisted session")
	}
	if hadSession {
		m.logger.Info().Str("reason", reason).Msg("Session ended")
	}
}

func (m *Manager) persistLocked(ctx context.Context) {
	user := m.current.user
	tokens := m.current.tokens
	data, err := json.Marshal(persisted{User: &user, Tokens: &tokens})
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode session")
		return
	}
	// A failed write only costs the next restore; the live session stays valid.
	if err := m.store.Set(ctx, m.storageKey, data); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist session")
	}
}

func meRequest(access string) httpclient.Request {
	return httpclient.Request{
		Path:    pathMe,
		Headers: map[string]string{"Authorization": "Bearer " + access},
	}
}

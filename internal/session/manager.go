package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"passport/internal/credstore"
	"passport/internal/gateway"
)

// Gateway is the slice of the auth authority the manager depends on. It is
// satisfied by *gateway.Client and by fakes in tests.
type Gateway interface {
	Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.AuthPayload, error)
	Login(ctx context.Context, req gateway.LoginRequest) (*gateway.AuthPayload, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*gateway.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	LogoutAll(ctx context.Context, accessToken string) (*gateway.LogoutAllResult, error)
	GetProfile(ctx context.Context, accessToken string) (*gateway.User, error)
	UpdateProfile(ctx context.Context, accessToken string, upd gateway.ProfileUpdate) (*gateway.User, error)
	ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
}

// Options tune a Manager. The zero value is usable.
type Options struct {
	// Logger receives structured lifecycle events. Nil discards them.
	Logger *slog.Logger

	// Registerer receives the session metrics. Nil disables exposition.
	Registerer prometheus.Registerer

	// RefreshTTL is the advisory lifetime recorded with a stored refresh
	// credential. The server stays authoritative; this only drives local
	// pre-checks. Defaults to 30 days.
	RefreshTTL time.Duration

	// Now pins the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// Manager is the session lifecycle composition root and the only public
// surface of this package. Construct one per process and share it by
// reference.
type Manager struct {
	gw      Gateway
	store   credstore.Store
	state   *State
	coord   *coordinator
	log     *slog.Logger
	metrics *metrics
	now     func() time.Time

	refreshTTL time.Duration

	// initMu guards initialized. Initialize is idempotent: once the session
	// has settled into Authenticated or Unauthenticated, later calls are
	// no-ops and issue no network calls.
	initMu      sync.Mutex
	initialized bool

	observerMu sync.Mutex
	observers  []func(Snapshot)
}

// NewManager wires a Manager from its collaborators.
func NewManager(gw Gateway, store credstore.Store, opts Options) (*Manager, error) {
	if gw == nil {
		return nil, fmt.Errorf("%w: gateway required", ErrConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: credential store required", ErrConfig)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	refreshTTL := opts.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}

	m := &Manager{
		gw:         gw,
		store:      store,
		state:      NewState(now),
		log:        log,
		metrics:    newMetrics(opts.Registerer),
		now:        now,
		refreshTTL: refreshTTL,
	}
	m.coord = &coordinator{run: m.doRefresh}
	return m, nil
}

// OnChange registers fn to run after every authenticated/unauthenticated
// transition, with a snapshot of the new session. Callbacks run synchronously
// on the goroutine that caused the transition and must not block.
func (m *Manager) OnChange(fn func(Snapshot)) {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Manager) notify() {
	snap := m.state.Get()
	m.observerMu.Lock()
	fns := make([]func(Snapshot), len(m.observers))
	copy(fns, m.observers)
	m.observerMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Initialize reconstructs the session from the stored credential at cold
// start. No credential means Unauthenticated with no network call. A stored
// credential triggers exactly one refresh: success yields Authenticated, a
// positive rejection clears the credential and yields Unauthenticated.
//
// A transient failure (server unreachable) leaves the credential intact and
// the manager uninitialized, so a later Initialize may try again. Once
// settled, Initialize is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.initialized {
		return nil
	}

	if _, ok := m.store.Load(ctx); !ok {
		m.initialized = true
		m.log.Debug("no stored credential, starting unauthenticated")
		return nil
	}

	_, err := m.coord.refreshIfNeeded(ctx)
	switch {
	case err == nil:
		m.initialized = true
		m.log.Info("session restored from stored credential")
		return nil
	case gateway.IsTerminalAuth(err):
		// doRefresh already invalidated; the settled state is Unauthenticated.
		m.initialized = true
		m.log.Warn("stored credential rejected, starting unauthenticated", "err", err)
		return nil
	default:
		m.log.Warn("session restore unavailable", "err", err)
		return err
	}
}

// Login authenticates with email and password, persists the refresh
// credential, and installs the session. Failures leave state untouched.
func (m *Manager) Login(ctx context.Context, email, password string, rememberMe bool) (*gateway.User, error) {
	payload, err := m.gw.Login(ctx, gateway.LoginRequest{Email: email, Password: password, RememberMe: rememberMe})
	if err != nil {
		return nil, err
	}
	if err := m.installSession(ctx, payload); err != nil {
		return nil, err
	}
	m.markInitialized()
	m.metrics.logins.Inc()
	m.log.Info("logged in", "user", payload.User.ID)
	return snapUser(m.state), nil
}

// Register creates an account and behaves like Login for session state.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*gateway.User, error) {
	payload, err := m.gw.Register(ctx, gateway.RegisterRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return nil, err
	}
	if err := m.installSession(ctx, payload); err != nil {
		return nil, err
	}
	m.markInitialized()
	m.metrics.logins.Inc()
	m.log.Info("registered", "user", payload.User.ID)
	return snapUser(m.state), nil
}

// AccessToken returns a valid bearer token, refreshing proactively when the
// cached one is inside the safety margin. Concurrent callers that observe
// the need to refresh all receive the outcome of the same refresh attempt.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if m.state.ShouldRefresh() {
		shared, err := m.coord.refreshIfNeeded(ctx)
		if shared {
			m.metrics.refreshShared.Inc()
		}
		if err != nil {
			return "", err
		}
	}

	snap := m.state.Get()
	if !snap.Authenticated {
		return "", ErrNotAuthenticated
	}
	return snap.AccessToken, nil
}

// Logout revokes this device's session and clears all local state. A refresh
// in flight is allowed to settle first so the freshest (rotated) credential
// is the one revoked and cleared. Remote revocation is best-effort: local
// state is cleared even if the server is unreachable.
func (m *Manager) Logout(ctx context.Context) error {
	m.coord.settle()

	if cred, ok := m.store.Load(ctx); ok {
		accessToken := m.state.Get().AccessToken
		if err := m.gw.Logout(ctx, accessToken, cred.RefreshToken); err != nil {
			m.log.Warn("remote logout failed, clearing local state anyway", "err", err)
		}
	}

	m.invalidate(ctx, "logout")
	return nil
}

// LogoutAll revokes every session of this user on the server, then clears
// local state. Unlike Logout it requires a live session to authenticate the
// revocation, so it fails without clearing anything when no session exists.
func (m *Manager) LogoutAll(ctx context.Context) (revoked int, err error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return 0, err
	}

	res, err := m.gw.LogoutAll(ctx, token)
	if err != nil {
		if gateway.IsTerminalAuth(err) {
			m.invalidate(ctx, "terminal auth failure")
		}
		return 0, err
	}

	m.invalidate(ctx, "logout all")
	return res.RevokedSessions, nil
}

// UpdateProfile applies a partial profile update and merges the server's
// response into the session's user record.
func (m *Manager) UpdateProfile(ctx context.Context, upd gateway.ProfileUpdate) (*gateway.User, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	user, err := m.gw.UpdateProfile(ctx, token, upd)
	if err != nil {
		if gateway.IsTerminalAuth(err) {
			m.invalidate(ctx, "terminal auth failure")
		}
		return nil, err
	}

	m.state.UpdateUser(UserPatch{Name: &user.Name, Email: &user.Email})
	m.notify()
	return user, nil
}

// ChangePassword changes the password of the authenticated user.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) (string, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return m.gw.ChangePassword(ctx, token, currentPassword, newPassword)
}

// ForgotPassword requests a reset email. Stateless pass-through.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (string, error) {
	return m.gw.ForgotPassword(ctx, email)
}

// ResetPassword completes a password reset. Stateless pass-through.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	return m.gw.ResetPassword(ctx, token, newPassword)
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() Snapshot {
	return m.state.Get()
}

// doRefresh is the single-flight refresh body. Order matters: network call,
// then credential persistence, then profile fetch, then state update. A
// positive rejection invalidates the session; a transport failure leaves the
// stored credential intact for the next attempt.
func (m *Manager) doRefresh(ctx context.Context) error {
	cred, ok := m.store.Load(ctx)
	if !ok {
		m.state.Clear()
		return ErrNotAuthenticated
	}

	tokens, err := m.gw.RefreshTokens(ctx, cred.RefreshToken)
	if err != nil {
		if gateway.IsTerminalAuth(err) {
			m.metrics.refreshTotal.WithLabelValues(outcomeRejected).Inc()
			m.log.Warn("refresh token rejected, invalidating session", "err", err)
			m.invalidate(ctx, "refresh rejected")
			return err
		}
		m.metrics.refreshTotal.WithLabelValues(outcomeUnavailable).Inc()
		return fmt.Errorf("%w: %w", ErrRefreshUnavailable, err)
	}

	now := m.now()
	rotated := credstore.Credential{
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    now.Add(m.refreshTTL),
	}
	if err := m.store.Save(ctx, rotated); err != nil {
		// The rotation already happened server-side; losing the write means
		// the session dies at next cold start, not now.
		m.log.Error("persisting rotated credential failed", "err", err)
	}

	user, err := m.gw.GetProfile(ctx, tokens.AccessToken)
	if err != nil {
		// The rotation succeeded but the session cannot be reconstructed.
		// Treated as a fatal refresh failure.
		m.metrics.refreshTotal.WithLabelValues(outcomeRejected).Inc()
		m.log.Warn("profile fetch after refresh failed, invalidating session", "err", err)
		m.invalidate(ctx, "profile fetch failed")
		return err
	}

	m.state.Set(*user, tokens.AccessToken, tokens.AccessExpiry(now))
	m.metrics.refreshTotal.WithLabelValues(outcomeOK).Inc()
	m.log.Debug("access token refreshed", "user", user.ID)
	m.notify()
	return nil
}

// invalidate clears the credential and the in-memory session, then notifies
// observers. It is the only path to Unauthenticated besides cold start.
func (m *Manager) invalidate(ctx context.Context, reason string) {
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("clearing credential failed", "err", err)
	}
	m.state.Clear()
	m.metrics.invalidations.Inc()
	m.log.Info("session invalidated", "reason", reason)
	m.notify()
}

// installSession persists the credential and installs the in-memory session,
// in that order, after a successful login or register.
func (m *Manager) installSession(ctx context.Context, payload *gateway.AuthPayload) error {
	now := m.now()
	cred := credstore.Credential{
		RefreshToken: payload.Tokens.RefreshToken,
		ExpiresAt:    now.Add(m.refreshTTL),
	}
	if err := m.store.Save(ctx, cred); err != nil {
		return err
	}

	m.state.Set(payload.User, payload.Tokens.AccessToken, payload.Tokens.AccessExpiry(now))
	m.notify()
	return nil
}

func (m *Manager) markInitialized() {
	m.initMu.Lock()
	m.initialized = true
	m.initMu.Unlock()
}

func snapUser(s *State) *gateway.User {
	return s.Get().User
}

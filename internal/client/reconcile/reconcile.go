// Package reconcile resolves the client's conflicting session sources
// (persisted credential channels, the identity provider's own store, and
// a legacy token blob) into one authoritative {user, session} pair, keeps
// it fresh with a scheduled refresh, and derives the user's profile type.
//
// Absence of a session is a normal terminal state, not a failure: every
// fallback in the boot chain degrades to the next one, and only an
// unreachable provider is surfaced to the caller.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/contested-app/contested/internal/client/api"
	"github.com/contested-app/contested/internal/client/credstore"
	"github.com/contested-app/contested/internal/logging"
)

// State is the reconciler's lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// ErrProviderUnavailable is returned by Boot when the identity provider
// cannot be initialized. This is the only fatal boot outcome; it is shown
// to the user and not retried automatically.
var ErrProviderUnavailable = errors.New("identity provider unavailable")

// SessionProvider is the remote identity provider as the reconciler sees
// it. api.Provider implements it in production; tests use fakes.
type SessionProvider interface {
	Initialize(ctx context.Context) error
	GetSession(ctx context.Context) (*api.Session, *api.User, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*api.Session, *api.User, error)
	SignOut(ctx context.Context, scope string) error
	OnAuthStateChange(fn func(api.AuthEvent, *api.Session)) (api.AuthSubscription, error)
}

// ServerAPI is the slice of the REST API the reconciler needs directly.
type ServerAPI interface {
	CurrentUser(ctx context.Context, accessToken string) (*api.User, error)
	RefreshSession(ctx context.Context, refreshToken string) (api.AuthResult, error)
}

// Options tune timing behavior. Zero values take the defaults below.
type Options struct {
	// FixedInterval is the refresh period when no expiry is known.
	FixedInterval time.Duration
	// RefreshMargin is how long before expiry a refresh should land.
	RefreshMargin time.Duration
	// RefreshFloor is the soonest a refresh may be scheduled.
	RefreshFloor time.Duration
	// RetryBase is the base delay for auth-feed subscription retries;
	// attempt n waits n times this value.
	RetryBase time.Duration
	// GraceDelay is how long sign-out waits before navigating home, so
	// in-flight state updates settle first.
	GraceDelay time.Duration
	// Now stubs the clock in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FixedInterval <= 0 {
		o.FixedInterval = 15 * time.Minute
	}
	if o.RefreshMargin <= 0 {
		o.RefreshMargin = 5 * time.Minute
	}
	if o.RefreshFloor <= 0 {
		o.RefreshFloor = 10 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.GraceDelay <= 0 {
		o.GraceDelay = 500 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NextRefreshDelay computes when the next token refresh should run:
// min(fixedInterval, max(timeUntilExpiry − refreshMargin, refreshFloor)),
// falling back to the fixed interval when no expiry is known. The floor
// guarantees an already-expired or soon-expiring session still schedules
// a sane future refresh instead of a zero or negative delay.
func NextRefreshDelay(expiresAt, now time.Time, o Options) time.Duration {
	o = o.withDefaults()
	if expiresAt.IsZero() {
		return o.FixedInterval
	}
	d := expiresAt.Sub(now) - o.RefreshMargin
	if d < o.RefreshFloor {
		d = o.RefreshFloor
	}
	if d > o.FixedInterval {
		d = o.FixedInterval
	}
	return d
}

// Reconciler owns the authoritative in-memory {user, session} pair.
// Construct one per application root and hand it to consumers explicitly;
// it is safe for concurrent use.
type Reconciler struct {
	store    *credstore.Store
	provider SessionProvider
	server   ServerAPI
	resolver *Resolver
	log      logging.Logger
	opts     Options
	navigate func(path string)

	mu           sync.Mutex
	state        State
	user         *api.User
	session      *api.Session
	profile      Resolution
	refreshTimer *time.Timer
	graceTimer   *time.Timer
	sub          api.AuthSubscription
	closed       bool
	resolveGen   uint64
}

// New builds a reconciler. navigate receives client-side redirects (the
// home route after sign-out); pass nil to ignore them. log may be nil.
func New(store *credstore.Store, provider SessionProvider, server ServerAPI, resolver *Resolver, log logging.Logger, navigate func(string), opts Options) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{
		store:    store,
		provider: provider,
		server:   server,
		resolver: resolver,
		log:      log,
		opts:     opts.withDefaults(),
		navigate: navigate,
		state:    StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current returns the authoritative user and session, or nils when
// anonymous.
func (r *Reconciler) Current() (*api.User, *api.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user, r.session
}

// Profile returns the last resolved profile type.
func (r *Reconciler) Profile() Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

// Boot runs the session-restoration chain. Each step short-circuits on
// success; every failure degrades to the next step. The only error Boot
// returns is ErrProviderUnavailable from step 1; ending up anonymous is
// a normal outcome, not an error.
func (r *Reconciler) Boot(ctx context.Context) error {
	r.setState(StateInitializing)

	// Step 1: bring up the identity provider. Fatal on failure.
	if err := r.provider.Initialize(ctx); err != nil {
		r.setState(StateAnonymous)
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	// The auth-change feed is best effort: retries run in the background
	// and exhausting them leaves the reconciler in a degraded mode
	// without live updates.
	go r.subscribeWithRetry(ctx)

	// Step 2: no persisted hint means anonymous without network calls.
	if !r.store.Marked() {
		r.setState(StateAnonymous)
		return nil
	}

	// Step 3: validate the persisted access token against the server.
	cred, credErr := r.store.Read()
	if credErr == nil && cred.AccessToken != "" {
		if user, err := r.server.CurrentUser(ctx, cred.AccessToken); err == nil {
			sess := &api.Session{
				AccessToken:  cred.AccessToken,
				RefreshToken: cred.RefreshToken,
				ExpiresAt:    cred.ExpiresAt,
			}
			r.adopt(ctx, sess, user, true)
			// near-immediate background refresh keeps server-side
			// cookies in sync with the restored session
			r.scheduleRefresh(r.opts.RefreshFloor)
			r.log.Info(ctx, "session restored from persisted credential", "user_id", user.ID)
			return nil
		}
		r.log.Debug(ctx, "persisted access token rejected; trying recovery")
	}

	// Step 4: recovery. Hand whatever tokens we have to the provider
	// and let it re-derive a session, then refresh server-side.
	if credErr == nil && (cred.AccessToken != "" || cred.RefreshToken != "") {
		if sess, user, err := r.provider.SetSession(ctx, cred.AccessToken, cred.RefreshToken); err == nil && sess != nil {
			if res, rerr := r.server.RefreshSession(ctx, sess.RefreshToken); rerr == nil && res.Session != nil {
				sess = res.Session
				if res.User != nil {
					user = res.User
				}
			}
			r.adopt(ctx, sess, user, false)
			r.log.Info(ctx, "session recovered from persisted tokens")
			return nil
		}
		r.log.Debug(ctx, "recovery failed; asking provider for its own session")
	}

	// Step 5: the provider may hold a session this client never saw.
	if sess, user, err := r.provider.GetSession(ctx); err == nil && sess != nil && user != nil {
		r.adopt(ctx, sess, user, false)
		r.log.Info(ctx, "adopted provider-held session", "user_id", user.ID)
		return nil
	}

	// Step 6: last rung, a legacy locally-stored token pair.
	if legacy, err := r.store.ReadLegacy(); err == nil && legacy.RefreshToken != "" {
		if res, rerr := r.server.RefreshSession(ctx, legacy.RefreshToken); rerr == nil && res.Session != nil {
			r.adopt(ctx, res.Session, res.User, true)
			r.log.Info(ctx, "session re-established from legacy token")
			return nil
		}
	}

	// Step 7: anonymous. Not an error.
	r.setState(StateAnonymous)
	return nil
}

// adopt installs sess/user as the authoritative pair, persists both
// credential channels, optionally pushes the tokens into the provider's
// own store, and arms the refresh timer.
func (r *Reconciler) adopt(ctx context.Context, sess *api.Session, user *api.User, push bool) {
	r.mu.Lock()
	r.state = StateAuthenticated
	r.session = sess
	r.user = user
	r.mu.Unlock()

	var uid uint64
	if user != nil {
		uid = user.ID
	}
	r.store.Store(credstore.Credential{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		UserID:       uid,
	})

	if push {
		// The provider emits SIGNED_IN for adopted sessions; the event
		// handler recognizes the token it already holds and stops there.
		if _, _, err := r.provider.SetSession(ctx, sess.AccessToken, sess.RefreshToken); err != nil {
			r.log.Warn(ctx, "failed to push session into provider store", "error", err)
		}
	}

	r.scheduleRefresh(NextRefreshDelay(sess.ExpiresAt, r.opts.Now(), r.opts))
}

// subscribeWithRetry attaches the auth-change listener, retrying up to 3
// times with linearly increasing backoff before settling for degraded
// (no live updates) mode.
func (r *Reconciler) subscribeWithRetry(ctx context.Context) {
	backoff := retry.WithMaxRetries(3, linearBackoff(r.opts.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sub, err := r.provider.OnAuthStateChange(r.handleAuthEvent)
		if err != nil {
			return retry.RetryableError(err)
		}
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			sub.Unsubscribe()
			return nil
		}
		r.sub = sub
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		r.log.Warn(ctx, "auth-change feed unavailable; continuing without live updates", "error", err)
	}
}

// linearBackoff waits base, 2×base, 3×base, ... between attempts.
func linearBackoff(base time.Duration) retry.Backoff {
	var attempt int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * base, false
	})
}

// handleAuthEvent reacts to pushes from the provider's auth-change feed.
func (r *Reconciler) handleAuthEvent(ev api.AuthEvent, sess *api.Session) {
	ctx := context.Background()
	switch ev {
	case api.AuthSignedIn, api.AuthTokenRefreshed:
		if sess == nil {
			return
		}
		r.mu.Lock()
		current := r.session
		r.mu.Unlock()
		if current != nil && current.AccessToken == sess.AccessToken {
			// Echo of a session this reconciler just adopted; the
			// persistence side effects already ran.
			return
		}
		user, err := r.server.CurrentUser(ctx, sess.AccessToken)
		if err != nil {
			r.log.Warn(ctx, "auth event carried unusable session", "event", string(ev), "error", err)
			return
		}
		r.adopt(ctx, sess, user, false)
		r.scheduleRefresh(r.opts.RefreshFloor) // server-side cookie sync
		r.log.Info(ctx, "adopted session from auth feed", "event", string(ev), "user_id", user.ID)
	case api.AuthSignedOut:
		r.clearLocal()
		r.scheduleNavigateHome()
	}
}

// Refresh exchanges the current refresh token for a new pair immediately.
// Scheduled ticks call this; it can also be invoked directly.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	sess := r.session
	state := r.state
	r.mu.Unlock()
	if state != StateAuthenticated || sess == nil || sess.RefreshToken == "" {
		return nil
	}

	res, err := r.server.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			// The refresh token is dead; no scheduled retry can save
			// this session.
			r.log.Warn(ctx, "refresh token rejected; signing out locally")
			r.clearLocal()
			return err
		}
		r.log.Warn(ctx, "session refresh failed; will retry on next tick", "error", err)
		r.scheduleRefresh(NextRefreshDelay(sess.ExpiresAt, r.opts.Now(), r.opts))
		return err
	}
	if res.Session == nil {
		r.log.Warn(ctx, "refresh returned no session; will retry on next tick")
		r.scheduleRefresh(NextRefreshDelay(sess.ExpiresAt, r.opts.Now(), r.opts))
		return api.ErrUnknownShape
	}

	user := res.User
	if user == nil {
		r.mu.Lock()
		user = r.user
		r.mu.Unlock()
	}
	r.adopt(ctx, res.Session, user, false)
	return nil
}

// scheduleRefresh (re)arms the refresh timer. Each tick re-arms only
// after the refresh attempt completes, success or failure.
func (r *Reconciler) scheduleRefresh(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.refreshTimer != nil {
		r.refreshTimer.Stop()
	}
	r.refreshTimer = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = r.Refresh(ctx)
	})
}

// SignOut clears every persisted channel, asks the provider to invalidate
// the session globally, resets in-memory state, and navigates home after
// the grace delay. Local state is cleared unconditionally so the user is
// signed out client-side even when the server call fails. Idempotent.
func (r *Reconciler) SignOut(ctx context.Context) {
	r.store.Clear()
	if err := r.provider.SignOut(ctx, "global"); err != nil {
		r.log.Warn(ctx, "provider sign-out failed; local state cleared anyway", "error", err)
	}
	r.clearLocal()
	r.scheduleNavigateHome()
}

// clearLocal wipes persisted channels and in-memory state and stops the
// refresh timer.
func (r *Reconciler) clearLocal() {
	r.store.Clear()
	r.mu.Lock()
	r.state = StateAnonymous
	r.user = nil
	r.session = nil
	r.profile = Resolution{}
	if r.refreshTimer != nil {
		r.refreshTimer.Stop()
		r.refreshTimer = nil
	}
	r.mu.Unlock()
}

func (r *Reconciler) scheduleNavigateHome() {
	if r.navigate == nil {
		return
	}
	r.mu.Lock()
	if r.graceTimer != nil {
		r.graceTimer.Stop()
	}
	r.graceTimer = time.AfterFunc(r.opts.GraceDelay, func() { r.navigate("/") })
	r.mu.Unlock()
}

// ResolveProfile resolves the current user's profile type. A resolve that
// is superseded by a newer call (or by sign-out) discards its result
// instead of overwriting fresher state.
func (r *Reconciler) ResolveProfile(ctx context.Context) Resolution {
	r.mu.Lock()
	user := r.user
	sess := r.session
	r.resolveGen++
	gen := r.resolveGen
	r.mu.Unlock()
	if user == nil || sess == nil || r.resolver == nil {
		return Resolution{}
	}

	res := r.resolver.Resolve(ctx, user, sess.AccessToken)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolveGen != gen || r.state != StateAuthenticated {
		// superseded or signed out mid-flight
		return res
	}
	r.profile = res
	return res
}

// Close releases timers and the feed subscription. The reconciler cannot
// be reused afterwards.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	if r.refreshTimer != nil {
		r.refreshTimer.Stop()
		r.refreshTimer = nil
	}
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

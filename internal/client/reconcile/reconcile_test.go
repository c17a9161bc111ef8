package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contested-app/contested/internal/client/api"
	"github.com/contested-app/contested/internal/client/credstore"
)

type fakeSub struct{ unsubscribed bool }

func (s *fakeSub) Unsubscribe() { s.unsubscribed = true }

type fakeProvider struct {
	mu       sync.Mutex
	initErr  error
	getSess  *api.Session
	getUser  *api.User
	setFn    func(accessToken, refreshToken string) (*api.Session, *api.User, error)
	setCalls int
	signOuts int
	subFails int
	subCalls int
	handler  func(api.AuthEvent, *api.Session)
}

func (f *fakeProvider) Initialize(context.Context) error { return f.initErr }

func (f *fakeProvider) GetSession(context.Context) (*api.Session, *api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getSess, f.getUser, nil
}

func (f *fakeProvider) SetSession(_ context.Context, accessToken, refreshToken string) (*api.Session, *api.User, error) {
	f.mu.Lock()
	fn := f.setFn
	f.setCalls++
	f.mu.Unlock()
	if fn == nil {
		return nil, nil, errors.New("set session not supported")
	}
	return fn(accessToken, refreshToken)
}

func (f *fakeProvider) SignOut(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	return nil
}

func (f *fakeProvider) OnAuthStateChange(fn func(api.AuthEvent, *api.Session)) (api.AuthSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls++
	if f.subCalls <= f.subFails {
		return nil, errors.New("feed unavailable")
	}
	f.handler = fn
	return &fakeSub{}, nil
}

func (f *fakeProvider) subscribeAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subCalls
}

func (f *fakeProvider) feed() func(api.AuthEvent, *api.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

type fakeServer struct {
	mu           sync.Mutex
	currentFn    func(accessToken string) (*api.User, error)
	refreshFn    func(refreshToken string) (api.AuthResult, error)
	currentCalls int
	refreshCalls int
}

func (f *fakeServer) CurrentUser(_ context.Context, accessToken string) (*api.User, error) {
	f.mu.Lock()
	f.currentCalls++
	fn := f.currentFn
	f.mu.Unlock()
	if fn == nil {
		return nil, api.ErrUnauthorized
	}
	return fn(accessToken)
}

func (f *fakeServer) RefreshSession(_ context.Context, refreshToken string) (api.AuthResult, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.refreshFn
	f.mu.Unlock()
	if fn == nil {
		return api.AuthResult{}, api.ErrUnauthorized
	}
	return fn(refreshToken)
}

func (f *fakeServer) userFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls
}

func testOptions() Options {
	return Options{
		RetryBase:  time.Millisecond,
		GraceDelay: time.Millisecond,
	}
}

func TestNextRefreshDelayUsesFloorForImminentExpiry(t *testing.T) {
	now := time.Now()
	// Expiry 4 minutes out with a 5 minute margin would be negative.
	d := NextRefreshDelay(now.Add(4*time.Minute), now, Options{})
	require.GreaterOrEqual(t, d, 10*time.Second)
}

func TestNextRefreshDelayCapsAtFixedInterval(t *testing.T) {
	now := time.Now()
	d := NextRefreshDelay(now.Add(24*time.Hour), now, Options{})
	require.Equal(t, 15*time.Minute, d)
}

func TestNextRefreshDelayNoExpiry(t *testing.T) {
	d := NextRefreshDelay(time.Time{}, time.Now(), Options{})
	require.Equal(t, 15*time.Minute, d)
}

func TestNextRefreshDelaySubtractsMargin(t *testing.T) {
	now := time.Now()
	d := NextRefreshDelay(now.Add(10*time.Minute), now, Options{})
	require.Equal(t, 5*time.Minute, d)
}

func TestBootNoCredentialEndsAnonymous(t *testing.T) {
	store := credstore.New(t.TempDir())
	provider := &fakeProvider{}
	server := &fakeServer{}
	r := New(store, provider, server, nil, nil, nil, testOptions())
	defer r.Close()

	err := r.Boot(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateAnonymous, r.State())
	// No persisted hint means no authenticated fetch of any kind.
	require.Zero(t, server.userFetches())
}

func TestBootProviderDownIsFatal(t *testing.T) {
	store := credstore.New(t.TempDir())
	provider := &fakeProvider{initErr: errors.New("connection refused")}
	r := New(store, provider, &fakeServer{}, nil, nil, nil, testOptions())
	defer r.Close()

	err := r.Boot(context.Background())
	require.ErrorIs(t, err, ErrProviderUnavailable)
	require.Equal(t, StateAnonymous, r.State())
}

func TestBootRestoresValidPersistedCredential(t *testing.T) {
	store := credstore.New(t.TempDir())
	store.Store(credstore.Credential{
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		UserID:       11,
	})

	want := &api.User{ID: 11, Email: "kept@contested.app", Role: "athlete"}
	provider := &fakeProvider{
		setFn: func(at, rt string) (*api.Session, *api.User, error) {
			return &api.Session{AccessToken: at, RefreshToken: rt}, want, nil
		},
	}
	server := &fakeServer{
		currentFn: func(accessToken string) (*api.User, error) {
			require.Equal(t, "stored-access", accessToken)
			return want, nil
		},
	}
	r := New(store, provider, server, nil, nil, nil, testOptions())
	defer r.Close()

	require.NoError(t, r.Boot(context.Background()))
	require.Equal(t, StateAuthenticated, r.State())
	user, sess := r.Current()
	require.Equal(t, want, user)
	require.Equal(t, "stored-access", sess.AccessToken)
	// The restored tokens were pushed into the provider's own store.
	require.Equal(t, 1, provider.setCalls)
}

func TestBootRecoversFromRejectedAccessToken(t *testing.T) {
	store := credstore.New(t.TempDir())
	store.Store(credstore.Credential{
		AccessToken:  "stale-access",
		RefreshToken: "good-refresh",
		UserID:       12,
	})

	recovered := &api.User{ID: 12, Email: "back@contested.app", Role: "business"}
	provider := &fakeProvider{
		setFn: func(at, rt string) (*api.Session, *api.User, error) {
			require.Equal(t, "good-refresh", rt)
			return &api.Session{AccessToken: "provider-access", RefreshToken: rt}, recovered, nil
		},
	}
	server := &fakeServer{
		// CurrentUser keeps failing, so the restore step cannot win.
		refreshFn: func(refreshToken string) (api.AuthResult, error) {
			return api.AuthResult{
				User: recovered,
				Session: &api.Session{
					AccessToken:  "fresh-access",
					RefreshToken: "fresh-refresh",
					ExpiresAt:    time.Now().Add(time.Hour),
				},
			}, nil
		},
	}
	r := New(store, provider, server, nil, nil, nil, testOptions())
	defer r.Close()

	require.NoError(t, r.Boot(context.Background()))
	require.Equal(t, StateAuthenticated, r.State())
	user, sess := r.Current()
	require.Equal(t, recovered, user)
	require.Equal(t, "fresh-access", sess.AccessToken)

	// The recovered pair was persisted back for the next boot.
	cred, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, "fresh-refresh", cred.RefreshToken)
}

func TestBootAdoptsProviderHeldSession(t *testing.T) {
	store := credstore.New(t.TempDir())
	// A marker with no blob: a previous run persisted partially.
	store.Store(credstore.Credential{})

	user := &api.User{ID: 13, Role: "athlete"}
	provider := &fakeProvider{
		getSess: &api.Session{AccessToken: "held-access", RefreshToken: "held-refresh"},
		getUser: user,
	}
	r := New(store, provider, &fakeServer{}, nil, nil, nil, testOptions())
	defer r.Close()

	require.NoError(t, r.Boot(context.Background()))
	require.Equal(t, StateAuthenticated, r.State())
	got, _ := r.Current()
	require.Equal(t, user, got)
}

func TestBootLegacyBlobLastRung(t *testing.T) {
	dir := t.TempDir()
	writeLegacyBlob(t, dir, `{"access_token":"","refresh_token":"legacy-refresh","expires_at":0,"user_id":14}`)
	store := credstore.New(dir)

	user := &api.User{ID: 14, Role: "business"}
	provider := &fakeProvider{}
	server := &fakeServer{
		refreshFn: func(refreshToken string) (api.AuthResult, error) {
			require.Equal(t, "legacy-refresh", refreshToken)
			return api.AuthResult{
				User:    user,
				Session: &api.Session{AccessToken: "migrated-access", RefreshToken: "migrated-refresh"},
			}, nil
		},
	}
	r := New(store, provider, server, nil, nil, nil, testOptions())
	defer r.Close()

	require.NoError(t, r.Boot(context.Background()))
	require.Equal(t, StateAuthenticated, r.State())
	got, sess := r.Current()
	require.Equal(t, user, got)
	require.Equal(t, "migrated-access", sess.AccessToken)
}

func TestSubscriptionRetriesThenSucceeds(t *testing.T) {
	store := credstore.New(t.TempDir())
	provider := &fakeProvider{subFails: 2}
	r := New(store, provider, &fakeServer{}, nil, nil, nil, testOptions())
	defer r.Close()

	require.NoError(t, r.Boot(context.Background()))
	require.Eventually(t, func() bool {
		return provider.feed() != nil
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 3, provider.subscribeAttempts())
}

func TestAuthFeedSignInAdoptsSession(t *testing.T) {
	store := credstore.New(t.TempDir())
	provider := &fakeProvider{}
	user := &api.User{ID: 20, Role: "athlete"}
	server := &fakeServer{
		currentFn: func(string) (*api.User, error) { return user, nil },
	}
	r := New(store, provider, server, nil, nil, nil, testOptions())
	defer r.Close()

	require.NoError(t, r.Boot(context.Background()))
	require.Equal(t, StateAnonymous, r.State())

	require.Eventually(t, func() bool { return provider.feed() != nil }, time.Second, 5*time.Millisecond)
	provider.feed()(api.AuthSignedIn, &api.Session{
		AccessToken:  "pushed-access",
		RefreshToken: "pushed-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	require.Equal(t, StateAuthenticated, r.State())
	got, _ := r.Current()
	require.Equal(t, user, got)
	cred, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, "pushed-access", cred.AccessToken)
}

func TestRefreshAdoptsNewPair(t *testing.T) {
	store := credstore.New(t.TempDir())
	store.Store(credstore.Credential{AccessToken: "a0", RefreshToken: "r0", UserID: 30})

	user := &api.User{ID: 30, Role: "athlete"}
	provider := &fakeProvider{
		setFn: func(at, rt string) (*api.Session, *api.User, error) {
			return &api.Session{AccessToken: at, RefreshToken: rt}, user, nil
		},
	}
	server := &fakeServer{
		currentFn: func(string) (*api.User, error) { return user, nil },
		refreshFn: func(refreshToken string) (api.AuthResult, error) {
			require.Equal(t, "r0", refreshToken)
			return api.AuthResult{
				Session: &api.Session{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)},
			}, nil
		},
	}
	r := New(store, provider, server, nil, nil, nil, testOptions())
	defer r.Close()
	require.NoError(t, r.Boot(context.Background()))

	require.NoError(t, r.Refresh(context.Background()))
	got, sess := r.Current()
	require.Equal(t, user, got, "refresh without a user payload keeps the current user")
	require.Equal(t, "a1", sess.AccessToken)
	cred, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, "r1", cred.RefreshToken)
}

func TestRefreshRejectionSignsOutLocally(t *testing.T) {
	store := credstore.New(t.TempDir())
	store.Store(credstore.Credential{AccessToken: "a0", RefreshToken: "r0", UserID: 31})

	user := &api.User{ID: 31, Role: "business"}
	provider := &fakeProvider{
		setFn: func(at, rt string) (*api.Session, *api.User, error) {
			return &api.Session{AccessToken: at, RefreshToken: rt}, user, nil
		},
	}
	server := &fakeServer{
		currentFn: func(string) (*api.User, error) { return user, nil },
		// refreshFn nil: every refresh is rejected as unauthorized.
	}
	r := New(store, provider, server, nil, nil, nil, testOptions())
	defer r.Close()
	require.NoError(t, r.Boot(context.Background()))
	require.Equal(t, StateAuthenticated, r.State())

	err := r.Refresh(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)
	require.Equal(t, StateAnonymous, r.State())
	_, readErr := store.Read()
	require.ErrorIs(t, readErr, credstore.ErrNoCredential)
}

func TestSignOutIsIdempotent(t *testing.T) {
	store := credstore.New(t.TempDir())
	store.Store(credstore.Credential{AccessToken: "a", RefreshToken: "r", UserID: 40})

	user := &api.User{ID: 40, Role: "athlete"}
	provider := &fakeProvider{
		setFn: func(at, rt string) (*api.Session, *api.User, error) {
			return &api.Session{AccessToken: at, RefreshToken: rt}, user, nil
		},
	}
	server := &fakeServer{currentFn: func(string) (*api.User, error) { return user, nil }}

	var navMu sync.Mutex
	var navigated []string
	navigate := func(path string) {
		navMu.Lock()
		navigated = append(navigated, path)
		navMu.Unlock()
	}

	r := New(store, provider, server, nil, nil, navigate, testOptions())
	defer r.Close()
	require.NoError(t, r.Boot(context.Background()))
	require.Equal(t, StateAuthenticated, r.State())

	r.SignOut(context.Background())
	r.SignOut(context.Background())

	require.Equal(t, StateAnonymous, r.State())
	gotUser, gotSess := r.Current()
	require.Nil(t, gotUser)
	require.Nil(t, gotSess)
	require.False(t, store.Marked())

	require.Eventually(t, func() bool {
		navMu.Lock()
		defer navMu.Unlock()
		return len(navigated) > 0 && navigated[0] == "/"
	}, time.Second, 5*time.Millisecond)
}

func writeLegacyBlob(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contested-user.json"), []byte(body), 0o600))
}

package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// AuthEvent names a change pushed on the auth-state feed.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthSubscription is a handle for removing an auth-state listener.
type AuthSubscription interface {
	Unsubscribe()
}

// Provider holds the identity provider's own view of the current session
// and pushes auth-state changes to listeners. It is the concrete
// SessionProvider the reconciler runs against in production; tests use
// fakes.
//
// Listener callbacks run synchronously on the goroutine that triggered
// the change, in registration order.
type Provider struct {
	client *Client

	mu      sync.Mutex
	session *Session
	user    *User
	subs    map[uint64]func(AuthEvent, *Session)
	nextID  uint64
}

// NewProvider wraps an API client as a session provider.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client, subs: make(map[uint64]func(AuthEvent, *Session))}
}

// Initialize verifies the API is reachable. Called once at boot; the
// reconciler treats failure as fatal and does not retry.
func (p *Provider) Initialize(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// GetSession returns the provider's current session and user, or nils
// when it has none. No network traffic: this is the provider's own store.
func (p *Provider) GetSession(ctx context.Context) (*Session, *User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneSession(p.session), cloneUser(p.user), nil
}

// SetSession adopts a token pair as the current session, validating it
// against the server. A stale access token falls back to a refresh-token
// rotation before giving up. Listeners observe a SIGNED_IN event.
func (p *Provider) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, *User, error) {
	user, err := p.client.CurrentUser(ctx, accessToken)
	if err == nil {
		sess := &Session{AccessToken: accessToken, RefreshToken: refreshToken}
		p.adopt(sess, user)
		p.emit(AuthSignedIn, sess)
		return cloneSession(sess), cloneUser(user), nil
	}
	if !errors.Is(err, ErrUnauthorized) || refreshToken == "" {
		return nil, nil, err
	}

	res, err := p.client.RefreshSession(ctx, refreshToken)
	if err != nil || res.Session == nil {
		if err == nil {
			err = ErrUnknownShape
		}
		return nil, nil, err
	}
	p.adopt(res.Session, res.User)
	p.emit(AuthSignedIn, res.Session)
	return cloneSession(res.Session), cloneUser(res.User), nil
}

// SignOut invalidates the current session. Scope "global" ends every
// session of the user; anything else ends just this one. The in-memory
// session is cleared regardless of what the server says, and listeners
// observe SIGNED_OUT.
func (p *Provider) SignOut(ctx context.Context, scope string) error {
	p.mu.Lock()
	sess := p.session
	p.session = nil
	p.user = nil
	p.mu.Unlock()

	var err error
	if sess != nil {
		if scope == "global" {
			err = p.client.Logout(ctx, sess.AccessToken, "")
		} else {
			err = p.client.Logout(ctx, "", sess.RefreshToken)
		}
	}
	p.emit(AuthSignedOut, nil)
	return err
}

// OnAuthStateChange registers a listener for session changes.
func (p *Provider) OnAuthStateChange(fn func(AuthEvent, *Session)) (AuthSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.subs[id] = fn
	return &authSub{p: p, id: id}, nil
}

func (p *Provider) adopt(sess *Session, user *User) {
	p.mu.Lock()
	p.session = sess
	p.user = user
	p.mu.Unlock()
}

func (p *Provider) emit(ev AuthEvent, sess *Session) {
	p.mu.Lock()
	fns := make([]func(AuthEvent, *Session), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev, cloneSession(sess))
	}
}

type authSub struct {
	p  *Provider
	id uint64
}

func (s *authSub) Unsubscribe() {
	s.p.mu.Lock()
	delete(s.p.subs, s.id)
	s.p.mu.Unlock()
}

func cloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Ping checks API liveness via the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", "", nil)
	return err
}

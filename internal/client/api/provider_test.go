package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProviderGetSessionEmpty(t *testing.T) {
	p := NewProvider(NewClient("http://localhost:0", nil))
	sess, user, err := p.GetSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Nil(t, user)
}

func TestProviderSignOutWithoutSession(t *testing.T) {
	p := NewProvider(NewClient("http://localhost:0", nil))

	var events []AuthEvent
	sub, err := p.OnAuthStateChange(func(ev AuthEvent, _ *Session) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// No session, no network call; listeners still observe the sign-out.
	require.NoError(t, p.SignOut(context.Background(), "global"))
	require.Equal(t, []AuthEvent{AuthSignedOut}, events)
}

func TestProviderUnsubscribeStopsDelivery(t *testing.T) {
	p := NewProvider(NewClient("http://localhost:0", nil))

	calls := 0
	sub, err := p.OnAuthStateChange(func(AuthEvent, *Session) { calls++ })
	require.NoError(t, err)

	p.emit(AuthSignedIn, &Session{AccessToken: "a"})
	require.Equal(t, 1, calls)

	sub.Unsubscribe()
	p.emit(AuthSignedOut, nil)
	require.Equal(t, 1, calls)
}

func TestCloneSessionIsolation(t *testing.T) {
	orig := &Session{AccessToken: "a", RefreshToken: "r"}
	p := NewProvider(NewClient("http://localhost:0", nil))

	var got *Session
	sub, err := p.OnAuthStateChange(func(_ AuthEvent, s *Session) { got = s })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p.emit(AuthTokenRefreshed, orig)
	require.NotNil(t, got)
	require.NotSame(t, orig, got, "listeners get a copy, not the shared pointer")
	require.Equal(t, orig.AccessToken, got.AccessToken)
}

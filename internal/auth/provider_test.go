package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskboard/internal/service"
)

func TestProvider_WaitReady_FirstNonNil(t *testing.T) {
	p := NewProvider()

	done := make(chan *service.User, 1)
	go func() {
		u, err := p.WaitReady(context.Background())
		if err != nil {
			u = nil
		}
		done <- u
	}()

	p.SignOut()
	p.SignIn(service.User{UID: "u1", Email: "a@example.com"})

	select {
	case u := <-done:
		require.NotNil(t, u)
		require.Equal(t, "u1", u.UID)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitReady did not return")
	}
}

func TestProvider_WaitReady_AlreadySignedIn(t *testing.T) {
	p := NewProvider()
	p.SignIn(service.User{UID: "u1"})

	u, err := p.WaitReady(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", u.UID)
}

func TestProvider_WaitReady_ContextCancelled(t *testing.T) {
	p := NewProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.WaitReady(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_SubscribeSeesLatest(t *testing.T) {
	p := NewProvider()
	ch, cancel := p.Subscribe()
	defer cancel()

	require.Nil(t, <-ch)

	p.SignIn(service.User{UID: "a"})
	p.SignIn(service.User{UID: "b"})
	u := <-ch
	require.Equal(t, "b", u.UID)

	p.SignOut()
	require.Nil(t, <-ch)
	require.Nil(t, p.CurrentUser())
}

func TestProvider_CurrentUserIsCopy(t *testing.T) {
	p := NewProvider()
	p.SignIn(service.User{UID: "a"})
	u := p.CurrentUser()
	u.UID = "mutated"
	require.Equal(t, "a", p.CurrentUser().UID)
}

// Package auth tracks the signed-in user and resolves it from Google OAuth credentials.
package auth

import (
	"context"
	"sync"

	"taskboard/internal/service"
)

// Provider holds the current user and broadcasts authentication-state changes.
// A nil user means signed out.
type Provider struct {
	mu      sync.Mutex
	current *service.User
	subs    map[int]chan *service.User
	nextID  int
}

// NewProvider creates a signed-out provider.
func NewProvider() *Provider {
	return &Provider{subs: make(map[int]chan *service.User)}
}

// CurrentUser returns the signed-in user or nil.
func (p *Provider) CurrentUser() *service.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	u := *p.current
	return &u
}

// SignIn sets the current user and notifies subscribers.
func (p *Provider) SignIn(u service.User) {
	p.publish(&u)
}

// SignOut clears the current user and notifies subscribers.
func (p *Provider) SignOut() {
	p.publish(nil)
}

func (p *Provider) publish(u *service.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = u
	for _, ch := range p.subs {
		offerLatest(ch, u)
	}
}

// Subscribe returns a channel receiving the current state immediately and every change after.
// Slow readers only see the latest state. Call cancel to unsubscribe.
func (p *Provider) Subscribe() (<-chan *service.User, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan *service.User, 1)
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	ch <- p.current

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
	return ch, cancel
}

// WaitReady blocks until the first non-nil user is observed.
func (p *Provider) WaitReady(ctx context.Context) (*service.User, error) {
	ch, cancel := p.Subscribe()
	defer cancel()
	for {
		select {
		case u := <-ch:
			if u != nil {
				cp := *u
				return &cp, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// offerLatest replaces any unread value in a 1-slot channel with v.
func offerLatest(ch chan *service.User, v *service.User) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

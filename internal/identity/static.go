package identity

import (
	"context"
	"sync"
)

var _ Provider = (*StaticProvider)(nil)

// StaticProvider serves users from memory. It backs the CLI (users come from
// config) and the tests.
type StaticProvider struct {
	mu       sync.RWMutex
	users    map[string]User
	onChange []func(userID string)
}

func NewStaticProvider(users ...User) *StaticProvider {
	p := &StaticProvider{users: make(map[string]User, len(users))}
	for _, u := range users {
		p.users[u.ID] = u
	}
	return p
}

func (p *StaticProvider) Capabilities(ctx context.Context, userID string) (Capabilities, error) {
	p.mu.RLock()
	user, ok := p.users[userID]
	p.mu.RUnlock()
	if !ok {
		return Capabilities{}, ErrUserNotFound
	}

	return Resolve(user.ID, user.Roles, user.Active), nil
}

// OnChange registers fn to run after Put or Deactivate changes a user.
// Caches in front of the provider use it to drop stale entries.
func (p *StaticProvider) OnChange(fn func(userID string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Put adds or replaces a user.
func (p *StaticProvider) Put(user User) {
	p.mu.Lock()
	p.users[user.ID] = user
	p.mu.Unlock()

	p.changed(user.ID)
}

// Deactivate marks a user inactive. Unknown users are ignored.
func (p *StaticProvider) Deactivate(userID string) {
	p.mu.Lock()
	u, ok := p.users[userID]
	if ok {
		u.Active = false
		p.users[userID] = u
	}
	p.mu.Unlock()

	if ok {
		p.changed(userID)
	}
}

func (p *StaticProvider) changed(userID string) {
	p.mu.RLock()
	listeners := append(([]func(string))(nil), p.onChange...)
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn(userID)
	}
}

func (p *StaticProvider) Users() []User {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]User, 0, len(p.users))
	for _, u := range p.users {
		users = append(users, u)
	}
	return users
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/google/uuid"
)

// ErrDuplicateEmail is returned by Add when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*authcore.Principal
	byEmail map[string]string
}

var _ authcore.PrincipalStore = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:    make(map[string]*authcore.Principal),
		byEmail: make(map[string]string),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Add inserts p. An empty ID is replaced with a random UUID. The stored copy
// is returned.
func (s *Store) Add(p authcore.Principal) (authcore.Principal, error) {
	p.Email = normalizeEmail(p.Email)
	if p.Email == "" {
		return authcore.Principal{}, errors.New("email is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[p.Email]; ok {
		return authcore.Principal{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, p.Email)
	}
	if _, ok := s.byID[p.ID]; ok {
		return authcore.Principal{}, fmt.Errorf("principal id %q already exists", p.ID)
	}

	stored := clone(&p)
	s.byID[p.ID] = stored
	s.byEmail[p.Email] = p.ID
	return *clone(stored), nil
}

// SetEnabled flips the enabled flag.
func (s *Store) SetEnabled(id string, enabled bool) error {
	return s.update(id, func(p *authcore.Principal) { p.Enabled = enabled })
}

// SetRoles replaces the principal's roles.
func (s *Store) SetRoles(id string, roles []authcore.Role) error {
	return s.update(id, func(p *authcore.Principal) { p.Roles = cloneRoles(roles) })
}

// Delete removes a principal. Refresh tokens issued to it are rejected on
// their next use.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byEmail, p.Email)
	delete(s.byID, id)
	return true
}

func (s *Store) FindByEmail(_ context.Context, email string) (*authcore.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, authcore.ErrPrincipalNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*authcore.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrPrincipalNotFound
	}
	return clone(p), nil
}

func (s *Store) ClearLockout(_ context.Context, id string) error {
	return s.update(id, func(p *authcore.Principal) {
		p.FailedLoginAttempts = 0
		p.LockedUntil = nil
	})
}

// RecordLoginFailure applies policy under the store lock.
func (s *Store) RecordLoginFailure(_ context.Context, id string, now time.Time, policy authcore.LockoutPolicy) (authcore.LockoutOutcome, error) {
	var out authcore.LockoutOutcome
	err := s.update(id, func(p *authcore.Principal) {
		var next authcore.LockoutSnapshot
		next, out = policy.Fail(p.LockoutSnapshot(), now)
		p.FailedLoginAttempts = next.FailedAttempts
		p.LockedUntil = next.LockedUntil
		at := now
		p.LastFailedLoginAt = &at
	})
	return out, err
}

func (s *Store) RecordLoginSuccess(_ context.Context, id string, now time.Time) error {
	return s.update(id, func(p *authcore.Principal) {
		p.FailedLoginAttempts = 0
		p.LockedUntil = nil
		at := now
		p.LastLoginAt = &at
	})
}

func (s *Store) update(id string, fn func(*authcore.Principal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}
	fn(p)
	return nil
}

func clone(p *authcore.Principal) *authcore.Principal {
	out := *p
	out.Roles = cloneRoles(p.Roles)
	out.LockedUntil = cloneTime(p.LockedUntil)
	out.LastFailedLoginAt = cloneTime(p.LastFailedLoginAt)
	out.LastLoginAt = cloneTime(p.LastLoginAt)
	return &out
}

func cloneRoles(roles []authcore.Role) []authcore.Role {
	if roles == nil {
		return nil
	}
	out := make([]authcore.Role, len(roles))
	for i, r := range roles {
		out[i] = r
		out[i].Permissions = append([]authcore.Permission(nil), r.Permissions...)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

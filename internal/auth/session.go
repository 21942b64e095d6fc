package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// ErrSignedOut is returned by Token when the session holds no identity.
var ErrSignedOut = errors.New("not signed in")

// refreshMargin is how close to expiry an ID token gets refreshed.
const refreshMargin = time.Minute

// Store persists sessions. repository.UserRepository implements it.
type Store interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	FindByAuthUID(ctx context.Context, uid string) (*model.User, error)
	SaveSession(ctx context.Context, telegramID int64, uid, email, idToken, refreshToken string, expiresAt time.Time) error
	ClearSession(ctx context.Context, telegramID int64) error
}

// Session is the authentication state of one chat. Subscribers are told about
// every sign-in and sign-out.
type Session struct {
	key      int64
	provider IdentityProvider
	store    Store
	now      func() time.Time

	mu      sync.Mutex
	current *Identity
	nextSub int
	subs    map[int]func(*Identity)
}

func newSession(key int64, provider IdentityProvider, store Store, now func() time.Time) *Session {
	return &Session{
		key:      key,
		provider: provider,
		store:    store,
		now:      now,
		subs:     make(map[int]func(*Identity)),
	}
}

// Current returns a copy of the signed-in identity, or nil.
func (s *Session) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Subscribe registers fn for identity changes and returns its unsubscribe func.
func (s *Session) Subscribe(fn func(*Identity)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	id, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.set(ctx, id)
}

func (s *Session) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	id, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.set(ctx, id)
}

func (s *Session) SignInWithIdP(ctx context.Context, providerID, idToken string) (*Identity, error) {
	id, err := s.provider.SignInWithIdP(ctx, providerID, idToken)
	if err != nil {
		return nil, err
	}
	return s.set(ctx, id)
}

// SignOut drops the identity locally and in the store.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	wasSignedIn := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if err := s.store.ClearSession(ctx, s.key); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if wasSignedIn {
		s.notify(nil)
	}
	return nil
}

// Token returns a valid ID token, refreshing it when it is about to expire.
func (s *Session) Token(ctx context.Context) (string, error) {
	cur := s.Current()
	if cur == nil {
		return "", ErrSignedOut
	}
	if cur.ExpiresAt.IsZero() || s.now().Add(refreshMargin).Before(cur.ExpiresAt) {
		return cur.IDToken, nil
	}

	fresh, err := s.provider.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if fresh.UID == "" {
		fresh.UID = cur.UID
	}
	if fresh.Email == "" {
		fresh.Email = cur.Email
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cur.RefreshToken
	}

	s.mu.Lock()
	s.current = fresh
	s.mu.Unlock()

	if err := s.persist(ctx, fresh); err != nil {
		return "", err
	}
	return fresh.IDToken, nil
}

func (s *Session) set(ctx context.Context, id *Identity) (*Identity, error) {
	if id == nil || id.UID == "" {
		return nil, fmt.Errorf("identity provider returned no user id")
	}
	if err := s.persist(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()

	cp := *id
	s.notify(&cp)
	return &cp, nil
}

func (s *Session) persist(ctx context.Context, id *Identity) error {
	if err := s.store.SaveSession(ctx, s.key, id.UID, id.Email, id.IDToken, id.RefreshToken, id.ExpiresAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Session) notify(id *Identity) {
	s.mu.Lock()
	subs := make([]func(*Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(id)
	}
}

// restore loads a persisted identity without notifying subscribers.
func (s *Session) restore(u *model.User) {
	if u == nil || !u.SignedIn() {
		return
	}
	id := &Identity{
		UID:          u.AuthUID,
		Email:        u.Email,
		IDToken:      u.IDToken,
		RefreshToken: u.RefreshToken,
	}
	if u.TokenExpiresAt != nil {
		id.ExpiresAt = *u.TokenExpiresAt
	}
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}

// Sessions hands out one Session per Telegram user, restoring persisted state on first use.
type Sessions struct {
	provider IdentityProvider
	store    Store
	now      func() time.Time

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewSessions(provider IdentityProvider, store Store) *Sessions {
	return &Sessions{
		provider: provider,
		store:    store,
		now:      time.Now,
		sessions: make(map[int64]*Session),
	}
}

// Get returns the session for key.
func (r *Sessions) Get(ctx context.Context, key int64) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[key]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	user, err := r.store.FindByTelegramID(ctx, key)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("load session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s, nil
	}
	s := newSession(key, r.provider, r.store, r.now)
	s.restore(user)
	r.sessions[key] = s
	return s, nil
}

// TokenFor returns a fresh ID token for the chat signed in as uid.
func (r *Sessions) TokenFor(ctx context.Context, uid string) (string, error) {
	user, err := r.store.FindByAuthUID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", ErrSignedOut
	}
	if err != nil {
		return "", err
	}
	s, err := r.Get(ctx, user.TelegramID)
	if err != nil {
		return "", err
	}
	return s.Token(ctx)
}

// UIDTokenSource authenticates background writes made on behalf of uid.
type UIDTokenSource struct {
	Sessions *Sessions
	UID      string
}

func (t UIDTokenSource) Token(ctx context.Context) (string, error) {
	return t.Sessions.TokenFor(ctx, t.UID)
}

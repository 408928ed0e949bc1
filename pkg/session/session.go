// Package session keeps the authentication tokens of the signed-in user and
// refreshes them on demand.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/area/pkg/models"
)

var (
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrNoRefresher    = errors.New("session has no refresher")
)

// Tokens is an access/refresh token pair.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// State is what a Store persists.
type State struct {
	Tokens Tokens       `json:"tokens"`
	User   *models.User `json:"user,omitempty"`
}

// Store persists the session state between runs.
type Store interface {
	Load() (*State, error)
	Save(state *State) error
	Delete() error
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (*Tokens, error)
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	state     State
	store     Store
	refresher Refresher
	logger    *slog.Logger
}

// New loads the stored state. A missing state yields a signed-out session.
func New(store Store, logger *slog.Logger) (*Session, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s := &Session{store: store, logger: logger.With("module", "session")}
	if state != nil {
		s.state = *state
	}

	return s, nil
}

func (s *Session) SetRefresher(refresher Refresher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresher = refresher
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.Tokens.Access
}

func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.User
}

func (s *Session) SignedIn() bool {
	return s.AccessToken() != ""
}

// SignIn stores the tokens returned by a successful login.
func (s *Session) SignIn(tokens Tokens, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{Tokens: tokens, User: user}

	return s.store.Save(&s.state)
}

// Refresh replaces the access token using the refresh token.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.state.Tokens.Refresh
	refresher := s.refresher
	s.mu.RUnlock()

	if refresher == nil {
		return ErrNoRefresher
	}

	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	tokens, err := refresher.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh tokens: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Tokens.Access = tokens.Access
	if tokens.Refresh != "" {
		s.state.Tokens.Refresh = tokens.Refresh
	}

	s.logger.DebugContext(ctx, "Access token refreshed")

	return s.store.Save(&s.state)
}

// Clear signs the user out.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}

	return s.store.Delete()
}

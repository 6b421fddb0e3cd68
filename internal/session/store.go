// Package session implements the service's identity layer: an OpenID
// Connect relying party (authorization code flow) plus an in-memory
// session store keyed by an opaque cookie.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Claims is the normalized view of the identity token. A failed claim
// extraction yields the zero value rather than an error; the session
// stays usable for API calls either way.
type Claims struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"preferred_username"`
}

// Session is one signed-in browser. The token is swapped in place on
// silent refresh while other requests for the same cookie read it, so
// all access goes through Token and setToken.
type Session struct {
	ID        string
	IDToken   string
	Claims    Claims
	ExpiresAt time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

// Token returns the session's current OAuth2 token, nil when the
// session never completed an exchange.
func (s *Session) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) setToken(t *oauth2.Token) {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()
}

// Store keeps sessions in memory. Sessions disappear on restart, which
// just sends the browser back through the login redirect.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put registers a session under a fresh opaque id and returns the id.
func (s *Store) Put(sess *Session, ttl time.Duration) string {
	id := uuid.NewString()
	sess.ID = id
	sess.ExpiresAt = time.Now().Add(ttl)
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return id
}

// Get returns the session for id, or nil when unknown or expired.
// Expired entries are dropped on access.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	sess := s.sessions[id]
	s.mu.RUnlock()
	if sess == nil {
		return nil
	}
	if time.Now().After(sess.ExpiresAt) {
		s.Delete(id)
		return nil
	}
	return sess
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live entries, counting expired ones not
// yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ABOUTME: In-memory MCP session table keyed by Mcp-Session-Id
// ABOUTME: Sessions remember who opened them and expire after an idle period

package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionIdleTimeout is how long an unused session survives.
const DefaultSessionIdleTimeout = time.Hour

// session tracks an active MCP client.
type session struct {
	id              string
	protocolVersion string
	subject         string // authenticated identity, empty when anonymous
	ownerToken      string // raw credential that must accompany DELETE
	createdAt       time.Time
	lastSeen        time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	idle     time.Duration // zero disables expiry
	now      func() time.Time
}

func newSessionStore(idle time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		idle:     idle,
		now:      time.Now,
	}
}

func (s *sessionStore) create(protocolVersion, subject, ownerToken string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	sess := &session{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		subject:         subject,
		ownerToken:      ownerToken,
		createdAt:       now,
		lastSeen:        now,
	}
	s.sessions[sess.id] = sess
	return sess
}

// touch returns the session and marks it used. Expired sessions are dropped
// and reported as missing so the client re-initializes.
func (s *sessionStore) touch(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok && s.expired(sess, s.now()) {
		return nil, false
	}
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	return existed
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return len(s.sessions)
}

func (s *sessionStore) expired(sess *session, now time.Time) bool {
	return s.idle > 0 && now.Sub(sess.lastSeen) > s.idle
}

func (s *sessionStore) pruneLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}

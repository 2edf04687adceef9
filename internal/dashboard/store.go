package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stockpulse/stockpulse/internal/stocks"
)

// DefaultSessionTTL bounds how long an idle visit keeps its data.
const DefaultSessionTTL = 30 * time.Minute

// Store keeps one Session per dashboard visit. Sessions hold an in-flight
// fetch, so they live in process memory rather than in Redis.
type Store struct {
	base     context.Context
	fetcher  Fetcher
	policy   stocks.ZeroBasePolicy
	logger   *slog.Logger
	observer FetchObserver
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*storedSession
}

type storedSession struct {
	session  *Session
	lastSeen time.Time
}

// NewStore builds a session store. Fetches started by Open run under ctx, so
// cancelling it aborts them. A non-positive ttl uses DefaultSessionTTL.
func NewStore(ctx context.Context, fetcher Fetcher, policy stocks.ZeroBasePolicy, logger *slog.Logger, observer FetchObserver, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		base:     ctx,
		fetcher:  fetcher,
		policy:   policy,
		logger:   logger,
		observer: observer,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*storedSession),
	}
}

// Open registers a new session and launches its fetch. The session with ID
// replaces, if any, is dropped.
func (s *Store) Open(replaces string) *Session {
	session := NewSession(s.fetcher, s.policy, s.logger, s.observer)
	now := s.now()

	s.mu.Lock()
	s.sweepLocked(now)
	if replaces != "" {
		delete(s.sessions, replaces)
	}
	s.sessions[session.ID()] = &storedSession{session: session, lastSeen: now}
	s.mu.Unlock()

	session.Start(s.base)
	return session
}

// Get returns the live session with the given ID and marks it as seen.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return nil, false
	}
	entry.lastSeen = now
	return entry.session, true
}

func (s *Store) sweepLocked(now time.Time) {
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

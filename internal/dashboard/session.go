package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stockpulse/stockpulse/internal/stocks"
)

// FetchObserver records the outcome of the session fetch.
type FetchObserver interface {
	ObserveFetch(err error)
}

// Session owns the single data endpoint fetch of one dashboard visit and the
// resulting state.
type Session struct {
	id       uuid.UUID
	fetcher  Fetcher
	policy   stocks.ZeroBasePolicy
	logger   *slog.Logger
	observer FetchObserver

	once sync.Once
	done chan struct{}

	mu    sync.RWMutex
	state State
}

// NewSession prepares a session in the Loading state. logger and observer may
// be nil.
func NewSession(fetcher Fetcher, policy stocks.ZeroBasePolicy, logger *slog.Logger, observer FetchObserver) *Session {
	return &Session{
		id:       uuid.New(),
		fetcher:  fetcher,
		policy:   policy,
		logger:   logger,
		observer: observer,
		done:     make(chan struct{}),
		state:    Loading{},
	}
}

// ID identifies the session in the visit cookie and in snapshot cache keys.
func (s *Session) ID() string {
	return s.id.String()
}

// Start launches the fetch in the background. Later calls are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.once.Do(func() {
		go s.run(ctx)
	})
}

// Load runs the fetch if it has not started yet and waits for it to finish
// or for ctx to end.
func (s *Session) Load(ctx context.Context) (State, error) {
	s.once.Do(func() {
		s.run(ctx)
	})
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	start := time.Now()
	records, err := s.fetcher.FetchRecords(ctx)
	if s.observer != nil {
		s.observer.ObserveFetch(err)
	}
	if err != nil {
		s.fail("fetch stock data", err)
		return
	}

	processed, err := stocks.DayOnDay(records, s.policy)
	if err != nil {
		s.fail("process stock data", err)
		return
	}

	s.set(Loaded{Records: processed})
	if s.logger != nil {
		s.logger.Info("stock data loaded",
			slog.String("session", s.ID()),
			slog.Int("records", len(processed)),
			slog.Duration("elapsed", time.Since(start)))
	}
}

func (s *Session) fail(context string, err error) {
	if s.logger != nil {
		s.logger.Error(context, slog.String("session", s.ID()), slog.Any("error", err))
	}
	s.set(Failed{Message: failureMessage(err)})
}

func (s *Session) set(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func failureMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	if errors.Is(err, stocks.ErrInvalidDate) {
		return "Received a record with an invalid date"
	}
	return err.Error()
}

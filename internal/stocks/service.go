package stocks

import (
	"context"
	"fmt"
	"time"
)

// QueryObserver records the outcome of each stock query.
type QueryObserver interface {
	ObserveQuery(err error, elapsed time.Duration)
}

// Service runs the fixed stock query under an optional timeout.
type Service struct {
	repo     Repository
	timeout  time.Duration
	observer QueryObserver
}

// NewService wires a Repository. A zero timeout leaves the caller's context
// untouched; observer may be nil.
func NewService(repo Repository, timeout time.Duration, observer QueryObserver) *Service {
	return &Service{repo: repo, timeout: timeout, observer: observer}
}

// ListRecords returns every stored record. Any failure is reported as
// ErrQueryFailed wrapping the cause.
func (s *Service) ListRecords(ctx context.Context) ([]StockRecord, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := s.repo.ListAll(ctx)
	if s.observer != nil {
		s.observer.ObserveQuery(err, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if records == nil {
		records = []StockRecord{}
	}
	return records, nil
}

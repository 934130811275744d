// Package recovery implements the cross-cutting recovery coordinator
// (C11): priority-ordered strategies, each behind its own circuit
// breaker, retried with capped exponential backoff, with an optional
// fallback list tried when every primary strategy fails. Grounded on
// the teacher's resilience posture for downstream calls — the same
// shape expressed here through github.com/sony/gobreaker (breaker state
// machine) and github.com/cenkalti/backoff/v4 (retry shaping) rather
// than hand-rolled timers, since those are exactly the libraries the
// pack reaches for around flaky operations.
package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/logging"
)

// Config shapes retry and circuit-breaker behavior; field names mirror
// the recognized kernel options (recovery.maxRetries, etc).
type Config struct {
	MaxRetries                int
	RetryDelay                time.Duration
	ExponentialBackoff        bool
	MaxBackoffDelay           time.Duration
	CircuitBreakerThreshold   uint32
	CircuitBreakerTimeout     time.Duration
	EnableFallbacks           bool
	EnableGracefulDegradation bool
}

func (c Config) applyDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.MaxBackoffDelay == 0 {
		c.MaxBackoffDelay = 10 * time.Second
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerTimeout == 0 {
		c.CircuitBreakerTimeout = 30 * time.Second
	}
	return c
}

// Strategy is one named, priority-ordered recovery attempt.
type Strategy struct {
	Name     string
	Priority int
	// EstimatedTime bounds a single execution attempt at 2x this value;
	// zero defaults to 60s per spec.md §4.11.
	EstimatedTime time.Duration
	Execute       func(ctx context.Context, cause error) error
}

// Attempt records one strategy execution's provenance.
type Attempt struct {
	Strategy string
	Success  bool
	Duration time.Duration
	Err      error
	At       time.Time
}

// Stats aggregates recovery outcomes across every Recover call.
type Stats struct {
	mu         sync.Mutex
	attempts   []Attempt
	successes  int
	totalCalls int
}

// Record appends a over the running aggregate.
func (s *Stats) record(a Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	s.totalCalls++
	if a.Success {
		s.successes++
	}
}

// SuccessRate returns the fraction of recorded attempts that succeeded,
// or 0 if none have been recorded.
func (s *Stats) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalCalls == 0 {
		return 0
	}
	return float64(s.successes) / float64(s.totalCalls)
}

// AverageDuration returns the mean duration across recorded attempts.
func (s *Stats) AverageDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.attempts) == 0 {
		return 0
	}
	var total time.Duration
	for _, a := range s.attempts {
		total += a.Duration
	}
	return total / time.Duration(len(s.attempts))
}

// Attempts returns a snapshot of every recorded attempt, oldest first.
func (s *Stats) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attempt{}, s.attempts...)
}

// Manager coordinates recovery attempts across strategies, each guarded
// by its own circuit breaker.
type Manager struct {
	cfg       Config
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
	strategies []Strategy
	fallbacks []Strategy
	stats     Stats
	logger    logging.Logger
}

// NewManager creates a Manager. strategies are tried in descending
// Priority order; fallbacks (only consulted when EnableFallbacks is set
// and every strategy failed) are tried in the order given.
func NewManager(cfg Config, strategies, fallbacks []Strategy, logger logging.Logger) *Manager {
	cfg = cfg.applyDefaults()
	if logger == nil {
		logger = logging.Global()
	}
	sorted := append([]Strategy{}, strategies...)
	sortByPriorityDesc(sorted)

	m := &Manager{
		cfg:        cfg,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		strategies: sorted,
		fallbacks:  fallbacks,
		logger:     logger.Named("recovery"),
	}
	for _, s := range sorted {
		m.breakerFor(s.Name)
	}
	for _, s := range fallbacks {
		m.breakerFor(s.Name)
	}
	return m
}

func sortByPriorityDesc(strategies []Strategy) {
	for i := 1; i < len(strategies); i++ {
		for j := i; j > 0 && strategies[j].Priority > strategies[j-1].Priority; j-- {
			strategies[j], strategies[j-1] = strategies[j-1], strategies[j]
		}
	}
}

func (m *Manager) breakerFor(name string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one probe attempt in half-open, per spec.md §4.11
		Timeout:     m.cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.cfg.CircuitBreakerThreshold
		},
	})
	m.breakers[name] = cb
	return cb
}

// Stats returns the manager's running aggregate statistics.
func (m *Manager) Stats() *Stats { return &m.stats }

// Recover attempts every configured strategy, in priority order, for
// cause. A strategy blocked by an open breaker is skipped (recorded as a
// CircuitOpen attempt) without consuming a retry. If every strategy
// fails and fallbacks are enabled, the fallback list is tried in order.
// If nothing succeeds, Recover returns RecoveryExhausted wrapping cause.
func (m *Manager) Recover(ctx context.Context, cause error) error {
	tried := []string{}

	if err := m.tryAll(ctx, m.strategies, cause, &tried); err == nil {
		return nil
	}

	if m.cfg.EnableFallbacks {
		if err := m.tryAll(ctx, m.fallbacks, cause, &tried); err == nil {
			return nil
		}
	}

	return kernelerr.RecoveryExhausted(cause, tried)
}

func (m *Manager) tryAll(ctx context.Context, strategies []Strategy, cause error, tried *[]string) error {
	for _, s := range strategies {
		*tried = append(*tried, s.Name)
		if err := m.attempt(ctx, s, cause); err == nil {
			return nil
		}
	}
	if len(strategies) == 0 {
		return kernelerr.RecoveryExhausted(cause, nil)
	}
	return kernelerr.RecoveryExhausted(cause, *tried)
}

func (m *Manager) attempt(ctx context.Context, s Strategy, cause error) error {
	cb := m.breakerFor(s.Name)

	estimated := s.EstimatedTime
	if estimated <= 0 {
		estimated = 60 * time.Second
	}
	bound := 2 * estimated

	start := time.Now()
	_, err := cb.Execute(func() (any, error) {
		return nil, m.retryWithBackoff(ctx, bound, s, cause)
	})
	duration := time.Since(start)

	success := err == nil
	m.stats.record(Attempt{Strategy: s.Name, Success: success, Duration: duration, Err: err, At: start})

	if err != nil && cb.State() == gobreaker.StateOpen {
		return kernelerr.CircuitOpen(s.Name, time.Now().Add(m.cfg.CircuitBreakerTimeout).UnixNano())
	}
	return err
}

func (m *Manager) retryWithBackoff(ctx context.Context, bound time.Duration, s Strategy, cause error) error {
	boundedCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.RetryDelay
	bo.MaxInterval = m.cfg.MaxBackoffDelay
	if !m.cfg.ExponentialBackoff {
		bo.Multiplier = 1
	}
	bounded := backoff.WithMaxRetries(bo, uint64(m.cfg.MaxRetries))

	op := func() error {
		select {
		case <-boundedCtx.Done():
			return backoff.Permanent(kernelerr.StrategyTimeout(s.Name))
		default:
		}
		return s.Execute(boundedCtx, cause)
	}
	return backoff.Retry(op, backoff.WithContext(bounded, boundedCtx))
}

package provider

import (
	"context"
	"sync"
	"time"

	"github.com/ethiscan/orchestrator/internal/types"
)

// BreakerState is the lifecycle state of a provider's circuit breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // healthy, calls flow
	BreakerOpen                         // failing, calls rejected
	BreakerHalfOpen                     // probing, one call allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker trips after consecutive upstream failures and probes for recovery
// after a cooldown. Failures the caller is responsible for (invalid request,
// bad credentials) never trip it.
type Breaker struct {
	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:     BreakerClosed,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState transitions open to half-open once the cooldown elapses.
// Caller holds mu.
func (b *Breaker) currentState() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState() != BreakerOpen
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// guarded wraps an Adapter with a Breaker.
type guarded struct {
	Adapter
	breaker *Breaker
}

// Guard returns an adapter that rejects calls while the breaker is open
// and feeds call outcomes back into it.
func Guard(a Adapter, b *Breaker) Adapter {
	return &guarded{Adapter: a, breaker: b}
}

func (g *guarded) Call(ctx context.Context, req *types.AnalysisRequest) (*Result, error) {
	if !g.breaker.Allow() {
		return nil, &Error{Code: types.ErrProvider, Message: g.Name() + " circuit open"}
	}
	res, err := g.Adapter.Call(ctx, req)
	if err != nil {
		if tripsBreaker(AsError(err).Code) {
			g.breaker.RecordFailure()
		}
		return nil, err
	}
	g.breaker.RecordSuccess()
	return res, nil
}

func tripsBreaker(code types.ErrorCode) bool {
	switch code {
	case types.ErrProvider, types.ErrTimeout, types.ErrNetwork, types.ErrRateLimit:
		return true
	default:
		return false
	}
}

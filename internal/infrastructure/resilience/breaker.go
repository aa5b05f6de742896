// Package resilience provides a circuit breaker for calls to remote
// collaborators. A manifest server that is down should fail resolution
// fast instead of spending a full retry budget per realm.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker rejects calls without trying.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config tunes the breaker.
type Config struct {
	// FailureThreshold is the consecutive failure count that trips the
	// breaker open.
	FailureThreshold uint32
	// Probes is how many trial calls the half-open state admits; that
	// many consecutive successes close the breaker again.
	Probes uint32
	// Cooldown is how long the open state lasts before probing.
	Cooldown time.Duration
	// OnStateChange is invoked on every transition.
	OnStateChange func(from, to State)
}

// Breaker guards a call site. The zero value is not usable; use New.
type Breaker struct {
	cfg Config

	mu           sync.Mutex
	state        State
	failures     uint32
	probesInUse  uint32
	probesPassed uint32
	openedAt     time.Time
}

// New creates a closed breaker with defaults filled in.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Probes == 0 {
		cfg.Probes = 1
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg}
}

// State returns the current state, advancing open to half-open when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Do runs fn unless the breaker is open. The call's result feeds the
// breaker; fn's error is returned as-is.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	switch b.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probesInUse >= b.cfg.Probes {
			return ErrOpen
		}
		b.probesInUse++
	}
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		if b.probesInUse > 0 {
			b.probesInUse--
		}
		if !success {
			b.transition(StateOpen)
			return
		}
		b.probesPassed++
		if b.probesPassed >= b.cfg.Probes {
			b.transition(StateClosed)
		}
	}
}

// advance moves open to half-open once the cooldown has elapsed. Callers
// hold b.mu.
func (b *Breaker) advance() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures = 0
	b.probesInUse = 0
	b.probesPassed = 0
	if to == StateOpen {
		b.openedAt = time.Now()
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

package infra

import (
	"errors"
	"sync"
	"time"
)

// Circuit breaker guarding the SMTP relay used for variance alerts. When the
// relay is unreachable, alert jobs fast-fail to the DLQ instead of tying up
// workers on connection timeouts, and the redrive cron holds off until the
// relay recovers.

// ErrCircuitOpen is returned by Do while the breaker is tripped.
var ErrCircuitOpen = errors.New("circuit breaker abierto")

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"    // normal — calls flow
	BreakerOpen     BreakerState = "open"      // tripped — calls fast-fail
	BreakerHalfOpen BreakerState = "half-open" // one probe call allowed
)

type Breaker struct {
	mu       sync.Mutex
	state    BreakerState
	fallos   int
	aciertos int
	trippedAt time.Time

	// Trips open after maxFallos consecutive failures; after cooldown one
	// probe is let through, and probesOK consecutive successes re-close it.
	maxFallos int
	probesOK  int
	cooldown  time.Duration
}

func NewBreaker(maxFallos int, cooldown time.Duration) *Breaker {
	if maxFallos <= 0 {
		maxFallos = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{state: BreakerClosed, maxFallos: maxFallos, probesOK: 2, cooldown: cooldown}
}

// State reports the current state, promoting open → half-open once the
// cooldown has elapsed. Shown by the health endpoint.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && time.Since(b.trippedAt) >= b.cooldown {
		b.state = BreakerHalfOpen
		b.aciertos = 0
	}
	return b.state
}

// Ready reports whether a call would be allowed through right now.
func (b *Breaker) Ready() bool {
	return b.State() != BreakerOpen
}

// Do runs fn through the breaker. While open it returns ErrCircuitOpen
// without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.stateLocked() == BreakerOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fallos++
		b.trippedAt = time.Now()
		if b.state == BreakerHalfOpen || b.fallos >= b.maxFallos {
			b.state = BreakerOpen
			b.fallos = 0
			b.aciertos = 0
		}
		return err
	}

	switch b.state {
	case BreakerHalfOpen:
		b.aciertos++
		if b.aciertos >= b.probesOK {
			b.state = BreakerClosed
			b.aciertos = 0
		}
	default:
		b.fallos = 0
	}
	return nil
}

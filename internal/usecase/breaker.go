package usecase

import (
	"time"

	"CryptoAssist/internal/domain/models"
)

type BreakerConfig struct {
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
}

// Breaker decides how long the loop waits after a failed iteration.
// Each consecutive failure doubles the cooldown from BaseBackoff up to
// MaxBackoff. At FailureThreshold consecutive failures it opens for
// OpenTimeout; afterwards one half-open probe iteration decides whether it
// closes again or reopens.
//
// Not safe for concurrent use; the orchestrator goroutine owns it.
type Breaker struct {
	cfg      BreakerConfig
	state    models.BreakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Minute
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Minute
	}
	return &Breaker{cfg: cfg, state: models.BreakerClosed, now: time.Now}
}

func (b *Breaker) State() models.BreakerState { return b.state }

func (b *Breaker) Failures() int { return b.failures }

// Allow reports whether an iteration may run now. When the breaker is open
// and its timeout has not elapsed it returns the remaining wait.
func (b *Breaker) Allow() (time.Duration, bool) {
	if b.state != models.BreakerOpen {
		return 0, true
	}
	elapsed := b.now().Sub(b.openedAt)
	if elapsed < b.cfg.OpenTimeout {
		return b.cfg.OpenTimeout - elapsed, false
	}
	b.state = models.BreakerHalfOpen
	return 0, true
}

// OnSuccess closes the breaker and resets the failure streak.
func (b *Breaker) OnSuccess() {
	b.failures = 0
	b.state = models.BreakerClosed
}

// OnFailure records a failed iteration and returns the wait before the next one.
func (b *Breaker) OnFailure() time.Duration {
	b.failures++
	if b.state == models.BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = models.BreakerOpen
		b.openedAt = b.now()
		return b.cfg.OpenTimeout
	}
	return b.Backoff(b.failures)
}

// Backoff is the cooldown after n consecutive failures.
func (b *Breaker) Backoff(n int) time.Duration {
	if n <= 1 {
		return b.cfg.BaseBackoff
	}
	d := b.cfg.BaseBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= b.cfg.MaxBackoff || d <= 0 {
			return b.cfg.MaxBackoff
		}
	}
	return d
}

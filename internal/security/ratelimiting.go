package security

import (
	"strings"
	"sync"
	"time"
)

// nowFunc is the time source shared by the limiter types; tests replace it
// per instance.
type nowFunc func() time.Time

// RateLimiter is a per-key token bucket. Keys are client IPs, user IDs or
// token subjects depending on the route.
type RateLimiter struct {
	limiters map[string]*bucketState
	mu       sync.Mutex

	maxTokens  int
	refillRate time.Duration // time to earn back one token
	idleTTL    time.Duration
	now        nowFunc

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type bucketState struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
}

// NewRateLimiter creates a limiter that allows bursts of maxTokens and earns
// one token back every refillRate.
//
// Parameters:
//   - maxTokens: Maximum number of tokens (requests) allowed in the bucket
//   - refillRate: How often to add a token back to the bucket
//
// Example:
//
//	// 5 login attempts per minute per IP
//	limiter := NewRateLimiter(5, time.Minute/5)
//	defer limiter.Stop()
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limiters:    make(map[string]*bucketState),
		maxTokens:   maxTokens,
		refillRate:  refillRate,
		idleTTL:     time.Hour,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	rl.cleanupTicker = time.NewTicker(10 * time.Minute)
	go rl.cleanup()

	return rl
}

// PerWindow returns a limiter allowing n requests per window.
func PerWindow(n int, window time.Duration) *RateLimiter {
	if n < 1 {
		n = 1
	}
	return NewRateLimiter(n, window/time.Duration(n))
}

// Allow reports whether a request for key may proceed and consumes a token
// when it may.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.limiters[key]
	if !ok {
		rl.limiters[key] = &bucketState{tokens: rl.maxTokens - 1, lastRefill: now, lastSeen: now}
		return true
	}
	b.lastSeen = now

	if earned := int(now.Sub(b.lastRefill) / rl.refillRate); earned > 0 {
		b.tokens += earned
		if b.tokens > rl.maxTokens {
			b.tokens = rl.maxTokens
		}
		b.lastRefill = b.lastRefill.Add(time.Duration(earned) * rl.refillRate)
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// prune drops buckets idle for longer than idleTTL.
func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, b := range rl.limiters {
		if now.Sub(b.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.prune()
		case <-rl.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

// Limiters groups the per-route limiters the server installs.
type Limiters struct {
	Login  *RateLimiter
	Submit *RateLimiter
	Export *RateLimiter
	Import *RateLimiter
	API    *RateLimiter
}

// NewLimiters builds every route limiter from config.
func NewLimiters(cfg *SecurityConfig) *Limiters {
	return &Limiters{
		Login:  PerWindow(cfg.RateLimitLogin, time.Minute),
		Submit: PerWindow(cfg.RateLimitSubmit, time.Minute),
		Export: PerWindow(cfg.RateLimitExport, time.Hour),
		Import: PerWindow(cfg.RateLimitCSVImport, time.Hour),
		API:    PerWindow(cfg.RateLimitAPI, time.Minute),
	}
}

// Stop stops every limiter's cleanup goroutine.
func (l *Limiters) Stop() {
	for _, rl := range []*RateLimiter{l.Login, l.Submit, l.Export, l.Import, l.API} {
		if rl != nil {
			rl.Stop()
		}
	}
}

// AccountLockout locks a login identifier (email or name, case-insensitive)
// after repeated failures.
type AccountLockout struct {
	lockouts map[string]*lockoutState
	mu       sync.Mutex

	threshold int           // Failed attempts before lockout
	duration  time.Duration // How long the identifier stays locked
	window    time.Duration // Failures older than this start a new count
	now       nowFunc
}

type lockoutState struct {
	failedAttempts int
	lockedUntil    time.Time
	lastAttempt    time.Time
}

// NewAccountLockout creates a new account lockout tracker.
//
// Parameters:
//   - threshold: Number of failed attempts before lockout
//   - duration: How long the account stays locked
//
// Example:
//
//	// Lock for 30 minutes after 10 failed attempts
//	lockout := NewAccountLockout(10, 30*time.Minute)
func NewAccountLockout(threshold int, duration time.Duration) *AccountLockout {
	return &AccountLockout{
		lockouts:  make(map[string]*lockoutState),
		threshold: threshold,
		duration:  duration,
		window:    30 * time.Minute,
		now:       time.Now,
	}
}

func lockoutKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// RecordFailedAttempt records a failed login and reports whether the
// identifier is now locked.
func (al *AccountLockout) RecordFailedAttempt(identifier string) bool {
	al.mu.Lock()
	defer al.mu.Unlock()

	key := lockoutKey(identifier)
	now := al.now()

	state, ok := al.lockouts[key]
	if !ok || now.Sub(state.lastAttempt) > al.window {
		state = &lockoutState{}
		al.lockouts[key] = state
	}

	state.failedAttempts++
	state.lastAttempt = now

	if state.failedAttempts >= al.threshold {
		state.lockedUntil = now.Add(al.duration)
		return true
	}
	return false
}

// IsLocked reports whether identifier is locked. An expired lock is cleared.
func (al *AccountLockout) IsLocked(identifier string) bool {
	al.mu.Lock()
	defer al.mu.Unlock()

	key := lockoutKey(identifier)
	state, ok := al.lockouts[key]
	if !ok || state.lockedUntil.IsZero() {
		return false
	}

	if !al.now().Before(state.lockedUntil) {
		delete(al.lockouts, key)
		return false
	}
	return true
}

// ResetAttempts clears the failure count, e.g. after a successful login.
func (al *AccountLockout) ResetAttempts(identifier string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	delete(al.lockouts, lockoutKey(identifier))
}

// GetLockoutTimeRemaining returns how long identifier stays locked, or 0.
func (al *AccountLockout) GetLockoutTimeRemaining(identifier string) time.Duration {
	al.mu.Lock()
	defer al.mu.Unlock()

	state, ok := al.lockouts[lockoutKey(identifier)]
	if !ok || state.lockedUntil.IsZero() {
		return 0
	}

	if remaining := state.lockedUntil.Sub(al.now()); remaining > 0 {
		return remaining
	}
	return 0
}

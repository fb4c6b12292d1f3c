// Package presence establishes live user presence before protected items
// are released. A Gate wraps an Authenticator with an authentication reuse
// window and a limiter on attempts.
package presence

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrNotEnrolled means no passcode is configured on this device.
	ErrNotEnrolled = errors.New("no passcode enrolled")
	// ErrAuthFailed means the user failed the presence check.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrUserCanceled means the user dismissed the prompt.
	ErrUserCanceled = errors.New("authentication canceled")
	// ErrInteractionNotAllowed means no prompt can be shown, e.g. there is
	// no terminal, or too many attempts were made recently.
	ErrInteractionNotAllowed = errors.New("user interaction is not allowed")
)

// Authenticator performs one presence check.
type Authenticator interface {
	// Enrolled returns ErrNotEnrolled if no credential is configured.
	Enrolled() error
	// Authenticate prompts the user, showing reason.
	Authenticate(reason string) error
}

// Gate serializes presence checks and remembers the last success so reads
// inside an item's reuse window skip the prompt. mu guards state and is
// never held across a prompt; prompt admits one prompt at a time.
type Gate struct {
	prompt      sync.Mutex
	mu          sync.Mutex
	auth        Authenticator
	limiter     *rate.Limiter
	lastSuccess time.Time
	now         func() time.Time
	observe     func(ok bool)
	logger      *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithAttemptsPerMinute limits how many prompts may be shown per minute.
// Zero or negative disables the limit.
func WithAttemptsPerMinute(n int) Option {
	return func(g *Gate) {
		if n <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithObserver calls fn after every prompt with whether it succeeded.
func WithObserver(fn func(ok bool)) Option {
	return func(g *Gate) { g.observe = fn }
}

// NewGate returns a gate over auth. A nil auth behaves as not enrolled.
func NewGate(auth Authenticator, opts ...Option) *Gate {
	g := &Gate{
		auth:   auth,
		now:    time.Now,
		logger: slog.With("component", "presence"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetAuthenticator swaps the authenticator, e.g. after the passcode changed.
// Any reuse window is dropped.
func (g *Gate) SetAuthenticator(auth Authenticator) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auth = auth
	g.lastSuccess = time.Time{}
}

// CanEvaluatePresence reports whether presence can be established at all.
func (g *Gate) CanEvaluatePresence() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.auth == nil {
		return ErrNotEnrolled
	}
	return g.auth.Enrolled()
}

// Require blocks until presence is established for a read, or fails.
// reuse is the item's authentication reuse window. Concurrent callers wait
// for the prompt in progress and may then be satisfied by its success.
func (g *Gate) Require(reason string, reuse time.Duration) error {
	g.prompt.Lock()
	defer g.prompt.Unlock()

	auth, err := g.admit(reuse)
	if err != nil || auth == nil {
		return err
	}

	err = auth.Authenticate(reason)
	if g.observe != nil {
		g.observe(err == nil)
	}
	if err != nil {
		g.logger.Info("presence check failed", "error", err)
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.auth == auth {
		g.lastSuccess = g.now()
	}
	return nil
}

// admit returns the authenticator to prompt with, or nil when the reuse
// window already covers the read.
func (g *Gate) admit(reuse time.Duration) (Authenticator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.auth == nil {
		return nil, ErrNotEnrolled
	}
	if err := g.auth.Enrolled(); err != nil {
		return nil, err
	}

	now := g.now()
	if reuse > 0 && !g.lastSuccess.IsZero() && now.Sub(g.lastSuccess) <= reuse {
		g.logger.Debug("presence reused", "age", now.Sub(g.lastSuccess))
		return nil, nil
	}

	if g.limiter != nil && !g.limiter.AllowN(now, 1) {
		g.logger.Warn("presence attempt throttled")
		return nil, ErrInteractionNotAllowed
	}
	return g.auth, nil
}

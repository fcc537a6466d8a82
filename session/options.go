package session

import (
	"log/slog"
	"time"
)

// DefaultTimeout bounds every network operation started by the authority.
const DefaultTimeout = 15 * time.Second

// Option configures an Authority.
type Option func(*Authority)

// WithLogger sets the structured logger for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) {
		a.logger = logger
	}
}

// WithTimeout bounds each login, register, verify and revoke request.
// Expiry is reported as a network failure.
func WithTimeout(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithTargets overrides the navigation targets.
func WithTargets(t Targets) Option {
	return func(a *Authority) {
		a.targets = t
	}
}

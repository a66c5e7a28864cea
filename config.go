package mbus

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config configures a Session: retry/timeout bounds and logging. Verify
// validates the numeric bounds the session actually needs.
type Config struct {
	// MaxRetries is the number of attempts per datagram exchange.
	MaxRetries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// BaseTimeout is added on top of the transport's own transmission-time
	// estimate for each Read call.
	BaseTimeout time.Duration

	// FCBFallback enables an opt-in fallback: if the first post-reset
	// exchange (FCB=1) times out, run one more exchange (with its own
	// MaxRetries attempts) at FCB=0 before surfacing the timeout. Some field devices reply with a stale FCB
	// expectation immediately after a link reset.
	FCBFallback bool

	// Logger receives retry/timeout/validation diagnostics. A package default is used when nil.
	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		BaseTimeout: 500 * time.Millisecond,
	}
}

// Verify validates cfg, returning a CallerError for out-of-range values.
func (cfg *Config) Verify() error {
	switch {
	case cfg.MaxRetries < 1:
		return callerErr("MaxRetries must be at least 1")
	case cfg.RetryDelay < 0:
		return callerErr("RetryDelay must not be negative")
	case cfg.BaseTimeout <= 0:
		return callerErr("BaseTimeout must be positive")
	}
	return nil
}

func (cfg Config) logger() logrus.FieldLogger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return defaultLogger
}

var defaultLogger = logrus.New()

package offload

import (
	"go.uber.org/zap"

	"github.com/wippyai/audio-decoder/session"
)

type config struct {
	logger      *zap.Logger
	onViolation func(error)
	sessionOpts []session.Option
}

// Option configures a controller session, a worker, or both.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithProtocolErrorHandler registers fn to receive every protocol violation
// the controller detects. Violations are also logged.
func WithProtocolErrorHandler(fn func(error)) Option {
	return func(c *config) {
		c.onViolation = fn
	}
}

// WithSessionOptions passes options to the worker's session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *config) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: Logger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

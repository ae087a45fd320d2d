package router

import (
	"time"

	"github.com/okian/wiglebot/pkg/logger"
)

// Option configures a Router.
type Option func(*Router)

// WithPrefix sets the command prefix (default "!").
func WithPrefix(prefix string) Option {
	return func(r *Router) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithSelf sets how the router learns the bot's own sender id. Messages from
// that id are ignored.
func WithSelf(self func() string) Option {
	return func(r *Router) {
		if self != nil {
			r.self = self
		}
	}
}

// WithTypingDuration sets how long the typing indicator is requested for.
func WithTypingDuration(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.typing = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(next func() string) Option {
	return func(r *Router) {
		if next != nil {
			r.newID = next
		}
	}
}

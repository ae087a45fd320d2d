package console

import (
	"io"

	"github.com/okian/wiglebot/pkg/logger"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithTypingOutput makes typing indicators visible on w.
func WithTypingOutput(w io.Writer) Option {
	return func(g *Gateway) { g.typing = w }
}

// WithIDs replaces the message id generator.
func WithIDs(next func() string) Option {
	return func(g *Gateway) {
		if next != nil {
			g.newID = next
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

package telegram

import (
	"net/http"

	"github.com/okian/wiglebot/pkg/logger"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// WithAPIEndpoint overrides the Bot API endpoint format, which takes the
// token and the method name.
func WithAPIEndpoint(endpoint string) Option {
	return func(g *Gateway) {
		if endpoint != "" {
			g.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the client used for Bot API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

package webhook

import (
	"context"
	"time"

	"github.com/mattjoyce/mention-relay/internal/event"
	"github.com/mattjoyce/mention-relay/internal/relay"
)

// Dispatcher answers a mention event.
type Dispatcher interface {
	Dispatch(ctx context.Context, m event.Mention) relay.Outcome
}

// Config holds webhook server configuration.
type Config struct {
	// Listen is the host:port for the HTTP server.
	Listen string

	// SigningSecret is the Slack app signing secret.
	SigningSecret string

	// Tolerance bounds timestamp skew (default: 5m).
	Tolerance time.Duration

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB).
	MaxBodySize int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool
}

// ChallengeResponse echoes the url_verification token.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// Default values
const (
	DefaultMaxBodySize  = 1048576 // 1 MB
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 90 * time.Second
)

// Response bodies.
const (
	bodyOK        = "OK"
	bodyForbidden = "Invalid request signature"
)

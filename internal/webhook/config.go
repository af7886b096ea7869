package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/mention-relay/internal/config"
)

// FromGlobalConfig converts config.Config to webhook.Config.
// Parses the max body size and carries over the signing secret.
func FromGlobalConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	if c.Slack.SigningSecret == "" {
		return Config{}, fmt.Errorf("slack.signing_secret is not configured")
	}

	maxBodySize, err := parseMaxBodySize(c.Server.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid server.max_body_size %q: %w", c.Server.MaxBodySize, err)
	}

	return Config{
		Listen:         c.Server.Listen,
		SigningSecret:  c.Slack.SigningSecret,
		Tolerance:      c.Slack.TimestampTolerance,
		MaxBodySize:    maxBodySize,
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		MetricsEnabled: c.Server.MetricsEnabled,
	}, nil
}

// parseMaxBodySize parses size strings like "1MB", "512KB", "1048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value { // overflow
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}

package config

import "time"

// Config represents the complete mention-relay configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Server    ServerConfig    `yaml:"server"`
	Slack     SlackConfig     `yaml:"slack"`
	Generator GeneratorConfig `yaml:"generator"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig defines the inbound HTTP listener.
type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	MaxBodySize    string        `yaml:"max_body_size"` // e.g. "1MB", "524288"
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
}

// SlackConfig defines chat platform credentials and delivery settings.
type SlackConfig struct {
	// SigningSecret authenticates inbound event deliveries.
	SigningSecret string `yaml:"signing_secret"`

	// BotToken authorizes chat.postMessage calls.
	BotToken string `yaml:"bot_token"`

	// APIURL overrides the Web API base URL (tests, proxies). Must end with "/".
	APIURL string `yaml:"api_url,omitempty"`

	// TimestampTolerance bounds the allowed skew of X-Slack-Request-Timestamp.
	TimestampTolerance time.Duration `yaml:"timestamp_tolerance"`

	PostTimeout      time.Duration `yaml:"post_timeout"`
	MaxMessageLength int           `yaml:"max_message_length"`
}

// GeneratorConfig identifies the Vertex AI model used to answer queries.
type GeneratorConfig struct {
	Project  string        `yaml:"project"`
	Location string        `yaml:"location"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with sensible defaults. Credentials are left empty.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "mention-relay",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:         "0.0.0.0:8080",
			MaxBodySize:    "1MB",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   90 * time.Second,
			MetricsEnabled: true,
		},
		Slack: SlackConfig{
			TimestampTolerance: 5 * time.Minute,
			PostTimeout:        10 * time.Second,
			MaxMessageLength:   4000,
		},
		Generator: GeneratorConfig{
			Timeout: 60 * time.Second,
		},
	}
}

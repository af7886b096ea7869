package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment variables that override file values when set.
const (
	EnvSigningSecret = "SLACK_SIGNING_SECRET"
	EnvBotToken      = "SLACK_TOKEN"
	EnvProject       = "GOOGLE_CLOUD_PROJECT"
	EnvLocation      = "GOOGLE_CLOUD_LOCATION"
	EnvModel         = "MODEL_NAME"
	EnvPort          = "PORT"
	EnvLogLevel      = "LOG_LEVEL"
)

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order, then validates it.
// An empty configPath skips the file and relies on the environment alone.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w\n"+
				"Hint: Check the path or run with --config flag", absPath, err)
		}

		interpolated := interpolateEnv(string(data))
		if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides copies non-empty environment values over the loaded config.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&cfg.Slack.SigningSecret, EnvSigningSecret)
	set(&cfg.Slack.BotToken, EnvBotToken)
	set(&cfg.Generator.Project, EnvProject)
	set(&cfg.Generator.Location, EnvLocation)
	set(&cfg.Generator.Model, EnvModel)
	set(&cfg.Service.LogLevel, EnvLogLevel)

	if port, ok := lookup(EnvPort); ok && port != "" {
		host, _, err := net.SplitHostPort(cfg.Server.Listen)
		if err != nil {
			return fmt.Errorf("server.listen %q: %w", cfg.Server.Listen, err)
		}
		cfg.Server.Listen = net.JoinHostPort(host, port)
	}

	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unknown variables are left in place so validation can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		return match
	})
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server.listen %q is not host:port", cfg.Server.Listen)
	}

	required := []struct {
		field string
		env   string
		value string
	}{
		{"slack.signing_secret", EnvSigningSecret, cfg.Slack.SigningSecret},
		{"slack.bot_token", EnvBotToken, cfg.Slack.BotToken},
		{"generator.project", EnvProject, cfg.Generator.Project},
		{"generator.location", EnvLocation, cfg.Generator.Location},
		{"generator.model", EnvModel, cfg.Generator.Model},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required (set it in the config file or $%s)", r.field, r.env)
		}
		if matches := envVarPattern.FindStringSubmatch(r.value); len(matches) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", r.field, matches[1])
		}
	}

	if cfg.Slack.TimestampTolerance <= 0 {
		return fmt.Errorf("slack.timestamp_tolerance must be positive")
	}
	if cfg.Slack.PostTimeout <= 0 {
		return fmt.Errorf("slack.post_timeout must be positive")
	}
	if cfg.Slack.MaxMessageLength <= 0 {
		return fmt.Errorf("slack.max_message_length must be positive")
	}
	if cfg.Generator.Timeout <= 0 {
		return fmt.Errorf("generator.timeout must be positive")
	}

	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	// Dispatch runs inside the request, so the response must outlive both outbound calls.
	if cfg.Server.WriteTimeout <= cfg.Generator.Timeout+cfg.Slack.PostTimeout {
		return fmt.Errorf("server.write_timeout (%s) must exceed generator.timeout + slack.post_timeout (%s)",
			cfg.Server.WriteTimeout, cfg.Generator.Timeout+cfg.Slack.PostTimeout)
	}

	return nil
}

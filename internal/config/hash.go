package config

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a short BLAKE3 digest of a secret, safe to log or print.
// Two deployments with the same fingerprint hold the same secret.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(secret))
	return "blake3:" + hex.EncodeToString(sum[:8])
}

// Fingerprints returns the fingerprints of every credential in the config.
func (c *Config) Fingerprints() map[string]string {
	return map[string]string{
		"slack.signing_secret": Fingerprint(c.Slack.SigningSecret),
		"slack.bot_token":      Fingerprint(c.Slack.BotToken),
	}
}

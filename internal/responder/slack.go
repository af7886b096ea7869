package responder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"github.com/mattjoyce/mention-relay/internal/relay"
)

// DefaultMaxMessageLength is the chunk size for long replies.
const DefaultMaxMessageLength = 4000

// Slack posts replies with chat.postMessage.
type Slack struct {
	client *slack.Client
	maxLen int
	logger *slog.Logger
}

// SlackConfig configures the Slack responder.
type SlackConfig struct {
	BotToken         string
	APIURL           string // overrides https://slack.com/api/, must end with "/"
	MaxMessageLength int
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

// NewSlack creates a Slack responder.
func NewSlack(cfg SlackConfig) *Slack {
	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, slack.OptionHTTPClient(cfg.HTTPClient))
	}

	maxLen := cfg.MaxMessageLength
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}

	return &Slack{
		client: slack.New(cfg.BotToken, opts...),
		maxLen: maxLen,
		logger: cfg.Logger,
	}
}

// Respond posts msg.Text into the thread, split into chunks when it is long.
// It stops at the first failed chunk.
func (s *Slack) Respond(ctx context.Context, msg relay.Message) error {
	chunks := splitMessage(msg.Text, s.maxLen)
	for i, chunk := range chunks {
		_, ts, err := s.client.PostMessageContext(ctx, msg.Channel,
			slack.MsgOptionText(chunk, false),
			slack.MsgOptionTS(msg.ThreadTS),
		)
		if err != nil {
			return fmt.Errorf("slack post %d/%d to %s: %w", i+1, len(chunks), msg.Channel, err)
		}
		s.logger.Debug("slack message posted", "channel", msg.Channel, "thread_ts", msg.ThreadTS, "ts", ts)
	}
	return nil
}

// splitMessage cuts msg into pieces of at most maxLen bytes, preferring a
// newline in the second half of a piece and never splitting a rune.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		if cut == 0 {
			// maxLen is smaller than one rune; take the whole rune.
			_, size := utf8.DecodeRuneInString(msg)
			cut = size
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}

package event

import (
	"encoding/json"
)

// TypeAppMention is the Events API type for a message that mentions the bot.
const TypeAppMention = "app_mention"

// Envelope is one of Challenge, Mention or Other.
type Envelope interface {
	isEnvelope()
}

// Challenge is the url_verification handshake sent when the endpoint is registered.
// Token is decoded as a JSON string, so invalid UTF-8 in it comes back as U+FFFD.
// Slack issues ASCII tokens.
type Challenge struct {
	Token string
}

// Mention is an app_mention the relay should answer.
type Mention struct {
	Text    string
	Channel string
	// ThreadTS is the thread to reply under. It falls back to TS when the
	// mention is not in a thread yet, which roots a new thread at the mention.
	ThreadTS string
	TS       string
	User     string
	EventID  string
}

// Other is any authenticated delivery the relay does not act on.
type Other struct {
	// Type is the inner event type when one could be read, for logging.
	Type string
}

func (Challenge) isEnvelope() {}
func (Mention) isEnvelope()   {}
func (Other) isEnvelope()     {}

// callback holds the parts of the outer Events API wrapper we read.
type callback struct {
	EventID string          `json:"event_id"`
	Event   json.RawMessage `json:"event"`
}

// innerEvent holds the fields of the inner event object.
type innerEvent struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	User     string `json:"user"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Classify parses an authenticated body. First match wins: a top-level
// challenge string, then an app_mention event, then Other.
func Classify(body []byte) Envelope {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || top == nil {
		return Other{}
	}

	if raw, ok := top["challenge"]; ok {
		var token string
		if err := json.Unmarshal(raw, &token); err == nil {
			return Challenge{Token: token}
		}
	}

	var cb callback
	if err := json.Unmarshal(body, &cb); err != nil || len(cb.Event) == 0 {
		return Other{}
	}

	var ev innerEvent
	if err := json.Unmarshal(cb.Event, &ev); err != nil {
		return Other{}
	}

	if ev.Type != TypeAppMention {
		return Other{Type: ev.Type}
	}

	// Without a channel and ts there is nowhere to reply.
	if ev.Channel == "" || ev.TS == "" {
		return Other{Type: ev.Type}
	}

	threadTS := ev.ThreadTS
	if threadTS == "" {
		threadTS = ev.TS
	}

	return Mention{
		Text:     ev.Text,
		Channel:  ev.Channel,
		ThreadTS: threadTS,
		TS:       ev.TS,
		User:     ev.User,
		EventID:  cb.EventID,
	}
}

// Kind names an envelope variant for logs and metric labels.
func Kind(e Envelope) string {
	switch e.(type) {
	case Challenge:
		return "challenge"
	case Mention:
		return "mention"
	default:
		return "other"
	}
}

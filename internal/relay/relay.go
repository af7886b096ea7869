package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattjoyce/mention-relay/internal/event"
	"github.com/mattjoyce/mention-relay/internal/metrics"
)

// Causes of a degraded reply, used as the metric label and in Outcome.
const (
	CauseEmptyQuery       = "empty_query"
	CauseMalformedMention = "malformed_mention"
	CauseGeneration       = "generation"
)

const (
	emptyQueryReply       = "Sorry, I didn't catch a question. Mention me followed by what you'd like to ask."
	malformedMentionReply = "Sorry, I couldn't read that mention. Mention me followed by your question."
	generationErrorReply  = "Sorry, I encountered an error: %v"
)

// ErrEmptyResponse is returned when the backend answers with blank text.
var ErrEmptyResponse = errors.New("empty response from model")

// Config bounds the two outbound calls. Zero disables the bound.
type Config struct {
	GenerateTimeout time.Duration
	DeliverTimeout  time.Duration
}

// GenerationResult is the outcome of one backend call. Err is nil on success.
type GenerationResult struct {
	Text string
	Err  error
}

// Outcome summarises a dispatch.
type Outcome struct {
	DispatchID  string
	Query       string
	Reply       string
	Cause       string // empty when the reply is a real answer
	DeliveryErr error
}

// Degraded reports whether the reply is an apology.
func (o Outcome) Degraded() bool {
	return o.Cause != ""
}

// Relay answers mention events. It holds no per-request state and is safe
// for concurrent use.
type Relay struct {
	gen    Generator
	resp   Responder
	cfg    Config
	logger *slog.Logger
	newID  func() string
}

// New creates a relay.
func New(gen Generator, resp Responder, cfg Config, logger *slog.Logger) *Relay {
	return &Relay{
		gen:    gen,
		resp:   resp,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Dispatch extracts the query, generates a reply and posts it into the
// mention's thread. Every failure ends in an apology reply or a logged
// delivery error; nothing is returned to the caller as an error.
func (r *Relay) Dispatch(ctx context.Context, m event.Mention) Outcome {
	out := Outcome{DispatchID: r.newID()}
	logger := r.logger.With("dispatch_id", out.DispatchID, "channel", m.Channel, "thread_ts", m.ThreadTS)

	// Outbound calls must finish even if the platform hangs up on us.
	ctx = context.WithoutCancel(ctx)

	query, err := event.ExtractQuery(m.Text)
	switch {
	case errors.Is(err, event.ErrEmptyQuery):
		out.Cause, out.Reply = CauseEmptyQuery, emptyQueryReply
	case err != nil:
		out.Cause, out.Reply = CauseMalformedMention, malformedMentionReply
	default:
		out.Query = query
		res := r.generate(ctx, query)
		if res.Err != nil {
			logger.Warn("generation failed", "error", res.Err)
			out.Cause, out.Reply = CauseGeneration, fmt.Sprintf(generationErrorReply, res.Err)
		} else {
			out.Reply = res.Text
		}
	}

	if out.Degraded() {
		metrics.DegradedReplies.WithLabelValues(out.Cause).Inc()
		logger.Info("sending degraded reply", "cause", out.Cause)
	}

	out.DeliveryErr = r.deliver(ctx, Message{Channel: m.Channel, ThreadTS: m.ThreadTS, Text: out.Reply})
	if out.DeliveryErr != nil {
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		logger.Error("reply delivery failed", "error", out.DeliveryErr)
	} else {
		metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
		logger.Info("reply delivered", "degraded", out.Degraded(), "reply_len", len(out.Reply))
	}

	return out
}

// generate calls the backend, converting errors, blank answers, panics and
// timeouts into a failed result. The wait is bounded even when the generator
// ignores its context.
func (r *Relay) generate(ctx context.Context, query string) GenerationResult {
	start := time.Now()
	defer func() {
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := withTimeout(ctx, r.cfg.GenerateTimeout)
	defer cancel()

	done := make(chan GenerationResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- GenerationResult{Err: fmt.Errorf("generator panic: %v", p)}
			}
		}()
		text, err := r.gen.Generate(ctx, query)
		done <- GenerationResult{Text: text, Err: err}
	}()

	var res GenerationResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return GenerationResult{Err: fmt.Errorf("generation timed out after %s", r.cfg.GenerateTimeout)}
	}

	if res.Err != nil {
		return res
	}
	if strings.TrimSpace(res.Text) == "" {
		return GenerationResult{Err: ErrEmptyResponse}
	}
	return res
}

// deliver posts msg, reporting a responder panic as a failed delivery.
func (r *Relay) deliver(ctx context.Context, msg Message) (err error) {
	ctx, cancel := withTimeout(ctx, r.cfg.DeliverTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("responder panic: %v", p)
		}
	}()
	return r.resp.Respond(ctx, msg)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

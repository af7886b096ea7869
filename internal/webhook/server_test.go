package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mattjoyce/mention-relay/internal/event"
	"github.com/mattjoyce/mention-relay/internal/relay"
)

const testSecret = "test-secret"

// mockDispatcher is a mock implementation of Dispatcher for testing.
type mockDispatcher struct {
	mu         sync.Mutex
	calls      []event.Mention
	dispatchFn func(ctx context.Context, m event.Mention) relay.Outcome
}

func (m *mockDispatcher) Dispatch(ctx context.Context, ev event.Mention) relay.Outcome {
	m.mu.Lock()
	m.calls = append(m.calls, ev)
	m.mu.Unlock()
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, ev)
	}
	return relay.Outcome{DispatchID: "d-1", Reply: "ok"}
}

func (m *mockDispatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestServer(d Dispatcher) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		Listen:         "127.0.0.1:0",
		SigningSecret:  testSecret,
		MaxBodySize:    1048576,
		MetricsEnabled: true,
	}, d, logger)
}

func signedRequest(body []byte, at time.Time, secret string) *http.Request {
	ts := strconv.FormatInt(at.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign(body, ts, []byte(secret)))
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleEvent_Challenge(t *testing.T) {
	d := &mockDispatcher{}
	server := newTestServer(d)

	rec := serve(server, signedRequest([]byte(`{"challenge":"abc123"}`), time.Now(), testSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"challenge":"abc123"}` {
		t.Errorf("body = %s, want {\"challenge\":\"abc123\"}", got)
	}
	if d.count() != 0 {
		t.Error("Dispatch should not be called for a challenge")
	}
}

func TestHandleEvent_ChallengeWithSpecialCharacters(t *testing.T) {
	server := newTestServer(&mockDispatcher{})
	token := `<a&b>"q"`
	body, _ := json.Marshal(map[string]string{"challenge": token})

	rec := serve(server, signedRequest(body, time.Now(), testSecret))

	var resp ChallengeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Challenge != token {
		t.Errorf("Challenge = %q, want %q", resp.Challenge, token)
	}
}

func TestHandleEvent_InvalidSignature(t *testing.T) {
	bodies := []string{
		`{"challenge":"abc123"}`,
		`{"event":{"type":"app_mention","text":"<@U1> hi","channel":"C1","ts":"1.1"}}`,
		`not json at all`,
	}

	for _, body := range bodies {
		d := &mockDispatcher{}
		server := newTestServer(d)

		rec := serve(server, signedRequest([]byte(body), time.Now(), "wrong-secret"))

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
		// Error should be generic (no details leaked) and never echo a challenge
		if rec.Body.String() != bodyForbidden {
			t.Errorf("body = %q, want %q", rec.Body.String(), bodyForbidden)
		}
		if d.count() != 0 {
			t.Error("Dispatch should not be called with invalid signature")
		}
	}
}

func TestHandleEvent_MissingHeaders(t *testing.T) {
	d := &mockDispatcher{}
	server := newTestServer(d)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"challenge":"x"}`))
	rec := serve(server, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHandleEvent_StaleTimestamp(t *testing.T) {
	d := &mockDispatcher{}
	server := newTestServer(d)

	rec := serve(server, signedRequest([]byte(`{"challenge":"abc"}`), time.Now().Add(-10*time.Minute), testSecret))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHandleEvent_MentionDispatched(t *testing.T) {
	d := &mockDispatcher{}
	server := newTestServer(d)

	body := []byte(`{"type":"event_callback","event_id":"Ev1","event":{"type":"app_mention","text":"<@U1> what is 2+2?","channel":"C1","ts":"1700000000.000100"}}`)
	rec := serve(server, signedRequest(body, time.Now(), testSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
	if d.count() != 1 {
		t.Fatalf("Dispatch calls = %d, want 1", d.count())
	}
	got := d.calls[0]
	if got.Channel != "C1" || got.ThreadTS != "1700000000.000100" || got.Text != "<@U1> what is 2+2?" {
		t.Errorf("dispatched mention = %+v", got)
	}
}

func TestHandleEvent_DegradedDispatchStill200(t *testing.T) {
	d := &mockDispatcher{
		dispatchFn: func(ctx context.Context, m event.Mention) relay.Outcome {
			return relay.Outcome{DispatchID: "d-2", Cause: relay.CauseGeneration, Reply: "Sorry, I encountered an error: boom"}
		},
	}
	server := newTestServer(d)

	body := []byte(`{"event":{"type":"app_mention","text":"<@U1> hi","channel":"C1","ts":"1.1"}}`)
	rec := serve(server, signedRequest(body, time.Now(), testSecret))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleEvent_Ignored(t *testing.T) {
	bodies := map[string]string{
		"reaction_added": `{"event":{"type":"reaction_added","user":"U1","reaction":"tada"}}`,
		"malformed json": `{"event":`,
		"no event":       `{"type":"event_callback"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			d := &mockDispatcher{}
			server := newTestServer(d)

			rec := serve(server, signedRequest([]byte(body), time.Now(), testSecret))

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if rec.Body.String() != "OK" {
				t.Errorf("body = %q, want OK", rec.Body.String())
			}
			if d.count() != 0 {
				t.Error("Dispatch should not be called for ignored events")
			}
		})
	}
}

func TestHandleEvent_BodyTooLarge(t *testing.T) {
	d := &mockDispatcher{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	server := New(Config{SigningSecret: testSecret, MaxBodySize: 1024}, d, logger)

	body := bytes.Repeat([]byte("a"), 2048)
	rec := serve(server, signedRequest(body, time.Now(), testSecret))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestHandleEvent_MethodNotAllowed(t *testing.T) {
	server := newTestServer(&mockDispatcher{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server := newTestServer(&mockDispatcher{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	serve(server, signedRequest([]byte(`{"challenge":"m"}`), time.Now(), testSecret))
	rec = serve(server, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mention_relay_events_total") {
		t.Error("metrics output should include mention_relay_events_total")
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	server := New(Config{SigningSecret: "secret"}, &mockDispatcher{}, logger)

	if server.config.MaxBodySize != DefaultMaxBodySize {
		t.Errorf("MaxBodySize = %d, want %d", server.config.MaxBodySize, DefaultMaxBodySize)
	}
	if server.config.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("WriteTimeout = %s, want %s", server.config.WriteTimeout, DefaultWriteTimeout)
	}
	if server.verifier.tolerance != DefaultTolerance {
		t.Errorf("tolerance = %s, want %s", server.verifier.tolerance, DefaultTolerance)
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	server := New(Config{Listen: "127.0.0.1:0", SigningSecret: "secret"}, &mockDispatcher{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

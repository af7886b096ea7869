// Package webhook implements the Slack Events API endpoint with request signature verification.
//
// Every delivery is authenticated with the app's signing secret before the body
// is parsed. Authenticated bodies are classified by package event and mentions
// are handed to a Dispatcher (package relay) which answers in the thread.
//
// # Security Model
//
// - HMAC-SHA256 over "v0:<timestamp>:<body>", compared with crypto/subtle (constant-time)
// - Timestamps outside the tolerance window (default 5m) are rejected to stop replays
// - Body size limits enforced to prevent DoS attacks
// - No signature details leaked in error responses (always generic 403)
// - Request logging excludes payloads
//
// # Request Flow
//
//  1. HTTP POST arrives at /
//  2. Body size checked (reject with 413 if too large)
//  3. X-Slack-Request-Timestamp and X-Slack-Signature verified (reject with 403)
//  4. Body classified as challenge, mention or other
//  5. Challenge: {"challenge": <token>} echoed with 200
//  6. Mention: dispatched, then "OK" with 200 whatever the dispatch outcome
//  7. Other: "OK" with 200, nothing else happens
//
// # Example Usage
//
//	cfg := webhook.Config{
//		Listen:        "0.0.0.0:8080",
//		SigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
//	}
//
//	server := webhook.New(cfg, relay, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook

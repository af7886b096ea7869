package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Headers carrying the Slack request signature.
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

// DefaultTolerance is the allowed skew between the request timestamp and now.
const DefaultTolerance = 5 * time.Minute

const signatureVersion = "v0"

var errMalformedSignature = errors.New("malformed signature")

// Reason explains why a request failed verification.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonMissingHeaders
	ReasonMalformedTimestamp
	ReasonStaleTimestamp
	ReasonMalformedSignature
	ReasonSignatureMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMissingHeaders:
		return "missing_headers"
	case ReasonMalformedTimestamp:
		return "malformed_timestamp"
	case ReasonStaleTimestamp:
		return "stale_timestamp"
	case ReasonMalformedSignature:
		return "malformed_signature"
	case ReasonSignatureMismatch:
		return "signature_mismatch"
	default:
		return "unknown"
	}
}

// Outcome is the result of verifying one request.
type Outcome struct {
	Valid  bool
	Reason Reason
}

func reject(r Reason) Outcome { return Outcome{Reason: r} }

// Verify checks a Slack request signature.
//
// The signature is "v0=" + hex(HMAC-SHA256(secret, "v0:" + timestamp + ":" + body)).
// The timestamp must be an integer number of seconds within tolerance of now,
// in either direction. Comparison is constant-time (crypto/subtle).
// Verify must run before the body is parsed.
func Verify(body []byte, timestamp, signature string, secret []byte, now time.Time, tolerance time.Duration) Outcome {
	if timestamp == "" || signature == "" {
		return reject(ReasonMissingHeaders)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return reject(ReasonMalformedTimestamp)
	}

	// Whole seconds, so extreme timestamps cannot overflow a time.Duration.
	window := int64(tolerance / time.Second)
	if ts < now.Unix()-window || ts > now.Unix()+window {
		return reject(ReasonStaleTimestamp)
	}

	actualMAC, err := parseSignature(signature)
	if err != nil {
		return reject(ReasonMalformedSignature)
	}

	if len(secret) == 0 {
		return reject(ReasonSignatureMismatch)
	}

	expectedMAC := computeMAC(body, timestamp, secret)
	if subtle.ConstantTimeCompare(expectedMAC, actualMAC) != 1 {
		return reject(ReasonSignatureMismatch)
	}

	return Outcome{Valid: true, Reason: ReasonNone}
}

// Sign returns the X-Slack-Signature value for body sent at timestamp.
func Sign(body []byte, timestamp string, secret []byte) string {
	return signatureVersion + "=" + hex.EncodeToString(computeMAC(body, timestamp, secret))
}

func computeMAC(body []byte, timestamp string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return mac.Sum(nil)
}

// parseSignature decodes a "v0=<hex>" header value.
func parseSignature(signature string) ([]byte, error) {
	hexSig, ok := strings.CutPrefix(signature, signatureVersion+"=")
	if !ok {
		return nil, errMalformedSignature
	}
	return hex.DecodeString(hexSig)
}

// Verifier binds Verify to a signing secret and clock.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a Verifier. A non-positive tolerance uses DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// VerifyRequest verifies body against the signature headers in h.
func (v *Verifier) VerifyRequest(body []byte, h http.Header) Outcome {
	return Verify(body, h.Get(HeaderTimestamp), h.Get(HeaderSignature), v.secret, v.now(), v.tolerance)
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names the provider sends with each delivery.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// secretPrefix marks a base64-encoded signing secret as issued by the provider.
const secretPrefix = "whsec_"

// defaultTolerance bounds how far a delivery timestamp may drift from the
// local clock before the delivery is rejected as a possible replay.
const defaultTolerance = 5 * time.Minute

var (
	ErrMissingHeaders   = errors.New("missing signature headers")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// SignatureVerifier checks delivery authenticity: HMAC-SHA256 over
// "<id>.<timestamp>.<body>" with the shared signing secret, compared in
// constant time against every "v1,<base64>" entry in the signature header.
type SignatureVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier decodes the provider-issued secret (with or without
// the whsec_ prefix).
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	return &SignatureVerifier{key: key, tolerance: defaultTolerance, now: time.Now}, nil
}

// Verify validates one delivery. Any failure means the body must not be
// processed and the caller responds with a client error.
func (v *SignatureVerifier) Verify(id, timestamp, signature string, body []byte) error {
	if id == "" || timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrInvalidSignature
	}

	expected := v.Sign(id, timestamp, body)
	for _, part := range strings.Split(signature, " ") {
		version, sig, found := strings.Cut(part, ",")
		if !found || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign computes the signature value for a delivery. Exposed for tests and
// local tooling that replays provider events.
func (v *SignatureVerifier) Sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

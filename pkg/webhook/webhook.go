// Package webhook signs and delivers system event notifications to
// tenant-configured endpoints, with bounded exponential backoff on
// failure.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/canonical"
)

// Status mirrors the webhook_deliveries.status check constraint.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// retrySchedule is indexed by (attempt_count - 1), clamped to the final
// entry for every attempt beyond it.
var retrySchedule = []time.Duration{
	60 * time.Second,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

// RetryDelay returns the backoff before the next attempt, given the
// number of attempts already made.
func RetryDelay(attemptsMade int) time.Duration {
	idx := attemptsMade - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retrySchedule) {
		idx = len(retrySchedule) - 1
	}
	return retrySchedule[idx]
}

// maxAttempts bounds retries; beyond this, a delivery is marked failed
// for good rather than rescheduled forever.
const maxAttempts = 8

// Delivery is one queued notification to one endpoint.
type Delivery struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	TargetURL     string
	Payload       map[string]any
	Status        Status
	AttemptCount  int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// ValidateTargetURL rejects anything but http/https, and requires https
// when env is "prod"; every other environment also accepts http.
func ValidateTargetURL(rawURL, env string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("webhook: invalid target url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook: target url must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("webhook: target url missing host")
	}
	if env == "prod" && u.Scheme != "https" {
		return fmt.Errorf("webhook: target url must use https in prod")
	}
	return nil
}

// Sign computes the HMAC-SHA256 signature over "{timestamp}.{body}",
// hex-encoded, matching the header scheme verified by receivers.
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10) + "."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sender delivers one signed payload over HTTP and reports the response
// status code.
type Sender struct {
	Secret     string
	HTTPClient *http.Client
}

// NewSender builds a Sender with a bounded-timeout HTTP client.
func NewSender(secret string) *Sender {
	return &Sender{Secret: secret, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

// Send POSTs the canonical JSON encoding of payload to targetURL with
// signature headers, returning the response status code.
func (s *Sender) Send(ctx context.Context, targetURL string, payload map[string]any) (int, error) {
	body, err := canonical.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("webhook: encode payload: %w", err)
	}

	ts := time.Now().Unix()
	sig := Sign(s.Secret, ts, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Webhook-Signature", sig)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook: delivery request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Package notify delivers execution lifecycle events to caller-registered
// webhook endpoints.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/synthome-dev/synthome/internal/infra"
)

// SignatureHeader carries the HMAC-SHA256 of the request body, hex encoded
// with a sha256= prefix, keyed by the secret the caller registered.
const SignatureHeader = "X-Synthome-Signature"

const deliveryAttempts = 3

// retryBaseDelay spaces delivery attempts; tests shrink it.
var retryBaseDelay = time.Second

// Event is the payload posted to the caller. It mirrors the status endpoint
// response for the terminal state.
type Event struct {
	ExecutionID   string          `json:"executionId"`
	Status        string          `json:"status"`
	Progress      int             `json:"progress"`
	TotalJobs     int             `json:"totalJobs"`
	CompletedJobs int             `json:"completedJobs"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	SentAt        time.Time       `json:"sentAt"`
}

// Notifier posts signed events over HTTP.
type Notifier struct {
	httpClient *http.Client
	logger     *infra.Logger
}

// NewNotifier builds a notifier. httpClient may be nil.
func NewNotifier(httpClient *http.Client, logger *infra.Logger) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Notifier{httpClient: httpClient, logger: logger}
}

// Sign computes the signature header value for a body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Send posts the event, retrying transient failures. Delivery is best
// effort: the execution record is the source of truth either way.
func (n *Notifier) Send(ctx context.Context, webhookURL, secret string, event Event) error {
	if webhookURL == "" {
		return nil
	}
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		lastErr = n.post(ctx, webhookURL, secret, body)
		if lastErr == nil {
			return nil
		}
		n.logger.Warn().
			Err(lastErr).
			Str("execution_id", event.ExecutionID).
			Int("attempt", attempt).
			Msg("notify: webhook delivery failed")
		if attempt == deliveryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}
	return lastErr
}

func (n *Notifier) post(ctx context.Context, webhookURL, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

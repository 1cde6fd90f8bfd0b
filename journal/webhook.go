package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hazyhaar/pagewright/mutation"
)

// Delivery headers let receivers drop duplicates after a retry and detect
// gaps in a project's batch sequence.
const (
	HeaderBatchID = "X-Pagewright-Batch"
	HeaderSeq     = "X-Pagewright-Seq"
	HeaderProject = "X-Pagewright-Project"
)

const maxDrainedBody = 4 << 10

// Webhook POSTs each batch envelope to a URL. Network errors, 5xx, 408 and
// 429 answers are retried with exponential backoff; any other non-2xx
// answer fails the batch at once.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles per attempt.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient sets the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// statusError is a non-2xx answer from the receiver.
type statusError struct{ code int }

func (e *statusError) Error() string { return "status " + strconv.Itoa(e.code) }

func (e *statusError) temporary() bool {
	return e.code >= 500 || e.code == http.StatusRequestTimeout || e.code == http.StatusTooManyRequests
}

func (w *Webhook) Send(ctx context.Context, batch mutation.Batch) error {
	body, err := json.Marshal(envelope{Type: "batch", Data: batch})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	delay := w.backoff
	for attempt := 1; ; attempt++ {
		err := w.deliver(ctx, batch, body)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && !se.temporary() {
			return fmt.Errorf("webhook: batch %s rejected: %w", batch.ID, err)
		}
		if attempt > w.maxRetries {
			return fmt.Errorf("webhook: batch %s undelivered after %d attempts: %w", batch.ID, attempt, err)
		}
		w.logger.Warn("webhook: delivery failed", "batch", batch.ID, "attempt", attempt, "retry_in", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
}

func (w *Webhook) deliver(ctx context.Context, batch mutation.Batch, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderBatchID, batch.ID)
	req.Header.Set(HeaderSeq, strconv.FormatUint(batch.Seq, 10))
	if batch.ProjectID != "" {
		req.Header.Set(HeaderProject, batch.ProjectID)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	// Drain so the connection is reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainedBody))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func (w *Webhook) Close() error { return nil }

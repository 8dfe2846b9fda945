package alert

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Correlation headers set on every delivery, so a receiver can join an
// alert to its audit log line without parsing the body.
const (
	HeaderTrace  = "X-Corridorwatch-Trace"
	HeaderConfig = "X-Corridorwatch-Config"
	HeaderEvent  = "X-Corridorwatch-Event"
	HeaderKind   = "X-Corridorwatch-Kind"
)

const userAgent = "corridorwatch-alert/1"

// maxRetryAfter caps how long a 429 may push back the next attempt.
const maxRetryAfter = 10 * time.Second

// ErrRejected is returned when the receiver answers 4xx (other than 429).
// Rejected alerts are not retried.
var ErrRejected = errors.New("webhook rejected alert")

type sender struct {
	client   *http.Client
	attempts int
	backoff  func(attempt int) time.Duration
}

var defaultSender = &sender{
	client:   &http.Client{Timeout: 5 * time.Second},
	attempts: 3,
	backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
}

// Send posts an alert event to a webhook endpoint. 5xx, 429 and transport
// errors are retried; 429 honours Retry-After up to maxRetryAfter.
func Send(cfg AlertConfig, event AlertEvent) error {
	return defaultSender.send(cfg, event)
}

func (s *sender) send(cfg AlertConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	var wait time.Duration
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(wait)
		}
		wait = s.backoff(attempt)

		status, after, err := s.post(cfg, event, body)
		switch {
		case err != nil:
			lastErr = err
		case status >= 200 && status < 300:
			return nil
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("webhook throttled: HTTP %d", status)
			if after > 0 {
				wait = after
			}
		case status >= 500:
			lastErr = fmt.Errorf("webhook server error: HTTP %d", status)
		default:
			return fmt.Errorf("%w: HTTP %d", ErrRejected, status)
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", s.attempts, lastErr)
}

// post makes one delivery attempt and returns the status and any
// Retry-After delay the receiver asked for.
func (s *sender) post(cfg AlertConfig, event AlertEvent, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	setNonEmpty(req.Header, HeaderTrace, event.TraceID)
	setNonEmpty(req.Header, HeaderConfig, event.ConfigID)
	setNonEmpty(req.Header, HeaderEvent, eventName(event))
	setNonEmpty(req.Header, HeaderKind, event.Kind)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return resp.StatusCode, retryAfter(resp.Header.Get("Retry-After")), nil
}

// eventName is the most specific label of the event: the denial kind or
// envelope status when set, else the decision.
func eventName(event AlertEvent) string {
	if event.Type != "" {
		return event.Type
	}
	return event.Decision
}

func setNonEmpty(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

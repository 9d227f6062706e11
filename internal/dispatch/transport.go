// Package dispatch is the single authority for firing reminders: it polls for
// due scheduled instances, pushes them through the gateway transport, marks
// outcomes, and asks the lifecycle manager for each rule's next occurrence.
// No other process creates or completes instances.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// PushTransport delivers one reminder to the push gateway. Send returns nil
// once the gateway acknowledges the dispatch; delivery to the device itself
// is the gateway's contract.
type PushTransport interface {
	Send(ctx context.Context, msg *types.PushMessage) error
}

// HTTPTransport implements PushTransport over a JSON HTTP gateway, with a
// circuit breaker and bounded in-call retries on 429/5xx.
type HTTPTransport struct {
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	retry      RetryPolicy
	gatewayURL string
	authToken  string
	sleepFn    func(time.Duration)
}

// HTTPTransportConfig holds the settings for creating an HTTPTransport.
type HTTPTransportConfig struct {
	// GatewayURL is the full endpoint the push payload is POSTed to.
	GatewayURL string

	// AuthToken, when set, is sent as a bearer token.
	AuthToken string

	HTTPClient *http.Client
	Retry      RetryPolicy
}

// HTTPTransportOption is a functional option for configuring an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithSleepFunc overrides the sleep between in-call retries. Intended for
// tests to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.sleepFn = fn
	}
}

// NewHTTPTransport creates an HTTPTransport. A nil HTTPClient defaults to one
// with a 10 second timeout; a zero Retry defaults to DefaultRetryPolicy.
func NewHTTPTransport(cfg HTTPTransportConfig, opts ...HTTPTransportOption) *HTTPTransport {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.MinWait == 0 {
		retry = DefaultRetryPolicy()
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "push-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	t := &HTTPTransport{
		client:     client,
		breaker:    cb,
		retry:      retry,
		gatewayURL: cfg.GatewayURL,
		authToken:  cfg.AuthToken,
		sleepFn:    time.Sleep,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send posts the message to the gateway. Retries happen on 429 and 5xx; a
// 4xx response is permanent and surfaces as ErrCodeTransportRejected so the
// dispatcher can fail the instance without further attempts.
func (t *HTTPTransport) Send(ctx context.Context, msg *types.PushMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push payload", err)
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + t.retry.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.gatewayURL, bytes.NewReader(payload))
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build gateway request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if t.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+t.authToken)
		}
		if reqID := types.GetRequestID(ctx); reqID != "" {
			req.Header.Set("X-Request-Id", reqID)
		}

		resp, err := t.breaker.Execute(func() (*http.Response, error) {
			r, doErr := t.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("gateway returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			defer func() {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			// Remaining non-retried statuses are client errors: bad token,
			// malformed payload. Retrying cannot help.
			return types.NewAppError(types.ErrCodeTransportRejected,
				fmt.Sprintf("push gateway rejected dispatch with status %d", resp.StatusCode), nil)
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			t.sleepFn(t.retry.backoff(attempt, resp))
		}
	}

	if lastResp != nil {
		_, _ = io.Copy(io.Discard, lastResp.Body)
		lastResp.Body.Close()
	}
	return t.mapError(ctx, lastErr)
}

func (t *HTTPTransport) mapError(ctx context.Context, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeTransportUnavailable,
			"circuit breaker is open; push gateway unavailable", err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeTransportTimeout, "push gateway call timed out", err)
	default:
		return types.NewAppError(types.ErrCodeTransportUnavailable,
			"push gateway call failed after retries", err)
	}
}

// IsPermanentDeliveryError reports whether a Send error cannot succeed on a
// later attempt. The dispatcher fails the instance immediately instead of
// burning its retry budget.
func IsPermanentDeliveryError(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == types.ErrCodeTransportRejected
	}
	return false
}

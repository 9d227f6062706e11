package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

func testMessage() *types.PushMessage {
	return &types.PushMessage{
		DestinationToken: "user_1",
		Title:            "Diet Reminder",
		Body:             "5 almonds",
		Metadata:         map[string]string{"rule_id": "rule_abc"},
	}
}

func newTestTransport(url string) *HTTPTransport {
	return NewHTTPTransport(HTTPTransportConfig{
		GatewayURL: url,
		AuthToken:  "secret",
		Retry:      RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond},
	}, WithSleepFunc(func(time.Duration) {}))
}

func TestHTTPTransport_Send_Success(t *testing.T) {
	var gotAuth string
	var gotBody types.PushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL)
	err := tr.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "5 almonds", gotBody.Body)
	assert.Equal(t, "user_1", gotBody.DestinationToken)
}

func TestHTTPTransport_Send_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL)
	err := tr.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPTransport_Send_ExhaustedRetriesUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL)
	err := tr.Send(context.Background(), testMessage())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeTransportUnavailable, appErr.Code)
	assert.False(t, IsPermanentDeliveryError(err))
}

func TestHTTPTransport_Send_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL)
	err := tr.Send(context.Background(), testMessage())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeTransportRejected, appErr.Code)
	assert.True(t, IsPermanentDeliveryError(err))
	// 4xx must not be retried.
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPTransport_Send_NetworkErrorUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	tr := newTestTransport(srv.URL)
	err := tr.Send(context.Background(), testMessage())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeTransportUnavailable, appErr.Code)
}

func TestRetryPolicy_BackoffRespectsRetryAfter(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, MinWait: 100 * time.Millisecond, MaxWait: 2 * time.Second}

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"1"}}}
	assert.Equal(t, time.Second, p.backoff(0, resp))

	// Retry-After beyond MaxWait is clamped.
	resp = &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	assert.Equal(t, 2*time.Second, p.backoff(0, resp))
}

func TestRetryPolicy_BackoffStaysWithinBounds(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, MinWait: 100 * time.Millisecond, MaxWait: time.Second}

	for attempt := 0; attempt < 6; attempt++ {
		wait := p.backoff(attempt, nil)
		assert.GreaterOrEqual(t, wait, p.MinWait, "attempt %d", attempt)
		assert.LessOrEqual(t, wait, p.MaxWait, "attempt %d", attempt)
	}
}

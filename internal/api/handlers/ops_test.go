package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/dispatch"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

type mockDuePoller struct {
	pollFn    func(ctx context.Context) (dispatch.PollStats, error)
	pollCalls int
}

func (m *mockDuePoller) PollOnce(ctx context.Context) (dispatch.PollStats, error) {
	m.pollCalls++
	if m.pollFn != nil {
		return m.pollFn(ctx)
	}
	return dispatch.PollStats{Due: 3, Sent: 2, Retried: 1}, nil
}

func serveOps(h *OpsHandler, r *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestOpsHandler_Poll_Success(t *testing.T) {
	poller := &mockDuePoller{}
	handler := NewOpsHandler(poller, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/ops/poll", nil)
	w := serveOps(handler, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, poller.pollCalls)

	var envelope struct {
		Data dispatch.PollStats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.Equal(t, 3, envelope.Data.Due)
	assert.Equal(t, 2, envelope.Data.Sent)
	assert.Equal(t, 1, envelope.Data.Retried)
}

func TestOpsHandler_Poll_Error(t *testing.T) {
	poller := &mockDuePoller{
		pollFn: func(ctx context.Context) (dispatch.PollStats, error) {
			return dispatch.PollStats{}, types.NewAppError(types.ErrCodeInternalDB, "database error", nil)
		},
	}
	handler := NewOpsHandler(poller, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/ops/poll", nil)
	w := serveOps(handler, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

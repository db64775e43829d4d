package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, handler http.Handler) (int, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w.Code, response
}

func TestHandler_Healthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("storage", NewPingChecker("badger", pingerFunc(func(context.Context) error { return nil })))

	code, response := serve(t, handler)

	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "v1.0.0", response.Version)
	require.Len(t, response.Checks, 1)
	require.Equal(t, "badger", response.Checks["storage"].Name)
}

func TestHandler_RequiredFailureIsUnhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("storage", NewPingChecker("redis", pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))

	code, response := serve(t, handler)

	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, StatusUnhealthy, response.Status)
	require.Equal(t, "connection refused", response.Checks["storage"].Message)
}

func TestHandler_OptionalFailureIsDegraded(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("storage", NewFuncChecker("memory", func(context.Context) error { return nil }))
	handler.RegisterOptional("kafka", NewFuncChecker("kafka", func(context.Context) error {
		return errors.New("no brokers")
	}))

	code, response := serve(t, handler)

	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusDegraded, response.Status)
	require.Equal(t, StatusDegraded, response.Checks["kafka"].Status)
}

func TestHandler_ChecksReceiveDeadline(t *testing.T) {
	handler := NewHandler("dev")
	handler.Register("deadline", NewFuncChecker("deadline", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("missing deadline")
		}
		return nil
	}))

	response := handler.Evaluate(context.Background())
	require.Equal(t, StatusHealthy, response.Status)
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	LivenessHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

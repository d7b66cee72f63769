package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/vacationd/internal/responder"
)

type stubController struct {
	startErr error
	stopErr  error
	status   responder.Status
	starts   int
	stops    int
}

func (s *stubController) Start(context.Context) (responder.Status, error) {
	s.starts++
	if s.startErr != nil {
		return responder.Status{}, s.startErr
	}
	s.status.State = responder.StateRunning
	return s.status, nil
}

func (s *stubController) Stop(context.Context) (responder.Status, error) {
	s.stops++
	if s.stopErr != nil {
		return s.status, s.stopErr
	}
	s.status.State = responder.StateStopped
	return s.status, nil
}

func (s *stubController) Status() responder.Status { return s.status }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStartReturnsStatus(t *testing.T) {
	ctrl := &stubController{status: responder.Status{RunID: "run-1", Label: "Vacation Mails"}}
	h := NewServer(ctrl, discard(), nil)

	rec := do(t, h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got responder.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, responder.StateRunning, got.State)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 1, ctrl.starts)
}

func TestStartFailureIsOpaque(t *testing.T) {
	ctrl := &stubController{startErr: errors.New("oauth2: refresh token revoked for ya29.secret")}
	h := NewServer(ctrl, discard(), nil)

	rec := do(t, h, http.MethodGet, "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "ya29")
}

func TestStatusRoute(t *testing.T) {
	ctrl := &stubController{status: responder.Status{State: responder.StateStopped, Replied: 3}}
	h := NewServer(ctrl, discard(), nil)

	rec := do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got responder.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 3, got.Replied)
	assert.Zero(t, ctrl.starts)
}

func TestStop(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"stopped", nil, http.StatusOK},
		{"never started", responder.ErrNotStarted, http.StatusConflict},
		{"not running", responder.ErrNotRunning, http.StatusConflict},
		{"failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := &stubController{stopErr: tc.err}
			h := NewServer(ctrl, discard(), nil)

			rec := do(t, h, http.MethodPost, "/stop")
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, 1, ctrl.stops)
		})
	}
}

func TestStopRequiresPost(t *testing.T) {
	ctrl := &stubController{}
	h := NewServer(ctrl, discard(), nil)

	rec := do(t, h, http.MethodGet, "/stop")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, ctrl.stops)
}

func TestHealthz(t *testing.T) {
	h := NewServer(&stubController{}, discard(), nil)

	rec := do(t, h, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	h := NewServer(&stubController{}, discard(), []string{"https://example.com"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestsAreLogged(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := NewServer(&stubController{}, logger, nil)

	do(t, h, http.MethodGet, "/healthz")
	out := buf.String()
	assert.Contains(t, out, "http request")
	assert.Contains(t, out, "path=/healthz")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "request_id=")
}

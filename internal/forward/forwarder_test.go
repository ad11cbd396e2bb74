package forward

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitehq/aimlgw/internal/apierror"
)

// countingTransport counts round trips before delegating.
type countingTransport struct {
	calls int32
	base  http.RoundTripper
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&t.calls, 1)
	return t.base.RoundTrip(req)
}

func newTestForwarder(t *testing.T, opts ...Option) *Forwarder {
	t.Helper()
	base := []Option{
		WithMetrics(NewMetricsWithRegisterer("test", prometheus.NewRegistry())),
		WithRetryInterval(time.Millisecond),
	}
	return New(append(base, opts...)...)
}

func TestForward_Success(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id": {"$oid": "507f1f77bcf86cd799439011"}, "name": "a"}`))
	}))
	defer upstream.Close()

	f := newTestForwarder(t)

	result, err := f.Forward(context.Background(), http.MethodGet, upstream.URL)
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "507f1f77bcf86cd799439011", m["_id"])
	assert.Equal(t, "a", m["name"])
}

func TestForward_EmptyBodyIsEmptyMap(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f := newTestForwarder(t)

	result, err := f.Forward(context.Background(), http.MethodGet, upstream.URL)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, result)
}

func TestForward_SubjectInjectionWins(t *testing.T) {
	t.Parallel()

	var gotUserID string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = r.URL.Query().Get("user_id")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	f := newTestForwarder(t)

	query := url.Values{}
	query.Set("user_id", "spoofed")
	_, err := f.Forward(context.Background(), http.MethodGet, upstream.URL,
		Query(query), Subject("user_real"))
	require.NoError(t, err)
	assert.Equal(t, "user_real", gotUserID)
}

func TestForward_UpstreamErrorPassthroughNoRetry(t *testing.T) {
	t.Parallel()

	var calls int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "agent not found"}`))
	}))
	defer upstream.Close()

	f := newTestForwarder(t)

	_, err := f.Forward(context.Background(), http.MethodGet, upstream.URL)
	require.Error(t, err)

	var gwErr *apierror.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusNotFound, gwErr.Status)
	assert.Equal(t, map[string]interface{}{"detail": "agent not found"}, gwErr.Detail)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestForward_ConnectFailureRetriesThreeTimes(t *testing.T) {
	t.Parallel()

	// A listener that is closed immediately leaves a port that refuses
	// connections.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	transport := &countingTransport{base: http.DefaultTransport}
	f := newTestForwarder(t, WithHTTPClient(&http.Client{Transport: transport}))

	_, err := f.Forward(context.Background(), http.MethodGet, target)
	require.Error(t, err)

	var gwErr *apierror.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.Status)
	assert.Contains(t, gwErr.Detail, "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&transport.calls))
}

func TestForward_TimeoutNotRetried(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the connection until the client gives up, so Close can
		// still drain the handler afterwards.
		<-r.Context().Done()
	}))
	defer upstream.Close()

	transport := &countingTransport{base: http.DefaultTransport}
	f := newTestForwarder(t, WithHTTPClient(&http.Client{
		Transport: transport,
		Timeout:   50 * time.Millisecond,
	}))

	_, err := f.Forward(context.Background(), http.MethodGet, upstream.URL)
	require.Error(t, err)

	var gwErr *apierror.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.calls))
}

func TestForward_JSONBodySent(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	f := newTestForwarder(t)

	_, err := f.Forward(context.Background(), http.MethodPost, upstream.URL,
		JSONBody(map[string]interface{}{"message": "hi"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "hi"}`, string(gotBody))
}

func TestIsConnectError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "generic error", err: errors.New("boom"), want: false},
		{name: "dns failure", err: &net.DNSError{Err: "no such host"}, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isConnectError(tt.err))
		})
	}
}

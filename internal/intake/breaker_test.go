package intake

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostBreaker_OpensAfterThreshold(t *testing.T) {
	b := newHostBreaker("forms.example.com", 3, time.Minute)

	failure := errors.New("connection refused")
	b.record(failure)
	b.record(failure)
	assert.NoError(t, b.allow(), "below threshold should still allow")

	b.record(failure)
	err := b.allow()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHostUnavailable)
	assert.Equal(t, breakerOpen, b.current())
}

func TestHostBreaker_SuccessResetsFailures(t *testing.T) {
	b := newHostBreaker("forms.example.com", 3, time.Minute)

	failure := errors.New("timeout")
	b.record(failure)
	b.record(failure)
	b.record(nil)
	b.record(failure)
	b.record(failure)

	assert.NoError(t, b.allow())
	assert.Equal(t, breakerClosed, b.current())
}

func TestHostBreaker_ProbeAfterCooldown(t *testing.T) {
	b := newHostBreaker("forms.example.com", 1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.record(errors.New("boom"))
	assert.ErrorIs(t, b.allow(), ErrHostUnavailable)

	// Cooldown elapses: a single probe goes through.
	now = now.Add(time.Minute)
	assert.NoError(t, b.allow())
	assert.Equal(t, breakerHalfOpen, b.current())

	// Probe succeeds: circuit closes.
	b.record(nil)
	assert.Equal(t, breakerClosed, b.current())
}

func TestHostBreaker_ProbeFailureReopens(t *testing.T) {
	b := newHostBreaker("forms.example.com", 1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.record(errors.New("boom"))
	now = now.Add(time.Minute)
	require.NoError(t, b.allow())

	b.record(errors.New("still down"))
	assert.ErrorIs(t, b.allow(), ErrHostUnavailable)
}

func TestHostBreaker_Defaults(t *testing.T) {
	b := newHostBreaker("forms.example.com", 0, 0)
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
}

func TestBreakerFor_SameHostSharesBreaker(t *testing.T) {
	f := newTestFetcher()
	a := f.breakerFor("https://forms.example.com/a.pdf")
	b := f.breakerFor("https://forms.example.com/b.pdf")
	c := f.breakerFor("https://other.example.com/a.pdf")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestDownload_BreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{
		UserAgent:    "test-agent",
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		HostRate:     1000,
		HostBurst:    100,
		HostFailures: 2,
		HostCooldown: time.Minute,
	})

	_, err := f.Download(context.Background(), srv.URL+"/a")
	require.Error(t, err)
	_, err = f.Download(context.Background(), srv.URL+"/b")
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())

	// Third call is rejected without reaching the server.
	_, err = f.Download(context.Background(), srv.URL+"/c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHostUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownload_BreakerRecovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("back up"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{
		UserAgent:    "test-agent",
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		HostRate:     1000,
		HostBurst:    100,
		HostFailures: 1,
		HostCooldown: time.Minute,
	})

	_, err := f.Download(context.Background(), srv.URL+"/a")
	require.Error(t, err)
	assert.ErrorIs(t, f.breakerFor(srv.URL).allow(), ErrHostUnavailable)

	// Pretend the cooldown has passed and the host came back.
	failing.Store(false)
	br := f.breakerFor(srv.URL)
	br.mu.Lock()
	br.lastFailure = br.lastFailure.Add(-2 * time.Minute)
	br.mu.Unlock()

	body, err := f.Download(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, breakerClosed, br.current())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", breakerClosed.String())
	assert.Equal(t, "open", breakerOpen.String())
	assert.Equal(t, "half-open", breakerHalfOpen.String())
	assert.Equal(t, "unknown", breakerState(42).String())
}

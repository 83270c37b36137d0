package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	old := backoffBase
	backoffBase = time.Millisecond
	t.Cleanup(func() { backoffBase = old })
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	fastBackoff(t)

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := Fetch(context.Background(), srv.Client(), srv.URL, FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.EqualValues(t, 3, attempts.Load())
}

func TestFetchExhausted(t *testing.T) {
	fastBackoff(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL, FetchOptions{MaxRetries: 2})
	require.Error(t, err)

	var exhausted *FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, srv.URL, exhausted.URL)
	require.Equal(t, 2, exhausted.Attempts)
	require.ErrorContains(t, exhausted.Err, "status 502")
}

func TestFetchDefaultUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL, FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, defaultUserAgent, got)

	_, err = Fetch(context.Background(), srv.Client(), srv.URL, FetchOptions{
		Headers: map[string]string{"User-Agent": "custom/2.0"},
	})
	require.NoError(t, err)
	require.Equal(t, "custom/2.0", got)
}

func TestFetchContextCancelled(t *testing.T) {
	fastBackoff(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fetch(ctx, srv.Client(), srv.URL, FetchOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

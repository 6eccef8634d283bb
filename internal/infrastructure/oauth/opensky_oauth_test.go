package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type tokenServer struct {
	*httptest.Server
	exchanges atomic.Int32
}

func newTokenServer(t *testing.T, expiresIn int, delay time.Duration) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_id") != "client" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		n := ts.exchanges.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestOAuth(url string) *OpenSkyOAuth {
	return NewOpenSkyOAuth("client", "secret", url, nil, logger.NewNopLogger(),
		metrics.NewMetrics("test", prometheus.NewRegistry()))
}

func TestAccessTokenReusesCachedToken(t *testing.T) {
	ts := newTokenServer(t, 1800, 0)
	auth := newTestOAuth(ts.URL)

	first, err := auth.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	second, err := auth.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}

	if first != second {
		t.Errorf("tokens differ: %q vs %q", first, second)
	}
	if got := ts.exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
}

func TestAccessTokenRefreshesInsideMargin(t *testing.T) {
	// 60s TTL is already inside the 5 minute refresh margin
	ts := newTokenServer(t, 60, 0)
	auth := newTestOAuth(ts.URL)

	first, _ := auth.AccessToken(context.Background())
	second, _ := auth.AccessToken(context.Background())

	if first == second {
		t.Errorf("expected a fresh token, got %q twice", first)
	}
	if got := ts.exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

func TestAccessTokenSerializesConcurrentCallers(t *testing.T) {
	ts := newTokenServer(t, 1800, 50*time.Millisecond)
	auth := newTestOAuth(ts.URL)

	var wg sync.WaitGroup
	tokens := make([]string, 10)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := auth.AccessToken(context.Background())
			if err != nil {
				t.Errorf("AccessToken: %v", err)
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	if got := ts.exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
	for _, tok := range tokens {
		if tok != "tok-1" {
			t.Errorf("got token %q, want tok-1", tok)
		}
	}
}

func TestInvalidateOnlyDropsRejectedToken(t *testing.T) {
	ts := newTokenServer(t, 1800, 0)
	auth := newTestOAuth(ts.URL)

	tok, _ := auth.AccessToken(context.Background())

	auth.Invalidate("some-other-token")
	if auth.Cached() == nil {
		t.Fatal("cache cleared by a token it does not hold")
	}

	auth.Invalidate(tok)
	if auth.Cached() != nil {
		t.Fatal("cache not cleared")
	}

	fresh, _ := auth.AccessToken(context.Background())
	if fresh == tok {
		t.Errorf("expected new token after invalidation")
	}
	if got := ts.exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

func TestAccessTokenFailureIsExternalService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer srv.Close()

	auth := newTestOAuth(srv.URL)
	_, err := auth.AccessToken(context.Background())
	if !apperror.Is(err, apperror.KindExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if auth.Cached() != nil {
		t.Error("failed exchange must not populate the cache")
	}
}

package mpesa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"jikonnect/config"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "local zero prefix", in: "0712345678", want: "254712345678"},
		{name: "plus prefix", in: "+254712345678", want: "254712345678"},
		{name: "bare subscriber number", in: "712345678", want: "254712345678"},
		{name: "already canonical", in: "254712345678", want: "254712345678"},
		{name: "embedded whitespace", in: " 07 12 345 678 ", want: "254712345678"},
		{name: "plus with whitespace", in: "+254 712 345 678", want: "254712345678"},
		{name: "empty", in: "", want: "254"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundCentsToShillings(t *testing.T) {
	tests := []struct {
		cents int64
		want  int64
	}{
		{cents: 0, want: 0},
		{cents: 100, want: 1},
		{cents: 149, want: 1},
		{cents: 150, want: 2},
		{cents: 199960, want: 2000},
		{cents: 49, want: 0},
		{cents: 50, want: 1},
		{cents: -150, want: -2},
	}
	for _, tt := range tests {
		if got := RoundCentsToShillings(tt.cents); got != tt.want {
			t.Fatalf("RoundCentsToShillings(%d) = %d, want %d", tt.cents, got, tt.want)
		}
	}
}

func newTestClient(baseURL string) *Client {
	c := NewClient(config.MpesaConfig{
		Environment:     config.EnvSandbox,
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		Passkey:         "passkey",
		ShortCode:       "174379",
		TillNumber:      "174379",
		CallbackBaseURL: "https://example.test",
	})
	c.baseURL = baseURL
	return c
}

func TestAccessTokenCaching(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Fatalf("basic auth not forwarded")
		}
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"access_token":"tok-abc","expires_in":"3599"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()

	tok, err := c.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "tok-abc" {
		t.Fatalf("token = %q", tok)
	}
	if _, err := c.AccessToken(ctx); err != nil {
		t.Fatalf("AccessToken cached: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected 1 oauth call, got %d", n)
	}

	c.InvalidateToken()
	if _, err := c.AccessToken(ctx); err != nil {
		t.Fatalf("AccessToken after invalidate: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected 2 oauth calls after invalidate, got %d", n)
	}
}

func TestAccessTokenRefreshesNearExpiry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	// Push the cached expiry inside the skew window; the next call must
	// fetch a fresh token.
	c.mu.Lock()
	c.tokenExp = time.Now().Add(30 * time.Second)
	c.mu.Unlock()
	if _, err := c.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken near expiry: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected refresh near expiry, got %d oauth calls", n)
	}
}

func TestAccessTokenRetriesOn5xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"access_token":"tok-after-retry","expires_in":"3599"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	tok, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "tok-after-retry" {
		t.Fatalf("token = %q", tok)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("expected 3 oauth attempts, got %d", n)
	}
}

func TestAccessTokenDoesNotRetry4xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorMessage":"Invalid Credentials"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.AccessToken(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("bad credentials must fail on the first attempt, got %d", n)
	}
}

func TestAccessTokenFailureIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessage":"Bad Request - Invalid Credentials"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.AccessToken(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*AuthError); !ok {
		t.Fatalf("expected *AuthError, got %T", err)
	}
}

func TestPostJSONRetriesAfter401(t *testing.T) {
	var apiHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
		case "/mpesa/stkpushquery/v1/query":
			if atomic.AddInt32(&apiHits, 1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"ResponseCode":"0","ResultCode":"0","ResultDesc":"ok","CheckoutRequestID":"ws_CO_1"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	q, err := c.QuerySTKStatus(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("QuerySTKStatus: %v", err)
	}
	if q.ResultCode != "0" {
		t.Fatalf("ResultCode = %q", q.ResultCode)
	}
	if n := atomic.LoadInt32(&apiHits); n != 2 {
		t.Fatalf("expected 401 retry, got %d api calls", n)
	}
}

func TestPostJSONRetriesOn5xx(t *testing.T) {
	var apiHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
		default:
			if atomic.AddInt32(&apiHits, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"ResponseCode":"0","CheckoutRequestID":"ws_CO_2"}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	q, err := c.QuerySTKStatus(context.Background(), "ws_CO_2")
	if err != nil {
		t.Fatalf("QuerySTKStatus: %v", err)
	}
	if q.ResponseCode != "0" {
		t.Fatalf("ResponseCode = %q", q.ResponseCode)
	}
	if n := atomic.LoadInt32(&apiHits); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

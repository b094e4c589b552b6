package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"jikonnect/config"
)

// Client talks to the Safaricom Daraja API: OAuth token exchange, STK push,
// STK status query and B2C disbursement. Safe for concurrent use; the access
// token is cached process-wide and refreshed near expiry.
type Client struct {
	cfg     config.MpesaConfig
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(cfg config.MpesaConfig) *Client {
	return &Client{
		cfg:     cfg,
		baseURL: cfg.BaseURL(),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

const (
	tokenExpirySkew = 60 * time.Second
	maxAttempts     = 3
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"` // seconds, as a string
}

// AccessToken returns a cached bearer token, fetching a new one when the
// cached token is within a minute of expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExp.Add(-tokenExpirySkew)) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	var (
		status int
		body   []byte
		err    error
	)
	// Token fetch gets the same bounded retry as the data calls: network
	// faults and 5xx answers back off and try again, 4xx fails immediately.
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
		if rerr != nil {
			return "", &AuthError{Err: rerr}
		}
		req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
		status, body, err = c.send(req)
		if (err != nil || status >= 500) && attempt < maxAttempts {
			backoff(ctx, attempt)
			continue
		}
		break
	}
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if status != http.StatusOK {
		return "", &AuthError{Err: fmt.Errorf("oauth: %d", status), Body: string(body)}
	}
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &AuthError{Err: err, Body: string(body)}
	}
	ttl := 3599 * time.Second
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.mu.Lock()
	c.token = out.AccessToken
	c.tokenExp = time.Now().Add(ttl)
	c.mu.Unlock()
	return out.AccessToken, nil
}

// InvalidateToken drops the cached token so the next call re-authenticates.
// Called when a downstream endpoint answers 401.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExp = time.Time{}
	c.mu.Unlock()
}

// postJSON sends an authenticated JSON request with bounded retry, dropping
// the cached token on 401 so the retry re-authenticates.
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	var status int
	var respBody []byte
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := c.AccessToken(ctx)
		if err != nil {
			return 0, nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		status, respBody, err = c.send(req)
		if err != nil {
			if attempt == maxAttempts {
				return 0, nil, err
			}
			backoff(ctx, attempt)
			continue
		}
		if status == http.StatusUnauthorized {
			c.InvalidateToken()
			if attempt == maxAttempts {
				return status, respBody, nil
			}
			continue
		}
		if status >= 500 && attempt < maxAttempts {
			backoff(ctx, attempt)
			continue
		}
		return status, respBody, nil
	}
	return status, respBody, nil
}

func (c *Client) send(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func backoff(ctx context.Context, attempt int) {
	d := time.Duration(attempt)*200*time.Millisecond + time.Duration(rand.Intn(100))*time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// NormalizePhone canonicalizes a Kenyan phone number to MSISDN form
// ("2547XXXXXXXX"). Rules apply in order: strip whitespace, 0-prefix becomes
// 254, a leading + is dropped, anything else not already 254-prefixed gets
// 254 prepended. Digit-count validation is left to the provider.
func NormalizePhone(raw string) string {
	s := strings.Join(strings.Fields(raw), "")
	if strings.HasPrefix(s, "0") {
		s = "254" + s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	} else if !strings.HasPrefix(s, "254") {
		s = "254" + s
	}
	return s
}

// RoundCentsToShillings converts a minor-unit amount to whole shillings,
// rounding half up. Daraja rejects fractional amounts.
func RoundCentsToShillings(cents int64) int64 {
	if cents < 0 {
		return -RoundCentsToShillings(-cents)
	}
	return (cents + 50) / 100
}

func logBody(tag string, status int, body []byte) {
	log.Printf("[MPESA] %s status=%d body=%s", tag, status, string(body))
}

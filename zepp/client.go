// Package zepp is a small client for the Zepp (Huami) account and health
// endpoints used to sign in and upload band data.
package zepp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	appName    = "com.xiaomi.hm.health"
	appVersion = "6.3.5"
	userAgent  = "MiFit/6.3.5 (MI 6; Android 10; Density/2.75)"
	clientID   = "HuaMi"
	redirect   = "https://s3-us-west-2.amazonaws.com/hm-registration/successsignin.html"

	// DefaultTimeout bounds every request unless Config.Timeout is set.
	DefaultTimeout = 15 * time.Second
)

// Endpoints are the service base URLs.
type Endpoints struct {
	Auth     string // primary login
	Account  string // login token grant
	AppToken string // app token re-grant
	API      string // health data
}

// DefaultEndpoints returns the production hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Auth:     "https://api-user.huami.com",
		Account:  "https://account.huami.com",
		AppToken: "https://account-cn.huami.com",
		API:      "https://api-mifit-cn2.huami.com",
	}
}

// Config holds client settings. Zero values pick defaults.
type Config struct {
	Endpoints Endpoints
	Timeout   time.Duration
	// RequestsPerSecond throttles all calls made through one client.
	// Zero or negative means unlimited.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Clock             clockwork.Clock
	// Location decides the calendar date of uploaded data.
	Location *time.Location
}

// Client talks to the service. It is safe for concurrent use.
type Client struct {
	ep      Endpoints
	http    *http.Client
	limiter *rate.Limiter
	clock   clockwork.Clock
	loc     *time.Location
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) *Client {
	ep := cfg.Endpoints
	def := DefaultEndpoints()
	if ep.Auth == "" {
		ep.Auth = def.Auth
	}
	if ep.Account == "" {
		ep.Account = def.Account
	}
	if ep.AppToken == "" {
		ep.AppToken = def.AppToken
	}
	if ep.API == "" {
		ep.API = def.API
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	// Primary login answers with a redirect whose Location carries the token.
	hc = &http.Client{
		Transport: hc.Transport,
		Jar:       hc.Jar,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	return &Client{
		ep:      ep,
		http:    hc,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clock,
		loc:     loc,
	}
}

// do sends req after waiting for the limiter and returns the response with
// its body fully read.
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("app_name", appName)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s response: %w", req.URL.Path, err)
	}
	return resp, body, nil
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.do(req)
}

func (c *Client) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.do(req)
}

// decodeJSON unmarshals body after checking for a 200 status.
func decodeJSON(op string, resp *http.Response, body []byte, v any) error {
	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, Status: resp.StatusCode, Message: snippet(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}

func appTokenHeader(appToken string) http.Header {
	h := http.Header{}
	h.Set("apptoken", appToken)
	return h
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Mora-na/mimotions/runtime"
	"github.com/Mora-na/mimotions/types"
)

const (
	// DefaultEndpoint is the PushDeer message API.
	DefaultEndpoint = "https://api2.pushdeer.com/message/push"
	// DefaultTimeout bounds one delivery.
	DefaultTimeout = 10 * time.Second
)

// Sender delivers a title and markdown body.
type Sender interface {
	Send(ctx context.Context, title, body string) error
}

// PushDeer sends messages through the PushDeer API.
type PushDeer struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

// NewPushDeer returns a sender using key and the default endpoint.
func NewPushDeer(key string) *PushDeer {
	return &PushDeer{
		Endpoint: DefaultEndpoint,
		Key:      key,
		Client:   &http.Client{Timeout: DefaultTimeout},
	}
}

type pushDeerResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Send issues the GET request and checks the response code.
func (p *PushDeer) Send(ctx context.Context, title, body string) error {
	q := url.Values{}
	q.Set("pushkey", p.Key)
	q.Set("text", title)
	q.Set("desp", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push request: HTTP status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading push response: %w", err)
	}
	var out pushDeerResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("malformed push response: %w", err)
	}
	if out.Code != 0 {
		return fmt.Errorf("push rejected: %d-%s", out.Code, out.Msg)
	}
	return nil
}

// Notifier applies the delivery policy from types.Push before sending.
type Notifier struct {
	cfg    types.Push
	sender Sender
	clock  clockwork.Clock
	loc    *time.Location
	logger runtime.Logger
}

// New creates a Notifier. A nil sender builds a PushDeer sender from cfg.Token.
func New(cfg types.Push, sender Sender, clock clockwork.Clock, loc *time.Location, logger runtime.Logger) *Notifier {
	if sender == nil {
		sender = NewPushDeer(cfg.Token)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = runtime.NopLogger{}
	}
	return &Notifier{cfg: cfg, sender: sender, clock: clock, loc: loc, logger: logger}
}

// Notify composes and sends the run report. It reports whether a message
// was sent; delivery failures are logged and never returned.
func (n *Notifier) Notify(ctx context.Context, entries []Entry, summary string) bool {
	if !n.cfg.Enabled() {
		return false
	}
	now := n.clock.Now().In(n.loc)
	if n.cfg.Hour != nil && now.Hour() != *n.cfg.Hour {
		n.logger.Info("push skipped outside configured hour", map[string]any{
			"push_hour": *n.cfg.Hour,
			"hour":      now.Hour(),
		})
		return false
	}

	body := Compose(entries, summary, n.cfg.Max)
	if err := n.sender.Send(ctx, Title(now), body); err != nil {
		n.logger.Warn("push delivery failed", map[string]any{"error": err.Error()})
		return false
	}
	n.logger.Info("push delivered", map[string]any{"accounts": len(entries)})
	return true
}

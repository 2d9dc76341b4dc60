package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Mora-na/mimotions/types"
)

var cst = time.FixedZone("CST", 8*3600)

type recordingSender struct {
	titles []string
	bodies []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, body string) error {
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, body)
	return s.err
}

func intPtr(n int) *int { return &n }

func TestCompose(t *testing.T) {
	entries := []Entry{
		{Account: "13800000000", Success: true, Message: "set steps (20000) [success]"},
		{Account: "a@b.com", Success: false, Message: "login failed: bad password"},
	}
	body := Compose(entries, Summary(2, 1), 30)

	for _, want := range []string{
		"accounts: 2, succeeded: 1, failed: 1\n\n",
		"- ✅ 13800000000: succeeded\n  response: set steps (20000) [success]\n",
		"- ❌ a@b.com: failed\n  reason: login failed: bad password\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	capped := Compose(entries, Summary(2, 1), 2)
	if strings.Contains(capped, "13800000000") {
		t.Errorf("capped body should not list accounts:\n%s", capped)
	}
	if !strings.Contains(capped, "too many accounts") {
		t.Errorf("capped body missing placeholder:\n%s", capped)
	}
}

func TestTitle(t *testing.T) {
	got := Title(time.Date(2026, 3, 4, 21, 5, 0, 0, cst))
	if got != "🏃 03-04 21:05 steps" {
		t.Fatalf("Title() = %q", got)
	}
}

func TestNotifier_Policy(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 13, 30, 0, 0, time.UTC)) // 21:30 CST

	tests := []struct {
		name string
		push types.Push
		sent bool
	}{
		{"disabled empty", types.Push{Max: 30}, false},
		{"disabled NO", types.Push{Token: "NO", Max: 30}, false},
		{"no hour gate", types.Push{Token: "k", Max: 30}, true},
		{"matching hour", types.Push{Token: "k", Hour: intPtr(21), Max: 30}, true},
		{"other hour", types.Push{Token: "k", Hour: intPtr(8), Max: 30}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &recordingSender{}
			n := New(tt.push, s, clock, cst, nil)
			got := n.Notify(context.Background(), []Entry{{Account: "x", Success: true}}, Summary(1, 1))
			if got != tt.sent {
				t.Fatalf("Notify() = %v, want %v", got, tt.sent)
			}
			if tt.sent && (len(s.titles) != 1 || s.titles[0] != "🏃 10-17 21:30 steps") {
				t.Fatalf("titles = %v", s.titles)
			}
			if !tt.sent && len(s.titles) != 0 {
				t.Fatalf("unexpected send: %v", s.titles)
			}
		})
	}
}

func TestNotifier_SendFailureSwallowed(t *testing.T) {
	s := &recordingSender{err: errors.New("connection refused")}
	n := New(types.Push{Token: "k", Max: 30}, s, clockwork.NewFakeClock(), cst, nil)
	if n.Notify(context.Background(), nil, Summary(0, 0)) {
		t.Fatal("expected false on send failure")
	}
	if len(s.bodies) != 1 {
		t.Fatalf("expected one attempt, got %d", len(s.bodies))
	}
}

func TestPushDeer_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		q := r.URL.Query()
		got = map[string]string{"pushkey": q.Get("pushkey"), "text": q.Get("text"), "desp": q.Get("desp")}
		switch q.Get("pushkey") {
		case "good":
			_, _ = w.Write([]byte(`{"code":0,"msg":"success"}`))
		case "rejected":
			_, _ = w.Write([]byte(`{"code":80403,"msg":"bad key"}`))
		case "garbled":
			_, _ = w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	send := func(key string) error {
		p := NewPushDeer(key)
		p.Endpoint = srv.URL
		return p.Send(context.Background(), "title", "body & more")
	}

	if err := send("good"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got["text"] != "title" || got["desp"] != "body & more" {
		t.Fatalf("query = %v", got)
	}
	for _, key := range []string{"rejected", "garbled", "broken"} {
		if err := send(key); err == nil {
			t.Errorf("Send(%s) expected error", key)
		}
	}
}

func TestPushDeer_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	p := NewPushDeer("k")
	p.Endpoint = srv.URL
	p.Client.Timeout = 50 * time.Millisecond
	if err := p.Send(context.Background(), "t", "b"); err == nil {
		t.Fatal("expected timeout error")
	}
}

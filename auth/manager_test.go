package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Mora-na/mimotions/credstore"
)

// fakeRemote records every call and answers from its fields.
type fakeRemote struct {
	mu    sync.Mutex
	calls []string

	validApp   map[string]bool
	loginApp   map[string]string     // login token → app token
	accessMap  map[string]LoginGrant // access token → grant
	passwords  map[string]string     // identity → secret
	newAccess  string
	checkError error
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) LoginAccessToken(_ context.Context, identity, secret string) (string, error) {
	f.record("login")
	if f.passwords[identity] != secret || secret == "" {
		return "", errors.New("bad password")
	}
	return f.newAccess, nil
}

func (f *fakeRemote) CheckAppToken(_ context.Context, appToken string) (bool, error) {
	f.record("check")
	if f.checkError != nil {
		return false, f.checkError
	}
	return f.validApp[appToken], nil
}

func (f *fakeRemote) GrantLoginTokens(_ context.Context, accessToken, _ string, _ bool) (LoginGrant, error) {
	f.record("grant_login")
	g, ok := f.accessMap[accessToken]
	if !ok {
		return LoginGrant{}, errors.New("access token expired")
	}
	return g, nil
}

func (f *fakeRemote) GrantAppToken(_ context.Context, loginToken string) (string, error) {
	f.record("grant_app")
	tok, ok := f.loginApp[loginToken]
	if !ok {
		return "", errors.New("login token expired")
	}
	return tok, nil
}

var (
	past = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	now  = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
)

func storedRecord() credstore.Record {
	r := credstore.Record{DeviceID: "dev-1"}
	r.GrantAccess("access-old", past)
	r.GrantLogin("login-old", "uid-1", past)
	r.GrantApp("app-old", past)
	return r
}

func newTestManager(remote Remote) *Manager {
	m := NewManager(remote, clockwork.NewFakeClockAt(now), nil)
	m.deviceID = func() string { return "dev-new" }
	return m
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestValidAppTokenCostsOneCall(t *testing.T) {
	remote := &fakeRemote{validApp: map[string]bool{"app-old": true}}
	m := newTestManager(remote)
	acct := NewAccount("13800000000", "pw")

	stored := storedRecord()
	out := m.ObtainAppToken(context.Background(), acct, stored, true)

	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err)
	}
	assertCalls(t, remote.Calls(), "check")
	if out.AppToken != "app-old" || out.Stage != StageCheckApp {
		t.Errorf("got token %q from stage %q", out.AppToken, out.Stage)
	}
	if out.Changed {
		t.Error("a valid app token must not mark the record changed")
	}
	if out.Record != stored {
		t.Errorf("record mutated: %+v", out.Record)
	}
}

func TestValidAppTokenIsIdempotent(t *testing.T) {
	remote := &fakeRemote{validApp: map[string]bool{"app-old": true}}
	m := newTestManager(remote)
	acct := NewAccount("13800000000", "pw")
	stored := storedRecord()

	first := m.ObtainAppToken(context.Background(), acct, stored, true)
	second := m.ObtainAppToken(context.Background(), acct, first.Record, true)

	if !first.OK() || !second.OK() {
		t.Fatalf("both validations should succeed: %v / %v", first.Err, second.Err)
	}
	if second.Record != stored {
		t.Error("timestamps must not change across repeated validation")
	}
	assertCalls(t, remote.Calls(), "check", "check")
}

func TestExpiredAppTokenRefreshesOnlyAppTier(t *testing.T) {
	remote := &fakeRemote{loginApp: map[string]string{"login-old": "app-new"}}
	m := newTestManager(remote)
	stored := storedRecord()

	out := m.ObtainAppToken(context.Background(), NewAccount("13800000000", "pw"), stored, true)

	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err)
	}
	assertCalls(t, remote.Calls(), "check", "grant_app")
	if out.Stage != StageRefreshApp || !out.Changed {
		t.Errorf("stage = %q changed = %v", out.Stage, out.Changed)
	}

	want := stored
	want.AppToken = "app-new"
	want.AppTokenTime = credstore.GrantTime{Time: now}
	if out.Record != want {
		t.Errorf("only the app tier should change:\n got  %+v\n want %+v", out.Record, want)
	}
}

func TestBothTiersExpiredDerivesBeforePrimaryLogin(t *testing.T) {
	remote := &fakeRemote{
		accessMap: map[string]LoginGrant{"access-old": {LoginToken: "login-new", AppToken: "app-new", UserID: "uid-2"}},
	}
	m := newTestManager(remote)
	stored := storedRecord()

	out := m.ObtainAppToken(context.Background(), NewAccount("13800000000", "pw"), stored, true)

	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err)
	}
	assertCalls(t, remote.Calls(), "check", "grant_app", "grant_login")
	if out.Stage != StageDeriveLogin {
		t.Errorf("stage = %q", out.Stage)
	}
	r := out.Record
	if r.AccessToken != "access-old" || !r.AccessTokenTime.Equal(past) {
		t.Error("access tier must be untouched")
	}
	if r.LoginToken != "login-new" || r.AppToken != "app-new" || r.UserID != "uid-2" {
		t.Errorf("lower tiers not updated: %+v", r)
	}
	if !r.LoginTokenTime.Equal(now) || !r.AppTokenTime.Equal(now) {
		t.Error("lower tier timestamps not updated")
	}
}

func TestAccessExhaustedFallsBackToPassword(t *testing.T) {
	remote := &fakeRemote{
		passwords: map[string]string{"+8613800000000": "pw"},
		newAccess: "access-new",
		accessMap: map[string]LoginGrant{"access-new": {LoginToken: "login-new", AppToken: "app-new", UserID: "uid-1"}},
	}
	m := newTestManager(remote)

	out := m.ObtainAppToken(context.Background(), NewAccount("13800000000", "pw"), storedRecord(), true)

	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err)
	}
	assertCalls(t, remote.Calls(), "check", "grant_app", "grant_login", "login", "grant_login")
	if out.Stage != StageReauthenticate {
		t.Errorf("stage = %q", out.Stage)
	}
	if out.Record.AccessToken != "access-new" || !out.Record.AccessTokenTime.Equal(now) {
		t.Errorf("access tier not regenerated: %+v", out.Record)
	}
	if out.Record.DeviceID != "dev-1" {
		t.Error("device id must be reused")
	}
	if len(out.Diagnostics) != 4 {
		t.Errorf("expected 3 failure notes and 1 success note, got %v", out.Diagnostics)
	}
}

func TestAllTiersFailReportsLastTier(t *testing.T) {
	remote := &fakeRemote{passwords: map[string]string{}}
	m := newTestManager(remote)
	stored := storedRecord()

	out := m.ObtainAppToken(context.Background(), NewAccount("13800000000", "wrong"), stored, true)

	if out.OK() {
		t.Fatal("expected failure")
	}
	var ex *ExhaustedError
	if !errors.As(out.Err, &ex) {
		t.Fatalf("expected ExhaustedError, got %T", out.Err)
	}
	if len(ex.Errors) != 4 {
		t.Fatalf("expected 4 stage failures, got %d", len(ex.Errors))
	}
	last := ex.Last()
	if last.Stage != StageReauthenticate || last.Tier != TierAccess {
		t.Errorf("last failure = %+v", last)
	}
	if !strings.Contains(out.Err.Error(), past.Format(time.DateTime)) {
		t.Errorf("diagnostic should carry the last grant time: %v", out.Err)
	}
	if out.Changed || out.Record != stored {
		t.Error("a failed cascade must not change the record")
	}
}

func TestNoRecordPerformsFullAcquisition(t *testing.T) {
	remote := &fakeRemote{
		passwords: map[string]string{"user@mail.com": "pw"},
		newAccess: "access-new",
		accessMap: map[string]LoginGrant{"access-new": {LoginToken: "l", AppToken: "a", UserID: "u"}},
	}
	m := newTestManager(remote)

	out := m.ObtainAppToken(context.Background(), NewAccount("user@mail.com", "pw"), credstore.Record{}, false)

	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err)
	}
	assertCalls(t, remote.Calls(), "login", "grant_login")
	if out.Record.DeviceID != "dev-new" {
		t.Errorf("new record should get a device id, got %q", out.Record.DeviceID)
	}
	if !out.Changed {
		t.Error("a new record must be marked changed")
	}
}

func TestMissingTokensSkipRemoteCalls(t *testing.T) {
	remote := &fakeRemote{passwords: map[string]string{}}
	m := newTestManager(remote)

	out := m.ObtainAppToken(context.Background(), NewAccount("13800000000", "pw"), credstore.Record{DeviceID: "d"}, true)

	if out.OK() {
		t.Fatal("expected failure")
	}
	assertCalls(t, remote.Calls(), "login")
}

func TestCheckErrorCascades(t *testing.T) {
	remote := &fakeRemote{
		checkError: context.DeadlineExceeded,
		loginApp:   map[string]string{"login-old": "app-new"},
	}
	m := newTestManager(remote)

	out := m.ObtainAppToken(context.Background(), NewAccount("13800000000", "pw"), storedRecord(), true)
	if !out.OK() || out.Stage != StageRefreshApp {
		t.Fatalf("a timed-out check should fall through to refresh, got stage %q err %v", out.Stage, out.Err)
	}
}

func TestCancelledContextStops(t *testing.T) {
	remote := &fakeRemote{}
	m := newTestManager(remote)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := m.ObtainAppToken(ctx, NewAccount("13800000000", "pw"), storedRecord(), true)
	if out.OK() {
		t.Fatal("expected failure on cancelled context")
	}
	if len(remote.Calls()) != 0 {
		t.Errorf("no calls expected, got %v", remote.Calls())
	}
}

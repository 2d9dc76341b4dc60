// Package auth implements the cascading refresh of the three-tier token chain
// (access → login → app) for a single account.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Mora-na/mimotions/credstore"
	"github.com/Mora-na/mimotions/runtime"
)

// Stage names, in cascade order.
const (
	StageCheckApp       = "check_app"
	StageRefreshApp     = "refresh_app"
	StageDeriveLogin    = "derive_login"
	StageReauthenticate = "reauthenticate"
)

// Outcome is the result of one ObtainAppToken call.
type Outcome struct {
	AppToken string
	UserID   string
	// Stage is the stage that produced AppToken; empty on failure.
	Stage string
	// Record is the account's record after the call. It is only worth
	// writing back when Changed is set.
	Record      credstore.Record
	Changed     bool
	Diagnostics []string
	Err         error
}

// OK reports whether a usable app token was obtained.
func (o Outcome) OK() bool { return o.Err == nil && o.AppToken != "" }

// Manager drives the cascade against a Remote.
type Manager struct {
	remote   Remote
	clock    clockwork.Clock
	logger   runtime.Logger
	deviceID func() string
}

// NewManager creates a Manager. A nil clock uses the real clock and a nil
// logger discards output.
func NewManager(remote Remote, clock clockwork.Clock, logger runtime.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = runtime.NopLogger{}
	}
	return &Manager{
		remote:   remote,
		clock:    clock,
		logger:   logger,
		deviceID: func() string { return uuid.NewString() },
	}
}

// session is the mutable state threaded through the stages of one call.
type session struct {
	acct     Account
	rec      credstore.Record
	changed  bool
	appToken string
	notes    []string
}

func (s *session) note(format string, args ...any) {
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
}

// stage is one attempt in the cascade. A nil error ends the cascade.
type stage struct {
	name string
	run  func(ctx context.Context, s *session) *TierError
}

// ObtainAppToken returns a usable app token for acct using the fewest remote
// calls. stored is the cached record and found whether one exists. Stages run
// cheapest first and the first success wins:
//
//  1. no stored record: reauthenticate directly
//  2. check_app: the cached app token is still accepted
//  3. refresh_app: derive a new app token from the login token
//  4. derive_login: derive login and app tokens from the access token
//  5. reauthenticate: primary login for a new access token, then derive once
func (m *Manager) ObtainAppToken(ctx context.Context, acct Account, stored credstore.Record, found bool) Outcome {
	s := &session{acct: acct, rec: stored}
	if s.rec.DeviceID == "" {
		s.rec.DeviceID = m.deviceID()
		s.changed = found
	}

	chain := m.stages(found)

	var failures []*TierError
	for _, st := range chain {
		if err := ctx.Err(); err != nil {
			failures = append(failures, &TierError{Stage: st.name, Tier: TierApp, Err: err})
			break
		}

		te := st.run(ctx, s)
		if te == nil {
			m.logger.Debug("token stage succeeded", map[string]any{
				"account": Desensitize(acct.Key), "stage": st.name,
			})
			return Outcome{
				AppToken:    s.appToken,
				UserID:      s.rec.UserID,
				Stage:       st.name,
				Record:      s.rec,
				Changed:     s.changed,
				Diagnostics: s.notes,
			}
		}

		failures = append(failures, te)
		s.note("%s", te.Error())
		m.logger.Debug("token stage failed", map[string]any{
			"account": Desensitize(acct.Key), "stage": st.name, "error": te.Err.Error(),
		})
	}

	return Outcome{
		Record:      s.rec,
		Changed:     s.changed,
		Diagnostics: s.notes,
		Err:         &ExhaustedError{Errors: failures},
	}
}

func (m *Manager) stages(found bool) []stage {
	if !found {
		return []stage{{StageReauthenticate, m.reauthenticate}}
	}
	return []stage{
		{StageCheckApp, m.checkApp},
		{StageRefreshApp, m.refreshApp},
		{StageDeriveLogin, m.deriveLogin},
		{StageReauthenticate, m.reauthenticate},
	}
}

func (m *Manager) checkApp(ctx context.Context, s *session) *TierError {
	fail := func(err error) *TierError {
		return &TierError{Stage: StageCheckApp, Tier: TierApp, LastGrant: s.rec.AppTokenTime, Err: err}
	}
	if s.rec.AppToken == "" {
		return fail(errMissing)
	}
	ok, err := m.remote.CheckAppToken(ctx, s.rec.AppToken)
	if err != nil {
		return fail(err)
	}
	if !ok {
		return fail(errors.New("rejected by service"))
	}
	s.appToken = s.rec.AppToken
	s.note("using cached app_token")
	return nil
}

func (m *Manager) refreshApp(ctx context.Context, s *session) *TierError {
	fail := func(err error) *TierError {
		return &TierError{Stage: StageRefreshApp, Tier: TierLogin, LastGrant: s.rec.LoginTokenTime, Err: err}
	}
	if s.rec.LoginToken == "" {
		return fail(errMissing)
	}
	tok, err := m.remote.GrantAppToken(ctx, s.rec.LoginToken)
	if err != nil {
		return fail(err)
	}
	s.rec.GrantApp(tok, m.clock.Now())
	s.changed = true
	s.appToken = tok
	s.note("app_token regenerated from login_token")
	return nil
}

func (m *Manager) deriveLogin(ctx context.Context, s *session) *TierError {
	if s.rec.AccessToken == "" {
		return &TierError{Stage: StageDeriveLogin, Tier: TierAccess, LastGrant: s.rec.AccessTokenTime, Err: errMissing}
	}
	rec, err := m.derive(ctx, s.acct, s.rec, s.rec.AccessToken)
	if err != nil {
		return &TierError{Stage: StageDeriveLogin, Tier: TierAccess, LastGrant: s.rec.AccessTokenTime, Err: err}
	}
	s.commit(rec)
	s.note("login_token and app_token regenerated from access_token")
	return nil
}

func (m *Manager) reauthenticate(ctx context.Context, s *session) *TierError {
	access, err := m.remote.LoginAccessToken(ctx, s.acct.Key, s.acct.Secret)
	if err != nil {
		return &TierError{
			Stage: StageReauthenticate, Tier: TierAccess, LastGrant: s.rec.AccessTokenTime,
			Err: fmt.Errorf("primary login failed: %w", err),
		}
	}

	// The fresh access token is only kept if derivation succeeds too.
	rec := s.rec
	rec.GrantAccess(access, m.clock.Now())
	rec, err = m.derive(ctx, s.acct, rec, access)
	if err != nil {
		return &TierError{
			Stage: StageReauthenticate, Tier: TierLogin, LastGrant: s.rec.LoginTokenTime,
			Err: fmt.Errorf("fresh access_token rejected: %w", err),
		}
	}
	s.commit(rec)
	s.note("signed in with password")
	return nil
}

// derive exchanges accessToken for the login and app tiers.
func (m *Manager) derive(ctx context.Context, acct Account, rec credstore.Record, accessToken string) (credstore.Record, error) {
	g, err := m.remote.GrantLoginTokens(ctx, accessToken, rec.DeviceID, acct.IsPhone)
	if err != nil {
		return rec, err
	}
	now := m.clock.Now()
	rec.GrantLogin(g.LoginToken, g.UserID, now)
	rec.GrantApp(g.AppToken, now)
	return rec, nil
}

func (s *session) commit(rec credstore.Record) {
	s.rec = rec
	s.changed = true
	s.appToken = rec.AppToken
}

// Package credstore holds the per-account token table and its encrypted
// on-disk form.
package credstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GrantTime records when a token tier was last (re)granted. It is stored as
// a millisecond epoch string; plain JSON numbers are accepted on read.
type GrantTime struct {
	time.Time
}

// MarshalJSON encodes the time as a quoted millisecond epoch, or "" when unset.
func (g GrantTime) MarshalJSON() ([]byte, error) {
	if g.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(strconv.FormatInt(g.UnixMilli(), 10))
}

// UnmarshalJSON accepts "1700000000000", 1700000000000, "", or null.
func (g *GrantTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		g.Time = time.Time{}
		return nil
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parsing grant time %q: %w", raw, err)
	}
	g.Time = time.UnixMilli(int64(ms))
	return nil
}

// String renders the grant time for diagnostics.
func (g GrantTime) String() string {
	if g.IsZero() {
		return "never"
	}
	return g.Format(time.DateTime)
}

// Record is the cached token chain for one account.
type Record struct {
	AccessToken     string    `json:"access_token"`
	LoginToken      string    `json:"login_token"`
	AppToken        string    `json:"app_token"`
	DeviceID        string    `json:"device_id"`
	UserID          string    `json:"user_id"`
	AccessTokenTime GrantTime `json:"access_token_time"`
	LoginTokenTime  GrantTime `json:"login_token_time"`
	AppTokenTime    GrantTime `json:"app_token_time"`
}

// GrantAccess replaces the access tier.
func (r *Record) GrantAccess(token string, at time.Time) {
	r.AccessToken = token
	r.AccessTokenTime = GrantTime{at}
}

// GrantLogin replaces the login tier and the user id learned with it.
func (r *Record) GrantLogin(token, userID string, at time.Time) {
	r.LoginToken = token
	r.UserID = userID
	r.LoginTokenTime = GrantTime{at}
}

// GrantApp replaces the app tier.
func (r *Record) GrantApp(token string, at time.Time) {
	r.AppToken = token
	r.AppTokenTime = GrantTime{at}
}

package zepp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/Mora-na/mimotions/auth"
)

var _ auth.Remote = (*Client)(nil)

// LoginAccessToken signs in with identity and secret. The service answers
// with a redirect whose Location query carries either access or error.
func (c *Client) LoginAccessToken(ctx context.Context, identity, secret string) (string, error) {
	form := url.Values{
		"client_id":    {clientID},
		"password":     {secret},
		"redirect_uri": {redirect},
		"token":        {"access"},
	}
	endpoint := c.ep.Auth + "/registrations/" + url.PathEscape(identity) + "/tokens"

	resp, body, err := c.postForm(ctx, endpoint, form, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusSeeOther && resp.StatusCode != http.StatusFound {
		return "", &APIError{Op: "login", Status: resp.StatusCode, Message: snippet(body)}
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return "", &APIError{Op: "login", Status: resp.StatusCode, Message: "unparsable redirect"}
	}
	q := loc.Query()
	if access := q.Get("access"); access != "" {
		return access, nil
	}
	code := q.Get("error")
	if code == "" {
		code = "no access token in redirect"
	}
	return "", &APIError{Op: "login", Status: resp.StatusCode, Code: code, Message: "access token not granted"}
}

type tokenInfo struct {
	LoginToken string `json:"login_token"`
	AppToken   string `json:"app_token"`
	UserID     string `json:"user_id"`
}

type grantResponse struct {
	TokenInfo *tokenInfo `json:"token_info"`
	Result    string     `json:"result"`
	ErrorCode string     `json:"error_code"`
}

// GrantLoginTokens exchanges an access token for login and app tokens.
func (c *Client) GrantLoginTokens(ctx context.Context, accessToken, deviceID string, isPhone bool) (auth.LoginGrant, error) {
	thirdName := "email"
	if isPhone {
		thirdName = "huami_phone"
	}
	form := url.Values{
		"app_name":     {appName},
		"app_version":  {appVersion},
		"code":         {accessToken},
		"country_code": {"CN"},
		"device_id":    {deviceID},
		"device_model": {"phone"},
		"grant_type":   {"access_token"},
		"third_name":   {thirdName},
	}

	resp, body, err := c.postForm(ctx, c.ep.Account+"/v2/client/login", form, nil)
	if err != nil {
		return auth.LoginGrant{}, err
	}
	var gr grantResponse
	if err := decodeJSON("grant login token", resp, body, &gr); err != nil {
		return auth.LoginGrant{}, err
	}
	if gr.TokenInfo == nil || gr.TokenInfo.LoginToken == "" || gr.TokenInfo.AppToken == "" {
		return auth.LoginGrant{}, &APIError{Op: "grant login token", Status: resp.StatusCode, Code: gr.ErrorCode, Message: "result " + gr.Result}
	}
	return auth.LoginGrant{
		LoginToken: gr.TokenInfo.LoginToken,
		AppToken:   gr.TokenInfo.AppToken,
		UserID:     gr.TokenInfo.UserID,
	}, nil
}

// GrantAppToken derives a fresh app token from a login token.
func (c *Client) GrantAppToken(ctx context.Context, loginToken string) (string, error) {
	q := url.Values{
		"app_name":    {appName},
		"dn":          {"api-user.huami.com,api-mifit.huami.com,app-analytics.huami.com"},
		"login_token": {loginToken},
	}
	resp, body, err := c.get(ctx, c.ep.AppToken+"/v1/client/app_tokens?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	var gr grantResponse
	if err := decodeJSON("grant app token", resp, body, &gr); err != nil {
		return "", err
	}
	if gr.TokenInfo == nil || gr.TokenInfo.AppToken == "" {
		return "", &APIError{Op: "grant app token", Status: resp.StatusCode, Code: gr.ErrorCode, Message: "result " + gr.Result}
	}
	return gr.TokenInfo.AppToken, nil
}

type codeResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CheckAppToken reports whether the service still accepts appToken. A
// rejection is (false, nil); transport and protocol failures are errors.
func (c *Client) CheckAppToken(ctx context.Context, appToken string) (bool, error) {
	q := url.Values{
		"r": {uuid.NewString()},
		"t": {strconv.FormatInt(c.clock.Now().UnixMilli(), 10)},
	}
	resp, body, err := c.get(ctx, c.ep.API+"/huami.health.getUserInfo.json?"+q.Encode(), appTokenHeader(appToken))
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, nil
	}
	var cr codeResponse
	if err := decodeJSON("check app token", resp, body, &cr); err != nil {
		return false, err
	}
	return cr.Code == 1, nil
}

// String identifies the client in logs.
func (c *Client) String() string {
	return fmt.Sprintf("zepp(%s)", c.ep.API)
}

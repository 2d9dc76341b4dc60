package auth

import "context"

// LoginGrant is the result of exchanging an access token for the lower tiers.
type LoginGrant struct {
	LoginToken string
	AppToken   string
	UserID     string
}

// Remote is the subset of the fitness service the token chain talks to.
// Every method must honour ctx and return an error on any network,
// protocol or rejection failure.
type Remote interface {
	// LoginAccessToken performs primary authentication.
	LoginAccessToken(ctx context.Context, identity, secret string) (string, error)
	// CheckAppToken reports whether an app token is still accepted.
	CheckAppToken(ctx context.Context, appToken string) (bool, error)
	// GrantLoginTokens derives login and app tokens from an access token.
	GrantLoginTokens(ctx context.Context, accessToken, deviceID string, isPhone bool) (LoginGrant, error)
	// GrantAppToken derives a fresh app token from a login token.
	GrantAppToken(ctx context.Context, loginToken string) (string, error)
}

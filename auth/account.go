package auth

import (
	"strings"
)

// Account is one configured identity for the duration of a run.
type Account struct {
	// Raw is the identity exactly as configured; per-account overrides are
	// keyed by it.
	Raw string
	// Key is the normalised identity used to index the credential store.
	Key     string
	Secret  string
	IsPhone bool
}

// NewAccount normalises a configured identity. Identities that already carry
// a +86 prefix or look like an email address are used literally; anything else
// is treated as a mainland phone number. Surrounding whitespace is kept so the
// store key matches the configured identity byte for byte.
func NewAccount(identity, secret string) Account {
	key := identity
	if !strings.HasPrefix(key, "+86") && !strings.Contains(key, "@") {
		key = "+86" + key
	}
	return Account{
		Raw:     identity,
		Key:     key,
		Secret:  secret,
		IsPhone: strings.HasPrefix(key, "+86"),
	}
}

// Valid reports whether both identity and secret are present.
func (a Account) Valid() bool {
	return a.Raw != "" && a.Secret != ""
}

// Desensitize masks an identity for logs and notifications.
func Desensitize(identity string) string {
	r := []rune(identity)
	if len(r) <= 8 {
		n := max(len(r)/3, 1)
		if len(r) < n {
			return "***"
		}
		return string(r[:n]) + "***" + string(r[len(r)-n:])
	}
	return string(r[:3]) + "****" + string(r[len(r)-4:])
}

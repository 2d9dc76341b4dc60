// Package secrets resolves AES_KEY and CONFIG from the environment or a
// dotenv file.
package secrets

import (
	"errors"
	"fmt"
)

// Well-known secret keys.
const (
	KeyAES    = "AES_KEY"
	KeyConfig = "CONFIG"
)

// Provider is a secret backend.
type Provider interface {
	// Get retrieves a secret by key. Returns *ErrSecretNotFound if absent.
	Get(key string) (string, error)

	// Name returns the provider's identifier.
	Name() string
}

// ErrSecretNotFound is returned when a requested secret key does not exist.
type ErrSecretNotFound struct {
	Key      string
	Provider string
}

func (e *ErrSecretNotFound) Error() string {
	return fmt.Sprintf("secret %q not found in provider %q", e.Key, e.Provider)
}

// IsNotFound reports whether err is an ErrSecretNotFound.
func IsNotFound(err error) bool {
	var target *ErrSecretNotFound
	return errors.As(err, &target)
}

// Lookup returns the secret or "" when no provider has it.
func Lookup(p Provider, key string) (string, error) {
	v, err := p.Get(key)
	if IsNotFound(err) {
		return "", nil
	}
	return v, err
}

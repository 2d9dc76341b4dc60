package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvProvider reads secrets from environment variables.
type EnvProvider struct{}

// NewEnvProvider creates an EnvProvider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

func (p *EnvProvider) Name() string { return "env" }

// Get returns the environment variable value for key.
func (p *EnvProvider) Get(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", &ErrSecretNotFound{Key: key, Provider: p.Name()}
	}
	return v, nil
}

// DotEnvProvider serves values parsed from a .env file without touching the
// process environment.
type DotEnvProvider struct {
	path   string
	values map[string]string
}

// NewDotEnvProvider parses path. A missing file yields an empty provider.
func NewDotEnvProvider(path string) (*DotEnvProvider, error) {
	p := &DotEnvProvider{path: path, values: map[string]string{}}
	if path == "" {
		return p, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p.values = values
	return p, nil
}

func (p *DotEnvProvider) Name() string { return "dotenv" }

// Get returns the value for key from the parsed file.
func (p *DotEnvProvider) Get(key string) (string, error) {
	v := p.values[key]
	if v == "" {
		return "", &ErrSecretNotFound{Key: key, Provider: p.Name()}
	}
	return v, nil
}

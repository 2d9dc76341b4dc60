package secrets

// ChainProvider tries multiple providers in order, returning the first successful result.
type ChainProvider struct {
	providers []Provider
}

// NewChainProvider creates a ChainProvider that queries providers in order.
// Non-NotFound errors are propagated immediately.
func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

func (c *ChainProvider) Name() string { return "chain" }

// Get tries each provider in order.
func (c *ChainProvider) Get(key string) (string, error) {
	v, _, err := c.GetWithSource(key)
	return v, err
}

// GetWithSource also reports which provider resolved the key.
func (c *ChainProvider) GetWithSource(key string) (value, source string, err error) {
	for _, p := range c.providers {
		val, err := p.Get(key)
		if err == nil {
			return val, p.Name(), nil
		}
		if !IsNotFound(err) {
			return "", "", err
		}
	}
	return "", "", &ErrSecretNotFound{Key: key, Provider: c.Name()}
}

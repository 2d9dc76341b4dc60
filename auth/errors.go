package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mora-na/mimotions/credstore"
)

// Tier names one level of the token chain.
type Tier string

const (
	TierAccess Tier = "access_token"
	TierLogin  Tier = "login_token"
	TierApp    Tier = "app_token"
)

// errMissing marks a tier whose input token is absent from the record.
var errMissing = errors.New("token not stored")

// TierError reports that a tier could not be validated or regenerated.
type TierError struct {
	Stage     string
	Tier      Tier
	LastGrant credstore.GrantTime
	Err       error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s: %s unusable (last grant %s): %v", e.Stage, e.Tier, e.LastGrant, e.Err)
}

func (e *TierError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when every stage of the cascade failed.
type ExhaustedError struct {
	Errors []*TierError
}

func (e *ExhaustedError) Error() string {
	if len(e.Errors) == 0 {
		return "all token stages exhausted"
	}
	parts := make([]string, len(e.Errors))
	for i, te := range e.Errors {
		parts[i] = te.Error()
	}
	return fmt.Sprintf("all token stages exhausted: [%s]", strings.Join(parts, "; "))
}

// Last returns the final stage failure, which names the tier that ended the
// cascade.
func (e *ExhaustedError) Last() *TierError {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

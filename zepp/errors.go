package zepp

import "fmt"

// APIError is a rejection or malformed answer from the service.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Status > 0:
		return fmt.Sprintf("%s failed (status %d, code %s): %s", e.Op, e.Status, e.Code, e.Message)
	case e.Status > 0:
		return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
}

package places

import (
	"errors"
	"fmt"
)

// HTTPError is a non-200 reply from the API host.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.StatusCode)
}

// StatusError is a well-formed reply whose status field is not OK.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places api status %s: %s", e.Status, e.Message)
	}
	return "places api status " + e.Status
}

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("places api key is not set")

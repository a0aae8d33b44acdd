package physics

import (
	"fmt"
	"net/http"
)

// HTTPError is returned when the physics service answers with a non-2xx status
// on a path whose status is checked.
type HTTPError struct {
	Path       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("physics %s: HTTP error %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// DecodeError is returned when a response body cannot be decoded
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("physics %s: decode response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

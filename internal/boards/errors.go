package boards

import (
	"errors"
	"fmt"
)

// ErrUnknownBoard is returned when no database entry matches. It is an expected
// outcome, callers demote the device to unidentified.
var ErrUnknownBoard = errors.New("no board found in the database")

// BoardAPIError reports a failed request to the online board API. StatusCode is
// zero when the request never got a response.
type BoardAPIError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *BoardAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("board API request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("board API request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *BoardAPIError) Unwrap() error { return e.Err }

// ResponseJSONError reports a board API response body that is not valid JSON.
type ResponseJSONError struct {
	URL string
	Err error
}

func (e *ResponseJSONError) Error() string {
	return fmt.Sprintf("invalid JSON in board API response from %s: %v", e.URL, e.Err)
}

func (e *ResponseJSONError) Unwrap() error { return e.Err }

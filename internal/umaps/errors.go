package umaps

import "fmt"

// ServerError is the ArcGIS error envelope. The proxy returns it inside
// an HTTP 200, so status-code checks alone miss it.
type ServerError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// ThrottleError is the embedded 403/429 envelope the proxy emits when it
// starts rate limiting a session.
type ThrottleError struct {
	Code    int
	Message string
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled by server (code %d): %s", e.Code, e.Message)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.URL)
}

// DecodeError wraps a payload that was not valid JSON or was missing
// the expected envelope fields.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed payload: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

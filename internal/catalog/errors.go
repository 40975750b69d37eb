package catalog

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the catalog does not answer within the
// client's timeout. The in-flight request is cancelled.
var ErrTimeout = errors.New("catalog: request timed out")

// HTTPStatusError is returned for a non-2xx catalog response.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// ParseError is returned when the response body is not a valid product list.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse catalog response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// NetworkError is returned for connection-level failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "catalog request failed: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindTimeout    = "timeout"
	KindHTTPStatus = "http_status"
	KindParse      = "parse"
	KindNetwork    = "network"
	KindCanceled   = "canceled"
	KindUnknown    = "unknown"
)

// Kind classifies a Fetch error for metrics and logs. It returns "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var (
		statusErr *HTTPStatusError
		parseErr  *ParseError
		netErr    *NetworkError
	)
	switch {
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.As(err, &statusErr):
		return KindHTTPStatus
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.Is(err, errCanceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// errCanceled marks a fetch abandoned because the caller's context ended.
var errCanceled = errors.New("catalog: request canceled")

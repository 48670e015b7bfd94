package whatsapp

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// SendError is a classified delivery failure. Retryable is decided once,
// at classification time, from the transport condition or the API status.
type SendError struct {
	StatusCode int
	Code       int
	Message    string
	retryable  bool
}

func (e *SendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("whatsapp send failed: %s", e.Message)
	}
	return fmt.Sprintf("whatsapp send failed: status=%d code=%d %s", e.StatusCode, e.Code, e.Message)
}

// Retryable reports whether the failure is worth re-attempting.
func (e *SendError) Retryable() bool {
	return e.retryable
}

// classifyTransport wraps network-level failures. Timeouts and connection
// resets are transient.
func classifyTransport(err error) *SendError {
	retryable := false
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		retryable = true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		retryable = true
	}

	return &SendError{Message: err.Error(), retryable: retryable}
}

// classifyStatus maps an API response to a classification: 429 and 5xx are
// transient, auth failures and template rejections are not.
func classifyStatus(statusCode, apiCode int, message string) *SendError {
	retryable := statusCode == http.StatusTooManyRequests || statusCode >= 500

	return &SendError{
		StatusCode: statusCode,
		Code:       apiCode,
		Message:    message,
		retryable:  retryable,
	}
}

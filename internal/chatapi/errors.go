package chatapi

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Kind categorizes a failed exchange for logs and metrics. The user sees the
// same configured message whatever the kind.
type Kind string

const (
	KindNone      Kind = "ok"
	KindTransport Kind = "transport" // connection refused, DNS, reset
	KindTimeout   Kind = "timeout"   // deadline exceeded or client timeout
	KindCanceled  Kind = "canceled"  // caller gave up
	KindStatus    Kind = "status"    // non-2xx response
	KindDecode    Kind = "decode"    // 2xx with a body that is not a JSON object
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat endpoint status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat endpoint status %d: %s", e.StatusCode, e.Body)
}

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decoding chat reply: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Classify maps an error returned by Send to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return KindStatus
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return KindDecode
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

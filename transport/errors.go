package transport

import (
	"errors"
	"fmt"
)

// Kind classifies why a call to the feedback service failed.
type Kind string

const (
	// KindNetwork covers dial failures, timeouts and cancellation.
	KindNetwork Kind = "network"
	// KindServer is a non-2xx response.
	KindServer Kind = "server"
	// KindMalformed is a 2xx response whose body could not be used.
	KindMalformed Kind = "malformed-response"
)

// Error is returned by every Client call that does not succeed.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	// Message is the server supplied error text, when there was one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err, or "" if err did not come from a Client.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

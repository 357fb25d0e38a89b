package realtime

import (
	"errors"
	"fmt"
)

// errBinaryMessage is the client-visible rejection of binary frames.
var errBinaryMessage = errors.New("Messages must be JSON-encoded text, not binary blobs.")

// errInternal is the client-visible form of invariant violations; the
// cause is logged, never sent.
var errInternal = errors.New("Internal Error")

// parseError wraps a request decoding failure with the client-visible
// prefix.
type parseError struct {
	cause error
}

func (e *parseError) Error() string {
	return fmt.Sprintf("Request could not be parsed: %v", e.cause)
}

func (e *parseError) Unwrap() error {
	return e.cause
}

// socketWriteError marks a network-level write failure. The peer is
// probably gone, so it is logged at warn rather than error.
type socketWriteError struct {
	cause error
}

func (e *socketWriteError) Error() string {
	return fmt.Sprintf("error occurred while attempting to write to socket: %v", e.cause)
}

func (e *socketWriteError) Unwrap() error {
	return e.cause
}

// serializationError marks a response that could not be encoded. This
// is a server bug, logged at error.
type serializationError struct {
	cause error
}

func (e *serializationError) Error() string {
	return fmt.Sprintf("failed to serialize response: %v", e.cause)
}

func (e *serializationError) Unwrap() error {
	return e.cause
}

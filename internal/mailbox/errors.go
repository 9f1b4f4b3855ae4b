package mailbox

import (
	"errors"
	"fmt"
)

// ConnectionError indicates that a dial gave up after exhausting its
// retry budget. It is not fatal to the process; callers skip the
// operation that needed the session.
type ConnectionError struct {
	Protocol string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf(
		"%s connection failed after %d attempt(s): %v",
		e.Protocol, e.Attempts, e.Err,
	)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is
// a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// FetchError wraps the failure to retrieve one message. The reader
// logs it and moves on to the next identifier.
type FetchError struct {
	UID uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching message uid %d: %v", e.UID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError wraps the failure to decode one MIME part. It never
// aborts a message; the decoder substitutes a sentinel marker and
// records the error in the log.
type DecodeError struct {
	Part string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding part %s: %v", e.Part, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MoveError indicates that a folder move did not happen. The source
// message is guaranteed untouched unless Copied is true, in which case
// the copy landed but the source cleanup failed and the message may
// exist in both folders.
type MoveError struct {
	UID    uint32
	Target string
	Copied bool
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf(
		"moving message uid %d to %q: %v", e.UID, e.Target, e.Err,
	)
}

func (e *MoveError) Unwrap() error { return e.Err }

// IsMoveError reports whether err (or any error in its chain) is a
// MoveError.
func IsMoveError(err error) bool {
	var me *MoveError
	return errors.As(err, &me)
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package poll

// ErrorKind identifies a class of polling failure.  It has full support for
// errors.Is and errors.As, so the caller can directly check against an
// error kind when determining the reason for an error.
type ErrorKind string

// These constants classify the failures of a bounded polling loop.
const (
	// ErrLiveness indicates a bounded loop ran out of attempts before the
	// node reached the target state.
	ErrLiveness = ErrorKind("ErrLiveness")

	// ErrInvariant indicates the node was observed in a state a correctly
	// behaving node and caller can never produce.
	ErrInvariant = ErrorKind("ErrInvariant")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a polling failure.  It has full support for errors.Is
// and errors.As, so the caller can ascertain the specific reason for the
// error by checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// pollError creates an Error given a set of arguments.
func pollError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

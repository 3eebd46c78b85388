// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mweb

import (
	"github.com/gandercoin/chainfixture/poll"
)

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrActivationStep indicates a step of the activation sequence
	// failed.  The sequence is aborted at the first failing step.
	ErrActivationStep = ErrorKind("ErrActivationStep")

	// ErrNodeRequest indicates a request made while inspecting the chain
	// tip failed or returned data that could not be interpreted.
	ErrNodeRequest = ErrorKind("ErrNodeRequest")

	// ErrNoHogEx indicates the chain tip does not end with an integrating
	// transaction carrying an aggregation output.
	ErrNoHogEx = ErrorKind("ErrNoHogEx")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an MWEB fixture failure.  It has full support for
// errors.Is and errors.As: the kind, poll.ErrInvariant for ErrNoHogEx and
// the underlying cause all match.
type Error struct {
	Err         error
	Description string
	Cause       error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Cause == nil {
		return e.Description
	}
	return e.Description + ": " + e.Cause.Error()
}

// Unwrap returns the kind, its class and the cause.
func (e Error) Unwrap() []error {
	errs := []error{e.Err}
	if e.Err == ErrNoHogEx {
		errs = append(errs, poll.ErrInvariant)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// mwebError creates an Error given a set of arguments.
func mwebError(kind ErrorKind, desc string, cause error) Error {
	return Error{Err: kind, Description: desc, Cause: cause}
}

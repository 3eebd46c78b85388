// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package utxo

import (
	"github.com/gandercoin/chainfixture/poll"
)

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrInvalidAmount indicates the requested amount is not positive or
	// too large to be funded.
	ErrInvalidAmount = ErrorKind("ErrInvalidAmount")

	// ErrFundingExhausted indicates the wallet balance did not reach the
	// needed amount within the configured number of funding rounds.
	ErrFundingExhausted = ErrorKind("ErrFundingExhausted")

	// ErrMempoolNotDrained indicates the mempool still held transactions
	// after the configured number of single-block generations.
	ErrMempoolNotDrained = ErrorKind("ErrMempoolNotDrained")

	// ErrAmbiguousOutput indicates more than one output of the funding
	// transaction pays the fresh address.
	ErrAmbiguousOutput = ErrorKind("ErrAmbiguousOutput")

	// ErrMissingOutput indicates no output of the funding transaction pays
	// the fresh address.
	ErrMissingOutput = ErrorKind("ErrMissingOutput")

	// ErrOutputValueMismatch indicates the funding output does not carry
	// exactly the amount that was sent.
	ErrOutputValueMismatch = ErrorKind("ErrOutputValueMismatch")

	// ErrMempoolStalled indicates generating a block did not shrink the
	// mempool.
	ErrMempoolStalled = ErrorKind("ErrMempoolStalled")

	// ErrSignRejected indicates the node's wallet refused to sign or could
	// not completely sign the spend.
	ErrSignRejected = ErrorKind("ErrSignRejected")

	// ErrBroadcastRejected indicates the node refused the signed spend.
	ErrBroadcastRejected = ErrorKind("ErrBroadcastRejected")

	// ErrNodeRequest indicates any other request to the node failed.
	ErrNodeRequest = ErrorKind("ErrNodeRequest")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// class returns the polling failure class of the kind, or nil for
// collaborator and caller errors.
func (e ErrorKind) class() error {
	switch e {
	case ErrFundingExhausted, ErrMempoolNotDrained:
		return poll.ErrLiveness
	case ErrAmbiguousOutput, ErrMissingOutput, ErrOutputValueMismatch,
		ErrMempoolStalled:

		return poll.ErrInvariant
	}
	return nil
}

// Error identifies a failure to build an output.  It has full support for
// errors.Is and errors.As: the kind, its failure class (poll.ErrLiveness or
// poll.ErrInvariant) and the underlying cause, such as a *btcjson.RPCError
// returned by the node, all match.
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
	if kind, ok := e.Err.(ErrorKind); ok {
		if class := kind.class(); class != nil {
			errs = append(errs, class)
		}
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// utxoError creates an Error given a set of arguments.
func utxoError(kind ErrorKind, desc string, cause error) Error {
	return Error{Err: kind, Description: desc, Cause: cause}
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
)

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrAmountSyntax indicates a decimal amount could not be parsed.
	ErrAmountSyntax = ErrorKind("ErrAmountSyntax")

	// ErrAmountPrecision indicates a decimal amount carries non-zero
	// digits below the smallest currency unit.
	ErrAmountPrecision = ErrorKind("ErrAmountPrecision")

	// ErrAmountRange indicates a decimal amount is outside the range of
	// valid amounts.
	ErrAmountRange = ErrorKind("ErrAmountRange")

	// ErrInvalidResponse indicates the node returned a result that could
	// not be decoded into the expected shape.
	ErrInvalidResponse = ErrorKind("ErrInvalidResponse")

	// ErrIncompleteSignature indicates the node's wallet could not sign
	// every input of a transaction.
	ErrIncompleteSignature = ErrorKind("ErrIncompleteSignature")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error raised while talking to the node or decoding
// its responses.  It has full support for errors.Is and errors.As, so the
// caller can ascertain the specific reason for the error by checking the
// underlying error.
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

// amountError creates an Error given a set of arguments.
func amountError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

// responseError creates an ErrInvalidResponse error for the given method.
func responseError(method string, err error) Error {
	return Error{
		Err:         ErrInvalidResponse,
		Description: fmt.Sprintf("malformed %s response: %v", method, err),
	}
}

// SignError is returned when signrawtransactionwithwallet reports that the
// transaction is not completely signed.  The per-input errors reported by
// the node are kept verbatim.
type SignError struct {
	Errors []btcjson.SignRawTransactionError
}

// Error satisfies the error interface and prints human-readable errors.
func (e *SignError) Error() string {
	if len(e.Errors) == 0 {
		return "transaction is not completely signed"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, in := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("input %s:%d: %s", in.TxID,
			in.Vout, in.Error))
	}
	return "transaction is not completely signed: " +
		strings.Join(msgs, "; ")
}

// Unwrap returns ErrIncompleteSignature so callers can match the kind.
func (e *SignError) Unwrap() error {
	return ErrIncompleteSignature
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package poll provides bounded polling loops for driving an asynchronous
// node towards a target state.  Every loop has an explicit cap and reports
// how it finished as a typed Result instead of spinning or panicking.
package poll

import (
	"fmt"
)

// Outcome classifies how a polling loop finished.
type Outcome uint8

const (
	// Converged means the target state was reached.
	Converged Outcome = iota

	// TimedOut means the attempt cap was exhausted first.
	TimedOut

	// InvariantViolated means an observation contradicted what the loop
	// requires of a correctly behaving node.
	InvariantViolated

	// Failed means a check or step returned an error.
	Failed
)

// outcomeStrings is a map of outcomes back to their constant names for
// pretty printing.
var outcomeStrings = map[Outcome]string{
	Converged:         "Converged",
	TimedOut:          "TimedOut",
	InvariantViolated: "InvariantViolated",
	Failed:            "Failed",
}

// String returns the Outcome as a human-readable name.
func (o Outcome) String() string {
	if s := outcomeStrings[o]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown Outcome (%d)", uint8(o))
}

// Result describes a finished polling loop.
type Result struct {
	Outcome Outcome

	// Attempts is the number of steps taken.
	Attempts int

	// Trace holds the observations made by StrictlyDecreasing, oldest
	// first.
	Trace []int

	// Err is the classified error for every outcome except Converged.
	Err error
}

// Ok reports whether the loop converged.
func (r *Result) Ok() bool {
	return r.Outcome == Converged
}

// Until calls done and, while it reports false, advance, giving up after
// maxAttempts calls to advance.  The state is checked once more after the
// final step, so maxAttempts steps get a fair chance to converge.
func Until(maxAttempts int, done func() (bool, error), advance func() error) Result {
	var res Result
	for {
		ok, err := done()
		if err != nil {
			res.Outcome, res.Err = Failed, err
			return res
		}
		if ok {
			res.Outcome = Converged
			return res
		}
		if res.Attempts >= maxAttempts {
			res.Outcome = TimedOut
			res.Err = pollError(ErrLiveness, fmt.Sprintf("target "+
				"state not reached after %d attempts",
				res.Attempts))
			return res
		}
		if err := advance(); err != nil {
			res.Outcome, res.Err = Failed, err
			return res
		}
		res.Attempts++
	}
}

// StrictlyDecreasing drives a non-negative quantity to zero.  After each
// call to advance the observed value must be strictly lower than the one
// before; a value that stays put or grows is reported as an invariant
// violation rather than waited on.  At most maxSteps calls to advance are
// made.
func StrictlyDecreasing(maxSteps int, observe func() (int, error), advance func() error) Result {
	var res Result
	cur, err := observe()
	if err != nil {
		res.Outcome, res.Err = Failed, err
		return res
	}
	res.Trace = append(res.Trace, cur)

	for cur > 0 {
		if res.Attempts >= maxSteps {
			res.Outcome = TimedOut
			res.Err = pollError(ErrLiveness, fmt.Sprintf("still "+
				"at %d after %d steps (trace %v)", cur,
				res.Attempts, res.Trace))
			return res
		}
		if err := advance(); err != nil {
			res.Outcome, res.Err = Failed, err
			return res
		}
		res.Attempts++

		next, err := observe()
		if err != nil {
			res.Outcome, res.Err = Failed, err
			return res
		}
		res.Trace = append(res.Trace, next)
		if next >= cur {
			res.Outcome = InvariantViolated
			res.Err = pollError(ErrInvariant, fmt.Sprintf("expected "+
				"a value below %d after step %d, observed %d "+
				"(trace %v)", cur, res.Attempts, next,
				res.Trace))
			return res
		}
		cur = next
	}

	res.Outcome = Converged
	return res
}

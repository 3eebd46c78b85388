// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mweb provides fixtures for the MimbleWimble extension block.

Activator runs the regtest activation sequence: mine up to the block before
activation, peg coins into an MWEB address, mine the activation block.

Inspector reads the tip of the chain.  Every block carrying an extension
block ends with an integrating (hogex) transaction whose output 0, the
aggregation output, holds all coins in the extension block and is locked to
a hog-address committing to the MWEB header hash.  Inspector returns that
output and the tip's MWEB header, and drafts replacement hogex transactions
committing to a caller-chosen header hash so tests can exercise the node's
validation of them.

Header models the MWEB header and computes its BLAKE3 hash.
*/
package mweb

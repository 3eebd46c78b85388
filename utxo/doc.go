// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package utxo creates spendable outputs of an exact value on a node under
test.

The node's wallet only offers coarse primitives: mine blocks, pay an amount
to an address.  Builder turns them into an output of a precise value locked
to a caller-chosen script:

 1. Mine blocks in batches until the wallet balance covers the amount plus
    a fixed fee.
 2. Pay amount + fee to a fresh wallet address and locate the single output
    paying it.
 3. Spend that output into one output of exactly amount, have the wallet
    sign it and broadcast it.
 4. Optionally mine single blocks until the mempool is empty, requiring
    every block to shrink it.

Every loop is bounded.  A node that never funds the wallet or never drains
its mempool yields an error classified as poll.ErrLiveness; a node that
contradicts what was asked of it yields poll.ErrInvariant.
*/
package utxo

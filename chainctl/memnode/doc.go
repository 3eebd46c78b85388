// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package memnode implements chainctl.Controller with an in-memory regtest
node, so fixtures can be unit tested without a node process.

The node keeps a single chain starting at the genesis block of the
configured network.  Its wallet hands out keys derived from a seed, signs
with them and receives every coinbase.  Transactions are checked against the
UTXO set and have their scripts executed before entering the mempool;
generating a block mines the mempool in acceptance order.  Confirmed
transactions are kept in a goleveldb transaction index.

From the MWEB activation height on, sending to an MWEB address produces a
peg-in output.  The first block mining a peg-in starts the extension block;
it and every later block carry an mweb section and end with an integrating
transaction that moves the previous aggregation output and the block's
peg-ins to a hog-address committing to the block's MWEB header.

Hooks let tests disturb the node: refuse to sign, refuse broadcasts, or run
code after each block, for example to keep the mempool from draining with
InjectMempoolTx.
*/
package memnode

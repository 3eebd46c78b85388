// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txbuild assembles the small unsigned transactions fixtures hand to
// the node for signing or inspection.
package txbuild

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxVersion is the version used for every draft, the node's default for
// transactions built without one.
const TxVersion = 1

// Tx is a transaction draft.  It may be modified freely until it is handed
// to the node for signing.
type Tx struct {
	MsgTx *wire.MsgTx

	// HogEx marks the draft as an integrating (hogex) transaction, the
	// final transaction of an MWEB block.  The flag is not part of the
	// serialization and does not affect the identifier.
	HogEx bool
}

// TxHash returns the identifier of the draft as the node would compute it.
func (t *Tx) TxHash() chainhash.Hash {
	return t.MsgTx.TxHash()
}

// String returns a short description of the draft for logging.
func (t *Tx) String() string {
	kind := "tx"
	if t.HogEx {
		kind = "hogex"
	}
	return fmt.Sprintf("%s %v (%d in, %d out)", kind, t.TxHash(),
		len(t.MsgTx.TxIn), len(t.MsgTx.TxOut))
}

// NewSpend builds a draft with prevOut as its only input and a single output
// paying amount to pkScript.  The difference between the value of prevOut
// and amount is left as fee.
func NewSpend(prevOut wire.OutPoint, amount btcutil.Amount, pkScript []byte) *Tx {
	msgTx := wire.NewMsgTx(TxVersion)
	msgTx.AddTxIn(wire.NewTxIn(&prevOut, nil, nil))
	msgTx.AddTxOut(wire.NewTxOut(int64(amount), pkScript))
	return &Tx{MsgTx: msgTx}
}

// NewHogEx builds an unsigned hogex draft spending output 0 of the previous
// integrating transaction into a single output of the same value.
func NewHogEx(prevHogEx *chainhash.Hash, amount btcutil.Amount, pkScript []byte) *Tx {
	tx := NewSpend(wire.OutPoint{Hash: *prevHogEx, Index: 0}, amount, pkScript)
	tx.HogEx = true
	return tx
}

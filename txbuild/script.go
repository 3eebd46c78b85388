// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txbuild

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
)

// HogAddrVersion is the witness version of hog-address scripts.
const HogAddrVersion = txscript.OP_8

// DummyP2WPKHScript is an output script with the size of a P2WPKH output,
// 21 bytes of 'a' pushed as data.  It keeps a one-in, one-out transaction
// above the minimum standard non-witness size while being unspendable.
var DummyP2WPKHScript = mustScript(txscript.NewScriptBuilder().
	AddData(bytes.Repeat([]byte{'a'}, 21)))

// HogAddrScript returns the output script locking the MWEB aggregate to an
// extension block: witness version 8 followed by the 32-byte MWEB header
// hash.
func HogAddrScript(mwebHash [32]byte) []byte {
	return mustScript(txscript.NewScriptBuilder().
		AddOp(HogAddrVersion).
		AddData(mwebHash[:]))
}

// IsHogAddrScript reports whether pkScript has the shape produced by
// HogAddrScript.
func IsHogAddrScript(pkScript []byte) bool {
	return len(pkScript) == 34 && pkScript[0] == HogAddrVersion &&
		pkScript[1] == txscript.OP_DATA_32
}

// mustScript finalizes a builder whose contents are fixed at compile time.
func mustScript(b *txscript.ScriptBuilder) []byte {
	script, err := b.Script()
	if err != nil {
		panic(err)
	}
	return script
}

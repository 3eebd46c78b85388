// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mweb

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/txbuild"
)

// InspectorConfig tunes an Inspector.
type InspectorConfig struct {
	// SkipHogExCheck disables the checks that the last transaction of the
	// tip is an integrating transaction.  With it set, the last
	// transaction is used as is, whatever it is.
	SkipHogExCheck bool
}

// Inspector reads the MWEB state of the chain tip and assembles hogex
// drafts from it.  Every call refetches the tip, so consecutive calls
// without a new block in between return equal results.
type Inspector struct {
	ctl chainctl.Controller
	cfg InspectorConfig
}

// NewInspector returns an Inspector reading from ctl.  A nil cfg selects
// the defaults.
func NewInspector(ctl chainctl.Controller, cfg *InspectorConfig) *Inspector {
	var c InspectorConfig
	if cfg != nil {
		c = *cfg
	}
	return &Inspector{ctl: ctl, cfg: c}
}

// HogAddrTxOut returns output 0 of the integrating transaction of the tip,
// the aggregation output holding every coin in the extension block.
func (i *Inspector) HogAddrTxOut() (*wire.TxOut, error) {
	blk, err := i.bestBlock()
	if err != nil {
		return nil, err
	}
	hogEx, err := i.hogEx(blk)
	if err != nil {
		return nil, err
	}
	return hogAddrTxOut(hogEx)
}

// HeaderTip returns the MWEB header of the tip, or nil with no error when
// the tip carries no extension block.
func (i *Inspector) HeaderTip() (*Header, error) {
	blk, err := i.bestBlock()
	if err != nil {
		return nil, err
	}
	if blk.MWEB == nil {
		log.Debugf("Block %s has no mweb section", blk.Hash)
		return nil, nil
	}
	header, err := ParseHeader(blk.MWEB)
	if err != nil {
		str := fmt.Sprintf("malformed mweb section in block %s", blk.Hash)
		return nil, mwebError(ErrNodeRequest, str, err)
	}
	return header, nil
}

// CreateHogEx returns an unsigned hogex draft moving the aggregation output
// of the tip to the hog-address committing to mwebHash.  The draft spends
// output 0 of the tip's integrating transaction into a single output of the
// same value.
func (i *Inspector) CreateHogEx(mwebHash Hash) (*txbuild.Tx, error) {
	blk, err := i.bestBlock()
	if err != nil {
		return nil, err
	}
	hogEx, err := i.hogEx(blk)
	if err != nil {
		return nil, err
	}
	prev, err := chainhash.NewHashFromStr(hogEx.Txid)
	if err != nil {
		str := fmt.Sprintf("malformed txid of hogex in block %s", blk.Hash)
		return nil, mwebError(ErrNodeRequest, str, err)
	}
	txOut, err := hogAddrTxOut(hogEx)
	if err != nil {
		return nil, err
	}

	tx := txbuild.NewHogEx(prev, btcutil.Amount(txOut.Value),
		txbuild.HogAddrScript(mwebHash))
	log.Debugf("Drafted %v committing to %v", tx, mwebHash)
	return tx, nil
}

// bestBlock fetches the tip with every transaction decoded.
func (i *Inspector) bestBlock() (*chainctl.GetBlockVerboseTxResult, error) {
	blk, err := chainctl.BestBlock(i.ctl)
	if err != nil {
		return nil, mwebError(ErrNodeRequest, "fetching best block", err)
	}
	return blk, nil
}

// hogEx returns the last transaction of blk after checking, unless
// disabled, that it is the block's integrating transaction.
func (i *Inspector) hogEx(blk *chainctl.GetBlockVerboseTxResult) (*chainctl.TxRawResult, error) {
	if len(blk.Tx) == 0 {
		str := fmt.Sprintf("block %s has no transactions", blk.Hash)
		return nil, mwebError(ErrNoHogEx, str, nil)
	}
	tx := &blk.Tx[len(blk.Tx)-1]
	if len(tx.Vout) == 0 {
		str := fmt.Sprintf("last transaction %s of block %s has no "+
			"outputs", tx.Txid, blk.Hash)
		return nil, mwebError(ErrNoHogEx, str, nil)
	}
	if i.cfg.SkipHogExCheck {
		return tx, nil
	}

	// Only blocks carrying an extension block end with an integrating
	// transaction.
	if blk.MWEB == nil {
		str := fmt.Sprintf("block %s has no mweb section", blk.Hash)
		return nil, mwebError(ErrNoHogEx, str, nil)
	}
	if tx.HogEx != nil && !*tx.HogEx {
		str := fmt.Sprintf("last transaction %s of block %s is not "+
			"marked hogex", tx.Txid, blk.Hash)
		return nil, mwebError(ErrNoHogEx, str, nil)
	}
	script, err := hex.DecodeString(tx.Vout[0].ScriptPubKey.Hex)
	if err == nil && !txbuild.IsHogAddrScript(script) {
		str := fmt.Sprintf("output 0 of last transaction %s of block %s "+
			"is not a hog-address", tx.Txid, blk.Hash)
		return nil, mwebError(ErrNoHogEx, str, nil)
	}
	return tx, nil
}

// hogAddrTxOut converts output 0 of a decoded transaction.
func hogAddrTxOut(tx *chainctl.TxRawResult) (*wire.TxOut, error) {
	vout := &tx.Vout[0]
	script, err := hex.DecodeString(vout.ScriptPubKey.Hex)
	if err != nil {
		str := fmt.Sprintf("malformed script of output 0 of %s", tx.Txid)
		return nil, mwebError(ErrNodeRequest, str, err)
	}
	return wire.NewTxOut(int64(vout.Value), script), nil
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memnode

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"lukechampine.com/blake3"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/mweb"
	"github.com/gandercoin/chainfixture/txbuild"
)

// blockVersion is the version of generated blocks.
const blockVersion = 0x20000000

// block is a block of the node's chain.
type block struct {
	msg    *wire.MsgBlock
	hash   chainhash.Hash
	height int32

	// mweb is the extension block header, nil for blocks without one.
	// Blocks with one end with their integrating transaction.
	mweb *mweb.Header
}

// subsidy returns the block subsidy at height.
func (n *Node) subsidy(height int32) int64 {
	halvings := height / n.cfg.HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return int64(n.cfg.Subsidy) >> uint(halvings)
}

// coinbaseTx creates the coinbase of the block at height.
func (n *Node) coinbaseTx(height int32, fees int64) (*wire.MsgTx, error) {
	sigScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(height)).AddInt64(0).Script()
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			wire.MaxPrevOutIndex),
		SignatureScript: sigScript,
		Sequence:        wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(n.subsidy(height)+fees, n.miningScript))
	return tx, nil
}

// digest hashes the concatenation of parts with BLAKE3.
func digest(parts ...[]byte) mweb.Hash {
	h := blake3.New(mweb.HashSize, nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out mweb.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// nextMWEBHeader derives the extension block header of the block at height
// with the given peg-in outputs.  The roots chain over their predecessors,
// so every header is unique.
func (n *Node) nextMWEBHeader(height int32, pegIns []*wire.TxOut) *mweb.Header {
	prev := n.mwebTip
	if prev == nil {
		prev = &mweb.Header{}
	}
	var heightBytes [4]byte
	binary.LittleEndian.PutUint32(heightBytes[:], uint32(height))

	outputs := [][]byte{prev.OutputRoot[:]}
	kernels := [][]byte{prev.KernelRoot[:]}
	for _, txOut := range pegIns {
		var value [8]byte
		binary.LittleEndian.PutUint64(value[:], uint64(txOut.Value))
		outputs = append(outputs, txOut.PkScript)
		kernels = append(kernels, txOut.PkScript, value[:])
	}

	h := &mweb.Header{
		Height:     height,
		OutputRoot: digest(outputs...),
		KernelRoot: digest(kernels...),
		NumTXOs:    prev.NumTXOs + uint64(len(pegIns)),
		NumKernels: prev.NumKernels + uint64(len(pegIns)),
	}
	var numTXOs [8]byte
	binary.LittleEndian.PutUint64(numTXOs[:], h.NumTXOs)
	h.LeafsetRoot = digest(prev.LeafsetRoot[:], numTXOs[:])
	h.KernelOffset = digest([]byte("kernel_offset"), heightBytes[:])
	h.StealthOffset = digest([]byte("stealth_offset"), heightBytes[:])
	h.Hash = h.ComputeHash()
	return h
}

// hogExTx builds the integrating transaction of an extension block: it
// spends the previous aggregation output and every peg-in output of the
// block into a new aggregation output committing to header.
func (n *Node) hogExTx(header *mweb.Header, pegIns []wire.OutPoint,
	pegInValue int64) *wire.MsgTx {

	tx := wire.NewMsgTx(txbuild.TxVersion)
	var value int64
	if n.hogExTip != nil {
		prev := n.hogExTip.TxHash()
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 0), nil, nil))
		value = n.hogExTip.TxOut[0].Value
	}
	for i := range pegIns {
		tx.AddTxIn(wire.NewTxIn(&pegIns[i], nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(value+pegInValue,
		txbuild.HogAddrScript(header.Hash)))
	return tx
}

// connectNextBlock mines the mempool, up to MaxBlockTxs transactions, into
// a new block on the tip.
func (n *Node) connectNextBlock() (*block, error) {
	prev := n.tip()
	height := prev.height + 1

	take := len(n.mempool)
	if n.cfg.MaxBlockTxs > 0 && take > n.cfg.MaxBlockTxs {
		take = n.cfg.MaxBlockTxs
	}
	mined := n.mempool[:take]

	var (
		fees       int64
		pegIns     []wire.OutPoint
		pegInOuts  []*wire.TxOut
		pegInValue int64
	)
	for _, mtx := range mined {
		fees += mtx.fee
		for i, txOut := range mtx.tx.TxOut {
			if !isPegInScript(txOut.PkScript) {
				continue
			}
			pegIns = append(pegIns, wire.OutPoint{
				Hash: mtx.hash, Index: uint32(i),
			})
			pegInOuts = append(pegInOuts, txOut)
			pegInValue += txOut.Value
		}
	}

	coinbase, err := n.coinbaseTx(height, fees)
	if err != nil {
		return nil, err
	}
	txs := make([]*wire.MsgTx, 0, take+2)
	txs = append(txs, coinbase)
	for _, mtx := range mined {
		txs = append(txs, mtx.tx)
	}

	// The extension block starts with the first peg-in at or after the
	// activation height and continues in every block after it.
	var header *mweb.Header
	if height >= n.cfg.MWEBActivationHeight &&
		(n.mwebTip != nil || len(pegIns) > 0) {

		header = n.nextMWEBHeader(height, pegInOuts)
		txs = append(txs, n.hogExTx(header, pegIns, pegInValue))
	}

	utilTxs := make([]*btcutil.Tx, 0, len(txs))
	for _, tx := range txs {
		utilTxs = append(utilTxs, btcutil.NewTx(tx))
	}
	merkles := blockchain.BuildMerkleTreeStore(utilTxs, false)

	msg := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    blockVersion,
			PrevBlock:  prev.hash,
			MerkleRoot: *merkles[len(merkles)-1],
			Timestamp: prev.msg.Header.Timestamp.Add(
				blockInterval * time.Second),
			Bits:  n.cfg.Params.PowLimitBits,
			Nonce: uint32(height),
		},
		Transactions: txs,
	}
	blk := &block{
		msg:    msg,
		hash:   msg.BlockHash(),
		height: height,
		mweb:   header,
	}
	if err := n.txIndex.connectBlock(blk); err != nil {
		return nil, err
	}

	for i, tx := range txs {
		txHash := tx.TxHash()
		if i > 0 {
			for _, txIn := range tx.TxIn {
				delete(n.utxos, txIn.PreviousOutPoint)
				delete(n.mempoolSpent, txIn.PreviousOutPoint)
			}
		}
		for j, txOut := range tx.TxOut {
			op := wire.OutPoint{Hash: txHash, Index: uint32(j)}
			n.utxos[op] = &coin{
				txOut:    txOut,
				height:   height,
				coinBase: i == 0,
			}
		}
	}
	for _, mtx := range mined {
		delete(n.mempoolIndex, mtx.hash)
	}
	n.mempool = append([]*mempoolTx(nil), n.mempool[take:]...)

	if header != nil {
		n.mwebTip = header
		n.hogExTip = txs[len(txs)-1]
	}
	n.blocks = append(n.blocks, blk)
	n.blockIndex[blk.hash] = blk
	return blk, nil
}

// blockResult decodes blk the way getblock does at verbosity 2.
func (n *Node) blockResult(blk *block) *chainctl.GetBlockVerboseTxResult {
	tip := n.tip()
	header := &blk.msg.Header
	res := &chainctl.GetBlockVerboseTxResult{
		Hash:          blk.hash.String(),
		Confirmations: int64(tip.height - blk.height + 1),
		Size:          int32(blk.msg.SerializeSize()),
		Weight:        int32(blockchain.GetBlockWeight(btcutil.NewBlock(blk.msg))),
		Height:        int64(blk.height),
		Version:       header.Version,
		MerkleRoot:    header.MerkleRoot.String(),
		Time:          header.Timestamp.Unix(),
		Nonce:         header.Nonce,
		Bits:          fmt.Sprintf("%08x", header.Bits),
	}
	if blk.height > 0 {
		res.PreviousHash = header.PrevBlock.String()
	}
	if blk.height < tip.height {
		res.NextHash = n.blocks[blk.height+1].hash.String()
	}
	if blk.mweb != nil {
		res.MWEB = blk.mweb.Result()
	}
	res.Tx = make([]chainctl.TxRawResult, 0, len(blk.msg.Transactions))
	for _, tx := range blk.msg.Transactions {
		res.Tx = append(res.Tx, *n.txResult(tx, blk))
	}
	return res
}

// txResult decodes tx the way getrawtransaction does in verbose mode.  blk
// is nil for mempool transactions.
func (n *Node) txResult(tx *wire.MsgTx, blk *block) *chainctl.TxRawResult {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	_ = tx.Serialize(&buf)

	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))
	res := &chainctl.TxRawResult{
		Hex:      hex.EncodeToString(buf.Bytes()),
		Txid:     tx.TxHash().String(),
		Hash:     tx.WitnessHash().String(),
		Size:     int32(tx.SerializeSize()),
		Vsize:    int32((weight + blockchain.WitnessScaleFactor - 1) / blockchain.WitnessScaleFactor),
		Weight:   int32(weight),
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Vin:      make([]chainctl.Vin, 0, len(tx.TxIn)),
		Vout:     make([]chainctl.Vout, 0, len(tx.TxOut)),
	}
	if blk != nil {
		res.BlockHash = blk.hash.String()
		res.Confirmations = uint64(n.tip().height - blk.height + 1)
		res.Time = blk.msg.Header.Timestamp.Unix()
		res.Blocktime = res.Time
	}

	isCoinBase := blockchain.IsCoinBaseTx(tx)
	for _, txIn := range tx.TxIn {
		if isCoinBase {
			res.Vin = append(res.Vin, chainctl.Vin{
				Coinbase: hex.EncodeToString(txIn.SignatureScript),
				Sequence: txIn.Sequence,
			})
			continue
		}
		asm, _ := txscript.DisasmString(txIn.SignatureScript)
		vin := chainctl.Vin{
			Txid: txIn.PreviousOutPoint.Hash.String(),
			Vout: txIn.PreviousOutPoint.Index,
			ScriptSig: &chainctl.ScriptSig{
				Asm: asm,
				Hex: hex.EncodeToString(txIn.SignatureScript),
			},
			Sequence: txIn.Sequence,
		}
		for _, item := range txIn.Witness {
			vin.Witness = append(vin.Witness, hex.EncodeToString(item))
		}
		res.Vin = append(res.Vin, vin)
	}

	for i, txOut := range tx.TxOut {
		res.Vout = append(res.Vout, chainctl.Vout{
			Value:        chainctl.DecimalAmount(txOut.Value),
			N:            uint32(i),
			ScriptPubKey: n.scriptPubKeyResult(txOut.PkScript),
		})
	}
	return res
}

// scriptPubKeyResult decodes an output script.
func (n *Node) scriptPubKeyResult(pkScript []byte) chainctl.ScriptPubKeyResult {
	asm, _ := txscript.DisasmString(pkScript)
	res := chainctl.ScriptPubKeyResult{
		Asm: asm,
		Hex: hex.EncodeToString(pkScript),
	}
	switch {
	case txbuild.IsHogAddrScript(pkScript):
		res.Type = "witness_mweb_hogaddr"
		return res
	case isPegInScript(pkScript):
		res.Type = "witness_mweb_pegin"
		return res
	}

	class, addrs, _, _ := txscript.ExtractPkScriptAddrs(pkScript,
		n.cfg.Params)
	res.Type = class.String()
	if len(addrs) == 1 {
		res.Address = addrs[0].EncodeAddress()
	}
	return res
}

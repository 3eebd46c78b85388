// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

// The result types below mirror the verbose JSON the node returns for
// getrawtransaction and getblock.  They differ from their btcjson
// counterparts in two ways: amounts decode exactly through DecimalAmount,
// and blocks carry the optional MWEB section.

// ScriptPubKeyResult models the scriptPubKey data of a tx output.  Newer
// nodes report a single address, older ones an address list; both are
// kept.
type ScriptPubKeyResult struct {
	Asm       string   `json:"asm"`
	Hex       string   `json:"hex,omitempty"`
	ReqSigs   int32    `json:"reqSigs,omitempty"`
	Type      string   `json:"type"`
	Address   string   `json:"address,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// PaysTo reports whether the script pays exclusively to addr.
func (s *ScriptPubKeyResult) PaysTo(addr string) bool {
	if addr == "" {
		return false
	}
	if len(s.Addresses) > 0 {
		return len(s.Addresses) == 1 && s.Addresses[0] == addr
	}
	return s.Address == addr
}

// ScriptSig models a signature script.
type ScriptSig struct {
	Asm string `json:"asm"`
	Hex string `json:"hex"`
}

// Vin models the input data of a decoded transaction.
type Vin struct {
	Coinbase  string     `json:"coinbase,omitempty"`
	Txid      string     `json:"txid,omitempty"`
	Vout      uint32     `json:"vout"`
	ScriptSig *ScriptSig `json:"scriptSig,omitempty"`
	Witness   []string   `json:"txinwitness,omitempty"`
	Sequence  uint32     `json:"sequence"`
}

// IsCoinBase reports whether the input is a coinbase input.
func (v *Vin) IsCoinBase() bool {
	return len(v.Coinbase) > 0
}

// Vout models the output data of a decoded transaction.
type Vout struct {
	Value        DecimalAmount      `json:"value"`
	N            uint32             `json:"n"`
	ScriptPubKey ScriptPubKeyResult `json:"scriptPubKey"`
}

// TxRawResult models the data from getrawtransaction with verbose output
// and the transactions of getblock at verbosity 2.
type TxRawResult struct {
	Hex           string `json:"hex,omitempty"`
	Txid          string `json:"txid"`
	Hash          string `json:"hash,omitempty"`
	Size          int32  `json:"size,omitempty"`
	Vsize         int32  `json:"vsize,omitempty"`
	Weight        int32  `json:"weight,omitempty"`
	Version       int32  `json:"version"`
	LockTime      uint32 `json:"locktime"`
	Vin           []Vin  `json:"vin"`
	Vout          []Vout `json:"vout"`
	BlockHash     string `json:"blockhash,omitempty"`
	Confirmations uint64 `json:"confirmations,omitempty"`
	Time          int64  `json:"time,omitempty"`
	Blocktime     int64  `json:"blocktime,omitempty"`

	// HogEx is only present when the node reports the integrating
	// transaction marker explicitly.
	HogEx *bool `json:"hogex,omitempty"`
}

// MWEBBlockResult models the MWEB section of a getblock response.
type MWEBBlockResult struct {
	Hash          string `json:"hash,omitempty"`
	Height        int64  `json:"height"`
	KernelOffset  string `json:"kernel_offset"`
	StealthOffset string `json:"stealth_offset"`
	NumKernels    uint64 `json:"num_kernels"`
	NumTXOs       uint64 `json:"num_txos"`
	KernelRoot    string `json:"kernel_root"`
	OutputRoot    string `json:"output_root"`
	LeafRoot      string `json:"leaf_root"`
}

// GetBlockVerboseTxResult models the data from getblock at verbosity 2.
type GetBlockVerboseTxResult struct {
	Hash          string           `json:"hash"`
	Confirmations int64            `json:"confirmations"`
	Size          int32            `json:"size"`
	Weight        int32            `json:"weight"`
	Height        int64            `json:"height"`
	Version       int32            `json:"version"`
	MerkleRoot    string           `json:"merkleroot"`
	Tx            []TxRawResult    `json:"tx"`
	Time          int64            `json:"time"`
	Nonce         uint32           `json:"nonce"`
	Bits          string           `json:"bits"`
	PreviousHash  string           `json:"previousblockhash,omitempty"`
	NextHash      string           `json:"nextblockhash,omitempty"`
	MWEB          *MWEBBlockResult `json:"mweb,omitempty"`
}

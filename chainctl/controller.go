// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// AddressType selects the flavor of address returned by GetNewAddress.
type AddressType string

// Address flavors understood by the node's getnewaddress.
const (
	// AddressDefault lets the wallet pick its configured default type.
	AddressDefault AddressType = ""

	AddressLegacy     AddressType = "legacy"
	AddressP2SHSegwit AddressType = "p2sh-segwit"
	AddressBech32     AddressType = "bech32"

	// AddressMWEB requests a stealth address on the extension block.
	// Sending to it pegs coins into MWEB.
	AddressMWEB AddressType = "mweb"
)

// SignedTx is a transaction as returned by the node's wallet after signing.
// The serialized payload is opaque to this module; only its identifier is
// interpreted.
type SignedTx struct {
	Raw    []byte
	TxHash chainhash.Hash
}

// NewSignedTx builds a SignedTx from a serialized transaction, deriving its
// identifier from the non-witness serialization.
func NewSignedTx(raw []byte) (*SignedTx, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return &SignedTx{Raw: raw, TxHash: tx.TxHash()}, nil
}

// Controller is the control-plane contract of a node under test.  Every call
// is a blocking round trip; implementations impose no timeout of their own.
type Controller interface {
	// GetBalance returns the wallet's spendable balance.
	GetBalance() (btcutil.Amount, error)

	// Generate mines numBlocks blocks and returns their hashes.
	Generate(numBlocks uint32) ([]*chainhash.Hash, error)

	// GetNewAddress returns a fresh receiving address of the given type.
	GetNewAddress(addrType AddressType) (string, error)

	// SendToAddress has the wallet pay amount to address and returns the
	// identifier of the broadcast transaction.
	SendToAddress(address string, amount btcutil.Amount) (*chainhash.Hash, error)

	// GetRawTransactionVerbose returns the decoded form of a transaction.
	GetRawTransactionVerbose(txHash *chainhash.Hash) (*TxRawResult, error)

	// SignRawTransactionWithWallet signs every input of tx the wallet can
	// sign.  It fails unless the result is completely signed.
	SignRawTransactionWithWallet(tx *wire.MsgTx) (*SignedTx, error)

	// SendRawTransaction broadcasts a signed transaction.
	SendRawTransaction(tx *SignedTx) (*chainhash.Hash, error)

	// GetRawMempool returns the identifiers of all mempool transactions.
	GetRawMempool() ([]*chainhash.Hash, error)

	// GetBestBlockHash returns the hash of the chain tip.
	GetBestBlockHash() (*chainhash.Hash, error)

	// GetBlockVerboseTx returns a block with every transaction decoded.
	GetBlockVerboseTx(blockHash *chainhash.Hash) (*GetBlockVerboseTxResult, error)
}

// BestBlock fetches the chain tip with full transaction detail.
func BestBlock(c Controller) (*GetBlockVerboseTxResult, error) {
	hash, err := c.GetBestBlockHash()
	if err != nil {
		return nil, err
	}
	return c.GetBlockVerboseTx(hash)
}

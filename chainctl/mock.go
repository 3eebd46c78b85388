// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MockController is a test double for Controller.  Each method delegates to
// the matching function field; a nil field panics when called, so tests
// fail loudly on unexpected interactions.
type MockController struct {
	GetBalanceFn                   func() (btcutil.Amount, error)
	GenerateFn                     func(numBlocks uint32) ([]*chainhash.Hash, error)
	GetNewAddressFn                func(addrType AddressType) (string, error)
	SendToAddressFn                func(address string, amount btcutil.Amount) (*chainhash.Hash, error)
	GetRawTransactionVerboseFn     func(txHash *chainhash.Hash) (*TxRawResult, error)
	SignRawTransactionWithWalletFn func(tx *wire.MsgTx) (*SignedTx, error)
	SendRawTransactionFn           func(tx *SignedTx) (*chainhash.Hash, error)
	GetRawMempoolFn                func() ([]*chainhash.Hash, error)
	GetBestBlockHashFn             func() (*chainhash.Hash, error)
	GetBlockVerboseTxFn            func(blockHash *chainhash.Hash) (*GetBlockVerboseTxResult, error)
}

var _ Controller = (*MockController)(nil)

func (m *MockController) GetBalance() (btcutil.Amount, error) {
	return m.GetBalanceFn()
}
func (m *MockController) Generate(numBlocks uint32) ([]*chainhash.Hash, error) {
	return m.GenerateFn(numBlocks)
}
func (m *MockController) GetNewAddress(addrType AddressType) (string, error) {
	return m.GetNewAddressFn(addrType)
}
func (m *MockController) SendToAddress(address string, amount btcutil.Amount) (*chainhash.Hash, error) {
	return m.SendToAddressFn(address, amount)
}
func (m *MockController) GetRawTransactionVerbose(txHash *chainhash.Hash) (*TxRawResult, error) {
	return m.GetRawTransactionVerboseFn(txHash)
}
func (m *MockController) SignRawTransactionWithWallet(tx *wire.MsgTx) (*SignedTx, error) {
	return m.SignRawTransactionWithWalletFn(tx)
}
func (m *MockController) SendRawTransaction(tx *SignedTx) (*chainhash.Hash, error) {
	return m.SendRawTransactionFn(tx)
}
func (m *MockController) GetRawMempool() ([]*chainhash.Hash, error) {
	return m.GetRawMempoolFn()
}
func (m *MockController) GetBestBlockHash() (*chainhash.Hash, error) {
	return m.GetBestBlockHashFn()
}
func (m *MockController) GetBlockVerboseTx(blockHash *chainhash.Hash) (*GetBlockVerboseTxResult, error) {
	return m.GetBlockVerboseTxFn(blockHash)
}

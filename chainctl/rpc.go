// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// RPCOptions bundles the optional settings of an RPCController.
type RPCOptions struct {
	// MiningAddress receives the coinbase of generated blocks.  When
	// empty, a wallet address is requested on first use and reused for
	// the lifetime of the controller.
	MiningAddress string
}

// RPCController implements Controller on top of a node's JSON-RPC
// interface.  Calls whose results carry amounts or node-specific fields are
// issued as raw requests and decoded into this package's result types.
type RPCController struct {
	client     *rpcclient.Client
	miningAddr string
}

// Ensure RPCController satisfies the Controller interface.
var _ Controller = (*RPCController)(nil)

// NewRPCController connects a new rpcclient to the node described by cfg.
// Callers should use HTTP POST mode for nodes that do not speak the btcd
// websocket extensions.
func NewRPCController(cfg *rpcclient.ConnConfig, opts *RPCOptions) (*RPCController, error) {
	client, err := rpcclient.New(cfg, nil)
	if err != nil {
		return nil, err
	}
	return WrapClient(client, opts), nil
}

// WrapClient returns an RPCController using an existing client.
func WrapClient(client *rpcclient.Client, opts *RPCOptions) *RPCController {
	r := &RPCController{client: client}
	if opts != nil {
		r.miningAddr = opts.MiningAddress
	}
	return r
}

// Client returns the underlying rpcclient.
func (r *RPCController) Client() *rpcclient.Client {
	return r.client
}

// Shutdown shuts down the underlying client and waits for it to finish.
func (r *RPCController) Shutdown() {
	r.client.Shutdown()
	r.client.WaitForShutdown()
}

// call marshals args as positional parameters, issues method and decodes
// the result into result when it is non-nil.  Errors reported by the node
// are returned untouched.
func (r *RPCController) call(method string, result interface{}, args ...interface{}) error {
	params := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("marshal %s parameter: %w", method, err)
		}
		params = append(params, b)
	}

	log.Tracef("Sending %s %s", method, newLogClosure(func() string {
		return spew.Sdump(args)
	}))

	res, err := r.client.RawRequest(method, params)
	if err != nil {
		log.Debugf("%s failed: %v", method, err)
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(res, result); err != nil {
		return responseError(method, err)
	}

	log.Tracef("Received %s result %s", method, newLogClosure(func() string {
		return spew.Sdump(result)
	}))
	return nil
}

// GetBalance returns the wallet's spendable balance.
func (r *RPCController) GetBalance() (btcutil.Amount, error) {
	var balance DecimalAmount
	if err := r.call("getbalance", &balance); err != nil {
		return 0, err
	}
	return balance.Amount(), nil
}

// miningAddress returns the configured coinbase address, asking the wallet
// for one the first time it is needed.
func (r *RPCController) miningAddress() (string, error) {
	if r.miningAddr != "" {
		return r.miningAddr, nil
	}
	addr, err := r.GetNewAddress(AddressDefault)
	if err != nil {
		return "", err
	}
	log.Debugf("Mining to wallet address %s", addr)
	r.miningAddr = addr
	return addr, nil
}

// Generate mines numBlocks blocks paying the mining address.
func (r *RPCController) Generate(numBlocks uint32) ([]*chainhash.Hash, error) {
	addr, err := r.miningAddress()
	if err != nil {
		return nil, err
	}

	var hashStrs []string
	err = r.call("generatetoaddress", &hashStrs, numBlocks, addr)
	if err != nil {
		return nil, err
	}
	return parseHashes("generatetoaddress", hashStrs)
}

// GetNewAddress returns a fresh wallet address of the requested type.
func (r *RPCController) GetNewAddress(addrType AddressType) (string, error) {
	var args []interface{}
	if addrType != AddressDefault {
		args = append(args, "", string(addrType))
	}

	var addr string
	if err := r.call("getnewaddress", &addr, args...); err != nil {
		return "", err
	}
	if addr == "" {
		return "", responseError("getnewaddress",
			fmt.Errorf("empty address"))
	}
	return addr, nil
}

// SendToAddress pays amount to address.  The amount is sent as an exact
// fixed-point decimal.
func (r *RPCController) SendToAddress(address string, amount btcutil.Amount) (*chainhash.Hash, error) {
	var txid string
	err := r.call("sendtoaddress", &txid, address,
		json.RawMessage(FormatAmount(amount)))
	if err != nil {
		return nil, err
	}
	return parseHash("sendtoaddress", txid)
}

// GetRawTransactionVerbose returns the decoded form of a transaction.
func (r *RPCController) GetRawTransactionVerbose(txHash *chainhash.Hash) (*TxRawResult, error) {
	var tx TxRawResult
	err := r.call("getrawtransaction", &tx, txHash.String(), true)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// SignRawTransactionWithWallet asks the wallet to sign tx.  A result that
// is not complete is returned as a *SignError.
func (r *RPCController) SignRawTransactionWithWallet(tx *wire.MsgTx) (*SignedTx, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}

	var res btcjson.SignRawTransactionWithWalletResult
	err := r.call("signrawtransactionwithwallet", &res,
		hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	if !res.Complete {
		return nil, &SignError{Errors: res.Errors}
	}

	raw, err := hex.DecodeString(res.Hex)
	if err != nil {
		return nil, responseError("signrawtransactionwithwallet", err)
	}
	signed, err := NewSignedTx(raw)
	if err != nil {
		return nil, responseError("signrawtransactionwithwallet", err)
	}
	return signed, nil
}

// SendRawTransaction broadcasts a signed transaction with the fee rate
// ceiling disabled.
func (r *RPCController) SendRawTransaction(tx *SignedTx) (*chainhash.Hash, error) {
	var txid string
	err := r.call("sendrawtransaction", &txid, hex.EncodeToString(tx.Raw), 0)
	if err != nil {
		return nil, err
	}
	return parseHash("sendrawtransaction", txid)
}

// GetRawMempool returns the identifiers of all mempool transactions.
func (r *RPCController) GetRawMempool() ([]*chainhash.Hash, error) {
	return r.client.GetRawMempool()
}

// GetBestBlockHash returns the hash of the chain tip.
func (r *RPCController) GetBestBlockHash() (*chainhash.Hash, error) {
	return r.client.GetBestBlockHash()
}

// GetBlockVerboseTx returns the block at verbosity 2.
func (r *RPCController) GetBlockVerboseTx(blockHash *chainhash.Hash) (*GetBlockVerboseTxResult, error) {
	var block GetBlockVerboseTxResult
	if err := r.call("getblock", &block, blockHash.String(), 2); err != nil {
		return nil, err
	}
	return &block, nil
}

// parseHash decodes a hash returned by method.
func parseHash(method, s string) (*chainhash.Hash, error) {
	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return nil, responseError(method, err)
	}
	return hash, nil
}

// parseHashes decodes a list of hashes returned by method.
func parseHashes(method string, strs []string) ([]*chainhash.Hash, error) {
	hashes := make([]*chainhash.Hash, 0, len(strs))
	for _, s := range strs {
		hash, err := parseHash(method, s)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

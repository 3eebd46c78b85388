// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memnode

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/mweb"
	"github.com/gandercoin/chainfixture/txbuild"
)

const (
	// DefaultCoinbaseMaturity is the number of blocks a coinbase output
	// must be buried under before it can be spent.
	DefaultCoinbaseMaturity = 100

	// DefaultSubsidy is the block subsidy before the first halving.
	DefaultSubsidy = 50 * btcutil.SatoshiPerBitcoin

	// DefaultHalvingInterval is the regtest subsidy halving interval.
	DefaultHalvingInterval = 150

	// DefaultMWEBActivationHeight is the first height allowed to carry an
	// extension block.
	DefaultMWEBActivationHeight = 432

	// DefaultTxFee is the flat fee paid by wallet transactions.
	DefaultTxFee = btcutil.Amount(10000)

	// blockInterval is the spacing of block timestamps.
	blockInterval = 150

	// dustLimit is the smallest change output the wallet creates.  Less
	// is added to the fee.
	dustLimit = 1000
)

// Hooks let tests observe and disturb the node.
type Hooks struct {
	// OnBlockConnected is called after each generated block, without the
	// node lock held, so it may call back into the node.
	OnBlockConnected func(height int32)

	// RejectSigning makes signrawtransactionwithwallet report every input
	// as unsignable.
	RejectSigning bool

	// RejectBroadcast, when set, is returned by sendrawtransaction.
	RejectBroadcast error
}

// Config configures a Node.  Zero values select the defaults.
type Config struct {
	// Params selects the address encoding and genesis block.  Defaults to
	// the regression test network.
	Params *chaincfg.Params

	CoinbaseMaturity     int32
	Subsidy              btcutil.Amount
	HalvingInterval      int32
	MWEBActivationHeight int32
	TxFee                btcutil.Amount

	// MaxBlockTxs caps the number of mempool transactions mined per
	// block.  Zero mines the whole mempool.
	MaxBlockTxs int

	// StorageDir holds the transaction index.  Empty keeps it in memory.
	StorageDir string

	// Seed drives key derivation and the order of wallet outputs.
	Seed int64

	Hooks Hooks
}

// coin is an unspent output known to the node.
type coin struct {
	txOut    *wire.TxOut
	height   int32
	coinBase bool
}

// mempoolTx is a transaction accepted to the mempool.
type mempoolTx struct {
	tx   *wire.MsgTx
	hash chainhash.Hash
	fee  int64
}

// Node is an in-memory stand-in for a regtest node with a wallet.  It
// implements chainctl.Controller and is safe for concurrent use.
type Node struct {
	mtx sync.Mutex

	cfg     Config
	txIndex *txIndex
	wallet  *wallet
	rand    *rand.Rand

	miningScript []byte
	blocks       []*block
	blockIndex   map[chainhash.Hash]*block
	utxos        map[wire.OutPoint]*coin

	mempool      []*mempoolTx
	mempoolIndex map[chainhash.Hash]*mempoolTx
	mempoolSpent map[wire.OutPoint]chainhash.Hash

	// mwebTip and hogExTip are the last extension block header and the
	// last integrating transaction, nil before activation.
	mwebTip  *mweb.Header
	hogExTip *wire.MsgTx
}

var _ chainctl.Controller = (*Node)(nil)

// New starts a node holding only the genesis block.
func New(cfg *Config) (*Node, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Params == nil {
		c.Params = &chaincfg.RegressionNetParams
	}
	if c.CoinbaseMaturity == 0 {
		c.CoinbaseMaturity = DefaultCoinbaseMaturity
	}
	if c.Subsidy == 0 {
		c.Subsidy = DefaultSubsidy
	}
	if c.HalvingInterval == 0 {
		c.HalvingInterval = DefaultHalvingInterval
	}
	if c.MWEBActivationHeight == 0 {
		c.MWEBActivationHeight = DefaultMWEBActivationHeight
	}
	if c.TxFee == 0 {
		c.TxFee = DefaultTxFee
	}

	w, err := newWallet(c.Params, c.Seed)
	if err != nil {
		return nil, err
	}
	idx, err := openTxIndex(c.StorageDir)
	if err != nil {
		return nil, err
	}
	n := &Node{
		cfg:          c,
		txIndex:      idx,
		wallet:       w,
		rand:         rand.New(rand.NewSource(c.Seed)),
		blockIndex:   make(map[chainhash.Hash]*block),
		utxos:        make(map[wire.OutPoint]*coin),
		mempoolIndex: make(map[chainhash.Hash]*mempoolTx),
		mempoolSpent: make(map[wire.OutPoint]chainhash.Hash),
	}
	n.miningScript, err = n.wallet.miningScript()
	if err != nil {
		idx.close()
		return nil, err
	}

	genesis := &block{
		msg:    c.Params.GenesisBlock,
		hash:   c.Params.GenesisBlock.BlockHash(),
		height: 0,
	}
	n.blocks = append(n.blocks, genesis)
	n.blockIndex[genesis.hash] = genesis
	return n, nil
}

// Close releases the transaction index.
func (n *Node) Close() error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.txIndex.close()
}

// SetHooks replaces the node's hooks.
func (n *Node) SetHooks(hooks Hooks) {
	n.mtx.Lock()
	n.cfg.Hooks = hooks
	n.mtx.Unlock()
}

// Height returns the height of the chain tip.
func (n *Node) Height() int32 {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.tip().height
}

// MWEBActive reports whether the tip carries an extension block.
func (n *Node) MWEBActive() bool {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.tip().mweb != nil
}

func (n *Node) tip() *block {
	return n.blocks[len(n.blocks)-1]
}

func newPrevOutFetcher() *txscript.MultiPrevOutFetcher {
	return txscript.NewMultiPrevOutFetcher(make(map[wire.OutPoint]*wire.TxOut))
}

// rpcError builds the error a node returns over JSON-RPC.
func rpcError(code btcjson.RPCErrorCode, message string) *btcjson.RPCError {
	return btcjson.NewRPCError(code, message)
}

// GetBalance returns the sum of the wallet's spendable coins.
func (n *Node) GetBalance() (btcutil.Amount, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	var total int64
	for _, wc := range n.spendable() {
		total += wc.coin.txOut.Value
	}
	return btcutil.Amount(total), nil
}

// Generate mines numBlocks blocks paying the wallet.
func (n *Node) Generate(numBlocks uint32) ([]*chainhash.Hash, error) {
	hashes := make([]*chainhash.Hash, 0, numBlocks)
	for i := uint32(0); i < numBlocks; i++ {
		n.mtx.Lock()
		blk, err := n.connectNextBlock()
		hook := n.cfg.Hooks.OnBlockConnected
		n.mtx.Unlock()
		if err != nil {
			return hashes, err
		}
		hash := blk.hash
		hashes = append(hashes, &hash)

		if hook != nil {
			hook(blk.height)
		}
	}
	return hashes, nil
}

// GetNewAddress returns a fresh wallet address.
func (n *Node) GetNewAddress(addrType chainctl.AddressType) (string, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.wallet.newAddress(addrType)
}

// SendToAddress pays amount to address from the wallet.  MWEB addresses are
// paid with a peg-in output, accepted only when the next block may carry an
// extension block.
func (n *Node) SendToAddress(address string, amount btcutil.Amount) (*chainhash.Hash, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if amount <= 0 {
		return nil, rpcError(btcjson.ErrRPCType, "Invalid amount for send")
	}

	pkScript, isPegIn, err := pegInScript(address)
	switch {
	case err != nil:
		return nil, rpcError(btcjson.ErrRPCInvalidAddressOrKey,
			"Invalid address: "+err.Error())

	case isPegIn:
		if n.tip().height+1 < n.cfg.MWEBActivationHeight {
			return nil, rpcError(btcjson.ErrRPCWallet,
				"MWEB is not active for the next block")
		}

	default:
		addr, err := btcutil.DecodeAddress(address, n.cfg.Params)
		if err != nil || !addr.IsForNet(n.cfg.Params) {
			return nil, rpcError(btcjson.ErrRPCInvalidAddressOrKey,
				"Invalid address")
		}
		pkScript, err = txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, rpcError(btcjson.ErrRPCInvalidAddressOrKey,
				err.Error())
		}
	}

	tx, err := n.fundTx(wire.NewTxOut(int64(amount), pkScript))
	if err != nil {
		return nil, err
	}
	if err := n.acceptTx(tx); err != nil {
		return nil, err
	}
	hash := tx.TxHash()
	return &hash, nil
}

// InjectMempoolTx adds a wallet transaction paying a foreign script to the
// mempool, as if another party had broadcast it.
func (n *Node) InjectMempoolTx() (*chainhash.Hash, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	txOut := wire.NewTxOut(int64(n.cfg.TxFee), txbuild.DummyP2WPKHScript)
	tx, err := n.fundTx(txOut)
	if err != nil {
		return nil, err
	}
	if err := n.acceptTx(tx); err != nil {
		return nil, err
	}
	hash := tx.TxHash()
	return &hash, nil
}

// GetRawTransactionVerbose decodes a mempool or confirmed transaction.
func (n *Node) GetRawTransactionVerbose(txHash *chainhash.Hash) (*chainctl.TxRawResult, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if mtx, ok := n.mempoolIndex[*txHash]; ok {
		return n.txResult(mtx.tx, nil), nil
	}
	entry, err := n.txIndex.fetch(txHash)
	if err != nil {
		return nil, rpcError(btcjson.ErrRPCDatabase, err.Error())
	}
	if entry == nil {
		return nil, rpcError(btcjson.ErrRPCInvalidAddressOrKey,
			"No such mempool or blockchain transaction")
	}
	return n.txResult(entry.tx, n.blockIndex[entry.blockHash]), nil
}

// SignRawTransactionWithWallet signs every input spending a wallet coin.
func (n *Node) SignRawTransactionWithWallet(tx *wire.MsgTx) (*chainctl.SignedTx, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	signed := tx.Copy()
	var inputErrs []btcjson.SignRawTransactionError
	inputErr := func(txIn *wire.TxIn, msg string) {
		inputErrs = append(inputErrs, btcjson.SignRawTransactionError{
			TxID:      txIn.PreviousOutPoint.Hash.String(),
			Vout:      txIn.PreviousOutPoint.Index,
			ScriptSig: fmt.Sprintf("%x", txIn.SignatureScript),
			Sequence:  txIn.Sequence,
			Error:     msg,
		})
	}

	// Sighashes need every prevout, so unresolved inputs are reported
	// before any are computed.
	fetcher := newPrevOutFetcher()
	for _, txIn := range signed.TxIn {
		if n.cfg.Hooks.RejectSigning {
			inputErr(txIn, "Signing rejected")
			continue
		}
		c := n.lookupCoin(txIn.PreviousOutPoint)
		if c == nil {
			inputErr(txIn, "Input not found or already spent")
			continue
		}
		fetcher.AddPrevOut(txIn.PreviousOutPoint, c.txOut)
	}
	if len(inputErrs) > 0 {
		return nil, &chainctl.SignError{Errors: inputErrs}
	}

	sigHashes := txscript.NewTxSigHashes(signed, fetcher)
	for i, txIn := range signed.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		if err := n.wallet.signInput(signed, i, prevOut, sigHashes); err != nil {
			inputErr(txIn, err.Error())
		}
	}
	if len(inputErrs) > 0 {
		return nil, &chainctl.SignError{Errors: inputErrs}
	}

	var buf bytes.Buffer
	buf.Grow(signed.SerializeSize())
	if err := signed.Serialize(&buf); err != nil {
		return nil, err
	}
	return chainctl.NewSignedTx(buf.Bytes())
}

// SendRawTransaction validates a signed transaction and adds it to the
// mempool.
func (n *Node) SendRawTransaction(stx *chainctl.SignedTx) (*chainhash.Hash, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if n.cfg.Hooks.RejectBroadcast != nil {
		return nil, n.cfg.Hooks.RejectBroadcast
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(stx.Raw)); err != nil {
		return nil, rpcError(btcjson.ErrRPCDeserialization,
			"TX decode failed")
	}
	if err := n.acceptTx(&tx); err != nil {
		return nil, err
	}
	hash := tx.TxHash()
	return &hash, nil
}

// GetRawMempool returns the mempool in acceptance order.
func (n *Node) GetRawMempool() ([]*chainhash.Hash, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	hashes := make([]*chainhash.Hash, 0, len(n.mempool))
	for _, mtx := range n.mempool {
		hash := mtx.hash
		hashes = append(hashes, &hash)
	}
	return hashes, nil
}

// GetBestBlockHash returns the hash of the tip.
func (n *Node) GetBestBlockHash() (*chainhash.Hash, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	hash := n.tip().hash
	return &hash, nil
}

// GetBlockVerboseTx decodes a block and all of its transactions.
func (n *Node) GetBlockVerboseTx(blockHash *chainhash.Hash) (*chainctl.GetBlockVerboseTxResult, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	blk, ok := n.blockIndex[*blockHash]
	if !ok {
		return nil, rpcError(btcjson.ErrRPCInvalidAddressOrKey,
			"Block not found")
	}
	return n.blockResult(blk), nil
}

// lookupCoin returns the unspent output at op from the chain or the
// mempool, or nil when it does not exist or a mempool transaction spends
// it.
func (n *Node) lookupCoin(op wire.OutPoint) *coin {
	if _, spent := n.mempoolSpent[op]; spent {
		return nil
	}
	if c, ok := n.utxos[op]; ok {
		return c
	}
	if mtx, ok := n.mempoolIndex[op.Hash]; ok &&
		op.Index < uint32(len(mtx.tx.TxOut)) {

		return &coin{txOut: mtx.tx.TxOut[op.Index], height: -1}
	}
	return nil
}

// mature reports whether c may be spent by a transaction in the next
// block.
func (n *Node) mature(c *coin) bool {
	if !c.coinBase {
		return true
	}
	return n.tip().height-c.height >= n.cfg.CoinbaseMaturity
}

// walletCoin is a spendable wallet output.
type walletCoin struct {
	op   wire.OutPoint
	coin *coin
}

// spendable returns the wallet's spendable coins, confirmed ones first,
// oldest first.
func (n *Node) spendable() []walletCoin {
	var coins []walletCoin
	for op, c := range n.utxos {
		if _, spent := n.mempoolSpent[op]; spent {
			continue
		}
		if n.mature(c) && n.wallet.owns(c.txOut.PkScript) {
			coins = append(coins, walletCoin{op: op, coin: c})
		}
	}
	sort.Slice(coins, func(i, j int) bool {
		ci, cj := coins[i], coins[j]
		if ci.coin.height != cj.coin.height {
			return ci.coin.height < cj.coin.height
		}
		if c := bytes.Compare(ci.op.Hash[:], cj.op.Hash[:]); c != 0 {
			return c < 0
		}
		return ci.op.Index < cj.op.Index
	})

	for _, mtx := range n.mempool {
		for i, txOut := range mtx.tx.TxOut {
			op := wire.OutPoint{Hash: mtx.hash, Index: uint32(i)}
			if _, spent := n.mempoolSpent[op]; spent {
				continue
			}
			if n.wallet.owns(txOut.PkScript) {
				coins = append(coins, walletCoin{
					op:   op,
					coin: &coin{txOut: txOut, height: -1},
				})
			}
		}
	}
	return coins
}

// fundTx builds and signs a wallet transaction paying txOut, with change
// back to the wallet and the outputs in random order.
func (n *Node) fundTx(txOut *wire.TxOut) (*wire.MsgTx, error) {
	needed := txOut.Value + int64(n.cfg.TxFee)

	tx := wire.NewMsgTx(txbuild.TxVersion)
	fetcher := newPrevOutFetcher()
	var total int64
	for _, wc := range n.spendable() {
		if total >= needed {
			break
		}
		op := wc.op
		tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
		fetcher.AddPrevOut(op, wc.coin.txOut)
		total += wc.coin.txOut.Value
	}
	if total < needed {
		return nil, rpcError(btcjson.ErrRPCWalletInsufficientFunds,
			"Insufficient funds")
	}

	tx.AddTxOut(txOut)
	if change := total - needed; change >= dustLimit {
		addr, err := n.wallet.newAddress(chainctl.AddressBech32)
		if err != nil {
			return nil, err
		}
		decoded, err := btcutil.DecodeAddress(addr, n.cfg.Params)
		if err != nil {
			return nil, err
		}
		changeScript, err := txscript.PayToAddrScript(decoded)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	}
	n.rand.Shuffle(len(tx.TxOut), func(i, j int) {
		tx.TxOut[i], tx.TxOut[j] = tx.TxOut[j], tx.TxOut[i]
	})

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		if err := n.wallet.signInput(tx, i, prevOut, sigHashes); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// acceptTx validates tx against the chain and mempool and adds it to the
// mempool.
func (n *Node) acceptTx(tx *wire.MsgTx) error {
	hash := tx.TxHash()
	if _, ok := n.mempoolIndex[hash]; ok {
		return rpcError(btcjson.ErrRPCVerifyRejected,
			"txn-already-in-mempool")
	}
	if known, err := n.txIndex.has(&hash); err != nil {
		return rpcError(btcjson.ErrRPCDatabase, err.Error())
	} else if known {
		return rpcError(btcjson.ErrRPCVerifyAlreadyInChain,
			"Transaction already in block chain")
	}
	if len(tx.TxIn) == 0 {
		return rpcError(btcjson.ErrRPCVerifyRejected, "bad-txns-vin-empty")
	}
	if len(tx.TxOut) == 0 {
		return rpcError(btcjson.ErrRPCVerifyRejected, "bad-txns-vout-empty")
	}

	fetcher := newPrevOutFetcher()
	var in int64
	for _, txIn := range tx.TxIn {
		op := txIn.PreviousOutPoint
		if fetcher.FetchPrevOutput(op) != nil {
			return rpcError(btcjson.ErrRPCVerifyRejected,
				"bad-txns-inputs-duplicate")
		}
		if _, spent := n.mempoolSpent[op]; spent {
			return rpcError(btcjson.ErrRPCVerifyRejected,
				"txn-mempool-conflict")
		}
		c := n.lookupCoin(op)
		if c == nil {
			return rpcError(btcjson.ErrRPCVerify,
				"bad-txns-inputs-missingorspent")
		}
		if !n.mature(c) {
			return rpcError(btcjson.ErrRPCVerifyRejected,
				"bad-txns-premature-spend-of-coinbase")
		}
		fetcher.AddPrevOut(op, c.txOut)
		in += c.txOut.Value
	}

	var out int64
	for _, txOut := range tx.TxOut {
		if txOut.Value < 0 {
			return rpcError(btcjson.ErrRPCVerifyRejected,
				"bad-txns-vout-negative")
		}
		out += txOut.Value
	}
	if out > in {
		return rpcError(btcjson.ErrRPCVerifyRejected,
			"bad-txns-in-belowout")
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		vm, err := txscript.NewEngine(prevOut.PkScript, tx, i,
			txscript.StandardVerifyFlags, nil, sigHashes,
			prevOut.Value, fetcher)
		if err == nil {
			err = vm.Execute()
		}
		if err != nil {
			return rpcError(btcjson.ErrRPCVerifyRejected, fmt.Sprintf(
				"mandatory-script-verify-flag-failed (%v)", err))
		}
	}

	mtx := &mempoolTx{tx: tx, hash: hash, fee: in - out}
	n.mempool = append(n.mempool, mtx)
	n.mempoolIndex[hash] = mtx
	for _, txIn := range tx.TxIn {
		n.mempoolSpent[txIn.PreviousOutPoint] = hash
	}
	return nil
}

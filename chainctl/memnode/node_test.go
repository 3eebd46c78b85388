// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memnode

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/txbuild"
)

func newTestNode(t *testing.T, cfg *Config) *Node {
	t.Helper()
	n, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

// requireRPCCode checks that err is a node error with the given code.
func requireRPCCode(t *testing.T, err error, code btcjson.RPCErrorCode) {
	t.Helper()
	var rpcErr *btcjson.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, code, rpcErr.Code, rpcErr.Message)
}

// signedTx serializes a transaction signed elsewhere.
func signedTx(t *testing.T, tx *wire.MsgTx) *chainctl.SignedTx {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	stx, err := chainctl.NewSignedTx(buf.Bytes())
	require.NoError(t, err)
	return stx
}

// fundedOutput pays amount to a fresh address of addrType and returns the
// outpoint and value of the paying output.
func fundedOutput(t *testing.T, n *Node, addrType chainctl.AddressType,
	amount btcutil.Amount) wire.OutPoint {

	t.Helper()
	addr, err := n.GetNewAddress(addrType)
	require.NoError(t, err)
	txid, err := n.SendToAddress(addr, amount)
	require.NoError(t, err)
	tx, err := n.GetRawTransactionVerbose(txid)
	require.NoError(t, err)
	for _, vout := range tx.Vout {
		if vout.ScriptPubKey.PaysTo(addr) {
			require.Equal(t, amount, vout.Value.Amount())
			return wire.OutPoint{Hash: *txid, Index: vout.N}
		}
	}
	t.Fatalf("no output of %v pays %s", txid, addr)
	return wire.OutPoint{}
}

func TestGenerateMaturity(t *testing.T) {
	n := newTestNode(t, nil)

	hashes, err := n.Generate(100)
	require.NoError(t, err)
	require.Len(t, hashes, 100)
	require.Equal(t, int32(100), n.Height())

	balance, err := n.GetBalance()
	require.NoError(t, err)
	require.Zero(t, balance)

	_, err = n.Generate(2)
	require.NoError(t, err)
	balance, err = n.GetBalance()
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(2*DefaultSubsidy), balance)

	best, err := n.GetBestBlockHash()
	require.NoError(t, err)
	blk, err := n.GetBlockVerboseTx(best)
	require.NoError(t, err)
	require.Equal(t, int64(102), blk.Height)
	require.Equal(t, int64(1), blk.Confirmations)
	require.Len(t, blk.Tx, 1)
	require.True(t, blk.Tx[0].Vin[0].IsCoinBase())
	require.Nil(t, blk.MWEB)
}

func TestSubsidyHalving(t *testing.T) {
	n := newTestNode(t, &Config{HalvingInterval: 10})
	require.Equal(t, int64(DefaultSubsidy), n.subsidy(9))
	require.Equal(t, int64(DefaultSubsidy/2), n.subsidy(10))
	require.Equal(t, int64(DefaultSubsidy/4), n.subsidy(25))
	require.Zero(t, n.subsidy(10*64))
}

func TestSendToAddress(t *testing.T) {
	n := newTestNode(t, nil)
	_, err := n.Generate(110)
	require.NoError(t, err)

	const amount = btcutil.Amount(105000001)
	addr, err := n.GetNewAddress(chainctl.AddressDefault)
	require.NoError(t, err)
	txid, err := n.SendToAddress(addr, amount)
	require.NoError(t, err)

	mempool, err := n.GetRawMempool()
	require.NoError(t, err)
	require.Len(t, mempool, 1)
	require.Equal(t, *txid, *mempool[0])

	tx, err := n.GetRawTransactionVerbose(txid)
	require.NoError(t, err)
	require.Empty(t, tx.BlockHash)
	var paying int
	for _, vout := range tx.Vout {
		if vout.ScriptPubKey.PaysTo(addr) {
			paying++
			require.Equal(t, amount, vout.Value.Amount())
			require.Equal(t, "witness_v0_keyhash", vout.ScriptPubKey.Type)
		}
	}
	require.Equal(t, 1, paying)

	_, err = n.Generate(1)
	require.NoError(t, err)
	tx, err = n.GetRawTransactionVerbose(txid)
	require.NoError(t, err)
	require.NotEmpty(t, tx.BlockHash)
	require.Equal(t, uint64(1), tx.Confirmations)
}

func TestSendToAddressErrors(t *testing.T) {
	n := newTestNode(t, nil)

	addr, err := n.GetNewAddress(chainctl.AddressDefault)
	require.NoError(t, err)
	_, err = n.SendToAddress(addr, btcutil.SatoshiPerBitcoin)
	requireRPCCode(t, err, btcjson.ErrRPCWalletInsufficientFunds)

	_, err = n.SendToAddress("not an address", btcutil.SatoshiPerBitcoin)
	requireRPCCode(t, err, btcjson.ErrRPCInvalidAddressOrKey)

	_, err = n.SendToAddress(addr, 0)
	requireRPCCode(t, err, btcjson.ErrRPCType)

	_, err = n.GetNewAddress("taproot")
	requireRPCCode(t, err, btcjson.ErrRPCWalletInvalidAddressType)
}

func TestSignAndBroadcast(t *testing.T) {
	addrTypes := []chainctl.AddressType{
		chainctl.AddressDefault,
		chainctl.AddressBech32,
		chainctl.AddressLegacy,
		chainctl.AddressP2SHSegwit,
	}

	n := newTestNode(t, nil)
	_, err := n.Generate(120)
	require.NoError(t, err)

	for _, addrType := range addrTypes {
		const amount = btcutil.Amount(3 * btcutil.SatoshiPerBitcoin)
		prevOut := fundedOutput(t, n, addrType, amount)

		draft := txbuild.NewSpend(prevOut, amount-1000,
			txbuild.DummyP2WPKHScript)
		signed, err := n.SignRawTransactionWithWallet(draft.MsgTx)
		require.NoError(t, err, addrType)
		require.Equal(t, draft.TxHash(), signed.TxHash, addrType)
		require.Empty(t, draft.MsgTx.TxIn[0].Witness, "draft modified")

		txid, err := n.SendRawTransaction(signed)
		require.NoError(t, err, addrType)
		require.Equal(t, signed.TxHash, *txid, addrType)

		_, err = n.SendRawTransaction(signed)
		requireRPCCode(t, err, btcjson.ErrRPCVerifyRejected)
	}

	_, err = n.Generate(1)
	require.NoError(t, err)
	mempool, err := n.GetRawMempool()
	require.NoError(t, err)
	require.Empty(t, mempool)
}

func TestBroadcastRejectsTamperedTx(t *testing.T) {
	n := newTestNode(t, nil)
	_, err := n.Generate(101)
	require.NoError(t, err)

	const amount = btcutil.Amount(btcutil.SatoshiPerBitcoin)
	prevOut := fundedOutput(t, n, chainctl.AddressDefault, amount)
	draft := txbuild.NewSpend(prevOut, amount-1000, txbuild.DummyP2WPKHScript)
	signed, err := n.SignRawTransactionWithWallet(draft.MsgTx)
	require.NoError(t, err)

	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(signed.Raw)))
	tx.TxOut[0].Value--

	_, err = n.SendRawTransaction(signedTx(t, &tx))
	requireRPCCode(t, err, btcjson.ErrRPCVerifyRejected)

	// Spending more than the input is rejected before scripts run.
	tx.TxOut[0].Value = int64(amount) + 1
	_, err = n.SendRawTransaction(signedTx(t, &tx))
	requireRPCCode(t, err, btcjson.ErrRPCVerifyRejected)
}

func TestSignIncomplete(t *testing.T) {
	n := newTestNode(t, nil)
	_, err := n.Generate(101)
	require.NoError(t, err)

	unknown := txbuild.NewSpend(wire.OutPoint{Index: 7}, 1000,
		txbuild.DummyP2WPKHScript)
	_, err = n.SignRawTransactionWithWallet(unknown.MsgTx)
	require.ErrorIs(t, err, chainctl.ErrIncompleteSignature)
	var signErr *chainctl.SignError
	require.ErrorAs(t, err, &signErr)
	require.Len(t, signErr.Errors, 1)
	require.Equal(t, uint32(7), signErr.Errors[0].Vout)

	prevOut := fundedOutput(t, n, chainctl.AddressDefault,
		btcutil.SatoshiPerBitcoin)
	draft := txbuild.NewSpend(prevOut, 1000, txbuild.DummyP2WPKHScript)
	n.SetHooks(Hooks{RejectSigning: true})
	_, err = n.SignRawTransactionWithWallet(draft.MsgTx)
	require.ErrorIs(t, err, chainctl.ErrIncompleteSignature)

	n.SetHooks(Hooks{})
	signed, err := n.SignRawTransactionWithWallet(draft.MsgTx)
	require.NoError(t, err)

	rejected := errors.New("rejected")
	n.SetHooks(Hooks{RejectBroadcast: rejected})
	_, err = n.SendRawTransaction(signed)
	require.ErrorIs(t, err, rejected)
}

// TestSignUnknownInputs checks that inputs the node cannot resolve are
// reported per input, also when mixed with wallet coins.
func TestSignUnknownInputs(t *testing.T) {
	n := newTestNode(t, nil)

	fresh := txbuild.NewSpend(wire.OutPoint{Index: 3}, 1000,
		txbuild.DummyP2WPKHScript)
	signed, err := n.SignRawTransactionWithWallet(fresh.MsgTx)
	require.Nil(t, signed)
	require.ErrorIs(t, err, chainctl.ErrIncompleteSignature)

	_, err = n.Generate(101)
	require.NoError(t, err)
	prevOut := fundedOutput(t, n, chainctl.AddressDefault,
		btcutil.SatoshiPerBitcoin)
	mixed := txbuild.NewSpend(prevOut, 1000, txbuild.DummyP2WPKHScript)
	missing := wire.OutPoint{Hash: chainhash.Hash{0x42}, Index: 1}
	mixed.MsgTx.AddTxIn(wire.NewTxIn(&missing, nil, nil))

	_, err = n.SignRawTransactionWithWallet(mixed.MsgTx)
	var signErr *chainctl.SignError
	require.ErrorAs(t, err, &signErr)
	require.Len(t, signErr.Errors, 1)
	require.Equal(t, missing.Hash.String(), signErr.Errors[0].TxID)
	require.Equal(t, "Input not found or already spent",
		signErr.Errors[0].Error)
}

func TestMWEBActivation(t *testing.T) {
	n := newTestNode(t, nil)
	_, err := n.Generate(DefaultMWEBActivationHeight - 2)
	require.NoError(t, err)

	mwebAddr, err := n.GetNewAddress(chainctl.AddressMWEB)
	require.NoError(t, err)
	require.Regexp(t, "^tmweb1", mwebAddr)

	// The next block is below the activation height.
	_, err = n.SendToAddress(mwebAddr, btcutil.SatoshiPerBitcoin)
	requireRPCCode(t, err, btcjson.ErrRPCWallet)

	_, err = n.Generate(1)
	require.NoError(t, err)
	pegIn, err := n.SendToAddress(mwebAddr, btcutil.SatoshiPerBitcoin)
	require.NoError(t, err)

	// Blocks without peg-ins do not start the extension block.
	best, err := n.GetBestBlockHash()
	require.NoError(t, err)
	blk, err := n.GetBlockVerboseTx(best)
	require.NoError(t, err)
	require.Nil(t, blk.MWEB)
	require.False(t, n.MWEBActive())

	_, err = n.Generate(1)
	require.NoError(t, err)
	require.True(t, n.MWEBActive())
	best, err = n.GetBestBlockHash()
	require.NoError(t, err)
	blk, err = n.GetBlockVerboseTx(best)
	require.NoError(t, err)
	require.Equal(t, int64(DefaultMWEBActivationHeight), blk.Height)
	require.NotNil(t, blk.MWEB)
	require.Equal(t, int64(DefaultMWEBActivationHeight), blk.MWEB.Height)
	require.Equal(t, uint64(1), blk.MWEB.NumTXOs)
	require.Len(t, blk.Tx, 3)

	hogEx := blk.Tx[len(blk.Tx)-1]
	require.Len(t, hogEx.Vin, 1)
	require.Equal(t, pegIn.String(), hogEx.Vin[0].Txid)
	require.Len(t, hogEx.Vout, 1)
	require.Equal(t, btcutil.Amount(btcutil.SatoshiPerBitcoin),
		hogEx.Vout[0].Value.Amount())
	require.Equal(t, "witness_mweb_hogaddr", hogEx.Vout[0].ScriptPubKey.Type)
	script, err := hex.DecodeString(hogEx.Vout[0].ScriptPubKey.Hex)
	require.NoError(t, err)
	require.True(t, txbuild.IsHogAddrScript(script))
	require.Equal(t, blk.MWEB.Hash, hex.EncodeToString(script[2:]))

	// Every later block carries the extension block forward.
	_, err = n.Generate(1)
	require.NoError(t, err)
	best, err = n.GetBestBlockHash()
	require.NoError(t, err)
	next, err := n.GetBlockVerboseTx(best)
	require.NoError(t, err)
	require.NotNil(t, next.MWEB)
	require.NotEqual(t, blk.MWEB.Hash, next.MWEB.Hash)
	nextHogEx := next.Tx[len(next.Tx)-1]
	require.Len(t, nextHogEx.Vin, 1)
	require.Equal(t, hogEx.Txid, nextHogEx.Vin[0].Txid)
	require.Zero(t, nextHogEx.Vin[0].Vout)
	require.Equal(t, hogEx.Vout[0].Value, nextHogEx.Vout[0].Value)
}

func TestMaxBlockTxsAndInjection(t *testing.T) {
	n := newTestNode(t, &Config{MaxBlockTxs: 1})
	_, err := n.Generate(105)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := n.InjectMempoolTx()
		require.NoError(t, err)
	}
	mempool, err := n.GetRawMempool()
	require.NoError(t, err)
	require.Len(t, mempool, 3)

	var connected []int32
	n.SetHooks(Hooks{OnBlockConnected: func(height int32) {
		connected = append(connected, height)
		_, err := n.InjectMempoolTx()
		require.NoError(t, err)
	}})
	_, err = n.Generate(2)
	require.NoError(t, err)
	require.Equal(t, []int32{106, 107}, connected)

	// One mined and one injected per block.
	mempool, err = n.GetRawMempool()
	require.NoError(t, err)
	require.Len(t, mempool, 3)
}

func TestStorageDir(t *testing.T) {
	n := newTestNode(t, &Config{StorageDir: t.TempDir()})
	hashes, err := n.Generate(1)
	require.NoError(t, err)

	blk, err := n.GetBlockVerboseTx(hashes[0])
	require.NoError(t, err)
	txid, err := chainhash.NewHashFromStr(blk.Tx[0].Txid)
	require.NoError(t, err)
	tx, err := n.GetRawTransactionVerbose(txid)
	require.NoError(t, err)
	require.Equal(t, blk.Hash, tx.BlockHash)
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// rpcHandler answers a single JSON-RPC method.
type rpcHandler func(params []json.RawMessage) (interface{}, *btcjson.RPCError)

// stubNode is a minimal JSON-RPC 1.0 server recording the calls it serves.
type stubNode struct {
	mtx      sync.Mutex
	handlers map[string]rpcHandler
	calls    []string
	params   map[string][]json.RawMessage
}

func (s *stubNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
		ID     json.RawMessage   `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mtx.Lock()
	s.calls = append(s.calls, req.Method)
	s.params[req.Method] = req.Params
	handler, ok := s.handlers[req.Method]
	s.mtx.Unlock()

	resp := struct {
		Result interface{}       `json:"result"`
		Error  *btcjson.RPCError `json:"error"`
		ID     json.RawMessage   `json:"id"`
	}{ID: req.ID}
	if !ok {
		resp.Error = btcjson.NewRPCError(-32601, "Method not found")
	} else {
		resp.Result, resp.Error = handler(req.Params)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *stubNode) countCalls(method string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (s *stubNode) lastParams(method string) []json.RawMessage {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.params[method]
}

// newStubController starts a stub node serving handlers and returns a
// controller connected to it in HTTP POST mode.
func newStubController(t *testing.T, handlers map[string]rpcHandler,
	opts *RPCOptions) (*RPCController, *stubNode) {

	t.Helper()

	stub := &stubNode{
		handlers: handlers,
		params:   make(map[string][]json.RawMessage),
	}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	ctl, err := NewRPCController(&rpcclient.ConnConfig{
		Host:         strings.TrimPrefix(server.URL, "http://"),
		User:         "user",
		Pass:         "pass",
		HTTPPostMode: true,
		DisableTLS:   true,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(ctl.Shutdown)

	return ctl, stub
}

func result(v interface{}) rpcHandler {
	return func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
		return v, nil
	}
}

func rawResult(s string) rpcHandler {
	return result(json.RawMessage(s))
}

func testTx() *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{
		Hash:  chainhash.Hash{0x01},
		Index: 1,
	}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(5_000_000, []byte{0x00, 0x14}))
	return tx
}

func TestRPCGetBalanceExact(t *testing.T) {
	ctl, _ := newStubController(t, map[string]rpcHandler{
		"getbalance": rawResult(`12.34567891`),
	}, nil)

	balance, err := ctl.GetBalance()
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(1_234_567_891), balance)
}

func TestRPCSendToAddressExactDecimal(t *testing.T) {
	txid := strings.Repeat("ab", 32)
	ctl, stub := newStubController(t, map[string]rpcHandler{
		"sendtoaddress": result(txid),
	}, nil)

	hash, err := ctl.SendToAddress("rltc1qdest", 105_000_001)
	require.NoError(t, err)
	require.Equal(t, txid, hash.String())

	params := stub.lastParams("sendtoaddress")
	require.Len(t, params, 2)
	require.JSONEq(t, `"rltc1qdest"`, string(params[0]))
	require.Equal(t, "1.05000001", string(params[1]))
}

func TestRPCGenerateReusesMiningAddress(t *testing.T) {
	blockHash := strings.Repeat("0f", 32)
	ctl, stub := newStubController(t, map[string]rpcHandler{
		"getnewaddress":     result("rltc1qminer"),
		"generatetoaddress": result([]string{blockHash, blockHash}),
	}, nil)

	for i := 0; i < 2; i++ {
		hashes, err := ctl.Generate(2)
		require.NoError(t, err)
		require.Len(t, hashes, 2)
		require.Equal(t, blockHash, hashes[0].String())
	}
	require.Equal(t, 1, stub.countCalls("getnewaddress"))
	require.Equal(t, 2, stub.countCalls("generatetoaddress"))

	params := stub.lastParams("generatetoaddress")
	require.Equal(t, "2", string(params[0]))
	require.JSONEq(t, `"rltc1qminer"`, string(params[1]))
}

func TestRPCGenerateConfiguredMiningAddress(t *testing.T) {
	ctl, stub := newStubController(t, map[string]rpcHandler{
		"generatetoaddress": result([]string{}),
	}, &RPCOptions{MiningAddress: "rltc1qfixed"})

	_, err := ctl.Generate(1)
	require.NoError(t, err)
	require.Zero(t, stub.countCalls("getnewaddress"))
	require.JSONEq(t, `"rltc1qfixed"`,
		string(stub.lastParams("generatetoaddress")[1]))
}

func TestRPCGetNewAddressType(t *testing.T) {
	ctl, stub := newStubController(t, map[string]rpcHandler{
		"getnewaddress": result("tmweb1qq"),
	}, nil)

	addr, err := ctl.GetNewAddress(AddressMWEB)
	require.NoError(t, err)
	require.Equal(t, "tmweb1qq", addr)

	params := stub.lastParams("getnewaddress")
	require.Len(t, params, 2)
	require.JSONEq(t, `""`, string(params[0]))
	require.JSONEq(t, `"mweb"`, string(params[1]))

	_, err = ctl.GetNewAddress(AddressDefault)
	require.NoError(t, err)
	require.Empty(t, stub.lastParams("getnewaddress"))
}

func TestRPCSignRawTransaction(t *testing.T) {
	tx := testTx()
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	txHex := hex.EncodeToString(buf.Bytes())

	t.Run("complete", func(t *testing.T) {
		ctl, stub := newStubController(t, map[string]rpcHandler{
			"signrawtransactionwithwallet": result(
				btcjson.SignRawTransactionWithWalletResult{
					Hex:      txHex,
					Complete: true,
				}),
		}, nil)

		signed, err := ctl.SignRawTransactionWithWallet(tx)
		require.NoError(t, err)
		require.Equal(t, tx.TxHash(), signed.TxHash)
		require.Equal(t, buf.Bytes(), signed.Raw)
		require.JSONEq(t, `"`+txHex+`"`, string(
			stub.lastParams("signrawtransactionwithwallet")[0]))
	})

	t.Run("incomplete", func(t *testing.T) {
		ctl, _ := newStubController(t, map[string]rpcHandler{
			"signrawtransactionwithwallet": result(
				btcjson.SignRawTransactionWithWalletResult{
					Hex:      txHex,
					Complete: false,
					Errors: []btcjson.SignRawTransactionError{{
						TxID:  tx.TxIn[0].PreviousOutPoint.Hash.String(),
						Vout:  1,
						Error: "Input not found or already spent",
					}},
				}),
		}, nil)

		_, err := ctl.SignRawTransactionWithWallet(tx)
		require.ErrorIs(t, err, ErrIncompleteSignature)
		var signErr *SignError
		require.True(t, errors.As(err, &signErr))
		require.Len(t, signErr.Errors, 1)
		require.Contains(t, err.Error(), "already spent")
	})

	t.Run("node error", func(t *testing.T) {
		ctl, _ := newStubController(t, map[string]rpcHandler{
			"signrawtransactionwithwallet": func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
				return nil, btcjson.NewRPCError(
					btcjson.ErrRPCDeserialization, "TX decode failed")
			},
		}, nil)

		_, err := ctl.SignRawTransactionWithWallet(tx)
		var rpcErr *btcjson.RPCError
		require.True(t, errors.As(err, &rpcErr))
		require.Equal(t, btcjson.ErrRPCDeserialization, rpcErr.Code)
	})
}

func TestRPCSendRawTransactionRejected(t *testing.T) {
	ctl, stub := newStubController(t, map[string]rpcHandler{
		"sendrawtransaction": func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
			return nil, btcjson.NewRPCError(btcjson.ErrRPCVerifyRejected,
				"bad-txns-inputs-missingorspent")
		},
	}, nil)

	_, err := ctl.SendRawTransaction(&SignedTx{Raw: []byte{0x01, 0x02}})
	var rpcErr *btcjson.RPCError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, btcjson.ErrRPCVerifyRejected, rpcErr.Code)

	params := stub.lastParams("sendrawtransaction")
	require.JSONEq(t, `"0102"`, string(params[0]))
	require.Equal(t, "0", string(params[1]))
}

func TestRPCGetBlockVerboseTx(t *testing.T) {
	hash := strings.Repeat("11", 32)
	ctl, stub := newStubController(t, map[string]rpcHandler{
		"getbestblockhash": result(hash),
		"getblock": rawResult(`{
			"hash": "` + hash + `",
			"height": 432,
			"tx": [
				{"txid": "` + strings.Repeat("22", 32) + `", "vin": [],
				 "vout": [{"value": 50.0, "n": 0, "scriptPubKey": {"asm": "", "type": "nonstandard"}}]},
				{"txid": "` + strings.Repeat("33", 32) + `", "vin": [],
				 "vout": [{"value": 0.99990000, "n": 0,
				 "scriptPubKey": {"asm": "", "hex": "5820aa", "type": "witness_mweb_hogaddr"}}]}
			],
			"mweb": {"hash": "ff", "height": 432, "num_kernels": 1, "num_txos": 1,
			         "kernel_offset": "00", "stealth_offset": "00",
			         "kernel_root": "00", "output_root": "00", "leaf_root": "00"}
		}`),
	}, nil)

	block, err := BestBlock(ctl)
	require.NoError(t, err)
	require.Equal(t, int64(432), block.Height)
	require.Len(t, block.Tx, 2)
	require.Equal(t, btcutil.Amount(99_990_000), block.Tx[1].Vout[0].Value.Amount())
	require.NotNil(t, block.MWEB)
	require.Equal(t, uint64(1), block.MWEB.NumKernels)

	params := stub.lastParams("getblock")
	require.JSONEq(t, `"`+hash+`"`, string(params[0]))
	require.Equal(t, "2", string(params[1]))
}

func TestRPCGetRawMempool(t *testing.T) {
	ids := []string{strings.Repeat("01", 32), strings.Repeat("02", 32)}
	ctl, _ := newStubController(t, map[string]rpcHandler{
		"getrawmempool": result(ids),
	}, nil)

	pool, err := ctl.GetRawMempool()
	require.NoError(t, err)
	require.Len(t, pool, 2)
	require.Equal(t, ids[1], pool[1].String())
}

func TestRPCInvalidResponse(t *testing.T) {
	ctl, _ := newStubController(t, map[string]rpcHandler{
		"getbalance":        rawResult(`"lots"`),
		"getrawtransaction": rawResult(`{"vout": [{"value": 0.000000001}]}`),
	}, nil)

	_, err := ctl.GetBalance()
	require.ErrorIs(t, err, ErrInvalidResponse)

	_, err = ctl.GetRawTransactionVerbose(&chainhash.Hash{})
	require.ErrorIs(t, err, ErrInvalidResponse)
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/chainctl/memnode"
	"github.com/gandercoin/chainfixture/mweb"
	"github.com/gandercoin/chainfixture/txbuild"
)

func newTestNode(t *testing.T) *memnode.Node {
	t.Helper()
	n, err := memnode.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func run(t *testing.T, ctl chainctl.Controller, args ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, runCommand(ctl, args, &buf))
	return buf.Bytes()
}

func TestMakeUTXOCommand(t *testing.T) {
	n := newTestNode(t)

	var res outPointResult
	out := run(t, n, "makeutxo", "0.05")
	require.NoError(t, json.Unmarshal(out, &res))
	require.Equal(t, uint32(0), res.Vout)

	tx, err := n.GetRawTransactionVerbose(mustHash(t, res.Txid))
	require.NoError(t, err)
	require.NotEmpty(t, tx.BlockHash)
	require.Equal(t, btcutil.Amount(5_000_000), tx.Vout[0].Value.Amount())
	require.Equal(t, hex.EncodeToString(txbuild.DummyP2WPKHScript),
		tx.Vout[0].ScriptPubKey.Hex)

	script := hex.EncodeToString(txbuild.HogAddrScript(mweb.Hash{0x07}))
	out = run(t, n, "makeutxo", "--unconfirmed", "--script="+script, "1")
	require.NoError(t, json.Unmarshal(out, &res))
	tx, err = n.GetRawTransactionVerbose(mustHash(t, res.Txid))
	require.NoError(t, err)
	require.Empty(t, tx.BlockHash)
	require.Equal(t, script, tx.Vout[0].ScriptPubKey.Hex)
}

func TestCommandArgumentErrors(t *testing.T) {
	n := newTestNode(t)
	tests := [][]string{
		{"makeutxo"},
		{"makeutxo", "1", "2"},
		{"makeutxo", "abc"},
		{"makeutxo", "--script=zz", "1"},
		{"makeutxo", "--nosuchflag", "1"},
		{"setupmweb", "now"},
		{"hogout", "x"},
		{"mwebheader", "x"},
		{"hogex"},
		{"hogex", "1234"},
		{"frobnicate"},
	}
	for _, args := range tests {
		var buf bytes.Buffer
		require.Error(t, runCommand(n, args, &buf), "%v", args)
		require.Zero(t, buf.Len())
	}
}

func TestMWEBCommands(t *testing.T) {
	n := newTestNode(t)

	require.JSONEq(t, "null", string(run(t, n, "mwebheader")))

	var header chainctl.MWEBBlockResult
	require.NoError(t, json.Unmarshal(run(t, n, "setupmweb"), &header))
	require.Equal(t, int64(memnode.DefaultMWEBActivationHeight), header.Height)
	require.JSONEq(t, string(mustJSON(t, header)),
		string(run(t, n, "mwebheader")))

	var out txOutResult
	require.NoError(t, json.Unmarshal(run(t, n, "hogout"), &out))
	require.Equal(t, mweb.DefaultPegInAmount, out.Value.Amount())
	require.Equal(t, hex.EncodeToString(txbuild.HogAddrScript(
		mustMWEBHash(t, header.Hash))), out.Script)

	target := mweb.Hash{0xab}
	var draft draftResult
	require.NoError(t, json.Unmarshal(run(t, n, "hogex", target.String()),
		&draft))
	require.True(t, draft.HogEx)

	raw, err := hex.DecodeString(draft.Hex)
	require.NoError(t, err)
	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
	require.Equal(t, draft.Txid, tx.TxHash().String())
	require.Equal(t, txbuild.HogAddrScript(target), tx.TxOut[0].PkScript)
}

func mustHash(t *testing.T, s string) *chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHashFromStr(s)
	require.NoError(t, err)
	return h
}

func mustMWEBHash(t *testing.T, s string) mweb.Hash {
	t.Helper()
	h, err := mweb.NewHashFromStr(s)
	require.NoError(t, err)
	return h
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

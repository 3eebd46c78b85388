// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

// TestFormatAmount ensures amounts render as exact fixed-point decimals.
func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount btcutil.Amount
		want   string
	}{
		{0, "0.00000000"},
		{1, "0.00000001"},
		{5_000_000, "0.05000000"},
		{100_000_000, "1.00000000"},
		{105_000_000, "1.05000000"},
		{2_099_999_999_999_999, "20999999.99999999"},
		{-150_000_000, "-1.50000000"},
	}

	for _, test := range tests {
		require.Equal(t, test.want, FormatAmount(test.amount),
			"amount %d", int64(test.amount))
	}
}

// TestParseAmount ensures decimal amounts parse to exact base units and
// that lossy or malformed inputs are rejected with the right kind.
func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want btcutil.Amount
		err  error
	}{
		{name: "zero", in: "0", want: 0},
		{name: "one unit", in: "0.00000001", want: 1},
		{name: "whole coin", in: "1", want: 100_000_000},
		{name: "node format", in: "1.05000000", want: 105_000_000},
		{name: "short fraction", in: "0.05", want: 5_000_000},
		{name: "leading dot", in: ".5", want: 50_000_000},
		{name: "trailing zeros past precision", in: "0.1000000000", want: 10_000_000},
		{name: "exponent", in: "1e-08", want: 1},
		{name: "positive exponent", in: "2.5E1", want: 2_500_000_000},
		{name: "negative", in: "-0.5", want: -50_000_000},
		{name: "surrounding space", in: " 0.1 ", want: 10_000_000},
		{name: "sub-unit digit", in: "0.000000015", err: ErrAmountPrecision},
		{name: "sub-unit exponent", in: "1e-9", err: ErrAmountPrecision},
		{name: "empty", in: "", err: ErrAmountSyntax},
		{name: "letters", in: "1.0a", err: ErrAmountSyntax},
		{name: "bad exponent", in: "1e", err: ErrAmountSyntax},
		{name: "lone dot", in: ".", err: ErrAmountSyntax},
		{name: "beyond supply", in: "84000000.00000001", err: ErrAmountRange},
		{name: "overflow", in: "1e30", err: ErrAmountRange},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseAmount(test.in)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

// TestAmountRoundTrip checks that every formatted amount parses back to
// itself across the awkward boundaries of binary floating point.
func TestAmountRoundTrip(t *testing.T) {
	amounts := []btcutil.Amount{
		1, 3, 7, 10, 29, 99_999_999, 100_000_001, 5_000_000,
		1_000_000_007, 8_399_999_999_999_999,
	}
	for _, a := range amounts {
		got, err := ParseAmount(FormatAmount(a))
		require.NoError(t, err)
		require.Equal(t, a, got)
	}
}

// TestDecimalAmountJSON ensures DecimalAmount decodes from JSON numbers and
// strings without float conversion.
func TestDecimalAmountJSON(t *testing.T) {
	var vout Vout
	err := json.Unmarshal([]byte(`{"value": 0.29000001, "n": 1,
		"scriptPubKey": {"asm": "", "type": "witness_v0_keyhash",
		"address": "rltc1qxyz"}}`), &vout)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(29_000_001), vout.Value.Amount())
	require.True(t, vout.ScriptPubKey.PaysTo("rltc1qxyz"))

	var quoted DecimalAmount
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &quoted))
	require.Equal(t, btcutil.Amount(1_250_000_000), quoted.Amount())

	b, err := json.Marshal(DecimalAmount(42))
	require.NoError(t, err)
	require.Equal(t, "0.00000042", string(b))

	var lossy DecimalAmount
	err = json.Unmarshal([]byte(`0.123456789`), &lossy)
	require.True(t, errors.Is(err, ErrAmountPrecision))
}

// TestPaysTo covers both address reporting styles.
func TestPaysTo(t *testing.T) {
	tests := []struct {
		name string
		spk  ScriptPubKeyResult
		addr string
		want bool
	}{
		{"single address", ScriptPubKeyResult{Address: "a"}, "a", true},
		{"other address", ScriptPubKeyResult{Address: "b"}, "a", false},
		{"address list", ScriptPubKeyResult{Addresses: []string{"a"}}, "a", true},
		{"multisig list", ScriptPubKeyResult{Addresses: []string{"a", "b"}}, "a", false},
		{"no address", ScriptPubKeyResult{}, "", false},
	}
	for _, test := range tests {
		require.Equal(t, test.want, test.spk.PaysTo(test.addr), test.name)
	}
}

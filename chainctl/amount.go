// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainctl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// AmountDecimals is the number of fractional digits the node uses when it
// renders or accepts a decimal coin amount.
const AmountDecimals = 8

// MaxAmount is the largest amount the node will ever report: the total
// supply of 84 million coins.
const MaxAmount = 84e6 * btcutil.SatoshiPerBitcoin

// FormatAmount renders an amount as the fixed-point decimal string the node
// expects, e.g. 150000000 becomes "1.50000000".  The conversion is exact.
func FormatAmount(a btcutil.Amount) string {
	sign := ""
	u := uint64(a)
	if a < 0 {
		sign = "-"
		u = uint64(-a)
	}
	return fmt.Sprintf("%s%d.%08d", sign, u/btcutil.SatoshiPerBitcoin,
		u%btcutil.SatoshiPerBitcoin)
}

// ParseAmount converts a decimal coin amount as printed by the node into the
// exact number of base units.  Plain and exponent notation are accepted.  Any
// non-zero digit below the smallest unit is an error rather than being
// rounded away.
func ParseAmount(s string) (btcutil.Amount, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0, amountError(ErrAmountSyntax, "empty amount")
	}

	negative := false
	switch str[0] {
	case '-':
		negative = true
		str = str[1:]
	case '+':
		str = str[1:]
	}

	// Split off an exponent, if any.
	exp := 0
	if i := strings.IndexAny(str, "eE"); i != -1 {
		e, err := strconv.Atoi(str[i+1:])
		if err != nil {
			return 0, amountError(ErrAmountSyntax,
				fmt.Sprintf("bad exponent in %q", s))
		}
		exp = e
		str = str[:i]
	}

	intPart, fracPart := str, ""
	if i := strings.IndexByte(str, '.'); i != -1 {
		intPart, fracPart = str[:i], str[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, amountError(ErrAmountSyntax,
			fmt.Sprintf("no digits in %q", s))
	}
	digits := intPart + fracPart
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, amountError(ErrAmountSyntax,
				fmt.Sprintf("invalid character %q in %q",
					digits[i], s))
		}
	}

	// digits * 10^(exp - len(fracPart)) coins, so the value in base units
	// is digits * 10^shift.
	shift := exp - len(fracPart) + AmountDecimals
	digits = strings.TrimLeft(digits, "0")
	if shift < 0 {
		cut := -shift
		if cut > len(digits) {
			cut = len(digits)
		}
		dropped := digits[len(digits)-cut:]
		if strings.Trim(dropped, "0") != "" {
			return 0, amountError(ErrAmountPrecision,
				fmt.Sprintf("%q has more than %d decimals", s,
					AmountDecimals))
		}
		digits = digits[:len(digits)-cut]
		shift = 0
	}
	if digits == "" {
		return 0, nil
	}
	if len(digits)+shift > 19 {
		return 0, amountError(ErrAmountRange,
			fmt.Sprintf("%q overflows amount", s))
	}

	var buf bytes.Buffer
	buf.WriteString(digits)
	for i := 0; i < shift; i++ {
		buf.WriteByte('0')
	}
	v, err := strconv.ParseInt(buf.String(), 10, 64)
	if err != nil {
		return 0, amountError(ErrAmountRange,
			fmt.Sprintf("%q overflows amount", s))
	}
	if v > MaxAmount {
		return 0, amountError(ErrAmountRange,
			fmt.Sprintf("%q exceeds the maximum amount", s))
	}
	if negative {
		v = -v
	}
	return btcutil.Amount(v), nil
}

// DecimalAmount is an amount that travels as a JSON decimal number.  It
// decodes without passing through float64.
type DecimalAmount btcutil.Amount

// UnmarshalJSON decodes a JSON number (or quoted number) exactly.
func (a *DecimalAmount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = DecimalAmount(v)
	return nil
}

// MarshalJSON encodes the amount as an unquoted fixed-point JSON number.
func (a DecimalAmount) MarshalJSON() ([]byte, error) {
	return []byte(FormatAmount(btcutil.Amount(a))), nil
}

// Amount returns the value in base units.
func (a DecimalAmount) Amount() btcutil.Amount {
	return btcutil.Amount(a)
}

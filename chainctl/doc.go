// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package chainctl defines the control-plane contract through which fixtures
drive a node under test, along with a JSON-RPC implementation of it.

The Controller interface exposes only the handful of wallet, mempool and
block calls the fixture builders need.  RPCController implements it on top
of rpcclient; the memnode subpackage implements it in memory for unit tests;
MockController lets tests script individual responses.

Amounts cross the RPC boundary as decimal numbers.  FormatAmount,
ParseAmount and the DecimalAmount JSON type convert them to and from
btcutil.Amount without floating point, so a value is never off by a unit.
*/
package chainctl

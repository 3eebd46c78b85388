// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package rpctest launches gandercoind regtest nodes for scenario tests.

A Harness owns one node process in a temporary data directory, with p2p and
rpc ports reserved through lock files shared by every test process on the
host.  After SetUp, Controller drives the node over JSON-RPC and a fresh
wallet is loaded.  TearDown stops the process and removes its files.

The scenario tests in this package only build with the rpctest tag and need
a gandercoind binary, either in PATH or named by the GANDERCOIND
environment variable:

	go test -tags rpctest ./integration/rpctest
*/
package rpctest

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/internal/log"
	"github.com/gandercoin/chainfixture/internal/version"
	"github.com/gandercoin/chainfixture/mweb"
	"github.com/gandercoin/chainfixture/utxo"
)

const showHelpMessage = "Specify -h to show available options"

// command runs one subcommand against ctl, writing its result to w.
type command struct {
	usage string
	run   func(ctl chainctl.Controller, args []string, w io.Writer) error
}

var commands = map[string]command{
	"makeutxo": {
		usage: "makeutxo <amount> [--unconfirmed] [--script=<hex>]",
		run:   makeUTXO,
	},
	"setupmweb":  {usage: "setupmweb", run: setupMWEB},
	"hogout":     {usage: "hogout", run: hogOut},
	"mwebheader": {usage: "mwebheader", run: mwebHeader},
	"hogex":      {usage: "hogex <mwebhash>", run: hogEx},
}

// usage displays the general usage along with errorMessage.
func usage(errorMessage string) {
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	fmt.Fprintln(os.Stderr, errorMessage)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s [OPTIONS] <command> <args...>\n\n", appName)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, name := range []string{"makeutxo", "setupmweb", "hogout",
		"mwebheader", "hogex"} {

		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, showHelpMessage)
}

// writeJSON writes v to w as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outPointResult is the JSON form of a created output.
type outPointResult struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// txOutResult is the JSON form of a transaction output.
type txOutResult struct {
	Value  chainctl.DecimalAmount `json:"value"`
	Script string                 `json:"script"`
}

// draftResult is the JSON form of an unsigned transaction draft.
type draftResult struct {
	Txid  string `json:"txid"`
	HogEx bool   `json:"hogex"`
	Hex   string `json:"hex"`
}

// makeUTXOOptions holds the flags of makeutxo.
type makeUTXOOptions struct {
	Unconfirmed bool   `long:"unconfirmed" description:"Leave the output in the mempool"`
	Script      string `long:"script" description:"Hex pkScript of the output instead of a dummy P2WPKH script"`
}

func makeUTXO(ctl chainctl.Controller, args []string, w io.Writer) error {
	var opts makeUTXOOptions
	rest, err := flags.NewParser(&opts, flags.PassDoubleDash).ParseArgs(args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("makeutxo takes exactly one amount")
	}
	amount, err := chainctl.ParseAmount(rest[0])
	if err != nil {
		return err
	}
	var pkScript []byte
	if opts.Script != "" {
		pkScript, err = hex.DecodeString(opts.Script)
		if err != nil {
			return fmt.Errorf("invalid script: %w", err)
		}
	}

	op, err := utxo.New(ctl, nil).MakeUTXO(&utxo.MakeUTXOArgs{
		Amount:    amount,
		Confirmed: !opts.Unconfirmed,
		PkScript:  pkScript,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, outPointResult{Txid: op.Hash.String(), Vout: op.Index})
}

func setupMWEB(ctl chainctl.Controller, args []string, w io.Writer) error {
	if len(args) != 0 {
		return errors.New("setupmweb takes no arguments")
	}
	if err := mweb.NewActivator(ctl, nil).Activate(); err != nil {
		return err
	}
	return mwebHeader(ctl, nil, w)
}

func hogOut(ctl chainctl.Controller, args []string, w io.Writer) error {
	if len(args) != 0 {
		return errors.New("hogout takes no arguments")
	}
	txOut, err := mweb.NewInspector(ctl, nil).HogAddrTxOut()
	if err != nil {
		return err
	}
	return writeJSON(w, txOutResult{
		Value:  chainctl.DecimalAmount(btcutil.Amount(txOut.Value)),
		Script: hex.EncodeToString(txOut.PkScript),
	})
}

func mwebHeader(ctl chainctl.Controller, args []string, w io.Writer) error {
	if len(args) != 0 {
		return errors.New("mwebheader takes no arguments")
	}
	header, err := mweb.NewInspector(ctl, nil).HeaderTip()
	if err != nil {
		return err
	}
	if header == nil {
		return writeJSON(w, nil)
	}
	return writeJSON(w, header.Result())
}

func hogEx(ctl chainctl.Controller, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("hogex takes exactly one mweb hash")
	}
	mwebHash, err := mweb.NewHashFromStr(args[0])
	if err != nil {
		return err
	}
	tx, err := mweb.NewInspector(ctl, nil).CreateHogEx(mwebHash)
	if err != nil {
		return err
	}

	var buf strings.Builder
	if err := tx.MsgTx.Serialize(hex.NewEncoder(&buf)); err != nil {
		return err
	}
	return writeJSON(w, draftResult{
		Txid:  tx.TxHash().String(),
		HogEx: tx.HogEx,
		Hex:   buf.String(),
	})
}

// runCommand looks up and runs the command named by args[0].
func runCommand(ctl chainctl.Controller, args []string, w io.Writer) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unrecognized command %q", args[0])
	}
	log.FxctLog.Debugf("Running %s", args[0])
	if err := cmd.run(ctl, args[1:], w); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

func realMain() int {
	cfg, args, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, errShowVersion) {
			appName := filepath.Base(os.Args[0])
			appName = strings.TrimSuffix(appName, filepath.Ext(appName))
			fmt.Println(appName, "version", version.String())
			return 0
		}
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, showHelpMessage)
		return 1
	}

	if err := log.InitLogRotator(filepath.Join(cfg.LogDir,
		defaultLogFilename)); err != nil {

		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.LogRotator.Close()

	if len(args) < 1 {
		usage("No command specified")
		return 1
	}
	if _, ok := commands[args[0]]; !ok {
		usage(fmt.Sprintf("Unrecognized command '%s'", args[0]))
		return 1
	}

	connCfg, err := cfg.rpcConnConfig()
	if err != nil {
		log.FxctLog.Errorf("Unable to load RPC certificate: %v", err)
		return 1
	}
	ctl, err := chainctl.NewRPCController(connCfg, &chainctl.RPCOptions{
		MiningAddress: cfg.MiningAddress,
	})
	if err != nil {
		log.FxctLog.Errorf("Unable to create RPC client: %v", err)
		return 1
	}
	defer ctl.Shutdown()

	if err := runCommand(ctl, args, os.Stdout); err != nil {
		log.FxctLog.Errorf("%v", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(realMain())
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package utxo

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"

	"github.com/gandercoin/chainfixture/chainctl"
	"github.com/gandercoin/chainfixture/poll"
	"github.com/gandercoin/chainfixture/txbuild"
)

const (
	// DefaultFee is the amount sent on top of the requested value to pay
	// for the spend.  It is deliberately generous so the spend relays no
	// matter the node's fee policy.
	DefaultFee = btcutil.Amount(btcutil.SatoshiPerBitcoin)

	// DefaultFundingBatch is the number of blocks generated per funding
	// round.
	DefaultFundingBatch = 100

	// DefaultMaxFundingRounds is the number of funding rounds after which
	// the builder gives up on the balance.
	DefaultMaxFundingRounds = 10

	// DefaultMaxDrainBlocks is the number of single blocks generated while
	// waiting for the mempool to drain.
	DefaultMaxDrainBlocks = 100
)

// Config tunes a Builder.  Zero values select the defaults.
type Config struct {
	Fee              btcutil.Amount
	FundingBatch     uint32
	MaxFundingRounds int
	MaxDrainBlocks   int
}

// withDefaults returns a copy of the config with zero fields defaulted.
func (c *Config) withDefaults() Config {
	var cfg Config
	if c != nil {
		cfg = *c
	}
	if cfg.Fee <= 0 {
		cfg.Fee = DefaultFee
	}
	if cfg.FundingBatch == 0 {
		cfg.FundingBatch = DefaultFundingBatch
	}
	if cfg.MaxFundingRounds <= 0 {
		cfg.MaxFundingRounds = DefaultMaxFundingRounds
	}
	if cfg.MaxDrainBlocks <= 0 {
		cfg.MaxDrainBlocks = DefaultMaxDrainBlocks
	}
	return cfg
}

// MakeUTXOArgs describes the output to create.
type MakeUTXOArgs struct {
	// Amount is the exact value of the output.
	Amount btcutil.Amount

	// Confirmed requests the output be mined before MakeUTXO returns.
	Confirmed bool

	// PkScript locks the output.  Nil selects txbuild.DummyP2WPKHScript.
	PkScript []byte
}

// Builder creates spendable outputs of exact value on a node.  It keeps no
// state between calls; everything is refetched from the node.
type Builder struct {
	ctl chainctl.Controller
	cfg Config
}

// New returns a Builder driving ctl.  A nil cfg selects the defaults.
func New(ctl chainctl.Controller, cfg *Config) *Builder {
	return &Builder{ctl: ctl, cfg: cfg.withDefaults()}
}

// MakeConfirmedUTXO is MakeUTXO for a confirmed output locked to
// txbuild.DummyP2WPKHScript.
func (b *Builder) MakeConfirmedUTXO(amount btcutil.Amount) (*wire.OutPoint, error) {
	return b.MakeUTXO(&MakeUTXOArgs{Amount: amount, Confirmed: true})
}

// MakeUTXO funds the wallet as needed, splits off an output of exactly
// Amount + Fee and spends it into a single output of exactly Amount locked
// to PkScript.  The returned outpoint always has index 0.
//
// When Confirmed is set, blocks are generated one at a time until the
// mempool is empty.  Every generated block must shrink the mempool.
func (b *Builder) MakeUTXO(args *MakeUTXOArgs) (*wire.OutPoint, error) {
	if args.Amount <= 0 {
		str := fmt.Sprintf("amount %v is not positive", args.Amount)
		return nil, utxoError(ErrInvalidAmount, str, nil)
	}
	if args.Amount > chainctl.MaxAmount-b.cfg.Fee {
		str := fmt.Sprintf("amount %v plus fee %v exceeds the maximum "+
			"amount", args.Amount, b.cfg.Fee)
		return nil, utxoError(ErrInvalidAmount, str, nil)
	}
	needed := args.Amount + b.cfg.Fee

	if err := b.fund(needed); err != nil {
		return nil, err
	}

	addr, err := b.ctl.GetNewAddress(chainctl.AddressDefault)
	if err != nil {
		return nil, utxoError(ErrNodeRequest, "getnewaddress", err)
	}
	fundingTxid, err := b.ctl.SendToAddress(addr, needed)
	if err != nil {
		str := fmt.Sprintf("sendtoaddress %s %s", addr,
			chainctl.FormatAmount(needed))
		return nil, utxoError(ErrNodeRequest, str, err)
	}
	log.Debugf("Funding transaction %v pays %v to %s", fundingTxid,
		needed, addr)

	prevOut, err := b.fundingOutput(fundingTxid, addr, needed)
	if err != nil {
		return nil, err
	}

	pkScript := args.PkScript
	if pkScript == nil {
		pkScript = txbuild.DummyP2WPKHScript
	}
	tx := txbuild.NewSpend(*prevOut, args.Amount, pkScript)
	log.Tracef("Spend draft: %v", newLogClosure(func() string {
		return spew.Sdump(tx.MsgTx)
	}))

	signed, err := b.ctl.SignRawTransactionWithWallet(tx.MsgTx)
	if err != nil {
		str := fmt.Sprintf("signing %v", tx)
		return nil, utxoError(ErrSignRejected, str, err)
	}
	txid, err := b.ctl.SendRawTransaction(signed)
	if err != nil {
		str := fmt.Sprintf("broadcasting %v", signed.TxHash)
		return nil, utxoError(ErrBroadcastRejected, str, err)
	}

	if args.Confirmed {
		if err := b.drainMempool(); err != nil {
			return nil, err
		}
	}

	log.Infof("Created output %v:0 of %v (confirmed %v)", txid,
		args.Amount, args.Confirmed)
	return wire.NewOutPoint(txid, 0), nil
}

// fund generates blocks in batches until the wallet balance covers needed.
func (b *Builder) fund(needed btcutil.Amount) error {
	var balance btcutil.Amount
	res := poll.Until(b.cfg.MaxFundingRounds,
		func() (bool, error) {
			var err error
			balance, err = b.ctl.GetBalance()
			if err != nil {
				return false, err
			}
			return balance >= needed, nil
		},
		func() error {
			log.Debugf("Balance %v below %v, generating %d blocks",
				balance, needed, b.cfg.FundingBatch)
			_, err := b.ctl.Generate(b.cfg.FundingBatch)
			return err
		})

	switch res.Outcome {
	case poll.Converged:
		return nil
	case poll.Failed:
		return utxoError(ErrNodeRequest, "funding wallet", res.Err)
	}
	str := fmt.Sprintf("balance %v still below %v after %d rounds of %d "+
		"blocks", balance, needed, res.Attempts, b.cfg.FundingBatch)
	return utxoError(ErrFundingExhausted, str, res.Err)
}

// fundingOutput locates the single output of the funding transaction paying
// addr and checks it carries exactly needed.
func (b *Builder) fundingOutput(txid *chainhash.Hash, addr string,
	needed btcutil.Amount) (*wire.OutPoint, error) {

	tx, err := b.ctl.GetRawTransactionVerbose(txid)
	if err != nil {
		str := fmt.Sprintf("getrawtransaction %v", txid)
		return nil, utxoError(ErrNodeRequest, str, err)
	}

	var match *chainctl.Vout
	for i := range tx.Vout {
		vout := &tx.Vout[i]
		if !vout.ScriptPubKey.PaysTo(addr) {
			continue
		}
		if match != nil {
			str := fmt.Sprintf("outputs %d and %d of %v both pay %s",
				match.N, vout.N, txid, addr)
			return nil, utxoError(ErrAmbiguousOutput, str, nil)
		}
		match = vout
	}
	if match == nil {
		str := fmt.Sprintf("no output of %v pays %s", txid, addr)
		return nil, utxoError(ErrMissingOutput, str, nil)
	}
	if got := match.Value.Amount(); got != needed {
		str := fmt.Sprintf("output %v:%d carries %v, sent %v", txid,
			match.N, got, needed)
		return nil, utxoError(ErrOutputValueMismatch, str, nil)
	}

	return wire.NewOutPoint(txid, match.N), nil
}

// drainMempool generates single blocks until the mempool is empty.
func (b *Builder) drainMempool() error {
	res := poll.StrictlyDecreasing(b.cfg.MaxDrainBlocks,
		func() (int, error) {
			txids, err := b.ctl.GetRawMempool()
			return len(txids), err
		},
		func() error {
			_, err := b.ctl.Generate(1)
			return err
		})

	switch res.Outcome {
	case poll.Converged:
		log.Debugf("Mempool drained after %d blocks", res.Attempts)
		return nil
	case poll.InvariantViolated:
		return utxoError(ErrMempoolStalled, "mempool did not shrink",
			res.Err)
	case poll.TimedOut:
		return utxoError(ErrMempoolNotDrained, "mempool not empty",
			res.Err)
	}
	return utxoError(ErrNodeRequest, "draining mempool", res.Err)
}

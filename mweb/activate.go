// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mweb

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/gandercoin/chainfixture/chainctl"
)

const (
	// DefaultPreActivationBlocks is the number of blocks mined before the
	// peg-in.  The block after them is the first one allowed to carry an
	// extension block on regtest.
	DefaultPreActivationBlocks = 431

	// DefaultPegInAmount is the amount pegged into the extension block.
	DefaultPegInAmount = btcutil.Amount(btcutil.SatoshiPerBitcoin)
)

// ActivatorConfig tunes an Activator.  Zero values select the defaults.
type ActivatorConfig struct {
	PreActivationBlocks uint32
	PegInAmount         btcutil.Amount
}

// Activator drives a fresh regtest chain to the first block carrying an
// extension block.
type Activator struct {
	ctl chainctl.Controller
	cfg ActivatorConfig
}

// NewActivator returns an Activator driving ctl.  A nil cfg selects the
// defaults.
func NewActivator(ctl chainctl.Controller, cfg *ActivatorConfig) *Activator {
	var c ActivatorConfig
	if cfg != nil {
		c = *cfg
	}
	if c.PreActivationBlocks == 0 {
		c.PreActivationBlocks = DefaultPreActivationBlocks
	}
	if c.PegInAmount <= 0 {
		c.PegInAmount = DefaultPegInAmount
	}
	return &Activator{ctl: ctl, cfg: c}
}

// Activate mines the pre-activation blocks, pegs coins into a fresh MWEB
// address of the wallet and mines the activation block.  The steps run once
// each, in order; the first failure aborts the sequence with
// ErrActivationStep naming the step.
func (a *Activator) Activate() error {
	log.Infof("Mining %d pre-activation blocks", a.cfg.PreActivationBlocks)
	if _, err := a.ctl.Generate(a.cfg.PreActivationBlocks); err != nil {
		return stepError("generate pre-activation blocks", err)
	}

	addr, err := a.ctl.GetNewAddress(chainctl.AddressMWEB)
	if err != nil {
		return stepError("get mweb address", err)
	}

	txid, err := a.ctl.SendToAddress(addr, a.cfg.PegInAmount)
	if err != nil {
		return stepError("peg in", err)
	}
	log.Debugf("Peg-in %v sends %v to %s", txid, a.cfg.PegInAmount, addr)

	hashes, err := a.ctl.Generate(1)
	if err != nil {
		return stepError("generate activation block", err)
	}
	if len(hashes) > 0 {
		log.Infof("MWEB activated in block %v", hashes[0])
	}
	return nil
}

// stepError wraps the failure of a named activation step.
func stepError(step string, err error) Error {
	str := fmt.Sprintf("activation step %q failed", step)
	return mwebError(ErrActivationStep, str, err)
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memnode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"lukechampine.com/blake3"

	"github.com/gandercoin/chainfixture/chainctl"
)

// mwebHRP is the human-readable part of regtest MWEB addresses.
const mwebHRP = "tmweb"

// errMissingKey is returned when asked to sign for a script the wallet
// did not hand out.
var errMissingKey = errors.New("unable to sign input, missing key")

// walletKey is a key controlled by the wallet together with the kind of
// script it was handed out for.
type walletKey struct {
	priv     *btcec.PrivateKey
	addrType chainctl.AddressType

	// witnessProgram is the P2WPKH script nested in a p2sh-segwit output.
	witnessProgram []byte
}

// wallet derives keys from an HD root and signs for the scripts it handed
// out.
type wallet struct {
	params *chaincfg.Params

	// hdRoot is the master private key all wallet keys are children of.
	hdRoot *hdkeychain.ExtendedKey

	// next is the index of the next child key to hand out.
	next uint32
	keys map[string]*walletKey
}

func newWallet(params *chaincfg.Params, seed int64) (*wallet, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	hdSeed := chainhash.DoubleHashH(append([]byte("memnode wallet"), buf[:]...))
	hdRoot, err := hdkeychain.NewMaster(hdSeed[:], params)
	if err != nil {
		return nil, err
	}
	return &wallet{
		params: params,
		hdRoot: hdRoot,
		keys:   make(map[string]*walletKey),
	}, nil
}

// deriveKey returns the private key of the next child of the HD root.
// Indexes without a valid child are skipped.
func (w *wallet) deriveKey() (*btcec.PrivateKey, error) {
	for {
		index := w.next
		w.next++
		child, err := w.hdRoot.Derive(index)
		if errors.Is(err, hdkeychain.ErrInvalidChild) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return child.ECPrivKey()
	}
}

// newAddress creates a key and returns the address of the requested type
// paying to it.
func (w *wallet) newAddress(addrType chainctl.AddressType) (string, error) {
	if addrType == chainctl.AddressMWEB {
		return w.newMWEBAddress()
	}

	priv, err := w.deriveKey()
	if err != nil {
		return "", err
	}
	pkHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	key := &walletKey{priv: priv, addrType: addrType}

	var addr btcutil.Address
	switch addrType {
	case chainctl.AddressDefault, chainctl.AddressBech32:
		key.addrType = chainctl.AddressBech32
		addr, err = btcutil.NewAddressWitnessPubKeyHash(pkHash, w.params)

	case chainctl.AddressLegacy:
		addr, err = btcutil.NewAddressPubKeyHash(pkHash, w.params)

	case chainctl.AddressP2SHSegwit:
		var segwit btcutil.Address
		segwit, err = btcutil.NewAddressWitnessPubKeyHash(pkHash, w.params)
		if err != nil {
			return "", err
		}
		key.witnessProgram, err = txscript.PayToAddrScript(segwit)
		if err != nil {
			return "", err
		}
		addr, err = btcutil.NewAddressScriptHash(key.witnessProgram,
			w.params)

	default:
		return "", rpcError(btcjson.ErrRPCWalletInvalidAddressType,
			fmt.Sprintf("Unknown address type '%s'", addrType))
	}
	if err != nil {
		return "", err
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", err
	}
	w.keys[string(pkScript)] = key
	return addr.EncodeAddress(), nil
}

// newMWEBAddress returns a stealth address made of a scan and a spend public
// key.  Coins sent to it leave the canonical chain, so no key is recorded.
func (w *wallet) newMWEBAddress() (string, error) {
	scan, err := w.deriveKey()
	if err != nil {
		return "", err
	}
	spend, err := w.deriveKey()
	if err != nil {
		return "", err
	}
	keys := append(scan.PubKey().SerializeCompressed(),
		spend.PubKey().SerializeCompressed()...)
	data, err := bech32.ConvertBits(keys, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(mwebHRP, data)
}

// miningScript returns the script new coinbase outputs pay to.
func (w *wallet) miningScript() ([]byte, error) {
	addr, err := w.newAddress(chainctl.AddressBech32)
	if err != nil {
		return nil, err
	}
	decoded, err := btcutil.DecodeAddress(addr, w.params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(decoded)
}

// owns reports whether the wallet can sign for pkScript.
func (w *wallet) owns(pkScript []byte) bool {
	_, ok := w.keys[string(pkScript)]
	return ok
}

// signInput fills in the signature script and witness of input idx of tx,
// which spends prevOut.
func (w *wallet) signInput(tx *wire.MsgTx, idx int, prevOut *wire.TxOut,
	sigHashes *txscript.TxSigHashes) error {

	key, ok := w.keys[string(prevOut.PkScript)]
	if !ok {
		return errMissingKey
	}
	txIn := tx.TxIn[idx]

	switch key.addrType {
	case chainctl.AddressLegacy:
		sigScript, err := txscript.SignatureScript(tx, idx,
			prevOut.PkScript, txscript.SigHashAll, key.priv, true)
		if err != nil {
			return err
		}
		txIn.SignatureScript = sigScript
		txIn.Witness = nil

	case chainctl.AddressP2SHSegwit:
		witness, err := txscript.WitnessSignature(tx, sigHashes, idx,
			prevOut.Value, key.witnessProgram, txscript.SigHashAll,
			key.priv, true)
		if err != nil {
			return err
		}
		sigScript, err := txscript.NewScriptBuilder().
			AddData(key.witnessProgram).Script()
		if err != nil {
			return err
		}
		txIn.SignatureScript = sigScript
		txIn.Witness = witness

	default:
		witness, err := txscript.WitnessSignature(tx, sigHashes, idx,
			prevOut.Value, prevOut.PkScript, txscript.SigHashAll,
			key.priv, true)
		if err != nil {
			return err
		}
		txIn.SignatureScript = nil
		txIn.Witness = witness
	}
	return nil
}

// pegInScript returns the output script pegging coins into the MWEB
// address addr, or ok false if addr is not an MWEB address.
func pegInScript(addr string) (script []byte, ok bool, err error) {
	if !strings.HasPrefix(strings.ToLower(addr), mwebHRP+"1") {
		return nil, false, nil
	}
	hrp, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return nil, true, err
	}
	if hrp != mwebHRP {
		return nil, true, fmt.Errorf("unexpected prefix %q", hrp)
	}
	keys, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, true, err
	}
	if len(keys) != 2*btcec.PubKeyBytesLenCompressed {
		return nil, true, fmt.Errorf("invalid mweb address length %d",
			len(keys))
	}
	commit := blake3.Sum256(keys)
	script, err = txscript.NewScriptBuilder().
		AddOp(pegInVersion).AddData(commit[:]).Script()
	return script, true, err
}

// pegInVersion is the witness version of peg-in outputs.
const pegInVersion = txscript.OP_9

// isPegInScript reports whether pkScript is a peg-in output script.
func isPegInScript(pkScript []byte) bool {
	return len(pkScript) == 34 && pkScript[0] == pegInVersion &&
		pkScript[1] == txscript.OP_DATA_32
}

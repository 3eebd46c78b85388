// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memnode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// txIndexPrefix prefixes the keys of confirmed transactions.
var txIndexPrefix = []byte("tx")

// txEntry is a confirmed transaction as stored by the index.
type txEntry struct {
	tx        *wire.MsgTx
	height    int32
	blockHash chainhash.Hash
}

// txIndex maps transaction identifiers to the block confirming them.
// Values are the block height, the block hash and the serialized
// transaction.
type txIndex struct {
	db *leveldb.DB
}

// openTxIndex opens the index in dir, or in memory when dir is empty.
func openTxIndex(dir string) (*txIndex, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if dir == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(dir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open txindex: %w", err)
	}
	return &txIndex{db: db}, nil
}

func txIndexKey(hash *chainhash.Hash) []byte {
	key := make([]byte, len(txIndexPrefix)+chainhash.HashSize)
	copy(key, txIndexPrefix)
	copy(key[len(txIndexPrefix):], hash[:])
	return key
}

// connectBlock indexes every transaction of a block in one batch.
func (idx *txIndex) connectBlock(blk *block) error {
	batch := new(leveldb.Batch)
	for _, tx := range blk.msg.Transactions {
		var buf bytes.Buffer
		buf.Grow(4 + chainhash.HashSize + tx.SerializeSize())
		var height [4]byte
		binary.LittleEndian.PutUint32(height[:], uint32(blk.height))
		buf.Write(height[:])
		buf.Write(blk.hash[:])
		if err := tx.Serialize(&buf); err != nil {
			return err
		}
		txHash := tx.TxHash()
		batch.Put(txIndexKey(&txHash), buf.Bytes())
	}
	return idx.db.Write(batch, nil)
}

// fetch returns the indexed transaction, or nil if it is unknown.
func (idx *txIndex) fetch(hash *chainhash.Hash) (*txEntry, error) {
	value, err := idx.db.Get(txIndexKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(value) < 4+chainhash.HashSize {
		return nil, fmt.Errorf("corrupt txindex entry for %v", hash)
	}

	entry := &txEntry{
		tx:     new(wire.MsgTx),
		height: int32(binary.LittleEndian.Uint32(value[:4])),
	}
	copy(entry.blockHash[:], value[4:4+chainhash.HashSize])
	r := bytes.NewReader(value[4+chainhash.HashSize:])
	if err := entry.tx.Deserialize(r); err != nil {
		return nil, fmt.Errorf("corrupt txindex entry for %v: %w", hash,
			err)
	}
	return entry, nil
}

// has reports whether the transaction is indexed.
func (idx *txIndex) has(hash *chainhash.Hash) (bool, error) {
	return idx.db.Has(txIndexKey(hash), nil)
}

func (idx *txIndex) close() error {
	return idx.db.Close()
}

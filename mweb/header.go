// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mweb

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"

	"lukechampine.com/blake3"

	"github.com/gandercoin/chainfixture/chainctl"
)

// HashSize is the size of MWEB hashes, roots and offsets.
const HashSize = 32

// Hash is a 32-byte MWEB hash, root or offset.  Unlike chainhash.Hash it is
// printed in byte order, the way the node reports MWEB values.
type Hash [HashSize]byte

// String returns the Hash as a hexadecimal string.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText encodes the Hash as hexadecimal text.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes hexadecimal text into the Hash.
func (h *Hash) UnmarshalText(text []byte) error {
	hash, err := NewHashFromStr(string(text))
	if err != nil {
		return err
	}
	*h = hash
	return nil
}

// NewHashFromStr decodes a 64 character hexadecimal string.
func NewHashFromStr(s string) (Hash, error) {
	var h Hash
	if len(s) != 2*HashSize {
		return h, fmt.Errorf("hash string %q has length %d, want %d",
			s, len(s), 2*HashSize)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, err
	}
	return h, nil
}

// Header is the extension block header committed to by the hogex
// transaction of a block.
type Header struct {
	Height        int32  `json:"height"`
	OutputRoot    Hash   `json:"output_root"`
	KernelRoot    Hash   `json:"kernel_root"`
	LeafsetRoot   Hash   `json:"leaf_root"`
	KernelOffset  Hash   `json:"kernel_offset"`
	StealthOffset Hash   `json:"stealth_offset"`
	NumTXOs       uint64 `json:"num_txos"`
	NumKernels    uint64 `json:"num_kernels"`

	// Hash is the header hash as reported by the node.
	Hash Hash `json:"hash"`
}

// ParseHeader builds a Header from the mweb section of a getblock response.
// When the node does not report the header hash it is computed.
func ParseHeader(r *chainctl.MWEBBlockResult) (*Header, error) {
	if r.Height < 0 || r.Height > math.MaxInt32 {
		return nil, fmt.Errorf("mweb height %d out of range", r.Height)
	}
	h := &Header{
		Height:     int32(r.Height),
		NumTXOs:    r.NumTXOs,
		NumKernels: r.NumKernels,
	}
	fields := []struct {
		name string
		src  string
		dst  *Hash
	}{
		{"output_root", r.OutputRoot, &h.OutputRoot},
		{"kernel_root", r.KernelRoot, &h.KernelRoot},
		{"leaf_root", r.LeafRoot, &h.LeafsetRoot},
		{"kernel_offset", r.KernelOffset, &h.KernelOffset},
		{"stealth_offset", r.StealthOffset, &h.StealthOffset},
	}
	for _, f := range fields {
		hash, err := NewHashFromStr(f.src)
		if err != nil {
			return nil, fmt.Errorf("mweb %s: %w", f.name, err)
		}
		*f.dst = hash
	}

	if r.Hash == "" {
		h.Hash = h.ComputeHash()
		return h, nil
	}
	hash, err := NewHashFromStr(r.Hash)
	if err != nil {
		return nil, fmt.Errorf("mweb hash: %w", err)
	}
	h.Hash = hash
	return h, nil
}

// Result returns the header in the shape of a getblock mweb section.
func (h *Header) Result() *chainctl.MWEBBlockResult {
	return &chainctl.MWEBBlockResult{
		Hash:          h.Hash.String(),
		Height:        int64(h.Height),
		KernelOffset:  h.KernelOffset.String(),
		StealthOffset: h.StealthOffset.String(),
		NumKernels:    h.NumKernels,
		NumTXOs:       h.NumTXOs,
		KernelRoot:    h.KernelRoot.String(),
		OutputRoot:    h.OutputRoot.String(),
		LeafRoot:      h.LeafsetRoot.String(),
	}
}

// Serialize encodes the header to w: the height, the three roots, the two
// offsets and the output and kernel counts.  Integers use the variable
// length encoding of the node's disk format.
func (h *Header) Serialize(w io.Writer) error {
	if h.Height < 0 {
		return fmt.Errorf("negative mweb height %d", h.Height)
	}
	if err := writeVarInt(w, uint64(h.Height)); err != nil {
		return err
	}
	for _, hash := range []*Hash{&h.OutputRoot, &h.KernelRoot,
		&h.LeafsetRoot, &h.KernelOffset, &h.StealthOffset} {

		if _, err := w.Write(hash[:]); err != nil {
			return err
		}
	}
	if err := writeVarInt(w, h.NumTXOs); err != nil {
		return err
	}
	return writeVarInt(w, h.NumKernels)
}

// Deserialize decodes a header written by Serialize.  The hash is computed
// from the decoded fields.
func (h *Header) Deserialize(r io.Reader) error {
	height, err := readVarInt(r)
	if err != nil {
		return err
	}
	if height > math.MaxInt32 {
		return fmt.Errorf("mweb height %d out of range", height)
	}
	h.Height = int32(height)
	for _, hash := range []*Hash{&h.OutputRoot, &h.KernelRoot,
		&h.LeafsetRoot, &h.KernelOffset, &h.StealthOffset} {

		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return err
		}
	}
	if h.NumTXOs, err = readVarInt(r); err != nil {
		return err
	}
	if h.NumKernels, err = readVarInt(r); err != nil {
		return err
	}
	h.Hash = h.ComputeHash()
	return nil
}

// Bytes returns the serialized header.
func (h *Header) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(5*HashSize + 3*maxVarIntSize)
	// Only a negative height fails, and ParseHeader and Deserialize never
	// produce one.
	_ = h.Serialize(&buf)
	return buf.Bytes()
}

// ComputeHash returns the BLAKE3-256 hash of the serialized header.
func (h *Header) ComputeHash() Hash {
	return blake3.Sum256(h.Bytes())
}

// maxVarIntSize is the longest encoding of a uint64.
const maxVarIntSize = 10

var errVarIntOverflow = errors.New("varint overflows uint64")

// writeVarInt writes n as a big-endian base-128 number where every
// continuation byte is offset by one, so each value has exactly one
// encoding.
func writeVarInt(w io.Writer, n uint64) error {
	var tmp [maxVarIntSize]byte
	i := len(tmp) - 1
	tmp[i] = byte(n & 0x7f)
	for n > 0x7f {
		n = (n >> 7) - 1
		i--
		tmp[i] = byte(n&0x7f) | 0x80
	}
	_, err := w.Write(tmp[i:])
	return err
}

// readVarInt reads a number written by writeVarInt.
func readVarInt(r io.Reader) (uint64, error) {
	var (
		n   uint64
		buf [1]byte
	)
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		if n > math.MaxUint64>>7 {
			return 0, errVarIntOverflow
		}
		n = n<<7 | uint64(buf[0]&0x7f)
		if buf[0]&0x80 == 0 {
			return n, nil
		}
		if n == math.MaxUint64 {
			return 0, errVarIntOverflow
		}
		n++
	}
}

package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hash32 is a sha256 digest.
type Hash32 [32]byte

func (h Hash32) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// Builder builds a canonical byte sequence then hashes it to Hash32 (sha256).
//
// Encoding rules:
//   - Fixed-width integers: big-endian
//   - Bytes/string: u32(len) big-endian + bytes
//   - Fixed arrays (PutFixed): raw bytes, no prefix
//
// Slot addresses are derived with it, so the encoding must never change for an
// existing layout version.
type Builder struct {
	b []byte
}

func NewBuilder() *Builder { return &Builder{b: make([]byte, 0, 128)} }

func (d *Builder) Reset() { d.b = d.b[:0] }

func (d *Builder) Bytes() []byte { return append([]byte(nil), d.b...) }

func (d *Builder) PutU64(v uint64) *Builder {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	d.b = append(d.b, buf[:]...)
	return d
}

// PutBytes appends: u32(len) + bytes
func (d *Builder) PutBytes(p []byte) *Builder {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(p)))
	d.b = append(d.b, buf[:]...)
	d.b = append(d.b, p...)
	return d
}

func (d *Builder) PutString(s string) *Builder { return d.PutBytes([]byte(s)) }

// PutFixed appends p as-is. Only for values whose width is part of the type.
func (d *Builder) PutFixed(p []byte) *Builder {
	d.b = append(d.b, p...)
	return d
}

func (d *Builder) Sum32() Hash32 {
	return sha256.Sum256(d.b)
}

// Convenience helpers

func SumString(s string) Hash32 {
	return NewBuilder().PutString(s).Sum32()
}

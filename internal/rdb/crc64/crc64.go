// Package crc64 implements the Jones variant of CRC-64 used by the RDB file
// format's trailing checksum, via the standard library's table-driven
// implementation with Jones's polynomial.
package crc64

import "hash/crc64"

// jonesPoly is the polynomial Redis' RDB format checksums with
// (0xad93d23594c935a9), in the bit-reversed form hash/crc64 tables expect.
const jonesPoly = 0x95ac9329ac4bc9b5

var table = crc64.MakeTable(jonesPoly)

// Hash accumulates a CRC-64/Jones checksum over successive Write calls.
type Hash struct {
	crc uint64
}

// New returns a zeroed Hash ready for Write.
func New() *Hash {
	return &Hash{}
}

// Write folds p into the running checksum. Never returns an error.
func (h *Hash) Write(p []byte) (int, error) {
	// crc64.Update inverts the value on entry and exit; CRC-64/Jones uses
	// neither, so undo both inversions.
	h.crc = ^crc64.Update(^h.crc, table, p)
	return len(p), nil
}

// Sum64 returns the checksum accumulated so far.
func (h *Hash) Sum64() uint64 {
	return h.crc
}

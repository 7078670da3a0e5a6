// Package memregion implements the fixed-capacity, byte-addressable memory
// blocks that back BIOS, WRAM, VRAM, OAM and palette. Mirror
// masking is the Bus's job (region sizes and mirror strides diverge, e.g.
// VRAM's 96 KiB/128 KiB split); a Region only ever sees an in-range offset.
package memregion

import (
	"encoding/binary"

	"github.com/corvid-systems/gba-core/internal/bitops"
)

// Region is a fixed-size byte store with little-endian typed accessors.
// A read-only Region silently drops writes, matching GBA hardware: a CPU
// store to BIOS or ROM is a no-op rather than a fault.
type Region struct {
	data     []byte
	readOnly bool
}

// New allocates a zeroed Region of the given capacity.
func New(size int, readOnly bool) *Region {
	return &Region{data: make([]byte, size), readOnly: readOnly}
}

// NewFromBytes wraps existing bytes as a Region (used to load the BIOS image).
func NewFromBytes(data []byte, readOnly bool) *Region {
	return &Region{data: data, readOnly: readOnly}
}

// Len returns the region's byte capacity.
func (r *Region) Len() int { return len(r.data) }

// Bytes exposes the raw backing slice for bulk load/save.
func (r *Region) Bytes() []byte { return r.data }

func (r *Region) Read8(off uint32) byte {
	return r.data[off]
}

func (r *Region) Write8(off uint32, v byte) {
	if r.readOnly {
		return
	}
	r.data[off] = v
}

func (r *Region) Read16(off uint32) uint16 {
	return binary.LittleEndian.Uint16(r.data[off : off+2])
}

func (r *Region) Write16(off uint32, v uint16) {
	if r.readOnly {
		return
	}
	binary.LittleEndian.PutUint16(r.data[off:off+2], v)
}

func (r *Region) Read32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(r.data[off : off+4])
}

func (r *Region) Write32(off uint32, v uint32) {
	if r.readOnly {
		return
	}
	binary.LittleEndian.PutUint32(r.data[off:off+4], v)
}

func (r *Region) ReadI8(off uint32) int8   { return int8(r.Read8(off)) }
func (r *Region) ReadI16(off uint32) int16 { return int16(r.Read16(off)) }
func (r *Region) ReadI32(off uint32) int32 { return int32(r.Read32(off)) }

// Read32Rotated reads the aligned 32-bit word at off&^3 and rotates it right
// by (off&3)*8 bits, reproducing LDR's behavior on unaligned addresses.
func (r *Region) Read32Rotated(off uint32) uint32 {
	aligned := off &^ 3
	word := r.Read32(aligned)
	return bitops.RotateRight(word, uint(off&3)*8)
}

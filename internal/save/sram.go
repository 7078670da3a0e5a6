package save

import "github.com/corvid-systems/gba-core/internal/bitops"

const sramSize = 32 * 1024

// sram is a 32 KiB byte-addressable RAM. Only 8-bit accesses are
// meaningful on hardware; 16/32-bit accesses return the addressed byte
// mirrored across all lanes and are unsupported for writes (§4.5).
type sram struct {
	data [sramSize]byte
}

func newSRAM() *sram { return &sram{} }

func (s *sram) isSaveBackend() {}

func (s *sram) Read8(addr uint32) byte { return s.data[addr%sramSize] }
func (s *sram) Write8(addr uint32, v byte) { s.data[addr%sramSize] = v }

func (s *sram) Read16(addr uint32) uint16 { return uint16(bitops.MirrorByte(s.Read8(addr))) }
func (s *sram) Write16(addr uint32, v uint16) { s.Write8(addr, byte(v)) }

func (s *sram) Read32(addr uint32) uint32   { return bitops.MirrorByte(s.Read8(addr)) }
func (s *sram) Write32(addr uint32, v uint32) { s.Write8(addr, byte(v)) }

func (s *sram) Marshal() []byte {
	out := make([]byte, sramSize)
	copy(out, s.data[:])
	return out
}

func (s *sram) Unmarshal(data []byte) {
	copy(s.data[:], data)
}

// Package bus implements the GBA's 32-bit address-space router described in
// §3/§4.7: it decodes the top nibble of an effective address and dispatches
// to the matching MemoryRegion, IoRegisters bank, or GamePak, applying each
// region's mirror mask before the access reaches it. Grounded on the
// teacher's bus.Bus.Read/Write address-range switch, generalized from the
// DMG's handful of regions to the GBA's memory map.
package bus

import (
	"github.com/corvid-systems/gba-core/internal/bitops"
	"github.com/corvid-systems/gba-core/internal/gamepak"
	"github.com/corvid-systems/gba-core/internal/ioreg"
	"github.com/corvid-systems/gba-core/internal/memregion"
)

const (
	biosSize  = 16 * 1024
	ewramSize = 256 * 1024
	iwramSize = 32 * 1024
	vramSize  = 96 * 1024
	oamSize   = 1 * 1024
	paletteSz = 1 * 1024

	ewramMask = ewramSize - 1
	iwramMask = iwramSize - 1
	ioMask    = 0x3FF
	paletteMk = 0x3FF
	oamMask   = 0x3FF

	vramMirrorStride = 128 * 1024
	vramHighSplit    = 0x17FFF // addresses whose low-17 bits exceed this fold into the upper 32 KiB bank
)

// Bus wires together every addressable region of the GBA memory map. The
// zero value is not usable; construct with New.
type Bus struct {
	BIOS  *memregion.Region
	EWRAM *memregion.Region
	IWRAM *memregion.Region
	IO    *ioreg.Registers
	PAL   *memregion.Region
	VRAM  *memregion.Region
	OAM   *memregion.Region
	Pak   *gamepak.GamePak

	// lastFetch holds the most recently prefetched instruction word, used
	// as the open-bus fallback for unmapped reads (§3 invariant iv, §4.6).
	// The CPU core updates this on every instruction fetch.
	lastFetch uint32
}

// New wires a Bus from a BIOS image and a GamePak. EWRAM/IWRAM/VRAM/OAM/
// palette are allocated zeroed and live for the lifetime of the instance.
func New(bios []byte, pak *gamepak.GamePak) *Bus {
	b := &Bus{
		BIOS:  memregion.NewFromBytes(bios, true),
		EWRAM: memregion.New(ewramSize, false),
		IWRAM: memregion.New(iwramSize, false),
		IO:    ioreg.New(),
		PAL:   memregion.New(paletteSz, false),
		VRAM:  memregion.New(vramSize, false),
		OAM:   memregion.New(oamSize, false),
		Pak:   pak,
	}
	pak.OpenBus = func() uint32 { return b.lastFetch }
	return b
}

// SetLastFetch records the most recently prefetched instruction word, the
// value hardware latches onto the bus and returns for unmapped reads.
func (b *Bus) SetLastFetch(v uint32) { b.lastFetch = v }

// vramOffset folds an address into VRAM's 96 KiB store through its 128 KiB
// mirror stride (§3): the low 17 bits are taken modulo the stride, and any
// result past the live 96 KiB reflects back into the upper 32 KiB bank.
func vramOffset(addr uint32) uint32 {
	off := addr % vramMirrorStride
	if off > vramHighSplit {
		off -= 32 * 1024
	}
	return off
}

func (b *Bus) openBus() uint32 { return b.lastFetch }

// Read8 dispatches a byte read by the address's top nibble (§4.7).
func (b *Bus) Read8(addr uint32) byte {
	switch addr >> 24 {
	case 0x0:
		return b.BIOS.Read8(addr & (biosSize - 1))
	case 0x2:
		return b.EWRAM.Read8(addr & ewramMask)
	case 0x3:
		return b.IWRAM.Read8(addr & iwramMask)
	case 0x4:
		if addr&0x00FFFFFF > 0x3FF {
			return byte(b.openBus())
		}
		return b.IO.Read8(addr & ioMask)
	case 0x5:
		return b.PAL.Read8(addr & paletteMk)
	case 0x6:
		return b.VRAM.Read8(vramOffset(addr))
	case 0x7:
		return b.OAM.Read8(addr & oamMask)
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD, 0xE, 0xF:
		return b.Pak.Read8(addr)
	default:
		return byte(b.openBus())
	}
}

// Write8 dispatches a byte write, silently dropping stores to unmapped or
// read-only regions (§4.7).
func (b *Bus) Write8(addr uint32, v byte) {
	switch addr >> 24 {
	case 0x0:
		// BIOS is read-only; Region.Write8 already no-ops.
	case 0x2:
		b.EWRAM.Write8(addr&ewramMask, v)
	case 0x3:
		b.IWRAM.Write8(addr&iwramMask, v)
	case 0x4:
		if addr&0x00FFFFFF <= 0x3FF {
			b.IO.Write8(addr&ioMask, v)
		}
	case 0x5:
		b.PAL.Write8(addr&paletteMk, v)
	case 0x6:
		b.VRAM.Write8(vramOffset(addr), v)
	case 0x7:
		b.OAM.Write8(addr&oamMask, v)
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD, 0xE, 0xF:
		b.Pak.Write8(addr, v)
	}
}

func (b *Bus) Read16(addr uint32) uint16 {
	switch addr >> 24 {
	case 0x0:
		return b.BIOS.Read16(addr & (biosSize - 1) &^ 1)
	case 0x2:
		return b.EWRAM.Read16(addr & ewramMask &^ 1)
	case 0x3:
		return b.IWRAM.Read16(addr & iwramMask &^ 1)
	case 0x4:
		if addr&0x00FFFFFF > 0x3FF {
			return uint16(b.openBus())
		}
		return b.IO.Read16(addr & ioMask &^ 1)
	case 0x5:
		return b.PAL.Read16(addr & paletteMk &^ 1)
	case 0x6:
		return b.VRAM.Read16(vramOffset(addr) &^ 1)
	case 0x7:
		return b.OAM.Read16(addr & oamMask &^ 1)
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD, 0xE, 0xF:
		return b.Pak.Read16(addr)
	default:
		return uint16(b.openBus())
	}
}

func (b *Bus) Write16(addr uint32, v uint16) {
	switch addr >> 24 {
	case 0x0:
	case 0x2:
		b.EWRAM.Write16(addr&ewramMask&^1, v)
	case 0x3:
		b.IWRAM.Write16(addr&iwramMask&^1, v)
	case 0x4:
		if addr&0x00FFFFFF <= 0x3FF {
			b.IO.Write16(addr&ioMask&^1, v)
		}
	case 0x5:
		b.PAL.Write16(addr&paletteMk&^1, v)
	case 0x6:
		b.VRAM.Write16(vramOffset(addr)&^1, v)
	case 0x7:
		b.OAM.Write16(addr&oamMask&^1, v)
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD, 0xE, 0xF:
		b.Pak.Write16(addr, v)
	}
}

func (b *Bus) Read32(addr uint32) uint32 {
	switch addr >> 24 {
	case 0x0:
		return b.BIOS.Read32(addr & (biosSize - 1) &^ 3)
	case 0x2:
		return b.EWRAM.Read32(addr & ewramMask &^ 3)
	case 0x3:
		return b.IWRAM.Read32(addr & iwramMask &^ 3)
	case 0x4:
		if addr&0x00FFFFFF > 0x3FF {
			return b.openBus()
		}
		return b.IO.Read32(addr & ioMask &^ 3)
	case 0x5:
		return b.PAL.Read32(addr & paletteMk &^ 3)
	case 0x6:
		return b.VRAM.Read32(vramOffset(addr) &^ 3)
	case 0x7:
		return b.OAM.Read32(addr & oamMask &^ 3)
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD, 0xE, 0xF:
		return b.Pak.Read32(addr)
	default:
		return b.openBus()
	}
}

func (b *Bus) Write32(addr uint32, v uint32) {
	switch addr >> 24 {
	case 0x0:
	case 0x2:
		b.EWRAM.Write32(addr&ewramMask&^3, v)
	case 0x3:
		b.IWRAM.Write32(addr&iwramMask&^3, v)
	case 0x4:
		if addr&0x00FFFFFF <= 0x3FF {
			b.IO.Write32(addr&ioMask&^3, v)
		}
	case 0x5:
		b.PAL.Write32(addr&paletteMk&^3, v)
	case 0x6:
		b.VRAM.Write32(vramOffset(addr)&^3, v)
	case 0x7:
		b.OAM.Write32(addr&oamMask&^3, v)
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD, 0xE, 0xF:
		b.Pak.Write32(addr, v)
	}
}

// Read32Unaligned implements LDR's documented behavior on a non-word-aligned
// address: the aligned word is fetched and rotated right by the misalignment
// in bits (§3 invariant i, §4.2).
func (b *Bus) Read32Unaligned(addr uint32) uint32 {
	aligned := b.Read32(addr &^ 3)
	return bitops.RotateRight(aligned, uint(addr&3)*8)
}

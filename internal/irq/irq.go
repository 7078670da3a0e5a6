// Package irq implements the GBA's interrupt controller (§4.10): the IE/IF/
// IME register trio and the source-to-bit mapping every other device raises
// requests through. Grounded on the teacher's interrupt handling in
// emu.Machine (a single pending-IRQ flag generalized here to a 14-source
// bitmask with per-source enable).
package irq

import "github.com/corvid-systems/gba-core/internal/ioreg"

// Source identifies one of the 14 interrupt lines, numbered to match its IE/
// IF bit position.
type Source uint

const (
	VBlank Source = iota
	HBlank
	VCountMatch
	Timer0
	Timer1
	Timer2
	Timer3
	Serial
	DMA0
	DMA1
	DMA2
	DMA3
	Keypad
	GamePak
)

const (
	regIE      = 0x200
	regIF      = 0x202
	regIME     = 0x208
	sourceMask = 0x3FFF // 14 bits

	// IE and IF share the aligned word at regIE: IE occupies the low
	// halfword, IF the high halfword.
	ieLaneMask = 0x0000FFFF
	ifLaneMask = 0xFFFF0000
)

// Controller owns the IE/IF/IME registers, wired into the shared IoRegisters
// bank so CPU loads/stores and device requests observe the same state.
type Controller struct {
	io *ioreg.Registers
}

// New wires a Controller onto io. IE behaves as a plain read/write register;
// IF, packed into the same 32-bit word's high halfword, is write-1-to-clear:
// a CPU store only clears the bits it writes a 1 to, never sets new ones.
func New(io *ioreg.Registers) *Controller {
	c := &Controller{io: io}
	io.PreWrite(regIE, func(aligned uint32, shift uint, mask, intValue uint32) bool {
		cur := io.RawWord32(aligned)
		result := (cur &^ (mask & ieLaneMask)) | (intValue & mask & ieLaneMask)
		result = result &^ (intValue & mask & ifLaneMask)
		io.SetRawWord32(aligned, result)
		return false // default merge bypassed; IF's clear-on-1 lane already applied above
	})
	return c
}

// Request ORs src's bit into IF, the effect of a device signalling its
// condition fired. IF lives in the high halfword of the shared IE/IF word.
func (c *Controller) Request(src Source) {
	cur := c.io.RawWord32(regIE)
	c.io.SetRawWord32(regIE, cur|(1<<(uint(src)+16)))
}

// Pending reports whether (IE & IF) is nonzero, the HALT coordinator's
// wake condition — evaluated regardless of IME or the CPU's I flag.
func (c *Controller) Pending() bool {
	w := c.io.RawWord32(regIE)
	return w&(w>>16)&sourceMask != 0
}

// ShouldTakeException reports whether the CPU should enter the IRQ
// exception: IME set, (IE & IF) nonzero, and the caller's I flag (cpsrIClear)
// is clear.
func (c *Controller) ShouldTakeException(cpsrIClear bool) bool {
	if !cpsrIClear {
		return false
	}
	ime := c.io.RawWord32(regIME)&1 != 0
	return ime && c.Pending()
}

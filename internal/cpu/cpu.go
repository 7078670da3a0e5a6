// Package cpu implements the ARM7TDMI core (§4.4): the 37-word banked
// register file, CPSR/SPSR, the ARM and THUMB fetch-decode-execute loop, the
// barrel shifter, and exception entry. Grounded on the teacher's SM83
// fetch-decode-execute Step method and its flags-as-struct-fields register
// file, generalized to ARMv4T's banked modes and two instruction sets.
package cpu

import "github.com/corvid-systems/gba-core/internal/bitops"

// Mode is a CPSR mode field value.
type Mode uint32

const (
	ModeUser       Mode = 0x10
	ModeFIQ        Mode = 0x11
	ModeIRQ        Mode = 0x12
	ModeSupervisor Mode = 0x13
	ModeAbort      Mode = 0x17
	ModeUndefined  Mode = 0x1B
	ModeSystem     Mode = 0x1F
)

// CPSR bit positions.
const (
	flagN = 31
	flagZ = 30
	flagC = 29
	flagV = 28
	flagQ = 27
	flagI = 7
	flagF = 6
	flagT = 5
)

// Memory is the subset of Bus the core fetches and executes memory
// instructions through.
type Memory interface {
	Read8(addr uint32) byte
	Write8(addr uint32, v byte)
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)
	Read32Unaligned(addr uint32) uint32
}

// fetchRecorder is implemented by memories that latch the last prefetched
// instruction word as the open-bus fallback (bus.Bus does; test doubles
// need not).
type fetchRecorder interface {
	SetLastFetch(v uint32)
}

// Core is the ARM7TDMI register file and execution engine.
type Core struct {
	r    [16]uint32 // R0..R15; R15 holds the next fetch address, rreg/treg add the PC+8/PC+4 offset
	cpsr uint32

	bankR13  [6]uint32 // indexed by bankIndex(mode); slot 0 is user/system
	bankR14  [6]uint32
	bankSPSR [6]uint32 // slot 0 (user/system) is never read: USER/SYSTEM have no SPSR

	fiqR8_12  [5]uint32
	userR8_12 [5]uint32

	halted bool

	mem Memory
	rec fetchRecorder // non-nil when mem latches prefetches for open-bus
}

// New constructs a Core wired to mem, reset to the BIOS entry point in
// SUPERVISOR mode with interrupts masked — the ARM7TDMI's documented
// power-on state.
func New(mem Memory) *Core {
	c := &Core{mem: mem}
	c.rec, _ = mem.(fetchRecorder)
	c.Reset()
	return c
}

// Reset restores power-on register state: PC=0, SP per mode, SUPERVISOR
// mode, IRQ/FIQ masked, ARM state.
func (c *Core) Reset() {
	c.r = [16]uint32{}
	c.cpsr = uint32(ModeSupervisor) | (1 << flagI) | (1 << flagF)
	c.bankR13[bankIndex(ModeSupervisor)] = 0x03007FE0
	c.bankR13[bankIndex(ModeIRQ)] = 0x03007FA0
	c.bankR13[bankIndex(ModeUser)] = 0x03007F00
	c.r[13] = c.bankR13[bankIndex(ModeSupervisor)]
	c.r[15] = 0
	c.halted = false
}

func bankIndex(m Mode) int {
	switch m {
	case ModeFIQ:
		return 1
	case ModeIRQ:
		return 2
	case ModeSupervisor:
		return 3
	case ModeAbort:
		return 4
	case ModeUndefined:
		return 5
	default:
		return 0
	}
}

// Mode reports the CPSR's current mode field.
func (c *Core) Mode() Mode { return Mode(c.cpsr & 0x1F) }

// Thumb reports whether the T bit selects THUMB state.
func (c *Core) Thumb() bool { return c.cpsr&(1<<flagT) != 0 }

func (c *Core) setThumb(v bool) { c.setFlagBit(flagT, v) }

func (c *Core) flag(bit uint) bool { return c.cpsr&(1<<bit) != 0 }

func (c *Core) setFlagBit(bit uint, v bool) {
	if v {
		c.cpsr |= 1 << bit
	} else {
		c.cpsr &^= 1 << bit
	}
}

func (c *Core) flagN() bool        { return c.flag(flagN) }
func (c *Core) flagZ() bool        { return c.flag(flagZ) }
func (c *Core) flagCarry() bool    { return c.flag(flagC) }
func (c *Core) flagOverflow() bool { return c.flag(flagV) }

func (c *Core) setNZ(v uint32) {
	c.setFlagBit(flagN, v&0x80000000 != 0)
	c.setFlagBit(flagZ, v == 0)
}

// R returns logical register i (0-15) as currently visible.
func (c *Core) R(i int) uint32 { return c.r[i] }

// SetR sets logical register i (0-15).
func (c *Core) SetR(i int, v uint32) { c.r[i] = v }

// CPSR returns the raw CPSR word.
func (c *Core) CPSR() uint32 { return c.cpsr }

// SetCPSR overwrites the CPSR, performing any mode-switch bank swap the new
// value implies.
func (c *Core) SetCPSR(v uint32) {
	newMode := Mode(v & 0x1F)
	c.switchMode(newMode)
	c.cpsr = v
}

// SPSR returns the current mode's saved program status register; USER and
// SYSTEM modes have none and read back 0.
func (c *Core) SPSR() uint32 {
	idx := bankIndex(c.Mode())
	if idx == 0 {
		return 0
	}
	return c.bankSPSR[idx]
}

// SetSPSR writes the current mode's SPSR; a no-op in USER/SYSTEM.
func (c *Core) SetSPSR(v uint32) {
	idx := bankIndex(c.Mode())
	if idx == 0 {
		return
	}
	c.bankSPSR[idx] = v
}

// switchMode performs the banked-register swap §3 invariant (iii) requires:
// the outgoing mode's R13/R14 (and FIQ's R8-R12) are saved, the incoming
// mode's are restored, and every other bank is left untouched.
func (c *Core) switchMode(newMode Mode) {
	oldMode := c.Mode()
	if oldMode == newMode {
		return
	}
	oldIdx, newIdx := bankIndex(oldMode), bankIndex(newMode)
	c.bankR13[oldIdx] = c.r[13]
	c.bankR14[oldIdx] = c.r[14]

	if oldMode == ModeFIQ && newMode != ModeFIQ {
		copy(c.fiqR8_12[:], c.r[8:13])
		copy(c.r[8:13], c.userR8_12[:])
	} else if oldMode != ModeFIQ && newMode == ModeFIQ {
		copy(c.userR8_12[:], c.r[8:13])
		copy(c.r[8:13], c.fiqR8_12[:])
	}

	c.r[13] = c.bankR13[newIdx]
	c.r[14] = c.bankR14[newIdx]
}

// Halted reports whether the core is waiting for an interrupt (HALT mode,
// entered via a write to the system control register outside this package).
func (c *Core) Halted() bool     { return c.halted }
func (c *Core) SetHalted(v bool) { c.halted = v }

// IFlagClear reports whether CPSR's I bit is clear, the gate
// irq.Controller.ShouldTakeException checks.
func (c *Core) IFlagClear() bool { return !c.flag(flagI) }

// pc returns the raw PC value (R15) with no pipeline offset.
func (c *Core) pc() uint32 { return c.r[15] }

// rreg reads logical register i as an ARM-state instruction operand: R15
// reads as the instruction's address plus 8 (§3: "reading it yields the
// value of the next-next instruction"). stepARM has already advanced r[15]
// past the instruction, so one more word gets there.
func (c *Core) rreg(i int) uint32 {
	if i == 15 {
		return c.r[15] + 4
	}
	return c.r[i]
}

// treg is rreg's THUMB-state counterpart: R15 reads as address plus 4.
func (c *Core) treg(i int) uint32 {
	if i == 15 {
		return c.r[15] + 2
	}
	return c.r[i]
}

// storeReg reads logical register i as an ARM-state store source: STR/STM of
// R15 puts the instruction's address plus 12 on the bus.
func (c *Core) storeReg(i int) uint32 {
	if i == 15 {
		return c.r[15] + 8
	}
	return c.r[i]
}

// userReg reads logical register i out of the USER bank regardless of the
// current mode, the view LDM/STM with the S bit (and no PC in the list) uses.
func (c *Core) userReg(i int) uint32 {
	switch {
	case i >= 8 && i <= 12 && c.Mode() == ModeFIQ:
		return c.userR8_12[i-8]
	case i == 13 && bankIndex(c.Mode()) != 0:
		return c.bankR13[0]
	case i == 14 && bankIndex(c.Mode()) != 0:
		return c.bankR14[0]
	default:
		return c.r[i]
	}
}

// setUserReg writes logical register i into the USER bank.
func (c *Core) setUserReg(i int, v uint32) {
	switch {
	case i >= 8 && i <= 12 && c.Mode() == ModeFIQ:
		c.userR8_12[i-8] = v
	case i == 13 && bankIndex(c.Mode()) != 0:
		c.bankR13[0] = v
	case i == 14 && bankIndex(c.Mode()) != 0:
		c.bankR14[0] = v
	default:
		c.r[i] = v
	}
}

// Step fetches, decodes, and executes exactly one instruction, advancing PC
// unless the handler branched. Returns an approximate cycle cost.
func (c *Core) Step() int {
	if c.Thumb() {
		return c.stepThumb()
	}
	return c.stepARM()
}

func (c *Core) stepARM() int {
	addr := c.r[15]
	word := c.mem.Read32(addr)
	if c.rec != nil {
		c.rec.SetLastFetch(word)
	}
	c.r[15] = addr + 4
	cond := bitops.GetBits(word, 28, 31)
	if cond == 0xF {
		// ARMv4T has no cond=0xF instruction space: the word is UNDEFINED.
		c.Enter(ExceptionUndefined, c.pc())
		return 1
	}
	if !c.evalCondition(cond) {
		return 1
	}
	return c.executeARM(word)
}

func (c *Core) stepThumb() int {
	addr := c.r[15]
	word := c.mem.Read16(addr)
	if c.rec != nil {
		// A halfword fetch mirrors across both lanes of the latched bus word.
		c.rec.SetLastFetch(bitops.MirrorHalf(word))
	}
	c.r[15] = addr + 2
	return c.executeThumb(word)
}

// evalCondition implements the 0..F condition-code table (§4.4). NV (1111)
// evaluates false here; stepARM sends ARM words with cond 0xF to the
// UNDEFINED exception before consulting this table, and THUMB's
// conditional branch never passes 0xF (that encoding is SWI).
func (c *Core) evalCondition(cond uint32) bool {
	switch cond {
	case 0x0:
		return c.flagZ()
	case 0x1:
		return !c.flagZ()
	case 0x2:
		return c.flagCarry()
	case 0x3:
		return !c.flagCarry()
	case 0x4:
		return c.flagN()
	case 0x5:
		return !c.flagN()
	case 0x6:
		return c.flagOverflow()
	case 0x7:
		return !c.flagOverflow()
	case 0x8:
		return c.flagCarry() && !c.flagZ()
	case 0x9:
		return !c.flagCarry() || c.flagZ()
	case 0xA:
		return c.flagN() == c.flagOverflow()
	case 0xB:
		return c.flagN() != c.flagOverflow()
	case 0xC:
		return !c.flagZ() && c.flagN() == c.flagOverflow()
	case 0xD:
		return c.flagZ() || c.flagN() != c.flagOverflow()
	case 0xE:
		return true
	default:
		return false
	}
}

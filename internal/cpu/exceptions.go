package cpu

// Exception identifies one of the six entry points §4.4 describes.
type Exception int

const (
	ExceptionReset Exception = iota
	ExceptionUndefined
	ExceptionSWI
	ExceptionAbort
	ExceptionIRQ
	ExceptionFIQ
)

type exceptionInfo struct {
	vector    uint32
	mode      Mode
	lrOffset  uint32 // added to the return PC before it's stored to LR
	setF      bool
}

var exceptionTable = map[Exception]exceptionInfo{
	ExceptionReset:     {vector: 0x00, mode: ModeSupervisor, lrOffset: 0, setF: true},
	ExceptionUndefined: {vector: 0x04, mode: ModeUndefined, lrOffset: 0},
	ExceptionSWI:       {vector: 0x08, mode: ModeSupervisor, lrOffset: 0},
	ExceptionAbort:     {vector: 0x0C, mode: ModeAbort, lrOffset: 0},
	ExceptionFIQ:       {vector: 0x1C, mode: ModeFIQ, lrOffset: 4, setF: true},
	ExceptionIRQ:       {vector: 0x18, mode: ModeIRQ, lrOffset: 4},
}

// Enter performs the exception-entry sequence common to SWI/UNDEFINED/
// ABORT/IRQ/FIQ/RESET (§4.4): save CPSR to the target mode's SPSR, set I
// (and F for RESET/FIQ), clear T, switch mode, stash the return address in
// LR, and jump to the vector. returnPC is the address of the instruction
// after the one that trapped — stepARM/stepThumb have already advanced
// r[15] past it by the time SWI/UNDEFINED call Enter, so those call sites
// pass c.pc()/c.r[15] unmodified; lrOffset only adds the further +4 IRQ/FIQ
// need on top of that.
func (c *Core) Enter(ex Exception, returnPC uint32) {
	info := exceptionTable[ex]
	savedCPSR := c.cpsr
	c.switchMode(info.mode)
	c.cpsr = (c.cpsr &^ 0x1F) | uint32(info.mode)
	idx := bankIndex(info.mode)
	c.bankSPSR[idx] = savedCPSR

	c.setFlagBit(flagI, true)
	if info.setF {
		c.setFlagBit(flagF, true)
	}
	c.setThumb(false)

	c.r[14] = returnPC + info.lrOffset
	c.r[15] = info.vector
}

// EnterIRQ performs IRQ exception entry. Unlike SWI/UNDEFINED, which trap
// synchronously right after stepARM/stepThumb advances r[15] past the
// trapping instruction, IRQ is recognized by the scheduler between
// instructions: r[15] already holds the address of the next not-yet-fetched
// instruction, so it is passed as-is and the IRQ exception's +4 lrOffset
// supplies the documented LR_irq = next-instruction-address + 4.
func (c *Core) EnterIRQ() {
	c.Enter(ExceptionIRQ, c.r[15])
}

// Return implements `MOVS PC, LR` / `SUBS PC, LR, #n`-style exception
// return: restores CPSR from the current mode's SPSR (which also restores
// the banked register visibility of whatever mode the SPSR names) and jumps
// to addr.
func (c *Core) Return(addr uint32) {
	spsr := c.SPSR()
	c.SetCPSR(spsr)
	c.r[15] = addr
}
